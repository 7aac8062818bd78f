package progress

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/casbytes/lms-sub000/core"
)

type eventKind int

const (
	eventBadgeUnlocked eventKind = iota
	eventCourseCompleted
)

// event is sent to the user once the transaction that raised it has committed.
type event struct {
	kind     eventKind
	userID   string
	targetID string // module progress for badges, course progress for completions
	title    string
	level    BadgeLevel
	score    int
}

// cascade carries one transaction's worth of status changes.
// Scores of touched modules and courses are recomputed by rollup once every status change is written.
type cascade struct {
	ctx    context.Context
	repo   Repository
	conf   core.ProgressConfig
	now    time.Time
	events []event

	modules map[string]struct{}
	courses map[string]struct{}
}

func newCascade(ctx context.Context, repo Repository, conf core.ProgressConfig) *cascade {
	return &cascade{
		ctx:     ctx,
		repo:    repo,
		conf:    conf,
		now:     NowFunc().UTC(),
		modules: make(map[string]struct{}),
		courses: make(map[string]struct{}),
	}
}

func (c *cascade) touchModule(m ModuleProgress) {
	c.modules[m.ID] = struct{}{}
	if m.CourseProgressID != "" {
		c.courses[m.CourseProgressID] = struct{}{}
	}
}

func (c *cascade) touchCourse(id string) {
	c.courses[id] = struct{}{}
}

func (c *cascade) ownedTest(ownerID string) (*TestProgress, error) {
	t, err := c.repo.GetTestByOwner(c.ctx, ownerID)
	if err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "getting test")
	}
	return &t, nil
}

func (c *cascade) ownedCheckpoint(ownerID string) (*CheckpointProgress, error) {
	cp, err := c.repo.GetCheckpointByOwner(c.ctx, ownerID)
	if err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "getting checkpoint")
	}
	return &cp, nil
}

func (c *cascade) startLesson(l LessonProgress) error {
	if err := l.moveTo(StatusInProgress); err != nil {
		return err
	}
	l.UpdatedAt = c.now
	return c.repo.UpdateLesson(c.ctx, l)
}

// completeLesson finishes a lesson and unlocks whatever comes after it.
func (c *cascade) completeLesson(l LessonProgress) error {
	if err := l.moveTo(StatusCompleted); err != nil {
		return err
	}
	l.Score = 100
	l.UpdatedAt = c.now
	if err := c.repo.UpdateLesson(c.ctx, l); err != nil {
		return errors.Wrap(err, "updating lesson")
	}

	sm, err := c.repo.GetSubModule(c.ctx, l.SubModuleProgressID)
	if err != nil {
		return errors.Wrap(err, "getting submodule")
	}
	if err = c.touchModuleByID(sm.ModuleProgressID); err != nil {
		return err
	}

	lessons, err := c.repo.QueryLessons(c.ctx, sm.ID)
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	for _, next := range lessons {
		if next.Order > l.Order && next.Status == StatusLocked {
			return c.startLesson(next)
		}
	}
	for _, other := range lessons {
		if other.Status != StatusCompleted {
			return nil
		}
	}
	return c.advanceSubModule(sm)
}

func (c *cascade) touchModuleByID(id string) error {
	m, err := c.repo.GetModule(c.ctx, id)
	if err != nil {
		return errors.Wrap(err, "getting module")
	}
	c.touchModule(m)
	return nil
}

// startSubModule unlocks a submodule and its first lesson.
// A submodule without lessons moves straight on to its test.
func (c *cascade) startSubModule(sm SubModuleProgress) error {
	if err := sm.moveTo(StatusInProgress); err != nil {
		return err
	}
	sm.UpdatedAt = c.now
	if err := c.repo.UpdateSubModule(c.ctx, sm); err != nil {
		return errors.Wrap(err, "updating submodule")
	}

	lessons, err := c.repo.QueryLessons(c.ctx, sm.ID)
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	for _, l := range lessons {
		switch l.Status {
		case StatusLocked:
			return c.startLesson(l)
		case StatusInProgress:
			return nil
		}
	}
	return c.advanceSubModule(sm)
}

// advanceSubModule runs once every lesson of sm is completed, and again after its test or checkpoint finishes.
// The test opens only if it was never attempted: a failed test is reopened by its cooldown, not here.
func (c *cascade) advanceSubModule(sm SubModuleProgress) error {
	done, err := c.gates(sm.ID)
	if err != nil || !done {
		return err
	}
	return c.completeSubModule(sm)
}

// gates opens the next pending test or checkpoint of an owner and reports whether both are finished.
func (c *cascade) gates(ownerID string) (bool, error) {
	t, err := c.ownedTest(ownerID)
	if err != nil {
		return false, err
	}
	if t != nil && t.Status != TestCompleted {
		if t.Status == TestLocked && t.Attempts == 0 {
			if err = t.moveTo(TestAvailable); err != nil {
				return false, err
			}
			t.UpdatedAt = c.now
			if err = c.repo.UpdateTest(c.ctx, *t); err != nil {
				return false, errors.Wrap(err, "updating test")
			}
		}
		return false, nil
	}

	cp, err := c.ownedCheckpoint(ownerID)
	if err != nil {
		return false, err
	}
	if cp != nil && cp.Status != CheckpointGraded {
		if cp.Status == CheckpointLocked {
			if err = cp.moveTo(CheckpointInProgress); err != nil {
				return false, err
			}
			cp.UpdatedAt = c.now
			if err = c.repo.UpdateCheckpoint(c.ctx, *cp); err != nil {
				return false, errors.Wrap(err, "updating checkpoint")
			}
		}
		return false, nil
	}
	return true, nil
}

func (c *cascade) completeSubModule(sm SubModuleProgress) error {
	if err := sm.moveTo(StatusCompleted); err != nil {
		return err
	}
	sm.UpdatedAt = c.now
	if err := c.repo.UpdateSubModule(c.ctx, sm); err != nil {
		return errors.Wrap(err, "updating submodule")
	}

	m, err := c.repo.GetModule(c.ctx, sm.ModuleProgressID)
	if err != nil {
		return errors.Wrap(err, "getting module")
	}
	c.touchModule(m)
	if err = c.evaluateBadges(m); err != nil {
		return err
	}

	siblings, err := c.repo.QuerySubModules(c.ctx, m.ID)
	if err != nil {
		return errors.Wrap(err, "querying submodules")
	}
	for _, next := range siblings {
		if next.Order > sm.Order && next.Status == StatusLocked {
			return c.startSubModule(next)
		}
	}
	for _, other := range siblings {
		if other.Status != StatusCompleted {
			return nil
		}
	}
	return c.advanceModule(m)
}

// startModule unlocks a module, its first submodule and that submodule's first lesson.
func (c *cascade) startModule(m ModuleProgress) error {
	if err := m.moveTo(StatusInProgress); err != nil {
		return err
	}
	m.UpdatedAt = c.now
	if err := c.repo.UpdateModule(c.ctx, m); err != nil {
		return errors.Wrap(err, "updating module")
	}
	c.touchModule(m)

	subModules, err := c.repo.QuerySubModules(c.ctx, m.ID)
	if err != nil {
		return errors.Wrap(err, "querying submodules")
	}
	for _, sm := range subModules {
		switch sm.Status {
		case StatusLocked:
			return c.startSubModule(sm)
		case StatusInProgress:
			return nil
		}
	}
	return c.advanceModule(m)
}

func (c *cascade) advanceModule(m ModuleProgress) error {
	done, err := c.gates(m.ID)
	if err != nil || !done {
		return err
	}
	return c.completeModule(m)
}

func (c *cascade) completeModule(m ModuleProgress) error {
	if err := m.moveTo(StatusCompleted); err != nil {
		return err
	}
	m.UpdatedAt = c.now
	if err := c.repo.UpdateModule(c.ctx, m); err != nil {
		return errors.Wrap(err, "updating module")
	}
	c.touchModule(m)
	if err := c.evaluateBadges(m); err != nil {
		return err
	}
	if m.CourseProgressID == "" {
		return nil
	}

	course, err := c.repo.GetCourse(c.ctx, m.CourseProgressID)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return c.advanceCourse(course)
}

// advanceCourse unlocks the next locked module by order, unless one is still in progress.
// Once every module is completed the project opens, or the course completes when it has none.
func (c *cascade) advanceCourse(course CourseProgress) error {
	modules, err := c.repo.QueryModules(c.ctx, course.UserID, course.ID)
	if err != nil {
		return errors.Wrap(err, "querying modules")
	}
	sort.SliceStable(modules, func(i, j int) bool { return modules[i].Order < modules[j].Order })

	var next *ModuleProgress
	for i := range modules {
		switch modules[i].Status {
		case StatusInProgress:
			return nil
		case StatusLocked:
			if next == nil {
				next = &modules[i]
			}
		}
	}
	if next != nil {
		return c.startModule(*next)
	}

	p, err := c.repo.GetProjectByCourse(c.ctx, course.ID)
	switch {
	case err == nil:
		if p.Status == ProjectCompleted {
			break
		}
		if p.Status == ProjectLocked {
			if err = p.moveTo(ProjectInProgress); err != nil {
				return err
			}
			p.UpdatedAt = c.now
			if err = c.repo.UpdateProject(c.ctx, p); err != nil {
				return errors.Wrap(err, "updating project")
			}
		}
		return nil
	case err != ErrNotFound:
		return errors.Wrap(err, "getting project")
	}
	return c.completeCourse(course)
}

func (c *cascade) completeCourse(course CourseProgress) error {
	if err := course.moveTo(StatusCompleted); err != nil {
		return err
	}
	course.CompletedAt = c.now
	course.UpdatedAt = c.now
	if err := c.repo.UpdateCourse(c.ctx, course); err != nil {
		return errors.Wrap(err, "updating course")
	}
	c.touchCourse(course.ID)
	c.events = append(c.events, event{
		kind:     eventCourseCompleted,
		userID:   course.UserID,
		targetID: course.ID,
		title:    course.Title,
	})
	return nil
}

// gradeAttempt closes the session, records the attempt and moves the test forward or into cooldown.
func (c *cascade) gradeAttempt(t TestProgress, sess TestSession, score int) (TestResult, error) {
	sess.SubmittedAt = c.now
	if err := c.repo.UpdateSession(c.ctx, sess); err != nil {
		return TestResult{}, errors.Wrap(err, "updating session")
	}

	t.Attempts++
	t.Score = score
	t.UpdatedAt = c.now
	passed := score >= c.conf.TestCutoff
	if passed {
		if err := t.moveTo(TestCompleted); err != nil {
			return TestResult{}, err
		}
	} else {
		if err := t.moveTo(TestLocked); err != nil {
			return TestResult{}, err
		}
		t.NextAttemptAt = c.now.Add(time.Duration(t.Attempts) * c.conf.CooldownUnit)
	}
	if err := c.repo.UpdateTest(c.ctx, t); err != nil {
		return TestResult{}, errors.Wrap(err, "updating test")
	}

	if err := c.advanceOwner(t.ModuleProgressID, t.SubModuleProgressID); err != nil {
		return TestResult{}, err
	}
	return TestResult{Progress: t, Score: score, Passed: passed}, nil
}

// advanceOwner re-runs the gates of the module or submodule a test or checkpoint belongs to.
func (c *cascade) advanceOwner(moduleProgressID, subModuleProgressID string) error {
	if subModuleProgressID != "" {
		sm, err := c.repo.GetSubModule(c.ctx, subModuleProgressID)
		if err != nil {
			return errors.Wrap(err, "getting submodule")
		}
		if err = c.touchModuleByID(sm.ModuleProgressID); err != nil {
			return err
		}
		return c.advanceSubModule(sm)
	}
	m, err := c.repo.GetModule(c.ctx, moduleProgressID)
	if err != nil {
		return errors.Wrap(err, "getting module")
	}
	c.touchModule(m)
	return c.advanceModule(m)
}

// reopenIfCooledDown flips a failed test back to AVAILABLE once its cooldown is over.
func (c *cascade) reopenIfCooledDown(t *TestProgress) (bool, error) {
	if t.Status != TestLocked || t.Attempts == 0 || t.NextAttemptAt.After(c.now) {
		return false, nil
	}
	if err := t.moveTo(TestAvailable); err != nil {
		return false, err
	}
	t.UpdatedAt = c.now
	if err := c.repo.UpdateTest(c.ctx, *t); err != nil {
		return false, errors.Wrap(err, "updating test")
	}
	return true, nil
}

// rollup recomputes the scores of every touched module and course from their children.
func (c *cascade) rollup() error {
	for id := range c.modules {
		if err := c.rollupModule(id); err != nil {
			return err
		}
	}
	for id := range c.courses {
		if err := c.rollupCourse(id); err != nil {
			return err
		}
	}
	for i, ev := range c.events {
		if ev.kind != eventCourseCompleted {
			continue
		}
		course, err := c.repo.GetCourse(c.ctx, ev.targetID)
		if err != nil {
			return errors.Wrap(err, "getting course")
		}
		c.events[i].score = course.Score
	}
	return nil
}

func (c *cascade) gateScores(ownerID string) ([]int, error) {
	var scores []int
	t, err := c.ownedTest(ownerID)
	if err != nil {
		return nil, err
	}
	if t != nil {
		scores = append(scores, t.Score)
	}
	cp, err := c.ownedCheckpoint(ownerID)
	if err != nil {
		return nil, err
	}
	if cp != nil {
		scores = append(scores, cp.Score)
	}
	return scores, nil
}

func (c *cascade) rollupModule(id string) error {
	m, err := c.repo.GetModule(c.ctx, id)
	if err != nil {
		return errors.Wrap(err, "getting module")
	}
	subModules, err := c.repo.QuerySubModules(c.ctx, m.ID)
	if err != nil {
		return errors.Wrap(err, "querying submodules")
	}

	var moduleScores []int
	for _, sm := range subModules {
		lessons, err := c.repo.QueryLessons(c.ctx, sm.ID)
		if err != nil {
			return errors.Wrap(err, "querying lessons")
		}
		scores := make([]int, 0, len(lessons)+2)
		for _, l := range lessons {
			scores = append(scores, l.Score)
		}
		gateScores, err := c.gateScores(sm.ID)
		if err != nil {
			return err
		}
		scores = append(scores, gateScores...)

		if score := core.RoundedMean(scores...); score != sm.Score {
			sm.Score = score
			sm.UpdatedAt = c.now
			if err = c.repo.UpdateSubModule(c.ctx, sm); err != nil {
				return errors.Wrap(err, "updating submodule")
			}
		}
		moduleScores = append(moduleScores, sm.Score)
	}

	gateScores, err := c.gateScores(m.ID)
	if err != nil {
		return err
	}
	moduleScores = append(moduleScores, gateScores...)
	if score := core.RoundedMean(moduleScores...); score != m.Score {
		m.Score = score
		m.UpdatedAt = c.now
		if err = c.repo.UpdateModule(c.ctx, m); err != nil {
			return errors.Wrap(err, "updating module")
		}
	}
	return nil
}

func (c *cascade) rollupCourse(id string) error {
	course, err := c.repo.GetCourse(c.ctx, id)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	modules, err := c.repo.QueryModules(c.ctx, course.UserID, course.ID)
	if err != nil {
		return errors.Wrap(err, "querying modules")
	}
	scores := make([]int, 0, len(modules)+1)
	for _, m := range modules {
		scores = append(scores, m.Score)
	}
	p, err := c.repo.GetProjectByCourse(c.ctx, course.ID)
	switch {
	case err == nil:
		scores = append(scores, p.Score)
	case err != ErrNotFound:
		return errors.Wrap(err, "getting project")
	}

	if score := core.RoundedMean(scores...); score != course.Score {
		course.Score = score
		course.UpdatedAt = c.now
		if err = c.repo.UpdateCourse(c.ctx, course); err != nil {
			return errors.Wrap(err, "updating course")
		}
	}
	return nil
}
