package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/casbytes/lms-sub000/core"
	"github.com/casbytes/lms-sub000/core/progress"
)

type progressRepository struct {
	conn
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{conn{db: db}}
}

func (repo *progressRepository) RunInTx(_ context.Context, fn func(progress.Repository) error) error {
	return repo.runInTx(func(tx conn) error {
		return fn(&progressRepository{tx})
	})
}

// courses

func (repo *progressRepository) CreateCourse(_ context.Context, c progress.CourseProgress) (progress.CourseProgress, error) {
	defer repo.lock()()

	c.ID = uuid.New().String()
	c.Modules, c.Project = nil, nil
	repo.tables().courseProgress[c.ID] = c
	return c, nil
}

func (repo *progressRepository) GetCourse(_ context.Context, id string) (progress.CourseProgress, error) {
	defer repo.rlock()()

	if c, ok := repo.tables().courseProgress[id]; ok {
		return c, nil
	}
	return progress.CourseProgress{}, progress.ErrNotFound
}

func (repo *progressRepository) GetCourseByCatalogID(_ context.Context, userID, courseID string) (progress.CourseProgress, error) {
	defer repo.rlock()()

	for _, c := range repo.tables().courseProgress {
		if c.UserID == userID && c.CourseID == courseID {
			return c, nil
		}
	}
	return progress.CourseProgress{}, progress.ErrNotFound
}

func (repo *progressRepository) QueryCourses(_ context.Context, userID string) ([]progress.CourseProgress, error) {
	defer repo.rlock()()

	courses := make([]progress.CourseProgress, 0)
	for _, c := range repo.tables().courseProgress {
		if c.UserID == userID {
			courses = append(courses, c)
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) })
	return courses, nil
}

func (repo *progressRepository) UpdateCourse(_ context.Context, c progress.CourseProgress) error {
	defer repo.lock()()

	if _, ok := repo.tables().courseProgress[c.ID]; !ok {
		return progress.ErrNotFound
	}
	c.Modules, c.Project = nil, nil
	repo.tables().courseProgress[c.ID] = c
	return nil
}

func (repo *progressRepository) DeleteCourse(_ context.Context, id string) error {
	defer repo.lock()()

	if _, ok := repo.tables().courseProgress[id]; !ok {
		return progress.ErrNotFound
	}
	repo.tables().deleteCourseProgress(id)
	return nil
}

// modules

func (repo *progressRepository) CreateModule(_ context.Context, m progress.ModuleProgress) (progress.ModuleProgress, error) {
	defer repo.lock()()

	m.ID = uuid.New().String()
	m.SubModules, m.Test, m.Checkpoint, m.Badges = nil, nil, nil, nil
	repo.tables().moduleProgress[m.ID] = m
	return m, nil
}

func (repo *progressRepository) GetModule(_ context.Context, id string) (progress.ModuleProgress, error) {
	defer repo.rlock()()

	if m, ok := repo.tables().moduleProgress[id]; ok {
		return m, nil
	}
	return progress.ModuleProgress{}, progress.ErrNotFound
}

func (repo *progressRepository) GetModuleByTitle(_ context.Context, userID, title string) (progress.ModuleProgress, error) {
	defer repo.rlock()()

	title = core.CleanString(title, true /* lower */)
	for _, m := range repo.tables().moduleProgress {
		if m.UserID == userID && core.CleanString(m.Title, true /* lower */) == title {
			return m, nil
		}
	}
	return progress.ModuleProgress{}, progress.ErrNotFound
}

func (repo *progressRepository) QueryModules(_ context.Context, userID, courseProgressID string) ([]progress.ModuleProgress, error) {
	defer repo.rlock()()

	modules := make([]progress.ModuleProgress, 0)
	for _, m := range repo.tables().moduleProgress {
		if m.UserID == userID && m.CourseProgressID == courseProgressID {
			modules = append(modules, m)
		}
	}
	sort.Slice(modules, func(i, j int) bool {
		if courseProgressID == "" || modules[i].Order == modules[j].Order {
			return modules[i].CreatedAt.Before(modules[j].CreatedAt)
		}
		return modules[i].Order < modules[j].Order
	})
	return modules, nil
}

func (repo *progressRepository) UpdateModule(_ context.Context, m progress.ModuleProgress) error {
	defer repo.lock()()

	if _, ok := repo.tables().moduleProgress[m.ID]; !ok {
		return progress.ErrNotFound
	}
	m.SubModules, m.Test, m.Checkpoint, m.Badges = nil, nil, nil, nil
	repo.tables().moduleProgress[m.ID] = m
	return nil
}

func (repo *progressRepository) DeleteModule(_ context.Context, id string) error {
	defer repo.lock()()

	if _, ok := repo.tables().moduleProgress[id]; !ok {
		return progress.ErrNotFound
	}
	repo.tables().deleteModuleProgress(id)
	return nil
}

// submodules

func (repo *progressRepository) CreateSubModule(_ context.Context, sm progress.SubModuleProgress) (progress.SubModuleProgress, error) {
	defer repo.lock()()

	sm.ID = uuid.New().String()
	sm.Lessons, sm.Test, sm.Checkpoint = nil, nil, nil
	repo.tables().subModuleProgress[sm.ID] = sm
	return sm, nil
}

func (repo *progressRepository) GetSubModule(_ context.Context, id string) (progress.SubModuleProgress, error) {
	defer repo.rlock()()

	if sm, ok := repo.tables().subModuleProgress[id]; ok {
		return sm, nil
	}
	return progress.SubModuleProgress{}, progress.ErrNotFound
}

func (repo *progressRepository) QuerySubModules(_ context.Context, moduleProgressID string) ([]progress.SubModuleProgress, error) {
	defer repo.rlock()()

	subModules := make([]progress.SubModuleProgress, 0)
	for _, sm := range repo.tables().subModuleProgress {
		if sm.ModuleProgressID == moduleProgressID {
			subModules = append(subModules, sm)
		}
	}
	sort.Slice(subModules, func(i, j int) bool { return subModules[i].Order < subModules[j].Order })
	return subModules, nil
}

func (repo *progressRepository) UpdateSubModule(_ context.Context, sm progress.SubModuleProgress) error {
	defer repo.lock()()

	if _, ok := repo.tables().subModuleProgress[sm.ID]; !ok {
		return progress.ErrNotFound
	}
	sm.Lessons, sm.Test, sm.Checkpoint = nil, nil, nil
	repo.tables().subModuleProgress[sm.ID] = sm
	return nil
}

// lessons

func (repo *progressRepository) CreateLesson(_ context.Context, l progress.LessonProgress) (progress.LessonProgress, error) {
	defer repo.lock()()

	l.ID = uuid.New().String()
	repo.tables().lessonProgress[l.ID] = l
	return l, nil
}

func (repo *progressRepository) GetLesson(_ context.Context, id string) (progress.LessonProgress, error) {
	defer repo.rlock()()

	if l, ok := repo.tables().lessonProgress[id]; ok {
		return l, nil
	}
	return progress.LessonProgress{}, progress.ErrNotFound
}

func (repo *progressRepository) QueryLessons(_ context.Context, subModuleProgressID string) ([]progress.LessonProgress, error) {
	defer repo.rlock()()

	lessons := make([]progress.LessonProgress, 0)
	for _, l := range repo.tables().lessonProgress {
		if l.SubModuleProgressID == subModuleProgressID {
			lessons = append(lessons, l)
		}
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Order < lessons[j].Order })
	return lessons, nil
}

func (repo *progressRepository) UpdateLesson(_ context.Context, l progress.LessonProgress) error {
	defer repo.lock()()

	if _, ok := repo.tables().lessonProgress[l.ID]; !ok {
		return progress.ErrNotFound
	}
	repo.tables().lessonProgress[l.ID] = l
	return nil
}

// tests

func (repo *progressRepository) CreateTest(_ context.Context, t progress.TestProgress) (progress.TestProgress, error) {
	defer repo.lock()()

	t.ID = uuid.New().String()
	repo.tables().testProgress[t.ID] = t
	return t, nil
}

func (repo *progressRepository) GetTest(_ context.Context, id string) (progress.TestProgress, error) {
	defer repo.rlock()()

	if t, ok := repo.tables().testProgress[id]; ok {
		return t, nil
	}
	return progress.TestProgress{}, progress.ErrNotFound
}

func (repo *progressRepository) GetTestByOwner(_ context.Context, ownerID string) (progress.TestProgress, error) {
	defer repo.rlock()()

	for _, t := range repo.tables().testProgress {
		if t.OwnerID() == ownerID {
			return t, nil
		}
	}
	return progress.TestProgress{}, progress.ErrNotFound
}

func (repo *progressRepository) QueryCooledDownTests(_ context.Context, now time.Time) ([]progress.TestProgress, error) {
	defer repo.rlock()()

	tests := make([]progress.TestProgress, 0)
	for _, t := range repo.tables().testProgress {
		if t.Status == progress.TestLocked && t.Attempts > 0 && !t.NextAttemptAt.After(now) {
			tests = append(tests, t)
		}
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].NextAttemptAt.Before(tests[j].NextAttemptAt) })
	return tests, nil
}

func (repo *progressRepository) UpdateTest(_ context.Context, t progress.TestProgress) error {
	defer repo.lock()()

	if _, ok := repo.tables().testProgress[t.ID]; !ok {
		return progress.ErrNotFound
	}
	repo.tables().testProgress[t.ID] = t
	return nil
}

// checkpoints

func (repo *progressRepository) CreateCheckpoint(_ context.Context, cp progress.CheckpointProgress) (progress.CheckpointProgress, error) {
	defer repo.lock()()

	cp.ID = uuid.New().String()
	repo.tables().checkpointProgress[cp.ID] = cp
	return cp, nil
}

func (repo *progressRepository) GetCheckpoint(_ context.Context, id string) (progress.CheckpointProgress, error) {
	defer repo.rlock()()

	if cp, ok := repo.tables().checkpointProgress[id]; ok {
		return cp, nil
	}
	return progress.CheckpointProgress{}, progress.ErrNotFound
}

func (repo *progressRepository) GetCheckpointByOwner(_ context.Context, ownerID string) (progress.CheckpointProgress, error) {
	defer repo.rlock()()

	for _, cp := range repo.tables().checkpointProgress {
		if cp.OwnerID() == ownerID {
			return cp, nil
		}
	}
	return progress.CheckpointProgress{}, progress.ErrNotFound
}

func (repo *progressRepository) UpdateCheckpoint(_ context.Context, cp progress.CheckpointProgress) error {
	defer repo.lock()()

	if _, ok := repo.tables().checkpointProgress[cp.ID]; !ok {
		return progress.ErrNotFound
	}
	repo.tables().checkpointProgress[cp.ID] = cp
	return nil
}

// projects

func (repo *progressRepository) CreateProject(_ context.Context, p progress.ProjectProgress) (progress.ProjectProgress, error) {
	defer repo.lock()()

	p.ID = uuid.New().String()
	repo.tables().projectProgress[p.ID] = p
	return p, nil
}

func (repo *progressRepository) GetProject(_ context.Context, id string) (progress.ProjectProgress, error) {
	defer repo.rlock()()

	if p, ok := repo.tables().projectProgress[id]; ok {
		return p, nil
	}
	return progress.ProjectProgress{}, progress.ErrNotFound
}

func (repo *progressRepository) GetProjectByCourse(_ context.Context, courseProgressID string) (progress.ProjectProgress, error) {
	defer repo.rlock()()

	for _, p := range repo.tables().projectProgress {
		if p.CourseProgressID == courseProgressID {
			return p, nil
		}
	}
	return progress.ProjectProgress{}, progress.ErrNotFound
}

func (repo *progressRepository) UpdateProject(_ context.Context, p progress.ProjectProgress) error {
	defer repo.lock()()

	if _, ok := repo.tables().projectProgress[p.ID]; !ok {
		return progress.ErrNotFound
	}
	repo.tables().projectProgress[p.ID] = p
	return nil
}

// badges

func (repo *progressRepository) CreateBadge(_ context.Context, b progress.Badge) (progress.Badge, error) {
	defer repo.lock()()

	b.ID = uuid.New().String()
	repo.tables().badges[b.ID] = b
	return b, nil
}

func (repo *progressRepository) QueryBadges(_ context.Context, moduleProgressID string) ([]progress.Badge, error) {
	defer repo.rlock()()

	badges := make([]progress.Badge, 0, len(progress.BadgeLevels))
	for _, b := range repo.tables().badges {
		if b.ModuleProgressID == moduleProgressID {
			badges = append(badges, b)
		}
	}
	sort.Slice(badges, func(i, j int) bool { return badges[i].Level.Threshold() < badges[j].Level.Threshold() })
	return badges, nil
}

func (repo *progressRepository) UpdateBadge(_ context.Context, b progress.Badge) error {
	defer repo.lock()()

	if _, ok := repo.tables().badges[b.ID]; !ok {
		return progress.ErrNotFound
	}
	repo.tables().badges[b.ID] = b
	return nil
}

// sessions

func (repo *progressRepository) CreateSession(_ context.Context, s progress.TestSession) (progress.TestSession, error) {
	defer repo.lock()()

	s.ID = uuid.New().String()
	repo.tables().sessions[s.ID] = s
	return s, nil
}

func (repo *progressRepository) GetOpenSession(_ context.Context, testProgressID string) (progress.TestSession, error) {
	defer repo.rlock()()

	for _, s := range repo.tables().sessions {
		if s.TestProgressID == testProgressID && s.SubmittedAt.IsZero() {
			return s, nil
		}
	}
	return progress.TestSession{}, progress.ErrNotFound
}

func (repo *progressRepository) QueryExpiredSessions(_ context.Context, before time.Time) ([]progress.TestSession, error) {
	defer repo.rlock()()

	sessions := make([]progress.TestSession, 0)
	for _, s := range repo.tables().sessions {
		if s.SubmittedAt.IsZero() && s.Deadline.Before(before) {
			sessions = append(sessions, s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Deadline.Before(sessions[j].Deadline) })
	return sessions, nil
}

func (repo *progressRepository) UpdateSession(_ context.Context, s progress.TestSession) error {
	defer repo.lock()()

	if _, ok := repo.tables().sessions[s.ID]; !ok {
		return progress.ErrNotFound
	}
	repo.tables().sessions[s.ID] = s
	return nil
}

func (repo *progressRepository) Stats(_ context.Context) (progress.Stats, error) {
	defer repo.rlock()()

	var stats progress.Stats
	t := repo.tables()
	for _, c := range t.courseProgress {
		stats.CourseEnrollments++
		if c.Status == progress.StatusCompleted {
			stats.CompletedCourses++
		}
	}
	for _, m := range t.moduleProgress {
		if m.CourseProgressID == "" {
			stats.ModuleEnrollments++
		}
	}
	for _, tp := range t.testProgress {
		switch {
		case tp.Status == progress.TestCompleted:
			stats.TestsPassed++
		case tp.Status == progress.TestLocked && tp.Attempts > 0:
			stats.TestsFailed++
		}
	}
	for _, cp := range t.checkpointProgress {
		if cp.Status == progress.CheckpointSubmitted {
			stats.CheckpointsPending++
		}
	}
	for _, p := range t.projectProgress {
		if p.Status == progress.ProjectSubmitted {
			stats.ProjectsPending++
		}
	}
	for _, b := range t.badges {
		if b.Status == progress.BadgeUnlocked {
			stats.BadgesUnlocked++
		}
	}
	return stats, nil
}
