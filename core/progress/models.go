package progress

import (
	"time"

	"github.com/casbytes/lms-sub000/core/catalog"
)

// Per-user copies of the catalog. Scores are 0-100.
type (
	CourseProgress struct {
		ID          string           `json:"id"`
		UserID      string           `json:"user_id"`
		CourseID    string           `json:"course_id"`
		Slug        string           `json:"slug"`
		Title       string           `json:"title"`
		Status      Status           `json:"status"`
		Score       int              `json:"score"`
		CreatedAt   time.Time        `json:"created_at"`
		UpdatedAt   time.Time        `json:"updated_at"`
		CompletedAt time.Time        `json:"completed_at"`
		Modules     []ModuleProgress `json:"modules,omitempty"`
		Project     *ProjectProgress `json:"project,omitempty"`
	}

	// ModuleProgress is standalone when CourseProgressID is empty.
	ModuleProgress struct {
		ID               string              `json:"id"`
		UserID           string              `json:"user_id"`
		ModuleID         string              `json:"module_id"`
		CourseProgressID string              `json:"course_progress_id,omitempty"`
		Slug             string              `json:"slug"`
		Title            string              `json:"title"`
		Order            int                 `json:"order"`
		Status           Status              `json:"status"`
		Score            int                 `json:"score"`
		CreatedAt        time.Time           `json:"created_at"`
		UpdatedAt        time.Time           `json:"updated_at"`
		SubModules       []SubModuleProgress `json:"sub_modules,omitempty"`
		Test             *TestProgress       `json:"test,omitempty"`
		Checkpoint       *CheckpointProgress `json:"checkpoint,omitempty"`
		Badges           []Badge             `json:"badges,omitempty"`
	}

	SubModuleProgress struct {
		ID               string              `json:"id"`
		UserID           string              `json:"user_id"`
		SubModuleID      string              `json:"sub_module_id"`
		ModuleProgressID string              `json:"module_progress_id"`
		Title            string              `json:"title"`
		Order            int                 `json:"order"`
		Status           Status              `json:"status"`
		Score            int                 `json:"score"`
		UpdatedAt        time.Time           `json:"updated_at"`
		Lessons          []LessonProgress    `json:"lessons,omitempty"`
		Test             *TestProgress       `json:"test,omitempty"`
		Checkpoint       *CheckpointProgress `json:"checkpoint,omitempty"`
	}

	LessonProgress struct {
		ID                  string    `json:"id"`
		UserID              string    `json:"user_id"`
		LessonID            string    `json:"lesson_id"`
		SubModuleProgressID string    `json:"sub_module_progress_id"`
		Title               string    `json:"title"`
		Order               int       `json:"order"`
		ContentPath         string    `json:"content_path"`
		Status              Status    `json:"status"`
		Score               int       `json:"score"`
		UpdatedAt           time.Time `json:"updated_at"`
	}

	// TestProgress is owned by either a module or a submodule.
	TestProgress struct {
		ID                  string     `json:"id"`
		UserID              string     `json:"user_id"`
		TestID              string     `json:"test_id"`
		ModuleProgressID    string     `json:"module_progress_id,omitempty"`
		SubModuleProgressID string     `json:"sub_module_progress_id,omitempty"`
		Title               string     `json:"title"`
		Status              TestStatus `json:"status"`
		Score               int        `json:"score"`
		Attempts            int        `json:"attempts"`
		NextAttemptAt       time.Time  `json:"next_attempt_at"` // zero until the first failure
		UpdatedAt           time.Time  `json:"updated_at"`
	}

	// CheckpointProgress is owned by either a module or a submodule.
	CheckpointProgress struct {
		ID                  string           `json:"id"`
		UserID              string           `json:"user_id"`
		CheckpointID        string           `json:"checkpoint_id"`
		ModuleProgressID    string           `json:"module_progress_id,omitempty"`
		SubModuleProgressID string           `json:"sub_module_progress_id,omitempty"`
		Title               string           `json:"title"`
		Status              CheckpointStatus `json:"status"`
		Score               int              `json:"score"`
		SubmissionURL       string           `json:"submission_url"`
		Feedback            string           `json:"feedback"`
		SubmittedAt         time.Time        `json:"submitted_at"`
		GradedAt            time.Time        `json:"graded_at"`
		UpdatedAt           time.Time        `json:"updated_at"`
	}

	ProjectProgress struct {
		ID               string        `json:"id"`
		UserID           string        `json:"user_id"`
		ProjectID        string        `json:"project_id"`
		CourseProgressID string        `json:"course_progress_id"`
		Title            string        `json:"title"`
		Status           ProjectStatus `json:"status"`
		Score            int           `json:"score"`
		SubmissionURL    string        `json:"submission_url"`
		Feedback         string        `json:"feedback"`
		SubmittedAt      time.Time     `json:"submitted_at"`
		GradedAt         time.Time     `json:"graded_at"`
		UpdatedAt        time.Time     `json:"updated_at"`
	}

	Badge struct {
		ID               string      `json:"id"`
		UserID           string      `json:"user_id"`
		ModuleProgressID string      `json:"module_progress_id"`
		Level            BadgeLevel  `json:"level"`
		Status           BadgeStatus `json:"status"`
		UnlockedAt       time.Time   `json:"unlocked_at"`
	}

	// Answers maps a question ID to the selected option IDs.
	Answers map[string][]string

	// TestSession is a timed attempt. It is open until SubmittedAt is set.
	TestSession struct {
		ID             string    `json:"id"`
		UserID         string    `json:"user_id"`
		TestProgressID string    `json:"test_progress_id"`
		StartedAt      time.Time `json:"started_at"`
		Deadline       time.Time `json:"deadline"`
		Answers        Answers   `json:"answers"`
		SubmittedAt    time.Time `json:"submitted_at"`
	}
)

func (l *LessonProgress) moveTo(to Status) error {
	return transition("lesson", statusTransitions, &l.Status, to)
}

func (sm *SubModuleProgress) moveTo(to Status) error {
	return transition("submodule", statusTransitions, &sm.Status, to)
}

func (m *ModuleProgress) moveTo(to Status) error {
	return transition("module", statusTransitions, &m.Status, to)
}

func (c *CourseProgress) moveTo(to Status) error {
	return transition("course", statusTransitions, &c.Status, to)
}

func (t *TestProgress) moveTo(to TestStatus) error {
	return transition("test", testTransitions, &t.Status, to)
}

func (cp *CheckpointProgress) moveTo(to CheckpointStatus) error {
	return transition("checkpoint", checkpointTransitions, &cp.Status, to)
}

func (p *ProjectProgress) moveTo(to ProjectStatus) error {
	return transition("project", projectTransitions, &p.Status, to)
}

func (b *Badge) moveTo(to BadgeStatus) error {
	return transition("badge", badgeTransitions, &b.Status, to)
}

// OwnerID returns the module or submodule progress the test belongs to.
func (t TestProgress) OwnerID() string {
	if t.SubModuleProgressID != "" {
		return t.SubModuleProgressID
	}
	return t.ModuleProgressID
}

// OwnerID returns the module or submodule progress the checkpoint belongs to.
func (cp CheckpointProgress) OwnerID() string {
	if cp.SubModuleProgressID != "" {
		return cp.SubModuleProgressID
	}
	return cp.ModuleProgressID
}

// IsOpen reports whether the session still accepts answers at `at`, grace included.
func (s TestSession) IsOpen(at time.Time, grace time.Duration) bool {
	return s.SubmittedAt.IsZero() && !at.After(s.Deadline.Add(grace))
}

// Read models.
type (
	// Catalog is what a user tracks: enrolled courses and standalone modules.
	Catalog struct {
		Courses []CourseProgress `json:"courses"`
		Modules []ModuleProgress `json:"modules"`
	}

	// TestView is a test progress with its questions (answers stripped) and the open session, if any.
	TestView struct {
		Progress TestProgress `json:"progress"`
		Test     catalog.Test `json:"test"`
		Session  *TestSession `json:"session,omitempty"`
	}

	TestResult struct {
		Progress TestProgress `json:"progress"`
		Score    int          `json:"score"`
		Passed   bool         `json:"passed"`
	}

	Stats struct {
		Users              int `json:"users"`
		SubscribedUsers    int `json:"subscribed_users"`
		CourseEnrollments  int `json:"course_enrollments"`
		ModuleEnrollments  int `json:"module_enrollments"`
		CompletedCourses   int `json:"completed_courses"`
		TestsPassed        int `json:"tests_passed"`
		TestsFailed        int `json:"tests_failed"` // locked tests with at least one attempt
		CheckpointsPending int `json:"checkpoints_pending"`
		ProjectsPending    int `json:"projects_pending"`
		BadgesUnlocked     int `json:"badges_unlocked"`
	}
)

// Request payloads.
type (
	TestAnswers struct {
		Answers Answers `json:"answers"`
	}

	Submission struct {
		URL string `json:"url" validate:"required,url"`
	}

	Grade struct {
		Score    int    `json:"score" validate:"min=0,max=100"`
		Feedback string `json:"feedback"`
	}
)
