package catalog

import (
	"time"
)

type (
	Course struct {
		ID          string    `json:"id"`
		Slug        string    `json:"slug"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Premium     bool      `json:"premium"`
		Published   bool      `json:"published"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
		Modules     []Module  `json:"modules,omitempty"`
		Project     *Project  `json:"project,omitempty"`
	}

	// Module belongs to a Course, or stands alone when CourseID is empty.
	Module struct {
		ID           string      `json:"id"`
		CourseID     string      `json:"course_id,omitempty"`
		Slug         string      `json:"slug"`
		Title        string      `json:"title"`
		Order        int         `json:"order"`
		Premium      bool        `json:"premium"`
		TestID       string      `json:"-"`
		CheckpointID string      `json:"-"`
		SubModules   []SubModule `json:"sub_modules,omitempty"`
		Test         *Test       `json:"test,omitempty"`
		Checkpoint   *Checkpoint `json:"checkpoint,omitempty"`
	}

	SubModule struct {
		ID           string      `json:"id"`
		ModuleID     string      `json:"module_id"`
		Title        string      `json:"title"`
		Order        int         `json:"order"`
		TestID       string      `json:"-"`
		CheckpointID string      `json:"-"`
		Lessons      []Lesson    `json:"lessons,omitempty"`
		Test         *Test       `json:"test,omitempty"`
		Checkpoint   *Checkpoint `json:"checkpoint,omitempty"`
	}

	Lesson struct {
		ID          string `json:"id"`
		SubModuleID string `json:"sub_module_id"`
		Title       string `json:"title"`
		Order       int    `json:"order"`
		ContentPath string `json:"content_path"` // markdown path on the content host
	}

	Test struct {
		ID        string     `json:"id"`
		Title     string     `json:"title"`
		Questions []Question `json:"questions"`
	}

	// Question is multi-select: it is answered correctly only when exactly the correct options are selected.
	Question struct {
		ID      string   `json:"id" yaml:"id"`
		Prompt  string   `json:"prompt" yaml:"prompt"`
		Options []Option `json:"options" yaml:"options"`
	}

	Option struct {
		ID      string `json:"id" yaml:"id"`
		Text    string `json:"text" yaml:"text"`
		Correct bool   `json:"correct,omitempty" yaml:"correct"`
	}

	Checkpoint struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		Instructions string `json:"instructions"`
	}

	Project struct {
		ID          string `json:"id"`
		CourseID    string `json:"course_id"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
)

// CorrectOptions returns the set of correct option IDs.
func (q Question) CorrectOptions() map[string]struct{} {
	set := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		if opt.Correct {
			set[opt.ID] = struct{}{}
		}
	}
	return set
}

// Public returns a copy of the test with the correct flags stripped.
func (t Test) Public() Test {
	qs := make([]Question, 0, len(t.Questions))
	for _, q := range t.Questions {
		opts := make([]Option, 0, len(q.Options))
		for _, opt := range q.Options {
			opt.Correct = false
			opts = append(opts, opt)
		}
		q.Options = opts
		qs = append(qs, q)
	}
	t.Questions = qs
	return t
}

// Public returns a copy of the module tree with every test stripped of its answers.
func (m Module) Public() Module {
	if m.Test != nil {
		t := m.Test.Public()
		m.Test = &t
	}
	sms := make([]SubModule, 0, len(m.SubModules))
	for _, sm := range m.SubModules {
		if sm.Test != nil {
			t := sm.Test.Public()
			sm.Test = &t
		}
		sms = append(sms, sm)
	}
	m.SubModules = sms
	return m
}

func (c Course) Public() Course {
	modules := make([]Module, 0, len(c.Modules))
	for _, m := range c.Modules {
		modules = append(modules, m.Public())
	}
	c.Modules = modules
	return c
}

// Import payloads. They are decoded from JSON (API) or YAML (admin CLI).
type (
	NewCourse struct {
		Slug        string      `json:"slug" yaml:"slug" validate:"required,slug"`
		Title       string      `json:"title" yaml:"title" validate:"required"`
		Description string      `json:"description" yaml:"description"`
		Premium     bool        `json:"premium" yaml:"premium"`
		Published   bool        `json:"published" yaml:"published"`
		Modules     []NewModule `json:"modules" yaml:"modules" validate:"required,min=1,dive"`
		Project     *NewProject `json:"project" yaml:"project" validate:"omitempty"`
	}

	NewModule struct {
		Slug       string         `json:"slug" yaml:"slug" validate:"required,slug"`
		Title      string         `json:"title" yaml:"title" validate:"required"`
		Premium    bool           `json:"premium" yaml:"premium"`
		SubModules []NewSubModule `json:"sub_modules" yaml:"sub_modules" validate:"dive"`
		Test       *NewTest       `json:"test" yaml:"test" validate:"omitempty"`
		Checkpoint *NewCheckpoint `json:"checkpoint" yaml:"checkpoint" validate:"omitempty"`
	}

	NewSubModule struct {
		Title      string         `json:"title" yaml:"title" validate:"required"`
		Lessons    []NewLesson    `json:"lessons" yaml:"lessons" validate:"dive"`
		Test       *NewTest       `json:"test" yaml:"test" validate:"omitempty"`
		Checkpoint *NewCheckpoint `json:"checkpoint" yaml:"checkpoint" validate:"omitempty"`
	}

	NewLesson struct {
		Title       string `json:"title" yaml:"title" validate:"required"`
		ContentPath string `json:"content_path" yaml:"content_path" validate:"required"`
	}

	NewTest struct {
		Title     string     `json:"title" yaml:"title" validate:"required"`
		Questions []Question `json:"questions" yaml:"questions" validate:"required,min=1"`
	}

	NewCheckpoint struct {
		Title        string `json:"title" yaml:"title" validate:"required"`
		Instructions string `json:"instructions" yaml:"instructions"`
	}

	NewProject struct {
		Title       string `json:"title" yaml:"title" validate:"required"`
		Description string `json:"description" yaml:"description"`
	}
)
