package sqlxrepos

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/casbytes/lms-sub000/core"
	"github.com/casbytes/lms-sub000/core/catalog"
)

type (
	courseRow struct {
		ID          string    `db:"id"`
		Slug        string    `db:"slug"`
		Title       string    `db:"title"`
		Description string    `db:"description"`
		Premium     bool      `db:"premium"`
		Published   bool      `db:"published"`
		CreatedAt   null.Time `db:"created_at"`
		UpdatedAt   null.Time `db:"updated_at"`
	}

	moduleRow struct {
		ID           string      `db:"id"`
		CourseID     null.String `db:"course_id"`
		Slug         string      `db:"slug"`
		Title        string      `db:"title"`
		Order        int         `db:"order"`
		Premium      bool        `db:"premium"`
		TestID       null.String `db:"test_id"`
		CheckpointID null.String `db:"checkpoint_id"`
	}

	subModuleRow struct {
		ID           string      `db:"id"`
		ModuleID     string      `db:"module_id"`
		Title        string      `db:"title"`
		Order        int         `db:"order"`
		TestID       null.String `db:"test_id"`
		CheckpointID null.String `db:"checkpoint_id"`
	}

	testRow struct {
		ID        string    `db:"id"`
		Title     string    `db:"title"`
		Questions null.JSON `db:"questions"`
	}
)

const (
	courseColumns    = `id, slug, title, description, premium, published, created_at, updated_at`
	moduleColumns    = `id, course_id, slug, title, "order", premium, test_id, checkpoint_id`
	subModuleColumns = `id, module_id, title, "order", test_id, checkpoint_id`
)

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r courseRow) toCourse() catalog.Course {
	return catalog.Course{
		ID:          r.ID,
		Slug:        r.Slug,
		Title:       r.Title,
		Description: r.Description,
		Premium:     r.Premium,
		Published:   r.Published,
		CreatedAt:   r.CreatedAt.Time.UTC(),
		UpdatedAt:   r.UpdatedAt.Time.UTC(),
	}
}

func (r moduleRow) toModule() catalog.Module {
	return catalog.Module{
		ID:           r.ID,
		CourseID:     r.CourseID.String,
		Slug:         r.Slug,
		Title:        r.Title,
		Order:        r.Order,
		Premium:      r.Premium,
		TestID:       r.TestID.String,
		CheckpointID: r.CheckpointID.String,
	}
}

func (r subModuleRow) toSubModule() catalog.SubModule {
	return catalog.SubModule{
		ID:           r.ID,
		ModuleID:     r.ModuleID,
		Title:        r.Title,
		Order:        r.Order,
		TestID:       r.TestID.String,
		CheckpointID: r.CheckpointID.String,
	}
}

type catalogRepository struct {
	conn
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db core.DB) catalog.Repository {
	return &catalogRepository{newConn(db)}
}

func (repo *catalogRepository) RunInTx(ctx context.Context, fn func(catalog.Repository) error) error {
	return repo.runInTx(ctx, func(tx conn) error {
		return fn(&catalogRepository{tx})
	})
}

func (repo *catalogRepository) CreateCourse(ctx context.Context, c catalog.Course) (catalog.Course, error) {
	c.ID = uuid.New().String()
	c.Modules, c.Project = nil, nil
	row := courseRow{
		ID:          c.ID,
		Slug:        c.Slug,
		Title:       c.Title,
		Description: c.Description,
		Premium:     c.Premium,
		Published:   c.Published,
		CreatedAt:   nullTime(c.CreatedAt),
		UpdatedAt:   nullTime(c.UpdatedAt),
	}
	_, err := repo.exec.NamedExecContext(ctx, `
		INSERT INTO catalog_course (`+courseColumns+`)
		VALUES (:id, :slug, :title, :description, :premium, :published, :created_at, :updated_at)`,
		row)
	if err != nil {
		return catalog.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo *catalogRepository) getCourse(ctx context.Context, cond string, arg interface{}) (catalog.Course, error) {
	var row courseRow
	q := repo.exec.Rebind(`SELECT ` + courseColumns + ` FROM catalog_course WHERE ` + cond)
	if err := repo.exec.GetContext(ctx, &row, q, arg); err != nil {
		return catalog.Course{}, trapNoRows(err, catalog.ErrCourseNotFound, "finding course")
	}
	return row.toCourse(), nil
}

func (repo *catalogRepository) GetCourse(ctx context.Context, id string) (catalog.Course, error) {
	if !isUUID(id) {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	return repo.getCourse(ctx, "id = ?", id)
}

func (repo *catalogRepository) GetCourseBySlug(ctx context.Context, slug string) (catalog.Course, error) {
	return repo.getCourse(ctx, "slug = ?", slug)
}

func (repo *catalogRepository) QueryCourses(ctx context.Context, publishedOnly bool) ([]catalog.Course, error) {
	q := `SELECT ` + courseColumns + ` FROM catalog_course`
	if publishedOnly {
		q += ` WHERE published`
	}
	var rows []courseRow
	if err := repo.exec.SelectContext(ctx, &rows, q+` ORDER BY created_at`); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]catalog.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses, nil
}

func (repo *catalogRepository) SetCoursePublished(ctx context.Context, id string, published bool) error {
	if !isUUID(id) {
		return catalog.ErrCourseNotFound
	}
	res, err := repo.exec.ExecContext(ctx,
		repo.exec.Rebind(`UPDATE catalog_course SET published = ?, updated_at = ? WHERE id = ?`),
		published, catalog.NowFunc().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return expectOne(res, catalog.ErrCourseNotFound, "updating course")
}

// DeleteCourse removes the course; modules, lessons and the project cascade in the schema.
func (repo *catalogRepository) DeleteCourse(ctx context.Context, id string) error {
	if !isUUID(id) {
		return catalog.ErrCourseNotFound
	}
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(`DELETE FROM catalog_course WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return expectOne(res, catalog.ErrCourseNotFound, "deleting course")
}

func (repo *catalogRepository) CreateModule(ctx context.Context, m catalog.Module) (catalog.Module, error) {
	m.ID = uuid.New().String()
	m.SubModules, m.Test, m.Checkpoint = nil, nil, nil
	row := moduleRow{
		ID:           m.ID,
		CourseID:     nullString(m.CourseID),
		Slug:         m.Slug,
		Title:        m.Title,
		Order:        m.Order,
		Premium:      m.Premium,
		TestID:       nullString(m.TestID),
		CheckpointID: nullString(m.CheckpointID),
	}
	_, err := repo.exec.NamedExecContext(ctx, `
		INSERT INTO catalog_module (`+moduleColumns+`)
		VALUES (:id, :course_id, :slug, :title, :order, :premium, :test_id, :checkpoint_id)`,
		row)
	if err != nil {
		return catalog.Module{}, errors.Wrap(err, "inserting module")
	}
	return m, nil
}

func (repo *catalogRepository) getModule(ctx context.Context, cond string, arg interface{}) (catalog.Module, error) {
	var row moduleRow
	q := repo.exec.Rebind(`SELECT ` + moduleColumns + ` FROM catalog_module WHERE ` + cond)
	if err := repo.exec.GetContext(ctx, &row, q, arg); err != nil {
		return catalog.Module{}, trapNoRows(err, catalog.ErrModuleNotFound, "finding module")
	}
	return row.toModule(), nil
}

func (repo *catalogRepository) GetModule(ctx context.Context, id string) (catalog.Module, error) {
	if !isUUID(id) {
		return catalog.Module{}, catalog.ErrModuleNotFound
	}
	return repo.getModule(ctx, "id = ?", id)
}

func (repo *catalogRepository) GetModuleBySlug(ctx context.Context, slug string) (catalog.Module, error) {
	return repo.getModule(ctx, "slug = ?", slug)
}

func (repo *catalogRepository) QueryModules(ctx context.Context, courseID string) ([]catalog.Module, error) {
	var (
		rows []moduleRow
		err  error
	)
	if courseID == "" {
		err = repo.exec.SelectContext(ctx, &rows,
			`SELECT `+moduleColumns+` FROM catalog_module WHERE course_id IS NULL ORDER BY title`)
	} else {
		if !isUUID(courseID) {
			return []catalog.Module{}, nil
		}
		err = repo.exec.SelectContext(ctx, &rows,
			repo.exec.Rebind(`SELECT `+moduleColumns+` FROM catalog_module WHERE course_id = ? ORDER BY "order"`), courseID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	modules := make([]catalog.Module, 0, len(rows))
	for _, row := range rows {
		modules = append(modules, row.toModule())
	}
	return modules, nil
}

func (repo *catalogRepository) CreateSubModule(ctx context.Context, sm catalog.SubModule) (catalog.SubModule, error) {
	sm.ID = uuid.New().String()
	sm.Lessons, sm.Test, sm.Checkpoint = nil, nil, nil
	row := subModuleRow{
		ID:           sm.ID,
		ModuleID:     sm.ModuleID,
		Title:        sm.Title,
		Order:        sm.Order,
		TestID:       nullString(sm.TestID),
		CheckpointID: nullString(sm.CheckpointID),
	}
	_, err := repo.exec.NamedExecContext(ctx, `
		INSERT INTO catalog_sub_module (`+subModuleColumns+`)
		VALUES (:id, :module_id, :title, :order, :test_id, :checkpoint_id)`,
		row)
	if err != nil {
		return catalog.SubModule{}, errors.Wrap(err, "inserting sub-module")
	}
	return sm, nil
}

func (repo *catalogRepository) QuerySubModules(ctx context.Context, moduleID string) ([]catalog.SubModule, error) {
	if !isUUID(moduleID) {
		return []catalog.SubModule{}, nil
	}
	var rows []subModuleRow
	q := repo.exec.Rebind(`SELECT ` + subModuleColumns + ` FROM catalog_sub_module WHERE module_id = ? ORDER BY "order"`)
	if err := repo.exec.SelectContext(ctx, &rows, q, moduleID); err != nil {
		return nil, errors.Wrap(err, "querying sub-modules")
	}
	subModules := make([]catalog.SubModule, 0, len(rows))
	for _, row := range rows {
		subModules = append(subModules, row.toSubModule())
	}
	return subModules, nil
}

func (repo *catalogRepository) CreateLesson(ctx context.Context, l catalog.Lesson) (catalog.Lesson, error) {
	l.ID = uuid.New().String()
	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(`
		INSERT INTO catalog_lesson (id, sub_module_id, title, "order", content_path)
		VALUES (?, ?, ?, ?, ?)`),
		l.ID, l.SubModuleID, l.Title, l.Order, l.ContentPath)
	if err != nil {
		return catalog.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return l, nil
}

func (repo *catalogRepository) QueryLessons(ctx context.Context, subModuleID string) ([]catalog.Lesson, error) {
	lessons := []catalog.Lesson{}
	if !isUUID(subModuleID) {
		return lessons, nil
	}
	q := repo.exec.Rebind(`
		SELECT id, sub_module_id AS submoduleid, title, "order", content_path AS contentpath
		FROM catalog_lesson WHERE sub_module_id = ? ORDER BY "order"`)
	if err := repo.exec.SelectContext(ctx, &lessons, q, subModuleID); err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	return lessons, nil
}

func (repo *catalogRepository) CreateTest(ctx context.Context, t catalog.Test) (catalog.Test, error) {
	t.ID = uuid.New().String()
	questions, err := json.Marshal(t.Questions)
	if err != nil {
		return catalog.Test{}, errors.Wrap(err, "encoding questions")
	}
	_, err = repo.exec.NamedExecContext(ctx,
		`INSERT INTO catalog_test (id, title, questions) VALUES (:id, :title, :questions)`,
		testRow{ID: t.ID, Title: t.Title, Questions: null.JSONFrom(questions)})
	if err != nil {
		return catalog.Test{}, errors.Wrap(err, "inserting test")
	}
	return t, nil
}

func (repo *catalogRepository) GetTest(ctx context.Context, id string) (catalog.Test, error) {
	if !isUUID(id) {
		return catalog.Test{}, catalog.ErrTestNotFound
	}
	var row testRow
	q := repo.exec.Rebind(`SELECT id, title, questions FROM catalog_test WHERE id = ?`)
	if err := repo.exec.GetContext(ctx, &row, q, id); err != nil {
		return catalog.Test{}, trapNoRows(err, catalog.ErrTestNotFound, "finding test")
	}
	t := catalog.Test{ID: row.ID, Title: row.Title}
	if err := row.Questions.Unmarshal(&t.Questions); err != nil {
		return catalog.Test{}, errors.Wrap(err, "decoding questions")
	}
	return t, nil
}

func (repo *catalogRepository) CreateCheckpoint(ctx context.Context, cp catalog.Checkpoint) (catalog.Checkpoint, error) {
	cp.ID = uuid.New().String()
	_, err := repo.exec.ExecContext(ctx,
		repo.exec.Rebind(`INSERT INTO catalog_checkpoint (id, title, instructions) VALUES (?, ?, ?)`),
		cp.ID, cp.Title, cp.Instructions)
	if err != nil {
		return catalog.Checkpoint{}, errors.Wrap(err, "inserting checkpoint")
	}
	return cp, nil
}

func (repo *catalogRepository) GetCheckpoint(ctx context.Context, id string) (catalog.Checkpoint, error) {
	var cp catalog.Checkpoint
	if !isUUID(id) {
		return cp, catalog.ErrCheckpointNotFound
	}
	q := repo.exec.Rebind(`SELECT id, title, instructions FROM catalog_checkpoint WHERE id = ?`)
	if err := repo.exec.GetContext(ctx, &cp, q, id); err != nil {
		return catalog.Checkpoint{}, trapNoRows(err, catalog.ErrCheckpointNotFound, "finding checkpoint")
	}
	return cp, nil
}

func (repo *catalogRepository) CreateProject(ctx context.Context, p catalog.Project) (catalog.Project, error) {
	p.ID = uuid.New().String()
	_, err := repo.exec.ExecContext(ctx,
		repo.exec.Rebind(`INSERT INTO catalog_project (id, course_id, title, description) VALUES (?, ?, ?, ?)`),
		p.ID, p.CourseID, p.Title, p.Description)
	if err != nil {
		return catalog.Project{}, errors.Wrap(err, "inserting project")
	}
	return p, nil
}

func (repo *catalogRepository) GetProjectByCourse(ctx context.Context, courseID string) (catalog.Project, error) {
	var p catalog.Project
	if !isUUID(courseID) {
		return p, catalog.ErrProjectNotFound
	}
	q := repo.exec.Rebind(`SELECT id, course_id AS courseid, title, description FROM catalog_project WHERE course_id = ?`)
	if err := repo.exec.GetContext(ctx, &p, q, courseID); err != nil {
		return catalog.Project{}, trapNoRows(err, catalog.ErrProjectNotFound, "finding project")
	}
	return p, nil
}
