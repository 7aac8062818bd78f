package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/casbytes/lms-sub000/core"
	"github.com/casbytes/lms-sub000/core/progress"
)

type (
	courseProgressRow struct {
		ID          string          `db:"id"`
		UserID      string          `db:"user_id"`
		CourseID    string          `db:"course_id"`
		Slug        string          `db:"slug"`
		Title       string          `db:"title"`
		Status      progress.Status `db:"status"`
		Score       int             `db:"score"`
		CreatedAt   time.Time       `db:"created_at"`
		UpdatedAt   time.Time       `db:"updated_at"`
		CompletedAt null.Time       `db:"completed_at"`
	}

	moduleProgressRow struct {
		ID               string          `db:"id"`
		UserID           string          `db:"user_id"`
		ModuleID         string          `db:"module_id"`
		CourseProgressID null.String     `db:"course_progress_id"`
		Slug             string          `db:"slug"`
		Title            string          `db:"title"`
		Order            int             `db:"order"`
		Status           progress.Status `db:"status"`
		Score            int             `db:"score"`
		CreatedAt        time.Time       `db:"created_at"`
		UpdatedAt        time.Time       `db:"updated_at"`
	}

	subModuleProgressRow struct {
		ID               string          `db:"id"`
		UserID           string          `db:"user_id"`
		SubModuleID      string          `db:"sub_module_id"`
		ModuleProgressID string          `db:"module_progress_id"`
		Title            string          `db:"title"`
		Order            int             `db:"order"`
		Status           progress.Status `db:"status"`
		Score            int             `db:"score"`
		UpdatedAt        time.Time       `db:"updated_at"`
	}

	lessonProgressRow struct {
		ID                  string          `db:"id"`
		UserID              string          `db:"user_id"`
		LessonID            string          `db:"lesson_id"`
		SubModuleProgressID string          `db:"sub_module_progress_id"`
		Title               string          `db:"title"`
		Order               int             `db:"order"`
		ContentPath         string          `db:"content_path"`
		Status              progress.Status `db:"status"`
		Score               int             `db:"score"`
		UpdatedAt           time.Time       `db:"updated_at"`
	}

	testProgressRow struct {
		ID                  string              `db:"id"`
		UserID              string              `db:"user_id"`
		TestID              string              `db:"test_id"`
		ModuleProgressID    null.String         `db:"module_progress_id"`
		SubModuleProgressID null.String         `db:"sub_module_progress_id"`
		Title               string              `db:"title"`
		Status              progress.TestStatus `db:"status"`
		Score               int                 `db:"score"`
		Attempts            int                 `db:"attempts"`
		NextAttemptAt       null.Time           `db:"next_attempt_at"`
		UpdatedAt           time.Time           `db:"updated_at"`
	}

	checkpointProgressRow struct {
		ID                  string                    `db:"id"`
		UserID              string                    `db:"user_id"`
		CheckpointID        string                    `db:"checkpoint_id"`
		ModuleProgressID    null.String               `db:"module_progress_id"`
		SubModuleProgressID null.String               `db:"sub_module_progress_id"`
		Title               string                    `db:"title"`
		Status              progress.CheckpointStatus `db:"status"`
		Score               int                       `db:"score"`
		SubmissionURL       string                    `db:"submission_url"`
		Feedback            string                    `db:"feedback"`
		SubmittedAt         null.Time                 `db:"submitted_at"`
		GradedAt            null.Time                 `db:"graded_at"`
		UpdatedAt           time.Time                 `db:"updated_at"`
	}

	projectProgressRow struct {
		ID               string                 `db:"id"`
		UserID           string                 `db:"user_id"`
		ProjectID        string                 `db:"project_id"`
		CourseProgressID string                 `db:"course_progress_id"`
		Title            string                 `db:"title"`
		Status           progress.ProjectStatus `db:"status"`
		Score            int                    `db:"score"`
		SubmissionURL    string                 `db:"submission_url"`
		Feedback         string                 `db:"feedback"`
		SubmittedAt      null.Time              `db:"submitted_at"`
		GradedAt         null.Time              `db:"graded_at"`
		UpdatedAt        time.Time              `db:"updated_at"`
	}

	badgeRow struct {
		ID               string               `db:"id"`
		UserID           string               `db:"user_id"`
		ModuleProgressID string               `db:"module_progress_id"`
		Level            progress.BadgeLevel  `db:"level"`
		Status           progress.BadgeStatus `db:"status"`
		UnlockedAt       null.Time            `db:"unlocked_at"`
	}

	sessionRow struct {
		ID             string    `db:"id"`
		UserID         string    `db:"user_id"`
		TestProgressID string    `db:"test_progress_id"`
		StartedAt      time.Time `db:"started_at"`
		Deadline       time.Time `db:"deadline"`
		Answers        null.JSON `db:"answers"`
		SubmittedAt    null.Time `db:"submitted_at"`
	}
)

const (
	courseProgressColumns     = `id, user_id, course_id, slug, title, status, score, created_at, updated_at, completed_at`
	moduleProgressColumns     = `id, user_id, module_id, course_progress_id, slug, title, "order", status, score, created_at, updated_at`
	subModuleProgressColumns  = `id, user_id, sub_module_id, module_progress_id, title, "order", status, score, updated_at`
	lessonProgressColumns     = `id, user_id, lesson_id, sub_module_progress_id, title, "order", content_path, status, score, updated_at`
	testProgressColumns       = `id, user_id, test_id, module_progress_id, sub_module_progress_id, title, status, score, attempts, next_attempt_at, updated_at`
	checkpointProgressColumns = `id, user_id, checkpoint_id, module_progress_id, sub_module_progress_id, title, status, score, submission_url, feedback, submitted_at, graded_at, updated_at`
	projectProgressColumns    = `id, user_id, project_id, course_progress_id, title, status, score, submission_url, feedback, submitted_at, graded_at, updated_at`
	badgeColumns              = `id, user_id, module_progress_id, level, status, unlocked_at`
	sessionColumns            = `id, user_id, test_progress_id, started_at, deadline, answers, submitted_at`
)

// utc drops the session location postgres attaches to TIMESTAMP columns; zero stays zero.
func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC()
}

type progressRepository struct {
	conn
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db core.DB) progress.Repository {
	return &progressRepository{newConn(db)}
}

func (repo *progressRepository) RunInTx(ctx context.Context, fn func(progress.Repository) error) error {
	return repo.runInTx(ctx, func(tx conn) error {
		return fn(&progressRepository{tx})
	})
}

// get loads one row into dest, mapping a missing row (or a malformed id) to progress.ErrNotFound.
func (repo *progressRepository) get(ctx context.Context, dest interface{}, q, id, msg string) error {
	if !isUUID(id) {
		return progress.ErrNotFound
	}
	if err := repo.exec.GetContext(ctx, dest, repo.exec.Rebind(q), id); err != nil {
		return trapNoRows(err, progress.ErrNotFound, msg)
	}
	return nil
}

func (repo *progressRepository) update(ctx context.Context, q string, row interface{}, msg string) error {
	res, err := repo.exec.NamedExecContext(ctx, q, row)
	if err != nil {
		return errors.Wrap(err, msg)
	}
	return expectOne(res, progress.ErrNotFound, msg)
}

func (repo *progressRepository) delete(ctx context.Context, table, id string) error {
	if !isUUID(id) {
		return progress.ErrNotFound
	}
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(`DELETE FROM `+table+` WHERE id = ?`), id)
	if err != nil {
		return errors.Wrapf(err, "deleting %s", table)
	}
	return expectOne(res, progress.ErrNotFound, "deleting "+table)
}

// courses

func toCourseProgressRow(c progress.CourseProgress) courseProgressRow {
	return courseProgressRow{
		ID:          c.ID,
		UserID:      c.UserID,
		CourseID:    c.CourseID,
		Slug:        c.Slug,
		Title:       c.Title,
		Status:      c.Status,
		Score:       c.Score,
		CreatedAt:   utc(c.CreatedAt),
		UpdatedAt:   utc(c.UpdatedAt),
		CompletedAt: nullTime(c.CompletedAt),
	}
}

func (r courseProgressRow) toModel() progress.CourseProgress {
	return progress.CourseProgress{
		ID:          r.ID,
		UserID:      r.UserID,
		CourseID:    r.CourseID,
		Slug:        r.Slug,
		Title:       r.Title,
		Status:      r.Status,
		Score:       r.Score,
		CreatedAt:   utc(r.CreatedAt),
		UpdatedAt:   utc(r.UpdatedAt),
		CompletedAt: utc(r.CompletedAt.Time),
	}
}

func (repo *progressRepository) CreateCourse(ctx context.Context, c progress.CourseProgress) (progress.CourseProgress, error) {
	c.ID = uuid.New().String()
	c.Modules, c.Project = nil, nil
	_, err := repo.exec.NamedExecContext(ctx, `
		INSERT INTO course_progress (`+courseProgressColumns+`)
		VALUES (:id, :user_id, :course_id, :slug, :title, :status, :score, :created_at, :updated_at, :completed_at)`,
		toCourseProgressRow(c))
	if err != nil {
		return progress.CourseProgress{}, errors.Wrap(err, "inserting course progress")
	}
	return c, nil
}

func (repo *progressRepository) GetCourse(ctx context.Context, id string) (progress.CourseProgress, error) {
	var row courseProgressRow
	err := repo.get(ctx, &row, `SELECT `+courseProgressColumns+` FROM course_progress WHERE id = ?`, id, "finding course progress")
	return row.toModel(), err
}

func (repo *progressRepository) GetCourseByCatalogID(ctx context.Context, userID, courseID string) (progress.CourseProgress, error) {
	if !isUUID(userID) || !isUUID(courseID) {
		return progress.CourseProgress{}, progress.ErrNotFound
	}
	var row courseProgressRow
	q := repo.exec.Rebind(`SELECT ` + courseProgressColumns + ` FROM course_progress WHERE user_id = ? AND course_id = ?`)
	if err := repo.exec.GetContext(ctx, &row, q, userID, courseID); err != nil {
		return progress.CourseProgress{}, trapNoRows(err, progress.ErrNotFound, "finding course progress")
	}
	return row.toModel(), nil
}

func (repo *progressRepository) QueryCourses(ctx context.Context, userID string) ([]progress.CourseProgress, error) {
	courses := make([]progress.CourseProgress, 0)
	if !isUUID(userID) {
		return courses, nil
	}
	var rows []courseProgressRow
	q := repo.exec.Rebind(`SELECT ` + courseProgressColumns + ` FROM course_progress WHERE user_id = ? ORDER BY created_at`)
	if err := repo.exec.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying course progress")
	}
	for _, row := range rows {
		courses = append(courses, row.toModel())
	}
	return courses, nil
}

func (repo *progressRepository) UpdateCourse(ctx context.Context, c progress.CourseProgress) error {
	return repo.update(ctx, `
		UPDATE course_progress SET status = :status, score = :score, updated_at = :updated_at, completed_at = :completed_at
		WHERE id = :id`,
		toCourseProgressRow(c), "updating course progress")
}

// DeleteCourse relies on ON DELETE CASCADE for modules, gates, badges and the project.
func (repo *progressRepository) DeleteCourse(ctx context.Context, id string) error {
	return repo.delete(ctx, "course_progress", id)
}

// modules

func toModuleProgressRow(m progress.ModuleProgress) moduleProgressRow {
	return moduleProgressRow{
		ID:               m.ID,
		UserID:           m.UserID,
		ModuleID:         m.ModuleID,
		CourseProgressID: nullString(m.CourseProgressID),
		Slug:             m.Slug,
		Title:            m.Title,
		Order:            m.Order,
		Status:           m.Status,
		Score:            m.Score,
		CreatedAt:        utc(m.CreatedAt),
		UpdatedAt:        utc(m.UpdatedAt),
	}
}

func (r moduleProgressRow) toModel() progress.ModuleProgress {
	return progress.ModuleProgress{
		ID:               r.ID,
		UserID:           r.UserID,
		ModuleID:         r.ModuleID,
		CourseProgressID: r.CourseProgressID.String,
		Slug:             r.Slug,
		Title:            r.Title,
		Order:            r.Order,
		Status:           r.Status,
		Score:            r.Score,
		CreatedAt:        utc(r.CreatedAt),
		UpdatedAt:        utc(r.UpdatedAt),
	}
}

func (repo *progressRepository) CreateModule(ctx context.Context, m progress.ModuleProgress) (progress.ModuleProgress, error) {
	m.ID = uuid.New().String()
	m.SubModules, m.Test, m.Checkpoint, m.Badges = nil, nil, nil, nil
	_, err := repo.exec.NamedExecContext(ctx, `
		INSERT INTO module_progress (`+moduleProgressColumns+`)
		VALUES (:id, :user_id, :module_id, :course_progress_id, :slug, :title, :order, :status, :score, :created_at, :updated_at)`,
		toModuleProgressRow(m))
	if err != nil {
		return progress.ModuleProgress{}, errors.Wrap(err, "inserting module progress")
	}
	return m, nil
}

func (repo *progressRepository) GetModule(ctx context.Context, id string) (progress.ModuleProgress, error) {
	var row moduleProgressRow
	err := repo.get(ctx, &row, `SELECT `+moduleProgressColumns+` FROM module_progress WHERE id = ?`, id, "finding module progress")
	return row.toModel(), err
}

func (repo *progressRepository) GetModuleByTitle(ctx context.Context, userID, title string) (progress.ModuleProgress, error) {
	if !isUUID(userID) {
		return progress.ModuleProgress{}, progress.ErrNotFound
	}
	var row moduleProgressRow
	q := repo.exec.Rebind(`SELECT ` + moduleProgressColumns + ` FROM module_progress WHERE user_id = ? AND LOWER(title) = ?`)
	if err := repo.exec.GetContext(ctx, &row, q, userID, core.CleanString(title, true /* lower */)); err != nil {
		return progress.ModuleProgress{}, trapNoRows(err, progress.ErrNotFound, "finding module progress")
	}
	return row.toModel(), nil
}

func (repo *progressRepository) QueryModules(ctx context.Context, userID, courseProgressID string) ([]progress.ModuleProgress, error) {
	modules := make([]progress.ModuleProgress, 0)
	if !isUUID(userID) {
		return modules, nil
	}
	var (
		rows []moduleProgressRow
		err  error
	)
	if courseProgressID == "" {
		err = repo.exec.SelectContext(ctx, &rows, repo.exec.Rebind(`
			SELECT `+moduleProgressColumns+` FROM module_progress
			WHERE user_id = ? AND course_progress_id IS NULL ORDER BY created_at`), userID)
	} else {
		if !isUUID(courseProgressID) {
			return modules, nil
		}
		err = repo.exec.SelectContext(ctx, &rows, repo.exec.Rebind(`
			SELECT `+moduleProgressColumns+` FROM module_progress
			WHERE user_id = ? AND course_progress_id = ? ORDER BY "order", created_at`), userID, courseProgressID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying module progress")
	}
	for _, row := range rows {
		modules = append(modules, row.toModel())
	}
	return modules, nil
}

func (repo *progressRepository) UpdateModule(ctx context.Context, m progress.ModuleProgress) error {
	return repo.update(ctx, `
		UPDATE module_progress SET
			course_progress_id = :course_progress_id, "order" = :order, status = :status,
			score = :score, updated_at = :updated_at
		WHERE id = :id`,
		toModuleProgressRow(m), "updating module progress")
}

func (repo *progressRepository) DeleteModule(ctx context.Context, id string) error {
	return repo.delete(ctx, "module_progress", id)
}

// submodules

func toSubModuleProgressRow(sm progress.SubModuleProgress) subModuleProgressRow {
	return subModuleProgressRow{
		ID:               sm.ID,
		UserID:           sm.UserID,
		SubModuleID:      sm.SubModuleID,
		ModuleProgressID: sm.ModuleProgressID,
		Title:            sm.Title,
		Order:            sm.Order,
		Status:           sm.Status,
		Score:            sm.Score,
		UpdatedAt:        utc(sm.UpdatedAt),
	}
}

func (r subModuleProgressRow) toModel() progress.SubModuleProgress {
	return progress.SubModuleProgress{
		ID:               r.ID,
		UserID:           r.UserID,
		SubModuleID:      r.SubModuleID,
		ModuleProgressID: r.ModuleProgressID,
		Title:            r.Title,
		Order:            r.Order,
		Status:           r.Status,
		Score:            r.Score,
		UpdatedAt:        utc(r.UpdatedAt),
	}
}

func (repo *progressRepository) CreateSubModule(ctx context.Context, sm progress.SubModuleProgress) (progress.SubModuleProgress, error) {
	sm.ID = uuid.New().String()
	sm.Lessons, sm.Test, sm.Checkpoint = nil, nil, nil
	_, err := repo.exec.NamedExecContext(ctx, `
		INSERT INTO sub_module_progress (`+subModuleProgressColumns+`)
		VALUES (:id, :user_id, :sub_module_id, :module_progress_id, :title, :order, :status, :score, :updated_at)`,
		toSubModuleProgressRow(sm))
	if err != nil {
		return progress.SubModuleProgress{}, errors.Wrap(err, "inserting sub-module progress")
	}
	return sm, nil
}

func (repo *progressRepository) GetSubModule(ctx context.Context, id string) (progress.SubModuleProgress, error) {
	var row subModuleProgressRow
	err := repo.get(ctx, &row, `SELECT `+subModuleProgressColumns+` FROM sub_module_progress WHERE id = ?`, id, "finding sub-module progress")
	return row.toModel(), err
}

func (repo *progressRepository) QuerySubModules(ctx context.Context, moduleProgressID string) ([]progress.SubModuleProgress, error) {
	subModules := make([]progress.SubModuleProgress, 0)
	if !isUUID(moduleProgressID) {
		return subModules, nil
	}
	var rows []subModuleProgressRow
	q := repo.exec.Rebind(`SELECT ` + subModuleProgressColumns + ` FROM sub_module_progress WHERE module_progress_id = ? ORDER BY "order"`)
	if err := repo.exec.SelectContext(ctx, &rows, q, moduleProgressID); err != nil {
		return nil, errors.Wrap(err, "querying sub-module progress")
	}
	for _, row := range rows {
		subModules = append(subModules, row.toModel())
	}
	return subModules, nil
}

func (repo *progressRepository) UpdateSubModule(ctx context.Context, sm progress.SubModuleProgress) error {
	return repo.update(ctx, `
		UPDATE sub_module_progress SET status = :status, score = :score, updated_at = :updated_at
		WHERE id = :id`,
		toSubModuleProgressRow(sm), "updating sub-module progress")
}

// lessons

func toLessonProgressRow(l progress.LessonProgress) lessonProgressRow {
	return lessonProgressRow{
		ID:                  l.ID,
		UserID:              l.UserID,
		LessonID:            l.LessonID,
		SubModuleProgressID: l.SubModuleProgressID,
		Title:               l.Title,
		Order:               l.Order,
		ContentPath:         l.ContentPath,
		Status:              l.Status,
		Score:               l.Score,
		UpdatedAt:           utc(l.UpdatedAt),
	}
}

func (r lessonProgressRow) toModel() progress.LessonProgress {
	return progress.LessonProgress{
		ID:                  r.ID,
		UserID:              r.UserID,
		LessonID:            r.LessonID,
		SubModuleProgressID: r.SubModuleProgressID,
		Title:               r.Title,
		Order:               r.Order,
		ContentPath:         r.ContentPath,
		Status:              r.Status,
		Score:               r.Score,
		UpdatedAt:           utc(r.UpdatedAt),
	}
}

func (repo *progressRepository) CreateLesson(ctx context.Context, l progress.LessonProgress) (progress.LessonProgress, error) {
	l.ID = uuid.New().String()
	_, err := repo.exec.NamedExecContext(ctx, `
		INSERT INTO lesson_progress (`+lessonProgressColumns+`)
		VALUES (:id, :user_id, :lesson_id, :sub_module_progress_id, :title, :order, :content_path, :status, :score, :updated_at)`,
		toLessonProgressRow(l))
	if err != nil {
		return progress.LessonProgress{}, errors.Wrap(err, "inserting lesson progress")
	}
	return l, nil
}

func (repo *progressRepository) GetLesson(ctx context.Context, id string) (progress.LessonProgress, error) {
	var row lessonProgressRow
	err := repo.get(ctx, &row, `SELECT `+lessonProgressColumns+` FROM lesson_progress WHERE id = ?`, id, "finding lesson progress")
	return row.toModel(), err
}

func (repo *progressRepository) QueryLessons(ctx context.Context, subModuleProgressID string) ([]progress.LessonProgress, error) {
	lessons := make([]progress.LessonProgress, 0)
	if !isUUID(subModuleProgressID) {
		return lessons, nil
	}
	var rows []lessonProgressRow
	q := repo.exec.Rebind(`SELECT ` + lessonProgressColumns + ` FROM lesson_progress WHERE sub_module_progress_id = ? ORDER BY "order"`)
	if err := repo.exec.SelectContext(ctx, &rows, q, subModuleProgressID); err != nil {
		return nil, errors.Wrap(err, "querying lesson progress")
	}
	for _, row := range rows {
		lessons = append(lessons, row.toModel())
	}
	return lessons, nil
}

func (repo *progressRepository) UpdateLesson(ctx context.Context, l progress.LessonProgress) error {
	return repo.update(ctx, `
		UPDATE lesson_progress SET status = :status, score = :score, updated_at = :updated_at
		WHERE id = :id`,
		toLessonProgressRow(l), "updating lesson progress")
}

// tests

func toTestProgressRow(t progress.TestProgress) testProgressRow {
	return testProgressRow{
		ID:                  t.ID,
		UserID:              t.UserID,
		TestID:              t.TestID,
		ModuleProgressID:    nullString(t.ModuleProgressID),
		SubModuleProgressID: nullString(t.SubModuleProgressID),
		Title:               t.Title,
		Status:              t.Status,
		Score:               t.Score,
		Attempts:            t.Attempts,
		NextAttemptAt:       nullTime(t.NextAttemptAt),
		UpdatedAt:           utc(t.UpdatedAt),
	}
}

func (r testProgressRow) toModel() progress.TestProgress {
	return progress.TestProgress{
		ID:                  r.ID,
		UserID:              r.UserID,
		TestID:              r.TestID,
		ModuleProgressID:    r.ModuleProgressID.String,
		SubModuleProgressID: r.SubModuleProgressID.String,
		Title:               r.Title,
		Status:              r.Status,
		Score:               r.Score,
		Attempts:            r.Attempts,
		NextAttemptAt:       utc(r.NextAttemptAt.Time),
		UpdatedAt:           utc(r.UpdatedAt),
	}
}

func (repo *progressRepository) CreateTest(ctx context.Context, t progress.TestProgress) (progress.TestProgress, error) {
	t.ID = uuid.New().String()
	_, err := repo.exec.NamedExecContext(ctx, `
		INSERT INTO test_progress (`+testProgressColumns+`)
		VALUES (:id, :user_id, :test_id, :module_progress_id, :sub_module_progress_id, :title, :status, :score, :attempts, :next_attempt_at, :updated_at)`,
		toTestProgressRow(t))
	if err != nil {
		return progress.TestProgress{}, errors.Wrap(err, "inserting test progress")
	}
	return t, nil
}

func (repo *progressRepository) GetTest(ctx context.Context, id string) (progress.TestProgress, error) {
	var row testProgressRow
	err := repo.get(ctx, &row, `SELECT `+testProgressColumns+` FROM test_progress WHERE id = ?`, id, "finding test progress")
	return row.toModel(), err
}

func (repo *progressRepository) GetTestByOwner(ctx context.Context, ownerID string) (progress.TestProgress, error) {
	var row testProgressRow
	err := repo.get(ctx, &row, `
		SELECT `+testProgressColumns+` FROM test_progress
		WHERE module_progress_id = $1 OR sub_module_progress_id = $1 LIMIT 1`,
		ownerID, "finding test progress")
	return row.toModel(), err
}

func (repo *progressRepository) QueryCooledDownTests(ctx context.Context, now time.Time) ([]progress.TestProgress, error) {
	var rows []testProgressRow
	q := repo.exec.Rebind(`
		SELECT ` + testProgressColumns + ` FROM test_progress
		WHERE status = ? AND attempts > 0 AND next_attempt_at <= ?
		ORDER BY next_attempt_at`)
	if err := repo.exec.SelectContext(ctx, &rows, q, progress.TestLocked, now.UTC()); err != nil {
		return nil, errors.Wrap(err, "querying cooled down tests")
	}
	tests := make([]progress.TestProgress, 0, len(rows))
	for _, row := range rows {
		tests = append(tests, row.toModel())
	}
	return tests, nil
}

func (repo *progressRepository) UpdateTest(ctx context.Context, t progress.TestProgress) error {
	return repo.update(ctx, `
		UPDATE test_progress SET
			status = :status, score = :score, attempts = :attempts,
			next_attempt_at = :next_attempt_at, updated_at = :updated_at
		WHERE id = :id`,
		toTestProgressRow(t), "updating test progress")
}

// checkpoints

func toCheckpointProgressRow(cp progress.CheckpointProgress) checkpointProgressRow {
	return checkpointProgressRow{
		ID:                  cp.ID,
		UserID:              cp.UserID,
		CheckpointID:        cp.CheckpointID,
		ModuleProgressID:    nullString(cp.ModuleProgressID),
		SubModuleProgressID: nullString(cp.SubModuleProgressID),
		Title:               cp.Title,
		Status:              cp.Status,
		Score:               cp.Score,
		SubmissionURL:       cp.SubmissionURL,
		Feedback:            cp.Feedback,
		SubmittedAt:         nullTime(cp.SubmittedAt),
		GradedAt:            nullTime(cp.GradedAt),
		UpdatedAt:           utc(cp.UpdatedAt),
	}
}

func (r checkpointProgressRow) toModel() progress.CheckpointProgress {
	return progress.CheckpointProgress{
		ID:                  r.ID,
		UserID:              r.UserID,
		CheckpointID:        r.CheckpointID,
		ModuleProgressID:    r.ModuleProgressID.String,
		SubModuleProgressID: r.SubModuleProgressID.String,
		Title:               r.Title,
		Status:              r.Status,
		Score:               r.Score,
		SubmissionURL:       r.SubmissionURL,
		Feedback:            r.Feedback,
		SubmittedAt:         utc(r.SubmittedAt.Time),
		GradedAt:            utc(r.GradedAt.Time),
		UpdatedAt:           utc(r.UpdatedAt),
	}
}

func (repo *progressRepository) CreateCheckpoint(ctx context.Context, cp progress.CheckpointProgress) (progress.CheckpointProgress, error) {
	cp.ID = uuid.New().String()
	_, err := repo.exec.NamedExecContext(ctx, `
		INSERT INTO checkpoint_progress (`+checkpointProgressColumns+`)
		VALUES (:id, :user_id, :checkpoint_id, :module_progress_id, :sub_module_progress_id, :title, :status, :score,
			:submission_url, :feedback, :submitted_at, :graded_at, :updated_at)`,
		toCheckpointProgressRow(cp))
	if err != nil {
		return progress.CheckpointProgress{}, errors.Wrap(err, "inserting checkpoint progress")
	}
	return cp, nil
}

func (repo *progressRepository) GetCheckpoint(ctx context.Context, id string) (progress.CheckpointProgress, error) {
	var row checkpointProgressRow
	err := repo.get(ctx, &row, `SELECT `+checkpointProgressColumns+` FROM checkpoint_progress WHERE id = ?`, id, "finding checkpoint progress")
	return row.toModel(), err
}

func (repo *progressRepository) GetCheckpointByOwner(ctx context.Context, ownerID string) (progress.CheckpointProgress, error) {
	var row checkpointProgressRow
	err := repo.get(ctx, &row, `
		SELECT `+checkpointProgressColumns+` FROM checkpoint_progress
		WHERE module_progress_id = $1 OR sub_module_progress_id = $1 LIMIT 1`,
		ownerID, "finding checkpoint progress")
	return row.toModel(), err
}

func (repo *progressRepository) UpdateCheckpoint(ctx context.Context, cp progress.CheckpointProgress) error {
	return repo.update(ctx, `
		UPDATE checkpoint_progress SET
			status = :status, score = :score, submission_url = :submission_url, feedback = :feedback,
			submitted_at = :submitted_at, graded_at = :graded_at, updated_at = :updated_at
		WHERE id = :id`,
		toCheckpointProgressRow(cp), "updating checkpoint progress")
}

// projects

func toProjectProgressRow(p progress.ProjectProgress) projectProgressRow {
	return projectProgressRow{
		ID:               p.ID,
		UserID:           p.UserID,
		ProjectID:        p.ProjectID,
		CourseProgressID: p.CourseProgressID,
		Title:            p.Title,
		Status:           p.Status,
		Score:            p.Score,
		SubmissionURL:    p.SubmissionURL,
		Feedback:         p.Feedback,
		SubmittedAt:      nullTime(p.SubmittedAt),
		GradedAt:         nullTime(p.GradedAt),
		UpdatedAt:        utc(p.UpdatedAt),
	}
}

func (r projectProgressRow) toModel() progress.ProjectProgress {
	return progress.ProjectProgress{
		ID:               r.ID,
		UserID:           r.UserID,
		ProjectID:        r.ProjectID,
		CourseProgressID: r.CourseProgressID,
		Title:            r.Title,
		Status:           r.Status,
		Score:            r.Score,
		SubmissionURL:    r.SubmissionURL,
		Feedback:         r.Feedback,
		SubmittedAt:      utc(r.SubmittedAt.Time),
		GradedAt:         utc(r.GradedAt.Time),
		UpdatedAt:        utc(r.UpdatedAt),
	}
}

func (repo *progressRepository) CreateProject(ctx context.Context, p progress.ProjectProgress) (progress.ProjectProgress, error) {
	p.ID = uuid.New().String()
	_, err := repo.exec.NamedExecContext(ctx, `
		INSERT INTO project_progress (`+projectProgressColumns+`)
		VALUES (:id, :user_id, :project_id, :course_progress_id, :title, :status, :score,
			:submission_url, :feedback, :submitted_at, :graded_at, :updated_at)`,
		toProjectProgressRow(p))
	if err != nil {
		return progress.ProjectProgress{}, errors.Wrap(err, "inserting project progress")
	}
	return p, nil
}

func (repo *progressRepository) GetProject(ctx context.Context, id string) (progress.ProjectProgress, error) {
	var row projectProgressRow
	err := repo.get(ctx, &row, `SELECT `+projectProgressColumns+` FROM project_progress WHERE id = ?`, id, "finding project progress")
	return row.toModel(), err
}

func (repo *progressRepository) GetProjectByCourse(ctx context.Context, courseProgressID string) (progress.ProjectProgress, error) {
	var row projectProgressRow
	err := repo.get(ctx, &row, `SELECT `+projectProgressColumns+` FROM project_progress WHERE course_progress_id = ?`,
		courseProgressID, "finding project progress")
	return row.toModel(), err
}

func (repo *progressRepository) UpdateProject(ctx context.Context, p progress.ProjectProgress) error {
	return repo.update(ctx, `
		UPDATE project_progress SET
			status = :status, score = :score, submission_url = :submission_url, feedback = :feedback,
			submitted_at = :submitted_at, graded_at = :graded_at, updated_at = :updated_at
		WHERE id = :id`,
		toProjectProgressRow(p), "updating project progress")
}

// badges

func (repo *progressRepository) CreateBadge(ctx context.Context, b progress.Badge) (progress.Badge, error) {
	b.ID = uuid.New().String()
	_, err := repo.exec.NamedExecContext(ctx, `
		INSERT INTO badge (`+badgeColumns+`)
		VALUES (:id, :user_id, :module_progress_id, :level, :status, :unlocked_at)`,
		badgeRow{
			ID:               b.ID,
			UserID:           b.UserID,
			ModuleProgressID: b.ModuleProgressID,
			Level:            b.Level,
			Status:           b.Status,
			UnlockedAt:       nullTime(b.UnlockedAt),
		})
	if err != nil {
		return progress.Badge{}, errors.Wrap(err, "inserting badge")
	}
	return b, nil
}

func (repo *progressRepository) QueryBadges(ctx context.Context, moduleProgressID string) ([]progress.Badge, error) {
	badges := make([]progress.Badge, 0, len(progress.BadgeLevels))
	if !isUUID(moduleProgressID) {
		return badges, nil
	}
	var rows []badgeRow
	q := repo.exec.Rebind(`SELECT ` + badgeColumns + ` FROM badge WHERE module_progress_id = ?`)
	if err := repo.exec.SelectContext(ctx, &rows, q, moduleProgressID); err != nil {
		return nil, errors.Wrap(err, "querying badges")
	}
	// levels are stored by name; order them by threshold
	for _, level := range progress.BadgeLevels {
		for _, row := range rows {
			if row.Level == level {
				badges = append(badges, progress.Badge{
					ID:               row.ID,
					UserID:           row.UserID,
					ModuleProgressID: row.ModuleProgressID,
					Level:            row.Level,
					Status:           row.Status,
					UnlockedAt:       utc(row.UnlockedAt.Time),
				})
			}
		}
	}
	return badges, nil
}

func (repo *progressRepository) UpdateBadge(ctx context.Context, b progress.Badge) error {
	return repo.update(ctx, `UPDATE badge SET status = :status, unlocked_at = :unlocked_at WHERE id = :id`,
		badgeRow{ID: b.ID, Status: b.Status, UnlockedAt: nullTime(b.UnlockedAt)}, "updating badge")
}

// sessions

func toSessionRow(s progress.TestSession) (sessionRow, error) {
	answers := s.Answers
	if answers == nil {
		answers = progress.Answers{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return sessionRow{}, errors.Wrap(err, "encoding answers")
	}
	return sessionRow{
		ID:             s.ID,
		UserID:         s.UserID,
		TestProgressID: s.TestProgressID,
		StartedAt:      utc(s.StartedAt),
		Deadline:       utc(s.Deadline),
		Answers:        null.JSONFrom(data),
		SubmittedAt:    nullTime(s.SubmittedAt),
	}, nil
}

func (r sessionRow) toModel() (progress.TestSession, error) {
	s := progress.TestSession{
		ID:             r.ID,
		UserID:         r.UserID,
		TestProgressID: r.TestProgressID,
		StartedAt:      utc(r.StartedAt),
		Deadline:       utc(r.Deadline),
		SubmittedAt:    utc(r.SubmittedAt.Time),
	}
	if err := r.Answers.Unmarshal(&s.Answers); err != nil {
		return progress.TestSession{}, errors.Wrap(err, "decoding answers")
	}
	return s, nil
}

func (repo *progressRepository) CreateSession(ctx context.Context, s progress.TestSession) (progress.TestSession, error) {
	s.ID = uuid.New().String()
	row, err := toSessionRow(s)
	if err != nil {
		return progress.TestSession{}, err
	}
	_, err = repo.exec.NamedExecContext(ctx, `
		INSERT INTO test_session (`+sessionColumns+`)
		VALUES (:id, :user_id, :test_progress_id, :started_at, :deadline, :answers, :submitted_at)`,
		row)
	if err != nil {
		return progress.TestSession{}, errors.Wrap(err, "inserting test session")
	}
	return s, nil
}

func (repo *progressRepository) GetOpenSession(ctx context.Context, testProgressID string) (progress.TestSession, error) {
	var row sessionRow
	err := repo.get(ctx, &row, `
		SELECT `+sessionColumns+` FROM test_session
		WHERE test_progress_id = ? AND submitted_at IS NULL
		ORDER BY started_at DESC LIMIT 1`,
		testProgressID, "finding test session")
	if err != nil {
		return progress.TestSession{}, err
	}
	return row.toModel()
}

func (repo *progressRepository) QueryExpiredSessions(ctx context.Context, before time.Time) ([]progress.TestSession, error) {
	var rows []sessionRow
	q := repo.exec.Rebind(`
		SELECT ` + sessionColumns + ` FROM test_session
		WHERE submitted_at IS NULL AND deadline < ? ORDER BY deadline`)
	if err := repo.exec.SelectContext(ctx, &rows, q, before.UTC()); err != nil {
		return nil, errors.Wrap(err, "querying expired sessions")
	}
	sessions := make([]progress.TestSession, 0, len(rows))
	for _, row := range rows {
		s, err := row.toModel()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (repo *progressRepository) UpdateSession(ctx context.Context, s progress.TestSession) error {
	row, err := toSessionRow(s)
	if err != nil {
		return err
	}
	return repo.update(ctx, `UPDATE test_session SET answers = :answers, submitted_at = :submitted_at WHERE id = :id`,
		row, "updating test session")
}

func (repo *progressRepository) Stats(ctx context.Context) (progress.Stats, error) {
	var row struct {
		CourseEnrollments  int `db:"course_enrollments"`
		ModuleEnrollments  int `db:"module_enrollments"`
		CompletedCourses   int `db:"completed_courses"`
		TestsPassed        int `db:"tests_passed"`
		TestsFailed        int `db:"tests_failed"`
		CheckpointsPending int `db:"checkpoints_pending"`
		ProjectsPending    int `db:"projects_pending"`
		BadgesUnlocked     int `db:"badges_unlocked"`
	}
	err := repo.exec.GetContext(ctx, &row, `
		SELECT
			(SELECT COUNT(*) FROM course_progress) AS course_enrollments,
			(SELECT COUNT(*) FROM module_progress WHERE course_progress_id IS NULL) AS module_enrollments,
			(SELECT COUNT(*) FROM course_progress WHERE status = $1) AS completed_courses,
			(SELECT COUNT(*) FROM test_progress WHERE status = $2) AS tests_passed,
			(SELECT COUNT(*) FROM test_progress WHERE status = $3 AND attempts > 0) AS tests_failed,
			(SELECT COUNT(*) FROM checkpoint_progress WHERE status = $4) AS checkpoints_pending,
			(SELECT COUNT(*) FROM project_progress WHERE status = $5) AS projects_pending,
			(SELECT COUNT(*) FROM badge WHERE status = $6) AS badges_unlocked`,
		progress.StatusCompleted, progress.TestCompleted, progress.TestLocked,
		progress.CheckpointSubmitted, progress.ProjectSubmitted, progress.BadgeUnlocked)
	if err != nil {
		return progress.Stats{}, errors.Wrap(err, "computing progress stats")
	}
	return progress.Stats{
		CourseEnrollments:  row.CourseEnrollments,
		ModuleEnrollments:  row.ModuleEnrollments,
		CompletedCourses:   row.CompletedCourses,
		TestsPassed:        row.TestsPassed,
		TestsFailed:        row.TestsFailed,
		CheckpointsPending: row.CheckpointsPending,
		ProjectsPending:    row.ProjectsPending,
		BadgesUnlocked:     row.BadgesUnlocked,
	}, nil
}
