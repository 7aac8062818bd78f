package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/casbytes/lms-sub000/core/catalog"
)

type catalogRepository struct {
	conn
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{conn{db: db}}
}

func (repo *catalogRepository) RunInTx(_ context.Context, fn func(catalog.Repository) error) error {
	return repo.runInTx(func(tx conn) error {
		return fn(&catalogRepository{tx})
	})
}

func (repo *catalogRepository) CreateCourse(_ context.Context, c catalog.Course) (catalog.Course, error) {
	defer repo.lock()()

	c.ID = uuid.New().String()
	c.Modules, c.Project = nil, nil
	repo.tables().courses[c.ID] = c
	return c, nil
}

func (repo *catalogRepository) GetCourse(_ context.Context, id string) (catalog.Course, error) {
	defer repo.rlock()()

	if c, ok := repo.tables().courses[id]; ok {
		return c, nil
	}
	return catalog.Course{}, catalog.ErrCourseNotFound
}

func (repo *catalogRepository) GetCourseBySlug(_ context.Context, slug string) (catalog.Course, error) {
	defer repo.rlock()()

	for _, c := range repo.tables().courses {
		if c.Slug == slug {
			return c, nil
		}
	}
	return catalog.Course{}, catalog.ErrCourseNotFound
}

func (repo *catalogRepository) QueryCourses(_ context.Context, publishedOnly bool) ([]catalog.Course, error) {
	defer repo.rlock()()

	courses := make([]catalog.Course, 0, len(repo.tables().courses))
	for _, c := range repo.tables().courses {
		if publishedOnly && !c.Published {
			continue
		}
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) })
	return courses, nil
}

func (repo *catalogRepository) SetCoursePublished(_ context.Context, id string, published bool) error {
	defer repo.lock()()

	c, ok := repo.tables().courses[id]
	if !ok {
		return catalog.ErrCourseNotFound
	}
	c.Published = published
	repo.tables().courses[id] = c
	return nil
}

func (repo *catalogRepository) DeleteCourse(_ context.Context, id string) error {
	defer repo.lock()()

	t := repo.tables()
	if _, ok := t.courses[id]; !ok {
		return catalog.ErrCourseNotFound
	}
	for mID, m := range t.modules {
		if m.CourseID != id {
			continue
		}
		for smID, sm := range t.subModules {
			if sm.ModuleID != mID {
				continue
			}
			for lID, l := range t.lessons {
				if l.SubModuleID == smID {
					delete(t.lessons, lID)
				}
			}
			delete(t.subModules, smID)
		}
		delete(t.modules, mID)
	}
	for pID, p := range t.projects {
		if p.CourseID == id {
			delete(t.projects, pID)
		}
	}
	delete(t.courses, id)
	return nil
}

func (repo *catalogRepository) CreateModule(_ context.Context, m catalog.Module) (catalog.Module, error) {
	defer repo.lock()()

	m.ID = uuid.New().String()
	m.SubModules, m.Test, m.Checkpoint = nil, nil, nil
	repo.tables().modules[m.ID] = m
	return m, nil
}

func (repo *catalogRepository) GetModule(_ context.Context, id string) (catalog.Module, error) {
	defer repo.rlock()()

	if m, ok := repo.tables().modules[id]; ok {
		return m, nil
	}
	return catalog.Module{}, catalog.ErrModuleNotFound
}

func (repo *catalogRepository) GetModuleBySlug(_ context.Context, slug string) (catalog.Module, error) {
	defer repo.rlock()()

	for _, m := range repo.tables().modules {
		if m.Slug == slug {
			return m, nil
		}
	}
	return catalog.Module{}, catalog.ErrModuleNotFound
}

func (repo *catalogRepository) QueryModules(_ context.Context, courseID string) ([]catalog.Module, error) {
	defer repo.rlock()()

	var modules []catalog.Module
	for _, m := range repo.tables().modules {
		if m.CourseID == courseID {
			modules = append(modules, m)
		}
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Order == modules[j].Order {
			return modules[i].Title < modules[j].Title
		}
		return modules[i].Order < modules[j].Order
	})
	return modules, nil
}

func (repo *catalogRepository) CreateSubModule(_ context.Context, sm catalog.SubModule) (catalog.SubModule, error) {
	defer repo.lock()()

	sm.ID = uuid.New().String()
	sm.Lessons, sm.Test, sm.Checkpoint = nil, nil, nil
	repo.tables().subModules[sm.ID] = sm
	return sm, nil
}

func (repo *catalogRepository) QuerySubModules(_ context.Context, moduleID string) ([]catalog.SubModule, error) {
	defer repo.rlock()()

	var subModules []catalog.SubModule
	for _, sm := range repo.tables().subModules {
		if sm.ModuleID == moduleID {
			subModules = append(subModules, sm)
		}
	}
	sort.Slice(subModules, func(i, j int) bool { return subModules[i].Order < subModules[j].Order })
	return subModules, nil
}

func (repo *catalogRepository) CreateLesson(_ context.Context, l catalog.Lesson) (catalog.Lesson, error) {
	defer repo.lock()()

	l.ID = uuid.New().String()
	repo.tables().lessons[l.ID] = l
	return l, nil
}

func (repo *catalogRepository) QueryLessons(_ context.Context, subModuleID string) ([]catalog.Lesson, error) {
	defer repo.rlock()()

	var lessons []catalog.Lesson
	for _, l := range repo.tables().lessons {
		if l.SubModuleID == subModuleID {
			lessons = append(lessons, l)
		}
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Order < lessons[j].Order })
	return lessons, nil
}

func (repo *catalogRepository) CreateTest(_ context.Context, t catalog.Test) (catalog.Test, error) {
	defer repo.lock()()

	t.ID = uuid.New().String()
	repo.tables().tests[t.ID] = t
	return t, nil
}

func (repo *catalogRepository) GetTest(_ context.Context, id string) (catalog.Test, error) {
	defer repo.rlock()()

	if t, ok := repo.tables().tests[id]; ok {
		return t, nil
	}
	return catalog.Test{}, catalog.ErrTestNotFound
}

func (repo *catalogRepository) CreateCheckpoint(_ context.Context, cp catalog.Checkpoint) (catalog.Checkpoint, error) {
	defer repo.lock()()

	cp.ID = uuid.New().String()
	repo.tables().checkpoints[cp.ID] = cp
	return cp, nil
}

func (repo *catalogRepository) GetCheckpoint(_ context.Context, id string) (catalog.Checkpoint, error) {
	defer repo.rlock()()

	if cp, ok := repo.tables().checkpoints[id]; ok {
		return cp, nil
	}
	return catalog.Checkpoint{}, catalog.ErrCheckpointNotFound
}

func (repo *catalogRepository) CreateProject(_ context.Context, p catalog.Project) (catalog.Project, error) {
	defer repo.lock()()

	p.ID = uuid.New().String()
	repo.tables().projects[p.ID] = p
	return p, nil
}

func (repo *catalogRepository) GetProjectByCourse(_ context.Context, courseID string) (catalog.Project, error) {
	defer repo.rlock()()

	for _, p := range repo.tables().projects {
		if p.CourseID == courseID {
			return p, nil
		}
	}
	return catalog.Project{}, catalog.ErrProjectNotFound
}
