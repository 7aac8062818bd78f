package inmemdb

import (
	"maps"
	"sync"

	"github.com/casbytes/lms-sub000/core/catalog"
	"github.com/casbytes/lms-sub000/core/progress"
	"github.com/casbytes/lms-sub000/core/user"
)

// DB keeps every table in memory behind a single lock.
// A transaction holds the write lock for its whole duration and restores a snapshot when it fails.
type DB struct {
	mutex sync.RWMutex
	t     *tables
}

type tables struct {
	users map[string]user.User

	courses     map[string]catalog.Course
	modules     map[string]catalog.Module
	subModules  map[string]catalog.SubModule
	lessons     map[string]catalog.Lesson
	tests       map[string]catalog.Test
	checkpoints map[string]catalog.Checkpoint
	projects    map[string]catalog.Project

	courseProgress     map[string]progress.CourseProgress
	moduleProgress     map[string]progress.ModuleProgress
	subModuleProgress  map[string]progress.SubModuleProgress
	lessonProgress     map[string]progress.LessonProgress
	testProgress       map[string]progress.TestProgress
	checkpointProgress map[string]progress.CheckpointProgress
	projectProgress    map[string]progress.ProjectProgress
	badges             map[string]progress.Badge
	sessions           map[string]progress.TestSession
}

func NewDB() *DB {
	return &DB{t: &tables{
		users:              make(map[string]user.User),
		courses:            make(map[string]catalog.Course),
		modules:            make(map[string]catalog.Module),
		subModules:         make(map[string]catalog.SubModule),
		lessons:            make(map[string]catalog.Lesson),
		tests:              make(map[string]catalog.Test),
		checkpoints:        make(map[string]catalog.Checkpoint),
		projects:           make(map[string]catalog.Project),
		courseProgress:     make(map[string]progress.CourseProgress),
		moduleProgress:     make(map[string]progress.ModuleProgress),
		subModuleProgress:  make(map[string]progress.SubModuleProgress),
		lessonProgress:     make(map[string]progress.LessonProgress),
		testProgress:       make(map[string]progress.TestProgress),
		checkpointProgress: make(map[string]progress.CheckpointProgress),
		projectProgress:    make(map[string]progress.ProjectProgress),
		badges:             make(map[string]progress.Badge),
		sessions:           make(map[string]progress.TestSession),
	}}
}

// clone copies the maps. Rows are stored by value and replaced on update, so a shallow copy is enough.
func (t *tables) clone() *tables {
	return &tables{
		users:              maps.Clone(t.users),
		courses:            maps.Clone(t.courses),
		modules:            maps.Clone(t.modules),
		subModules:         maps.Clone(t.subModules),
		lessons:            maps.Clone(t.lessons),
		tests:              maps.Clone(t.tests),
		checkpoints:        maps.Clone(t.checkpoints),
		projects:           maps.Clone(t.projects),
		courseProgress:     maps.Clone(t.courseProgress),
		moduleProgress:     maps.Clone(t.moduleProgress),
		subModuleProgress:  maps.Clone(t.subModuleProgress),
		lessonProgress:     maps.Clone(t.lessonProgress),
		testProgress:       maps.Clone(t.testProgress),
		checkpointProgress: maps.Clone(t.checkpointProgress),
		projectProgress:    maps.Clone(t.projectProgress),
		badges:             maps.Clone(t.badges),
		sessions:           maps.Clone(t.sessions),
	}
}

// conn is embedded by the repositories. Inside a transaction the lock is already held.
type conn struct {
	db   *DB
	inTx bool
}

func (c conn) rlock() func() {
	if c.inTx {
		return func() {}
	}
	c.db.mutex.RLock()
	return c.db.mutex.RUnlock
}

func (c conn) lock() func() {
	if c.inTx {
		return func() {}
	}
	c.db.mutex.Lock()
	return c.db.mutex.Unlock
}

func (c conn) tables() *tables { return c.db.t }

func (c conn) runInTx(fn func(tx conn) error) error {
	if c.inTx {
		return fn(c)
	}
	c.db.mutex.Lock()
	defer c.db.mutex.Unlock()

	snapshot := c.db.t.clone()
	if err := fn(conn{db: c.db, inTx: true}); err != nil {
		c.db.t = snapshot
		return err
	}
	return nil
}

// deleteModuleProgress removes a module progress and every row below it.
func (t *tables) deleteModuleProgress(id string) {
	for smID, sm := range t.subModuleProgress {
		if sm.ModuleProgressID != id {
			continue
		}
		for lID, l := range t.lessonProgress {
			if l.SubModuleProgressID == smID {
				delete(t.lessonProgress, lID)
			}
		}
		t.deleteGates(smID)
		delete(t.subModuleProgress, smID)
	}
	for bID, b := range t.badges {
		if b.ModuleProgressID == id {
			delete(t.badges, bID)
		}
	}
	t.deleteGates(id)
	delete(t.moduleProgress, id)
}

func (t *tables) deleteGates(ownerID string) {
	for tID, tp := range t.testProgress {
		if tp.OwnerID() != ownerID {
			continue
		}
		for sID, s := range t.sessions {
			if s.TestProgressID == tID {
				delete(t.sessions, sID)
			}
		}
		delete(t.testProgress, tID)
	}
	for cpID, cp := range t.checkpointProgress {
		if cp.OwnerID() == ownerID {
			delete(t.checkpointProgress, cpID)
		}
	}
}

func (t *tables) deleteCourseProgress(id string) {
	for mID, m := range t.moduleProgress {
		if m.CourseProgressID == id {
			t.deleteModuleProgress(mID)
		}
	}
	for pID, p := range t.projectProgress {
		if p.CourseProgressID == id {
			delete(t.projectProgress, pID)
		}
	}
	delete(t.courseProgress, id)
}

// deleteUserProgress mirrors the ON DELETE CASCADE of the progress tables.
func (t *tables) deleteUserProgress(userID string) {
	for id, c := range t.courseProgress {
		if c.UserID == userID {
			t.deleteCourseProgress(id)
		}
	}
	for id, m := range t.moduleProgress {
		if m.UserID == userID {
			t.deleteModuleProgress(id)
		}
	}
}
