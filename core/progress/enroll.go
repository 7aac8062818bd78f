package progress

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/casbytes/lms-sub000/core"
	"github.com/casbytes/lms-sub000/core/catalog"
)

// EnrollCourse copies a published course into userID's progress.
// Modules are matched by title: a standalone module the user already tracks is linked to the course
// instead of being copied again.
func (svc *Service) EnrollCourse(ctx context.Context, userID, courseID string) (CourseProgress, error) {
	usr, err := svc.users.GetByID(ctx, userID)
	if err != nil {
		return CourseProgress{}, err
	}
	course, err := svc.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return CourseProgress{}, err
	}
	if !course.Published {
		return CourseProgress{}, catalog.ErrCourseNotFound
	}
	if course.Premium && !usr.IsSubscribed {
		return CourseProgress{}, ErrSubscriptionRequired
	}

	var cpID string
	err = svc.run(ctx, func(c *cascade) error {
		if _, err := c.repo.GetCourseByCatalogID(ctx, userID, course.ID); err == nil {
			return ErrAlreadyEnrolled
		} else if err != ErrNotFound {
			return errors.Wrap(err, "checking enrollment")
		}

		cp, err := c.repo.CreateCourse(ctx, CourseProgress{
			UserID:    userID,
			CourseID:  course.ID,
			Slug:      course.Slug,
			Title:     course.Title,
			Status:    StatusLocked,
			CreatedAt: c.now,
			UpdatedAt: c.now,
		})
		if err != nil {
			return errors.Wrap(err, "creating course progress")
		}
		cpID = cp.ID

		// only one adopted module may already be in progress
		var started string
		for _, m := range course.Modules {
			existing, err := c.repo.GetModuleByTitle(ctx, userID, m.Title)
			switch {
			case err == ErrNotFound:
				if _, err = c.copyModule(userID, cp.ID, m); err != nil {
					return err
				}
				continue
			case err != nil:
				return errors.Wrap(err, "getting module by title")
			}

			if existing.CourseProgressID != "" {
				return core.NewValidationError(fmt.Errorf("module %q is already tracked by another course", m.Title))
			}
			if existing.Status == StatusInProgress {
				if started != "" {
					return core.NewValidationError(fmt.Errorf(
						"modules %q and %q are both in progress; complete one before enrolling in the course", started, existing.Title))
				}
				started = existing.Title
			}
			existing.CourseProgressID = cp.ID
			existing.Order = m.Order
			existing.UpdatedAt = c.now
			if err = c.repo.UpdateModule(ctx, existing); err != nil {
				return errors.Wrap(err, "linking module")
			}
			c.touchModule(existing)
		}

		if course.Project != nil {
			if _, err = c.repo.CreateProject(ctx, ProjectProgress{
				UserID:           userID,
				ProjectID:        course.Project.ID,
				CourseProgressID: cp.ID,
				Title:            course.Project.Title,
				Status:           ProjectLocked,
				UpdatedAt:        c.now,
			}); err != nil {
				return errors.Wrap(err, "creating project progress")
			}
		}

		if err = cp.moveTo(StatusInProgress); err != nil {
			return err
		}
		if err = c.repo.UpdateCourse(ctx, cp); err != nil {
			return errors.Wrap(err, "updating course progress")
		}
		c.touchCourse(cp.ID)
		return c.advanceCourse(cp)
	})
	if err != nil {
		return CourseProgress{}, err
	}
	return svc.GetCourseProgress(ctx, userID, cpID)
}

// EnrollModule tracks a standalone module. It returns the existing progress when a module with
// the same title is already tracked, whether standalone or through a course.
func (svc *Service) EnrollModule(ctx context.Context, userID, moduleID string) (ModuleProgress, error) {
	usr, err := svc.users.GetByID(ctx, userID)
	if err != nil {
		return ModuleProgress{}, err
	}
	m, err := svc.catalog.GetModule(ctx, moduleID)
	if err != nil {
		return ModuleProgress{}, err
	}
	if m.CourseID != "" {
		return ModuleProgress{}, core.NewValidationError(errors.New("module belongs to a course; enroll in the course instead"))
	}
	if m.Premium && !usr.IsSubscribed {
		return ModuleProgress{}, ErrSubscriptionRequired
	}

	var mpID string
	err = svc.run(ctx, func(c *cascade) error {
		existing, err := c.repo.GetModuleByTitle(ctx, userID, m.Title)
		switch {
		case err == nil:
			mpID = existing.ID
			return nil
		case err != ErrNotFound:
			return errors.Wrap(err, "getting module by title")
		}

		mp, err := c.copyModule(userID, "", m)
		if err != nil {
			return err
		}
		mpID = mp.ID
		return c.startModule(mp)
	})
	if err != nil {
		return ModuleProgress{}, err
	}
	return svc.GetModuleProgress(ctx, userID, mpID)
}

// copyModule creates the locked per-user copy of a catalog module with its four badges.
func (c *cascade) copyModule(userID, courseProgressID string, m catalog.Module) (ModuleProgress, error) {
	mp, err := c.repo.CreateModule(c.ctx, ModuleProgress{
		UserID:           userID,
		ModuleID:         m.ID,
		CourseProgressID: courseProgressID,
		Slug:             m.Slug,
		Title:            m.Title,
		Order:            m.Order,
		Status:           StatusLocked,
		CreatedAt:        c.now,
		UpdatedAt:        c.now,
	})
	if err != nil {
		return ModuleProgress{}, errors.Wrap(err, "creating module progress")
	}
	c.touchModule(mp)

	if err = c.copyGates(userID, mp.ID, "", m.Test, m.Checkpoint); err != nil {
		return ModuleProgress{}, err
	}

	for _, sm := range m.SubModules {
		smp, err := c.repo.CreateSubModule(c.ctx, SubModuleProgress{
			UserID:           userID,
			SubModuleID:      sm.ID,
			ModuleProgressID: mp.ID,
			Title:            sm.Title,
			Order:            sm.Order,
			Status:           StatusLocked,
			UpdatedAt:        c.now,
		})
		if err != nil {
			return ModuleProgress{}, errors.Wrap(err, "creating submodule progress")
		}
		for _, l := range sm.Lessons {
			if _, err = c.repo.CreateLesson(c.ctx, LessonProgress{
				UserID:              userID,
				LessonID:            l.ID,
				SubModuleProgressID: smp.ID,
				Title:               l.Title,
				Order:               l.Order,
				ContentPath:         l.ContentPath,
				Status:              StatusLocked,
				UpdatedAt:           c.now,
			}); err != nil {
				return ModuleProgress{}, errors.Wrap(err, "creating lesson progress")
			}
		}
		if err = c.copyGates(userID, "", smp.ID, sm.Test, sm.Checkpoint); err != nil {
			return ModuleProgress{}, err
		}
	}

	for _, lvl := range BadgeLevels {
		if _, err = c.repo.CreateBadge(c.ctx, Badge{
			UserID:           userID,
			ModuleProgressID: mp.ID,
			Level:            lvl,
			Status:           BadgeLocked,
		}); err != nil {
			return ModuleProgress{}, errors.Wrap(err, "creating badge")
		}
	}
	return mp, nil
}

func (c *cascade) copyGates(userID, moduleProgressID, subModuleProgressID string, t *catalog.Test, cp *catalog.Checkpoint) error {
	if t != nil {
		if _, err := c.repo.CreateTest(c.ctx, TestProgress{
			UserID:              userID,
			TestID:              t.ID,
			ModuleProgressID:    moduleProgressID,
			SubModuleProgressID: subModuleProgressID,
			Title:               t.Title,
			Status:              TestLocked,
			UpdatedAt:           c.now,
		}); err != nil {
			return errors.Wrap(err, "creating test progress")
		}
	}
	if cp != nil {
		if _, err := c.repo.CreateCheckpoint(c.ctx, CheckpointProgress{
			UserID:              userID,
			CheckpointID:        cp.ID,
			ModuleProgressID:    moduleProgressID,
			SubModuleProgressID: subModuleProgressID,
			Title:               cp.Title,
			Status:              CheckpointLocked,
			UpdatedAt:           c.now,
		}); err != nil {
			return errors.Wrap(err, "creating checkpoint progress")
		}
	}
	return nil
}
