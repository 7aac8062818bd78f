package progress

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

func submitLockKey(testProgressID string) string {
	return "progress:test:" + testProgressID
}

// GetTest returns the test progress, its questions without answers and the open session.
func (svc *Service) GetTest(ctx context.Context, userID, id string) (TestView, error) {
	t, err := svc.repo.GetTest(ctx, id)
	if err != nil {
		return TestView{}, err
	}
	if err = owned(t.UserID, userID); err != nil {
		return TestView{}, err
	}
	test, err := svc.catalog.GetTest(ctx, t.TestID)
	if err != nil {
		return TestView{}, errors.Wrap(err, "getting catalog test")
	}

	view := TestView{Progress: t, Test: test.Public()}
	sess, err := svc.repo.GetOpenSession(ctx, t.ID)
	switch {
	case err == nil:
		view.Session = &sess
	case err != ErrNotFound:
		return TestView{}, errors.Wrap(err, "getting session")
	}
	return view, nil
}

// StartTest opens a timed session on an available test, or returns the one already open.
// The deadline allows SecondsPerQuestion for every question. A session left past its deadline is
// graded with its saved answers first.
func (svc *Service) StartTest(ctx context.Context, userID, id string) (TestView, error) {
	t, err := svc.repo.GetTest(ctx, id)
	if err != nil {
		return TestView{}, err
	}
	if err = owned(t.UserID, userID); err != nil {
		return TestView{}, err
	}
	if _, err = svc.autoSubmit(ctx, t.ID, NowFunc().UTC()); err != nil {
		return TestView{}, err
	}

	test, err := svc.catalog.GetTest(ctx, t.TestID)
	if err != nil {
		return TestView{}, errors.Wrap(err, "getting catalog test")
	}

	var sess TestSession
	err = svc.run(ctx, func(c *cascade) error {
		if t, err = c.repo.GetTest(ctx, id); err != nil {
			return err
		}
		if _, err = c.reopenIfCooledDown(&t); err != nil {
			return err
		}
		switch {
		case t.Status == TestLocked && t.Attempts > 0:
			return newCooldownError(t)
		case t.Status != TestAvailable:
			return ErrTestNotAvailable
		}

		sess, err = c.repo.GetOpenSession(ctx, t.ID)
		switch {
		case err == nil:
			return nil
		case err != ErrNotFound:
			return errors.Wrap(err, "getting session")
		}

		perQuestion := time.Duration(svc.conf.SecondsPerQuestion) * time.Second
		sess, err = c.repo.CreateSession(ctx, TestSession{
			UserID:         userID,
			TestProgressID: t.ID,
			StartedAt:      c.now,
			Deadline:       c.now.Add(time.Duration(len(test.Questions)) * perQuestion),
			Answers:        Answers{},
		})
		return err
	})
	if err != nil {
		return TestView{}, err
	}
	return TestView{Progress: t, Test: test.Public(), Session: &sess}, nil
}

// SaveAnswers stores draft answers on the open session.
func (svc *Service) SaveAnswers(ctx context.Context, userID, id string, answers Answers) (TestSession, error) {
	var sess TestSession
	err := svc.repo.RunInTx(ctx, func(repo Repository) error {
		t, err := repo.GetTest(ctx, id)
		if err != nil {
			return err
		}
		if err = owned(t.UserID, userID); err != nil {
			return err
		}
		if sess, err = repo.GetOpenSession(ctx, t.ID); err != nil {
			if err == ErrNotFound {
				return ErrNoSession
			}
			return errors.Wrap(err, "getting session")
		}
		if !sess.IsOpen(NowFunc().UTC(), svc.conf.SessionGrace) {
			return ErrSessionExpired
		}
		if answers == nil {
			answers = Answers{}
		}
		sess.Answers = answers
		return repo.UpdateSession(ctx, sess)
	})
	if err != nil {
		return TestSession{}, err
	}
	return sess, nil
}

// SubmitTest grades the open session. Concurrent submissions of the same test get a *core.ConflictError.
// A passing score completes the test for good; a failing one locks it for Attempts x CooldownUnit.
func (svc *Service) SubmitTest(ctx context.Context, userID, id string, answers Answers) (TestResult, error) {
	release, err := svc.locker.Obtain(ctx, submitLockKey(id), svc.conf.SubmitLockTTL)
	if err != nil {
		return TestResult{}, err
	}
	defer release()

	t, err := svc.repo.GetTest(ctx, id)
	if err != nil {
		return TestResult{}, err
	}
	if err = owned(t.UserID, userID); err != nil {
		return TestResult{}, err
	}
	test, err := svc.catalog.GetTest(ctx, t.TestID)
	if err != nil {
		return TestResult{}, errors.Wrap(err, "getting catalog test")
	}

	var result TestResult
	err = svc.run(ctx, func(c *cascade) error {
		if t, err = c.repo.GetTest(ctx, id); err != nil {
			return err
		}
		if t.Status != TestAvailable {
			if t.Status == TestLocked && t.Attempts > 0 {
				return newCooldownError(t)
			}
			return ErrTestNotAvailable
		}

		sess, err := c.repo.GetOpenSession(ctx, t.ID)
		if err != nil {
			if err == ErrNotFound {
				return ErrNoSession
			}
			return errors.Wrap(err, "getting session")
		}
		if !sess.IsOpen(c.now, svc.conf.SessionGrace) {
			return ErrSessionExpired
		}
		if answers == nil {
			answers = Answers{}
		}
		sess.Answers = answers
		result, err = c.gradeAttempt(t, sess, GradeAnswers(test, answers))
		return err
	})
	if err != nil {
		return TestResult{}, err
	}
	return result, nil
}

// autoSubmit grades the expired open session of a test with its saved answers.
func (svc *Service) autoSubmit(ctx context.Context, testProgressID string, now time.Time) (bool, error) {
	release, err := svc.locker.Obtain(ctx, submitLockKey(testProgressID), svc.conf.SubmitLockTTL)
	if err != nil {
		return false, err
	}
	defer release()

	t, err := svc.repo.GetTest(ctx, testProgressID)
	if err != nil {
		return false, err
	}
	// the catalog is read outside the transaction
	test, err := svc.catalog.GetTest(ctx, t.TestID)
	if err != nil {
		return false, errors.Wrap(err, "getting catalog test")
	}

	var submitted bool
	err = svc.run(ctx, func(c *cascade) error {
		c.now = now
		sess, err := c.repo.GetOpenSession(ctx, testProgressID)
		if err != nil {
			if err == ErrNotFound {
				return nil
			}
			return errors.Wrap(err, "getting session")
		}
		if sess.IsOpen(now, svc.conf.SessionGrace) {
			return nil
		}
		if t, err = c.repo.GetTest(ctx, testProgressID); err != nil {
			return err
		}
		if t.Status != TestAvailable {
			// stale session of a test that moved on; close it without grading
			sess.SubmittedAt = c.now
			return c.repo.UpdateSession(ctx, sess)
		}
		if _, err = c.gradeAttempt(t, sess, GradeAnswers(test, sess.Answers)); err != nil {
			return err
		}
		submitted = true
		return nil
	})
	return submitted, err
}

// AutoSubmitExpiredSessions grades every session left open past its deadline and grace period.
func (svc *Service) AutoSubmitExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	sessions, err := svc.repo.QueryExpiredSessions(ctx, now.Add(-svc.conf.SessionGrace))
	if err != nil {
		return 0, errors.Wrap(err, "querying expired sessions")
	}
	var n int
	for _, sess := range sessions {
		ok, err := svc.autoSubmit(ctx, sess.TestProgressID, now)
		if err != nil {
			svc.logger.Error("progress.AutoSubmitExpiredSessions", err, map[string]interface{}{"session_id": sess.ID})
			continue
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// ReopenCooledDownTests makes failed tests available again once NextAttemptAt has passed.
func (svc *Service) ReopenCooledDownTests(ctx context.Context, now time.Time) (int, error) {
	tests, err := svc.repo.QueryCooledDownTests(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "querying cooled down tests")
	}
	var n int
	for _, t := range tests {
		err := svc.run(ctx, func(c *cascade) error {
			c.now = now
			t, err := c.repo.GetTest(ctx, t.ID)
			if err != nil {
				return err
			}
			ok, err := c.reopenIfCooledDown(&t)
			if ok {
				n++
			}
			return err
		})
		if err != nil {
			svc.logger.Error("progress.ReopenCooledDownTests", err, map[string]interface{}{"test_id": t.ID})
		}
	}
	return n, nil
}
