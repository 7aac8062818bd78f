package schedsvc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/casbytes/lms-sub000/core"
)

// Jobs are the periodic progress jobs. progress.Service implements it.
type Jobs interface {
	ReopenCooledDownTests(ctx context.Context, now time.Time) (int, error)
	AutoSubmitExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

type Scheduler struct {
	cron   *cron.Cron
	jobs   Jobs
	logger core.Logger
	now    func() time.Time
}

// New registers the jobs on a UTC cron. Overlapping runs of the same job are skipped.
func New(jobs Jobs, logger core.Logger, conf *core.Config) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		jobs:   jobs,
		logger: logger,
		now:    time.Now,
	}
	if _, err := s.cron.AddFunc(conf.Scheduler.CooldownSpec, s.ReopenCooledDownTests); err != nil {
		return nil, errors.Wrap(err, "scheduling cooldown job")
	}
	if _, err := s.cron.AddFunc(conf.Scheduler.SessionSpec, s.AutoSubmitExpiredSessions); err != nil {
		return nil, errors.Wrap(err, "scheduling session job")
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", map[string]interface{}{"jobs": len(s.cron.Entries())})
}

// Stop waits for running jobs to finish or ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) ReopenCooledDownTests() {
	n, err := s.jobs.ReopenCooledDownTests(context.Background(), s.now().UTC())
	if err != nil {
		s.logger.Error("reopening cooled down tests", err)
		return
	}
	if n > 0 {
		s.logger.Info("reopened cooled down tests", map[string]interface{}{"count": n})
	}
}

func (s *Scheduler) AutoSubmitExpiredSessions() {
	n, err := s.jobs.AutoSubmitExpiredSessions(context.Background(), s.now().UTC())
	if err != nil {
		s.logger.Error("auto-submitting expired sessions", err)
		return
	}
	if n > 0 {
		s.logger.Info("auto-submitted expired sessions", map[string]interface{}{"count": n})
	}
}
