package schedsvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casbytes/lms-sub000/core"
	logsvc "github.com/casbytes/lms-sub000/services/logger"
)

type jobsMock struct {
	reopenedAt  time.Time
	submittedAt time.Time
	err         error
}

func (m *jobsMock) ReopenCooledDownTests(_ context.Context, now time.Time) (int, error) {
	m.reopenedAt = now
	return 2, m.err
}

func (m *jobsMock) AutoSubmitExpiredSessions(_ context.Context, now time.Time) (int, error) {
	m.submittedAt = now
	return 1, m.err
}

func newScheduler(t *testing.T, jobs Jobs) *Scheduler {
	conf := core.NewTestConfig()
	s, err := New(jobs, logsvc.NewRollbarLogger("SCHEDULER", conf), conf)
	require.NoError(t, err)
	return s
}

func TestScheduler_Jobs(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	jobs := new(jobsMock)
	s := newScheduler(t, jobs)
	s.now = func() time.Time { return fixed }

	s.ReopenCooledDownTests()
	s.AutoSubmitExpiredSessions()
	assert.Equal(t, fixed, jobs.reopenedAt)
	assert.Equal(t, fixed, jobs.submittedAt)

	// errors are logged, not propagated
	jobs.err = errors.New("db down")
	assert.NotPanics(t, s.ReopenCooledDownTests)
	assert.NotPanics(t, s.AutoSubmitExpiredSessions)
}

func TestScheduler_Entries(t *testing.T) {
	s := newScheduler(t, new(jobsMock))
	assert.Len(t, s.cron.Entries(), 2)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestNew_InvalidSpec(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Scheduler.CooldownSpec = "every now and then"
	_, err := New(new(jobsMock), logsvc.NewRollbarLogger("SCHEDULER", conf), conf)
	assert.Error(t, err)
}
