package progress

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casbytes/lms-sub000/core"
	"github.com/casbytes/lms-sub000/core/catalog"
)

func TestStatus_CanMoveTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusLocked, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusLocked, StatusCompleted, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusLocked, false},
		{StatusInProgress, StatusLocked, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanMoveTo(tt.to))
		})
	}
}

func TestTestStatus_CanMoveTo(t *testing.T) {
	tests := []struct {
		from, to TestStatus
		want     bool
	}{
		{TestLocked, TestAvailable, true},
		{TestAvailable, TestCompleted, true},
		{TestAvailable, TestLocked, true},
		{TestLocked, TestCompleted, false},
		{TestCompleted, TestAvailable, false},
		{TestCompleted, TestLocked, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanMoveTo(tt.to))
		})
	}
}

func TestCheckpointAndProjectStatus_CanMoveTo(t *testing.T) {
	assert.True(t, CheckpointLocked.CanMoveTo(CheckpointInProgress))
	assert.True(t, CheckpointInProgress.CanMoveTo(CheckpointSubmitted))
	assert.True(t, CheckpointSubmitted.CanMoveTo(CheckpointGraded))
	assert.False(t, CheckpointInProgress.CanMoveTo(CheckpointGraded))
	assert.False(t, CheckpointGraded.CanMoveTo(CheckpointSubmitted))

	assert.True(t, ProjectLocked.CanMoveTo(ProjectInProgress))
	assert.True(t, ProjectSubmitted.CanMoveTo(ProjectCompleted))
	assert.False(t, ProjectLocked.CanMoveTo(ProjectSubmitted))
	assert.False(t, ProjectCompleted.CanMoveTo(ProjectInProgress))

	assert.True(t, BadgeLocked.CanMoveTo(BadgeUnlocked))
	assert.False(t, BadgeUnlocked.CanMoveTo(BadgeLocked))
}

func TestTransition_Error(t *testing.T) {
	l := LessonProgress{Status: StatusCompleted}
	err := l.moveTo(StatusInProgress)
	require.Error(t, err)
	assert.Equal(t, StatusCompleted, l.Status, "status must not change on a rejected transition")

	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	var tErr *TransitionError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, TransitionError{Entity: "lesson", From: "COMPLETED", To: "IN_PROGRESS"}, *tErr)
	assert.Equal(t, "lesson cannot move from COMPLETED to IN_PROGRESS", err.Error())

	b := Badge{Status: BadgeLocked}
	require.NoError(t, b.moveTo(BadgeUnlocked))
	assert.Error(t, b.moveTo(BadgeLocked))
	assert.Equal(t, BadgeUnlocked, b.Status)
}

func TestBadgeLevel_Threshold(t *testing.T) {
	want := []int{25, 50, 75, 100}
	for i, lvl := range BadgeLevels {
		assert.Equal(t, want[i], lvl.Threshold(), lvl)
	}
	assert.Zero(t, BadgeLevel("UNKNOWN").Threshold())
}

func TestGradeAnswers(t *testing.T) {
	test := catalog.Test{
		Questions: []catalog.Question{
			{ID: "q1", Options: []catalog.Option{{ID: "a", Correct: true}, {ID: "b"}}},
			{ID: "q2", Options: []catalog.Option{{ID: "a", Correct: true}, {ID: "b", Correct: true}, {ID: "c"}}},
			{ID: "q3", Options: []catalog.Option{{ID: "a"}, {ID: "b", Correct: true}}},
		},
	}

	tests := []struct {
		name    string
		answers Answers
		want    int
	}{
		{name: "nothing answered", answers: nil, want: 0},
		{name: "all right", answers: Answers{"q1": {"a"}, "q2": {"b", "a"}, "q3": {"b"}}, want: 100},
		{name: "one right", answers: Answers{"q1": {"a"}, "q2": {"a"}, "q3": {"a"}}, want: 33},
		{name: "two right", answers: Answers{"q1": {"a"}, "q2": {"a", "b"}}, want: 67},
		{name: "extra option is wrong", answers: Answers{"q1": {"a", "b"}, "q2": {"a", "b"}, "q3": {"b"}}, want: 67},
		{name: "duplicates are ignored", answers: Answers{"q1": {"a", "a"}, "q2": {"a", "b"}, "q3": {"b"}}, want: 100},
		{name: "unknown ids are ignored", answers: Answers{"q9": {"a"}, "q1": {"z"}}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GradeAnswers(test, tt.answers))
		})
	}

	assert.Zero(t, GradeAnswers(catalog.Test{}, Answers{"q1": {"a"}}))
}

func TestCompletion(t *testing.T) {
	sms := func(statuses ...Status) []SubModuleProgress {
		out := make([]SubModuleProgress, 0, len(statuses))
		for _, s := range statuses {
			out = append(out, SubModuleProgress{Status: s})
		}
		return out
	}

	tests := []struct {
		name       string
		module     Status
		subModules []SubModuleProgress
		want       int
	}{
		{"no submodules", StatusInProgress, nil, 0},
		{"completed without submodules", StatusCompleted, nil, 100},
		{"one of four", StatusInProgress, sms(StatusCompleted, StatusInProgress, StatusLocked, StatusLocked), 25},
		{"two of three", StatusInProgress, sms(StatusCompleted, StatusCompleted, StatusInProgress), 66},
		{"all done, gates pending", StatusInProgress, sms(StatusCompleted, StatusCompleted), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, completion(ModuleProgress{Status: tt.module}, tt.subModules))
		})
	}
}

func TestTestSession_IsOpen(t *testing.T) {
	sess := TestSession{Deadline: parseTime(t, "2024-03-01T10:02:00Z")}
	grace := parseTime(t, "2024-03-01T10:02:30Z").Sub(sess.Deadline)

	assert.True(t, sess.IsOpen(parseTime(t, "2024-03-01T10:01:00Z"), grace))
	assert.True(t, sess.IsOpen(parseTime(t, "2024-03-01T10:02:30Z"), grace))
	assert.False(t, sess.IsOpen(parseTime(t, "2024-03-01T10:02:31Z"), grace))

	sess.SubmittedAt = parseTime(t, "2024-03-01T10:01:00Z")
	assert.False(t, sess.IsOpen(parseTime(t, "2024-03-01T10:01:30Z"), grace))
}

func parseTime(t *testing.T, value string) time.Time {
	tm, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return tm
}
