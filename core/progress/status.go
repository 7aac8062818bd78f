package progress

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/casbytes/lms-sub000/core"
)

// Status is shared by courses, modules, submodules and lessons.
type Status string

const (
	StatusLocked     Status = "LOCKED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

type TestStatus string

const (
	TestLocked    TestStatus = "LOCKED"
	TestAvailable TestStatus = "AVAILABLE"
	TestCompleted TestStatus = "COMPLETED"
)

type CheckpointStatus string

const (
	CheckpointLocked     CheckpointStatus = "LOCKED"
	CheckpointInProgress CheckpointStatus = "IN_PROGRESS"
	CheckpointSubmitted  CheckpointStatus = "SUBMITTED"
	CheckpointGraded     CheckpointStatus = "GRADED"
)

type ProjectStatus string

const (
	ProjectLocked     ProjectStatus = "LOCKED"
	ProjectInProgress ProjectStatus = "IN_PROGRESS"
	ProjectSubmitted  ProjectStatus = "SUBMITTED"
	ProjectCompleted  ProjectStatus = "COMPLETED"
)

type BadgeStatus string

const (
	BadgeLocked   BadgeStatus = "LOCKED"
	BadgeUnlocked BadgeStatus = "UNLOCKED"
)

type BadgeLevel string

const (
	BadgeNovice     BadgeLevel = "NOVICE"
	BadgeAdept      BadgeLevel = "ADEPT"
	BadgeProficient BadgeLevel = "PROFICIENT"
	BadgeVirtuoso   BadgeLevel = "VIRTUOSO"
)

// BadgeLevels is ordered by threshold.
var BadgeLevels = []BadgeLevel{BadgeNovice, BadgeAdept, BadgeProficient, BadgeVirtuoso}

// Threshold is the module completion percentage that unlocks the badge.
func (lvl BadgeLevel) Threshold() int {
	switch lvl {
	case BadgeNovice:
		return 25
	case BadgeAdept:
		return 50
	case BadgeProficient:
		return 75
	case BadgeVirtuoso:
		return 100
	}
	return 0
}

// Transition tables. Anything not listed is rejected.
var (
	statusTransitions = map[Status][]Status{
		StatusLocked:     {StatusInProgress},
		StatusInProgress: {StatusCompleted},
	}

	// AVAILABLE -> LOCKED is a failed attempt; LOCKED -> AVAILABLE is an unlock or a cooldown expiry.
	testTransitions = map[TestStatus][]TestStatus{
		TestLocked:    {TestAvailable},
		TestAvailable: {TestLocked, TestCompleted},
	}

	checkpointTransitions = map[CheckpointStatus][]CheckpointStatus{
		CheckpointLocked:     {CheckpointInProgress},
		CheckpointInProgress: {CheckpointSubmitted},
		CheckpointSubmitted:  {CheckpointGraded},
	}

	projectTransitions = map[ProjectStatus][]ProjectStatus{
		ProjectLocked:     {ProjectInProgress},
		ProjectInProgress: {ProjectSubmitted},
		ProjectSubmitted:  {ProjectCompleted},
	}

	badgeTransitions = map[BadgeStatus][]BadgeStatus{
		BadgeLocked: {BadgeUnlocked},
	}
)

var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError names the rejected edge. It unwraps to ErrInvalidTransition.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (err *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", err.Entity, err.From, err.To)
}

func (err *TransitionError) Unwrap() error { return ErrInvalidTransition }

func canTransition[S ~string](table map[S][]S, from, to S) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transition moves *cur to `to`, or returns a *core.ValidationError wrapping a *TransitionError.
func transition[S ~string](entity string, table map[S][]S, cur *S, to S) error {
	if !canTransition(table, *cur, to) {
		return core.NewValidationError(&TransitionError{Entity: entity, From: string(*cur), To: string(to)})
	}
	*cur = to
	return nil
}

func (s Status) CanMoveTo(to Status) bool                     { return canTransition(statusTransitions, s, to) }
func (s TestStatus) CanMoveTo(to TestStatus) bool             { return canTransition(testTransitions, s, to) }
func (s CheckpointStatus) CanMoveTo(to CheckpointStatus) bool { return canTransition(checkpointTransitions, s, to) }
func (s ProjectStatus) CanMoveTo(to ProjectStatus) bool       { return canTransition(projectTransitions, s, to) }
func (s BadgeStatus) CanMoveTo(to BadgeStatus) bool           { return canTransition(badgeTransitions, s, to) }
