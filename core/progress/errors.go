package progress

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/casbytes/lms-sub000/core"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("progress")
	ErrAlreadyEnrolled      = core.NewValidationError(errors.New("already enrolled in this course"))
	ErrSubscriptionRequired = core.NewPermissionError("a subscription is required for premium content")
	ErrLessonLocked         = core.NewPermissionError("lesson is locked")
	ErrTestNotAvailable     = core.NewValidationError(errors.New("test is not available"))
	ErrNoSession            = core.NewValidationError(errors.New("no test session in progress"))
	ErrSessionExpired       = core.NewValidationError(errors.New("test session has expired"))
	ErrCoolingDown          = errors.New("test is cooling down")
)

// CooldownError is returned when a failed test is retried before NextAttemptAt. It unwraps to ErrCoolingDown.
type CooldownError struct {
	NextAttemptAt time.Time
}

func (err *CooldownError) Error() string {
	return fmt.Sprintf("test is cooling down until %s", err.NextAttemptAt.Format(time.RFC3339))
}

func (err *CooldownError) Unwrap() error { return ErrCoolingDown }

func newCooldownError(t TestProgress) error {
	return core.NewValidationError(&CooldownError{NextAttemptAt: t.NextAttemptAt})
}
