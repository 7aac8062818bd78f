package echoapi

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/casbytes/lms-sub000/core"
	"github.com/casbytes/lms-sub000/core/progress"
)

const orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=name,-created_at`; a leading "-" sorts descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// IntentRequest is the body of the POST endpoints that dispatch on `intent`.
// Each intent reads the fields it needs and ignores the others.
type IntentRequest struct {
	Intent   string           `json:"intent"`
	CourseID string           `json:"course_id,omitempty"`
	ModuleID string           `json:"module_id,omitempty"`
	Answers  progress.Answers `json:"answers,omitempty"`
	URL      string           `json:"url,omitempty"`
	Score    *int             `json:"score,omitempty"`
	Feedback string           `json:"feedback,omitempty"`
}

func bindIntent(ctx echo.Context) (IntentRequest, error) {
	var req IntentRequest
	if err := ctx.Bind(&req); err != nil {
		return IntentRequest{}, errors.Wrap(err, "binding to IntentRequest")
	}
	req.Intent = core.CleanString(req.Intent, true /* lower */)
	if req.Intent == "" {
		return IntentRequest{}, core.NewValidationError(nil, core.FieldError{Field: "intent", Error: "this field is required"})
	}
	return req, nil
}

func (req IntentRequest) submission() progress.Submission {
	return progress.Submission{URL: core.CleanString(req.URL)}
}

func (req IntentRequest) grade() (progress.Grade, error) {
	if req.Score == nil {
		return progress.Grade{}, core.NewValidationError(nil, core.FieldError{Field: "score", Error: "this field is required"})
	}
	return progress.Grade{Score: *req.Score, Feedback: req.Feedback}, nil
}

func unknownIntent(intent string, allowed ...string) error {
	return core.NewValidationError(nil, core.FieldError{
		Field: "intent",
		Error: fmt.Sprintf("unknown intent %q; expected one of %s", intent, strings.Join(allowed, ", ")),
	})
}
