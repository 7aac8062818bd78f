package progress

import (
	"math"

	"github.com/casbytes/lms-sub000/core/catalog"
)

// GradeAnswers returns the percentage of questions answered exactly right, rounded.
// A question is right only when the selected options equal its correct options.
// Unknown question and option IDs are ignored.
func GradeAnswers(test catalog.Test, answers Answers) int {
	if len(test.Questions) == 0 {
		return 0
	}
	var correct int
	for _, q := range test.Questions {
		if isCorrect(q, answers[q.ID]) {
			correct++
		}
	}
	return int(math.Round(float64(correct) * 100 / float64(len(test.Questions))))
}

func isCorrect(q catalog.Question, selected []string) bool {
	want := q.CorrectOptions()
	got := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		got[id] = struct{}{}
	}
	if len(got) != len(want) {
		return false
	}
	for id := range got {
		if _, ok := want[id]; !ok {
			return false
		}
	}
	return true
}
