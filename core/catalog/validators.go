package catalog

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/casbytes/lms-sub000/core"
)

var (
	slugTag   = "slug"
	slugText  = "only lowercase letters, digits and hyphens are allowed"
	slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

	questionsTag  = "questions"
	questionsText = "every question needs a prompt, unique option IDs and at least one correct option"

	duplicateTitleTag  = "uniquetitles"
	duplicateTitleText = "titles must be unique"
)

// InitValidators registers the catalog validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(slugTag, slugValidation)
	core.RegisterCustomTranslation(validate, translator, slugTag, slugText)

	validate.RegisterStructValidation(catalogStructValidation, NewCourse{}, NewModule{}, NewTest{})
	core.RegisterCustomTranslation(validate, translator, questionsTag, questionsText)
	core.RegisterCustomTranslation(validate, translator, duplicateTitleTag, duplicateTitleText)
}

func slugValidation(fl validator.FieldLevel) bool {
	return slugRegex.MatchString(fl.Field().String())
}

func catalogStructValidation(sl validator.StructLevel) {
	switch obj := sl.Current().Interface().(type) {
	case NewCourse:
		// module titles identify per-user module progress
		titles := make([]string, 0, len(obj.Modules))
		for _, m := range obj.Modules {
			titles = append(titles, core.CleanString(m.Title, true /* lower */))
		}
		if hasDuplicates(titles) {
			sl.ReportError(obj.Modules, "modules", "Modules", duplicateTitleTag, "")
		}
	case NewModule:
		titles := make([]string, 0, len(obj.SubModules))
		for _, sm := range obj.SubModules {
			titles = append(titles, core.CleanString(sm.Title, true /* lower */))
		}
		if hasDuplicates(titles) {
			sl.ReportError(obj.SubModules, "sub_modules", "SubModules", duplicateTitleTag, "")
		}
	case NewTest:
		if !questionsAreValid(obj.Questions) {
			sl.ReportError(obj.Questions, "questions", "Questions", questionsTag, "")
		}
	}
}

func questionsAreValid(questions []Question) bool {
	qIDs := make([]string, 0, len(questions))
	for _, q := range questions {
		if core.CleanString(q.Prompt) == "" || len(q.Options) == 0 {
			return false
		}
		qIDs = append(qIDs, q.ID)

		optIDs := make([]string, 0, len(q.Options))
		var correct int
		for _, opt := range q.Options {
			optIDs = append(optIDs, opt.ID)
			if opt.Correct {
				correct++
			}
		}
		if correct == 0 || hasDuplicates(optIDs) {
			return false
		}
	}
	return !hasDuplicates(qIDs)
}

func hasDuplicates(vals []string) bool {
	seen := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}
