// Package visibility evaluates conditional logic over a submission's answers.
// Evaluation is pure: the same form and answers always yield the same visible
// set, regardless of the order answers were captured in.
package visibility

import "formbridge/internal/form/models"

// Answers maps field IDs to submitted values. Single-select answers are the
// chosen option's name.
type Answers map[string]any

// IsVisible reports whether q should be shown given the answers so far.
// A question whose dependency is unanswered stays hidden under both
// operators, so "isNot" does not leak a question before its dependency has a
// value.
func IsVisible(q models.Question, answers Answers) bool {
	c := q.Conditional
	if !c.Enabled || c.DependentFieldID == "" {
		return true
	}

	answer, ok := asOptionName(answers[c.DependentFieldID])
	if !ok {
		return false
	}

	switch c.Operator {
	case models.OperatorIs:
		return answer == c.Value
	case models.OperatorIsNot:
		return answer != c.Value
	default:
		return false
	}
}

// Visible returns the questions of f shown under the given answers, in form
// order.
func Visible(f *models.Form, answers Answers) []models.Question {
	out := make([]models.Question, 0, len(f.Questions))
	for _, q := range f.Questions {
		if IsVisible(q, answers) {
			out = append(out, q)
		}
	}
	return out
}

// MissingRequired returns the field IDs of required questions that are
// visible yet unanswered. Hidden questions never appear here, required or
// not.
func MissingRequired(f *models.Form, answers Answers) []string {
	var missing []string
	for _, q := range f.Questions {
		if !q.Required || !IsVisible(q, answers) {
			continue
		}
		if !answered(answers[q.FieldID]) {
			missing = append(missing, q.FieldID)
		}
	}
	return missing
}

// asOptionName extracts a single-select answer as its option name. Anything
// that is not a non-empty string counts as unanswered.
func asOptionName(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func answered(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	default:
		return true
	}
}
