package asl

// ChoiceRule is one rule of a Choice state. Comparison fields are pointers
// so absence is distinguishable from zero values.
type ChoiceRule struct {
	Variable string `json:"Variable,omitempty"`

	StringEquals       *string  `json:"StringEquals,omitempty"`
	NumericEquals      *float64 `json:"NumericEquals,omitempty"`
	BooleanEquals      *bool    `json:"BooleanEquals,omitempty"`
	NumericGreaterThan *float64 `json:"NumericGreaterThan,omitempty"`
	NumericLessThan    *float64 `json:"NumericLessThan,omitempty"`

	And []ChoiceRule `json:"And,omitempty"`
	Or  []ChoiceRule `json:"Or,omitempty"`
	Not *ChoiceRule  `json:"Not,omitempty"`

	Next string `json:"Next,omitempty"`
}

// evaluateChoice returns the next state: the first matching choice wins,
// falling through to Default. No match and no Default is an error.
func evaluateChoice(sd State, input any) (string, error) {
	for i := range sd.Choices {
		if evalRule(&sd.Choices[i], input) {
			if sd.Choices[i].Next == "" {
				return "", execErr("States.NoNext", "matched choice has no Next")
			}
			return sd.Choices[i].Next, nil
		}
	}
	if sd.Default != "" {
		return sd.Default, nil
	}
	return "", execErr("States.NoChoiceMatched", "no choice rule matched and no Default is set")
}

func evalRule(r *ChoiceRule, input any) bool {
	switch {
	case len(r.And) > 0:
		for i := range r.And {
			if !evalRule(&r.And[i], input) {
				return false
			}
		}
		return true
	case len(r.Or) > 0:
		for i := range r.Or {
			if evalRule(&r.Or[i], input) {
				return true
			}
		}
		return false
	case r.Not != nil:
		return !evalRule(r.Not, input)
	}

	v, ok := getPath(input, r.Variable)
	if !ok {
		return false
	}

	switch {
	case r.StringEquals != nil:
		s, ok := v.(string)
		return ok && s == *r.StringEquals
	case r.BooleanEquals != nil:
		b, ok := v.(bool)
		return ok && b == *r.BooleanEquals
	case r.NumericEquals != nil:
		n, ok := asNumber(v)
		return ok && n == *r.NumericEquals
	case r.NumericGreaterThan != nil:
		n, ok := asNumber(v)
		return ok && n > *r.NumericGreaterThan
	case r.NumericLessThan != nil:
		n, ok := asNumber(v)
		return ok && n < *r.NumericLessThan
	}
	return false
}

// asNumber accepts the numeric shapes the JSON decoders in use produce.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
