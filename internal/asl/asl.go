// Package asl executes Amazon States Language definitions. The interpreter
// covers Pass, Task (pass-through), Wait (no real waiting), Succeed, Fail,
// Choice, Parallel, and Map, with JSONPath limited to $ and dotted paths.
package asl

import (
	"encoding/json"
	"fmt"
)

// maxTransitions bounds a single execution; beyond it the execution fails
// with States.Runaway.
const maxTransitions = 1000

// Definition is a parsed state machine.
type Definition struct {
	Comment string           `json:"Comment,omitempty"`
	StartAt string           `json:"StartAt"`
	States  map[string]State `json:"States"`
}

// State is one state of a definition. Fields are a union over state types;
// Type selects which ones apply.
type State struct {
	Type string `json:"Type"`
	Next string `json:"Next,omitempty"`
	End  bool   `json:"End,omitempty"`

	// Pass
	Result     json.RawMessage `json:"Result,omitempty"`
	Parameters json.RawMessage `json:"Parameters,omitempty"`
	ResultPath string          `json:"ResultPath,omitempty"`
	OutputPath string          `json:"OutputPath,omitempty"`

	// Fail
	Error string `json:"Error,omitempty"`
	Cause string `json:"Cause,omitempty"`

	// Choice
	Choices []ChoiceRule `json:"Choices,omitempty"`
	Default string       `json:"Default,omitempty"`

	// Wait
	Seconds int `json:"Seconds,omitempty"`

	// Parallel
	Branches []Definition `json:"Branches,omitempty"`

	// Map
	Iterator *Definition `json:"Iterator,omitempty"`
}

// ExecError is the failure an execution surfaces: "<Error>: <Cause>".
type ExecError struct {
	Name  string
	Cause string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Cause)
}

func execErr(name, format string, args ...any) error {
	return &ExecError{Name: name, Cause: fmt.Sprintf(format, args...)}
}

// Parse decodes and minimally validates a definition.
func Parse(definition string) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal([]byte(definition), &def); err != nil {
		return nil, fmt.Errorf("invalid state machine definition: %w", err)
	}
	if def.StartAt == "" {
		return nil, fmt.Errorf("state machine definition has no StartAt")
	}
	if _, ok := def.States[def.StartAt]; !ok {
		return nil, fmt.Errorf("StartAt state %q is not defined", def.StartAt)
	}
	return &def, nil
}

// Run executes a definition JSON against an input JSON and returns the
// output JSON.
func Run(definition, input string) (string, error) {
	def, err := Parse(definition)
	if err != nil {
		return "", err
	}
	var in any
	if input == "" {
		input = "{}"
	}
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid execution input: %w", err)
	}
	out, err := def.run(in)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode execution output: %w", err)
	}
	return string(raw), nil
}

// run drives the state loop for one (sub-)machine.
func (def *Definition) run(input any) (any, error) {
	state := def.StartAt
	iterations := 0
	for {
		iterations++
		if iterations > maxTransitions {
			return nil, execErr("States.Runaway", "exceeded %d state transitions", maxTransitions)
		}
		sd, ok := def.States[state]
		if !ok {
			return nil, execErr("States.NoSuchState", "state %q is not defined", state)
		}

		switch sd.Type {
		case "Pass":
			out, err := applyPass(sd, input)
			if err != nil {
				return nil, err
			}
			input = out
		case "Task", "Wait":
			// Emulated: Task is a pass-through, Wait does not wait.
		case "Succeed":
			return input, nil
		case "Fail":
			name := sd.Error
			if name == "" {
				name = "States.Failed"
			}
			return nil, &ExecError{Name: name, Cause: sd.Cause}
		case "Choice":
			next, err := evaluateChoice(sd, input)
			if err != nil {
				return nil, err
			}
			state = next
			continue
		case "Parallel":
			outputs := make([]any, 0, len(sd.Branches))
			for i := range sd.Branches {
				out, err := sd.Branches[i].run(input)
				if err != nil {
					return nil, err
				}
				outputs = append(outputs, out)
			}
			input = outputs
		case "Map":
			items, ok := input.([]any)
			if !ok {
				return nil, execErr("States.MapInputNotArray", "Map state %q requires an array input", state)
			}
			if sd.Iterator == nil {
				return nil, execErr("States.NoIterator", "Map state %q has no Iterator", state)
			}
			outputs := make([]any, 0, len(items))
			for _, item := range items {
				out, err := sd.Iterator.run(item)
				if err != nil {
					return nil, err
				}
				outputs = append(outputs, out)
			}
			input = outputs
		default:
			return nil, execErr("States.UnsupportedStateType", "state type %q is not supported", sd.Type)
		}

		if sd.End {
			return input, nil
		}
		if sd.Next == "" {
			return nil, execErr("States.NoNext", "state %q has neither Next nor End", state)
		}
		state = sd.Next
	}
}

// applyPass applies the Pass transforms in order, each optional:
// Parameters, Result, ResultPath, OutputPath.
func applyPass(sd State, input any) (any, error) {
	original := input
	out := input

	if len(sd.Parameters) > 0 {
		var params any
		if err := json.Unmarshal(sd.Parameters, &params); err != nil {
			return nil, execErr("States.ParameterPathFailure", "invalid Parameters: %v", err)
		}
		out = resolveParameters(params, input)
	}

	if len(sd.Result) > 0 {
		var result any
		if err := json.Unmarshal(sd.Result, &result); err != nil {
			return nil, execErr("States.ResultPathMatchFailure", "invalid Result: %v", err)
		}
		out = result
	}

	if sd.ResultPath != "" {
		merged, err := setPath(original, sd.ResultPath, out)
		if err != nil {
			return nil, execErr("States.ResultPathMatchFailure", "%v", err)
		}
		out = merged
	}

	if sd.OutputPath != "" {
		v, ok := getPath(out, sd.OutputPath)
		if !ok {
			return nil, execErr("States.OutputPathMatchFailure", "path %q yields no value", sd.OutputPath)
		}
		out = v
	}

	return out, nil
}

// resolveParameters walks a Parameters value and substitutes "<key>.$"
// entries with the value at their JSONPath in the state input.
func resolveParameters(params, input any) any {
	switch p := params.(type) {
	case map[string]any:
		out := make(map[string]any, len(p))
		for k, v := range p {
			if len(k) > 2 && k[len(k)-2:] == ".$" {
				if path, ok := v.(string); ok {
					if resolved, found := getPath(input, path); found {
						out[k[:len(k)-2]] = resolved
						continue
					}
				}
				out[k[:len(k)-2]] = nil
				continue
			}
			out[k] = resolveParameters(v, input)
		}
		return out
	case []any:
		out := make([]any, len(p))
		for i, v := range p {
			out[i] = resolveParameters(v, input)
		}
		return out
	default:
		return params
	}
}
