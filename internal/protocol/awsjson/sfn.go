package awsjson

import (
	"encoding/json"

	"localcloud/internal/storage/engine"
)

func (a *API) sfn(op string, body []byte) (any, error) {
	switch op {
	case "CreateStateMachine":
		var req struct {
			Name       string `json:"name"`
			Definition string `json:"definition"`
			RoleArn    string `json:"roleArn"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		sm, err := a.eng.CreateStateMachine(req.Name, req.Definition, req.RoleArn)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"stateMachineArn": sm.ARN,
			"creationDate":    epoch(sm.CreatedAt),
		}, nil

	case "DescribeStateMachine":
		var req struct {
			StateMachineArn string `json:"stateMachineArn"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		sm, err := a.eng.GetStateMachine(req.StateMachineArn)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"stateMachineArn": sm.ARN,
			"name":            sm.Name,
			"definition":      sm.Definition,
			"roleArn":         sm.RoleARN,
			"status":          "ACTIVE",
			"creationDate":    epoch(sm.CreatedAt),
		}, nil

	case "ListStateMachines":
		machines, err := a.eng.ListStateMachines()
		if err != nil {
			return nil, err
		}
		type entry struct {
			StateMachineArn string  `json:"stateMachineArn"`
			Name            string  `json:"name"`
			CreationDate    float64 `json:"creationDate"`
		}
		out := make([]entry, 0, len(machines))
		for _, sm := range machines {
			out = append(out, entry{StateMachineArn: sm.ARN, Name: sm.Name, CreationDate: epoch(sm.CreatedAt)})
		}
		return map[string]any{"stateMachines": out}, nil

	case "DeleteStateMachine":
		var req struct {
			StateMachineArn string `json:"stateMachineArn"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if err := a.eng.DeleteStateMachine(req.StateMachineArn); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case "StartExecution":
		var req struct {
			StateMachineArn string          `json:"stateMachineArn"`
			Name            string          `json:"name"`
			Input           json.RawMessage `json:"input"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		ex, err := a.eng.StartExecution(req.StateMachineArn, req.Name, detailJSON(req.Input))
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"executionArn": ex.ARN,
			"startDate":    epoch(ex.StartedAt),
		}, nil

	case "DescribeExecution":
		var req struct {
			ExecutionArn string `json:"executionArn"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		ex, err := a.eng.GetExecution(req.ExecutionArn)
		if err != nil {
			return nil, err
		}
		return executionEntry(ex, true), nil

	case "ListExecutions":
		var req struct {
			StateMachineArn string `json:"stateMachineArn"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		execs, err := a.eng.ListExecutions(req.StateMachineArn)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(execs))
		for i := range execs {
			out = append(out, executionEntry(&execs[i], false))
		}
		return map[string]any{"executions": out}, nil

	case "StopExecution":
		var req struct {
			ExecutionArn string `json:"executionArn"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		ex, err := a.eng.StopExecution(req.ExecutionArn)
		if err != nil {
			return nil, err
		}
		out := map[string]any{}
		if ex.StoppedAt != nil {
			out["stopDate"] = epoch(*ex.StoppedAt)
		}
		return out, nil
	}
	return nil, notImplemented("AWSStepFunctions", op)
}

// executionEntry renders an execution; full adds the fields DescribeExecution
// carries beyond the list shape.
func executionEntry(ex *engine.Execution, full bool) map[string]any {
	out := map[string]any{
		"executionArn":    ex.ARN,
		"stateMachineArn": ex.StateMachineARN,
		"name":            ex.Name,
		"status":          ex.Status,
		"startDate":       epoch(ex.StartedAt),
	}
	if ex.StoppedAt != nil {
		out["stopDate"] = epoch(*ex.StoppedAt)
	}
	if full {
		out["input"] = ex.Input
		if ex.Output != nil {
			out["output"] = *ex.Output
		}
		if ex.Error != nil {
			out["error"] = *ex.Error
		}
		if ex.Cause != nil {
			out["cause"] = *ex.Cause
		}
	}
	return out
}
