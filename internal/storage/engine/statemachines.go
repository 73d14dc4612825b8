package engine

import (
	"errors"

	"go.uber.org/zap"

	"localcloud/internal/apperr"
	"localcloud/internal/asl"
	"localcloud/pkg/arn"
)

// CreateStateMachine stores a state machine after validating its definition
// parses.
func (e *Engine) CreateStateMachine(name, definition, roleARN string) (*StateMachine, error) {
	if name == "" {
		return nil, apperr.InvalidArgument("state machine name must not be empty")
	}
	if _, err := asl.Parse(definition); err != nil {
		return nil, apperr.InvalidArgument("invalid state machine definition: %v", err)
	}
	var existing StateMachine
	if err := e.meta.Get(&existing, `SELECT * FROM state_machines WHERE name = ?`, name); err == nil {
		return nil, apperr.AlreadyExists("state machine", name)
	}
	sm := &StateMachine{
		ARN:        arn.StateMachine(e.region, name),
		Name:       name,
		Definition: definition,
		RoleARN:    roleARN,
		CreatedAt:  e.nowNS(),
	}
	_, err := e.meta.Exec(
		`INSERT INTO state_machines (arn, name, definition, role_arn, created_at) VALUES (?, ?, ?, ?, ?)`,
		sm.ARN, sm.Name, sm.Definition, sm.RoleARN, sm.CreatedAt)
	if err != nil {
		return nil, dbErr(err, "create state machine")
	}
	return sm, nil
}

// GetStateMachine resolves a state machine by ARN.
func (e *Engine) GetStateMachine(smARN string) (*StateMachine, error) {
	var sm StateMachine
	if err := e.meta.Get(&sm, `SELECT * FROM state_machines WHERE arn = ?`, smARN); err != nil {
		return nil, notFoundOr(err, apperr.NotFound("state machine", smARN))
	}
	return &sm, nil
}

// ListStateMachines returns all state machines.
func (e *Engine) ListStateMachines() ([]StateMachine, error) {
	var out []StateMachine
	if err := e.meta.Select(&out, `SELECT * FROM state_machines ORDER BY name`); err != nil {
		return nil, dbErr(err, "list state machines")
	}
	return out, nil
}

// DeleteStateMachine removes a state machine. Execution history remains.
func (e *Engine) DeleteStateMachine(smARN string) error {
	n, err := e.meta.Exec(`DELETE FROM state_machines WHERE arn = ?`, smARN)
	if err != nil {
		return dbErr(err, "delete state machine")
	}
	if n == 0 {
		return apperr.NotFound("state machine", smARN)
	}
	return nil
}

// StartExecution runs the machine inline against the input and records the
// terminal execution row. Interpreter panics terminate only this execution
// and record it as failed.
func (e *Engine) StartExecution(smARN, execName, input string) (ex *Execution, err error) {
	sm, err := e.GetStateMachine(smARN)
	if err != nil {
		return nil, err
	}
	if execName == "" {
		execName = arn.NewID()
	}
	if input == "" {
		input = "{}"
	}
	ex = &Execution{
		ARN:             arn.Execution(e.region, sm.Name, execName),
		StateMachineARN: sm.ARN,
		Name:            execName,
		Status:          ExecutionRunning,
		Input:           input,
		StartedAt:       e.nowNS(),
	}

	var output string
	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("state machine execution panicked",
					zap.String("state_machine", sm.Name),
					zap.Any("panic", r))
				runErr = &asl.ExecError{Name: "States.Runtime", Cause: "execution panicked"}
			}
		}()
		output, runErr = asl.Run(sm.Definition, input)
	}()

	stopped := e.nowNS()
	ex.StoppedAt = &stopped
	if runErr != nil {
		ex.Status = ExecutionFailed
		var execErr *asl.ExecError
		if errors.As(runErr, &execErr) {
			ex.Error = &execErr.Name
			ex.Cause = &execErr.Cause
		} else {
			msg := runErr.Error()
			name := "States.Runtime"
			ex.Error = &name
			ex.Cause = &msg
		}
	} else {
		ex.Status = ExecutionSucceeded
		ex.Output = &output
	}

	_, err = e.meta.Exec(
		`INSERT INTO executions (arn, state_machine_arn, name, status, input, output, error, cause, started_at, stopped_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.ARN, ex.StateMachineARN, ex.Name, ex.Status, ex.Input, ex.Output, ex.Error, ex.Cause, ex.StartedAt, ex.StoppedAt)
	if err != nil {
		return nil, dbErr(err, "record execution")
	}
	return ex, nil
}

// GetExecution returns one execution by ARN.
func (e *Engine) GetExecution(execARN string) (*Execution, error) {
	var ex Execution
	if err := e.meta.Get(&ex, `SELECT * FROM executions WHERE arn = ?`, execARN); err != nil {
		return nil, notFoundOr(err, apperr.NotFound("execution", execARN))
	}
	return &ex, nil
}

// ListExecutions returns a machine's executions, newest first.
func (e *Engine) ListExecutions(smARN string) ([]Execution, error) {
	var out []Execution
	if err := e.meta.Select(&out, `SELECT * FROM executions WHERE state_machine_arn = ? ORDER BY started_at DESC`, smARN); err != nil {
		return nil, dbErr(err, "list executions")
	}
	return out, nil
}

// StopExecution marks a running execution aborted. Executions run inline,
// so in practice this only flips rows left RUNNING by a crash.
func (e *Engine) StopExecution(execARN string) (*Execution, error) {
	ex, err := e.GetExecution(execARN)
	if err != nil {
		return nil, err
	}
	if ex.Status == ExecutionRunning {
		stopped := e.nowNS()
		if _, err := e.meta.Exec(`UPDATE executions SET status = ?, stopped_at = ? WHERE arn = ?`, ExecutionAborted, stopped, execARN); err != nil {
			return nil, dbErr(err, "stop execution")
		}
		ex.Status = ExecutionAborted
		ex.StoppedAt = &stopped
	}
	return ex, nil
}
