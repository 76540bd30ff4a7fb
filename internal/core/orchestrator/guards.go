package orchestrator

import "github.com/ogurasousui/payroll-orchestrator/internal/core/payroll"

// guardState は遷移判定に使う状態のスナップショットです。
type guardState struct {
	step     Step
	runID    string
	busy     string
	sent     bool
	workflow *payroll.ApprovalWorkflow
	closed   bool
}

func (c *Controller) guardStateLocked() guardState {
	return guardState{
		step:     c.step,
		runID:    c.runID,
		busy:     c.busy,
		sent:     c.sent,
		workflow: c.workflow,
		closed:   c.closed,
	}
}

func canCalculate(s guardState) error {
	switch {
	case s.closed:
		return ErrClosed
	case s.busy != "":
		return ErrOperationInFlight
	case s.step != StepStart:
		return ErrInvalidTransition
	}
	return nil
}

func canAdvance(s guardState) error {
	switch {
	case s.closed:
		return ErrClosed
	case s.busy != "":
		return ErrOperationInFlight
	case s.step != StepReview && s.step != StepPayment:
		return ErrInvalidTransition
	case s.runID == "":
		return ErrNoActiveRun
	}
	return nil
}

func canBack(s guardState, v Variant) error {
	switch {
	case s.closed:
		return ErrClosed
	case s.busy != "":
		return ErrOperationInFlight
	case s.step == StepApproval && !v.AllowBackFromApproval:
		return ErrBackDisabled
	case s.step == StepReview || s.step == StepApproval:
		return nil
	}
	return ErrInvalidTransition
}

func canDiscard(s guardState) error {
	switch {
	case s.closed:
		return ErrClosed
	case s.busy != "":
		return ErrOperationInFlight
	case s.step != StepStart && s.step != StepReview:
		return ErrInvalidTransition
	case s.runID == "":
		return ErrNoActiveRun
	}
	return nil
}

func canResync(s guardState) error {
	switch {
	case s.closed:
		return ErrClosed
	case s.busy != "":
		return ErrOperationInFlight
	case s.step != StepReview && s.step != StepApproval:
		return ErrInvalidTransition
	case s.runID == "":
		return ErrNoActiveRun
	}
	return nil
}

func canSend(s guardState) error {
	switch {
	case s.closed:
		return ErrClosed
	case s.busy != "":
		return ErrOperationInFlight
	case s.step != StepApproval:
		return ErrInvalidTransition
	case s.runID == "":
		return ErrNoActiveRun
	case s.sent:
		return ErrAlreadySent
	case s.workflow != nil && s.workflow.AutoApproved(s.sent):
		return ErrAutoApproved
	}
	return nil
}

func canFinish(s guardState) error {
	switch {
	case s.closed:
		return ErrClosed
	case s.step != StepConfirm:
		return ErrInvalidTransition
	}
	return nil
}
