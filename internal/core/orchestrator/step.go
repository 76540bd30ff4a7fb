package orchestrator

import "fmt"

// Step はワークフロー上の現在位置です。
type Step int

const (
	StepStart Step = iota
	StepReview
	StepApproval
	StepPayment
	StepConfirm
)

func (s Step) String() string {
	switch s {
	case StepStart:
		return "start"
	case StepReview:
		return "review"
	case StepApproval:
		return "approval"
	case StepPayment:
		return "payment"
	case StepConfirm:
		return "confirm"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}
