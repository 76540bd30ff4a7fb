package payroll

import "sort"

// StepStatus は承認ステップの状態です。
type StepStatus string

const (
	StepStatusPending  StepStatus = "pending"
	StepStatusApproved StepStatus = "approved"
	StepStatusRejected StepStatus = "rejected"
)

// ApprovalStatus はランに紐づく承認ワークフロー全体の状態です。
type ApprovalStatus string

const (
	ApprovalStatusNotSubmitted ApprovalStatus = "notSubmitted"
	ApprovalStatusPending      ApprovalStatus = "pendingApproval"
	ApprovalStatusApproved     ApprovalStatus = "approved"
	ApprovalStatusRejected     ApprovalStatus = "rejected"
)

// IsTerminal はポーリングを終了すべき状態かを返します。
func (s ApprovalStatus) IsTerminal() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusRejected
}

// ApprovalStep は承認チェーンの 1 ステップです。
type ApprovalStep struct {
	ID       string     `json:"id"`
	Sequence int        `json:"sequence"`
	Role     string     `json:"role"`
	Status   StepStatus `json:"status"`
}

// ApprovalWorkflow はバックエンドが保持する承認ワークフローのミラーです。クライアント側で変更しません。
type ApprovalWorkflow struct {
	RunID  string         `json:"runId"`
	Status ApprovalStatus `json:"approvalStatus"`
	Steps  []ApprovalStep `json:"approvalSteps"`
}

// OrderedSteps は sequence 昇順に並べたステップのコピーを返します。
func (w ApprovalWorkflow) OrderedSteps() []ApprovalStep {
	steps := make([]ApprovalStep, len(w.Steps))
	copy(steps, w.Steps)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Sequence < steps[j].Sequence
	})
	return steps
}

// CurrentStep は最初の pending ステップを返します。
func (w ApprovalWorkflow) CurrentStep() (ApprovalStep, bool) {
	for _, step := range w.OrderedSteps() {
		if step.Status == StepStatusPending {
			return step, true
		}
	}
	return ApprovalStep{}, false
}

// Consistent は承認済みステップが未承認ステップより後ろに現れないことを検証します。
func (w ApprovalWorkflow) Consistent() bool {
	blocked := false
	for _, step := range w.OrderedSteps() {
		if step.Status != StepStatusApproved {
			blocked = true
			continue
		}
		if blocked {
			return false
		}
	}
	return true
}

// AutoApproved は単一ステップが送信前から承認済みであるかを返します。
func (w ApprovalWorkflow) AutoApproved(sent bool) bool {
	if sent || len(w.Steps) != 1 {
		return false
	}
	return w.Steps[0].Status == StepStatusApproved
}
