package orchestrator

import "github.com/ogurasousui/payroll-orchestrator/internal/core/payroll"

// ApprovalView は承認ステップの表示用状態です。
type ApprovalView struct {
	Status       payroll.ApprovalStatus
	Steps        []payroll.ApprovalStep
	CurrentStep  *payroll.ApprovalStep
	AutoApproved bool
	Sent         bool
	// Consistent は承認済みステップが未承認ステップの後ろに現れていないことを表します。
	Consistent bool
	// CanSend は「承認に送信」操作を有効にすべきかを表します。
	CanSend bool
}

// View はプレゼンテーション層に渡す読み取り専用のスナップショットです。
type View struct {
	Variant      string
	Step         Step
	RunID        string
	PayDate      string
	Snapshots    []payroll.EmployeeSnapshot
	Partition    payroll.Partition
	Totals       payroll.Totals
	Busy         string
	Approval     ApprovalView
	PollerActive bool
	LastError    string
}

// View は現在の状態を返します。I/O 中でも読み取りはブロックされません。
func (c *Controller) View() View {
	c.mu.RLock()
	v := View{
		Variant: c.variant.Name,
		Step:    c.step,
		RunID:   c.runID,
		PayDate: c.payDate,
		Busy:    c.busy,
	}
	if c.snapshots != nil {
		v.Snapshots = make([]payroll.EmployeeSnapshot, len(c.snapshots))
		copy(v.Snapshots, c.snapshots)
	}
	if c.lastErr != nil {
		v.LastError = c.lastErr.Error()
	}
	v.Approval = c.approvalViewLocked()
	c.mu.RUnlock()

	if c.variant.PartitionStartersLeavers {
		v.Partition = payroll.PartitionSnapshots(v.Snapshots)
	} else {
		v.Partition = payroll.Partition{Continuing: v.Snapshots}
	}
	v.Totals = payroll.SumSnapshots(v.Snapshots)

	_, v.PollerActive = c.poller.Active()
	return v
}

// Approval は承認ステップの状態を返します。
func (c *Controller) Approval() ApprovalView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.approvalViewLocked()
}

func (c *Controller) approvalViewLocked() ApprovalView {
	av := ApprovalView{Sent: c.sent, Consistent: true}
	if c.workflow != nil {
		av.Status = c.workflow.Status
		av.Steps = c.workflow.OrderedSteps()
		if current, ok := c.workflow.CurrentStep(); ok {
			av.CurrentStep = &current
		}
		av.AutoApproved = c.workflow.AutoApproved(c.sent)
		av.Consistent = c.workflow.Consistent()
	}
	av.CanSend = canSend(c.guardStateLocked()) == nil
	return av
}
