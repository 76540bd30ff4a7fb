package handler

import (
	"github.com/ogurasousui/payroll-orchestrator/internal/core/orchestrator"
	"github.com/ogurasousui/payroll-orchestrator/internal/core/payroll"
)

// VariantRequest は対象バリアントだけを指定するリクエストです。空の場合は primary です。
type VariantRequest struct {
	Variant string `json:"variant,omitempty"`
}

type CalculateRequest struct {
	Variant        string `json:"variant,omitempty"`
	PayDate        string `json:"payDate"`
	IncludeLeavers bool   `json:"includeLeavers,omitempty"`
}

// ResyncRequest の PayDate は再起動後などで支給日が不明な場合にだけ使われます。
type ResyncRequest struct {
	Variant        string `json:"variant,omitempty"`
	PayDate        string `json:"payDate,omitempty"`
	IncludeLeavers bool   `json:"includeLeavers,omitempty"`
}

type ListOffCycleElementsRequest struct {
	PayDate string `json:"payDate,omitempty"`
	// Refresh が true の場合はバックエンドから取り直してからステージングを返します。
	Refresh bool `json:"refresh,omitempty"`
}

type ListOffCycleElementsResponse struct {
	Elements   []payroll.OffCyclePayElement            `json:"elements"`
	ByEmployee map[string][]payroll.OffCyclePayElement `json:"byEmployee"`
}

type AddOffCycleElementRequest struct {
	Element payroll.OffCyclePayElement `json:"element"`
}

type AddOffCycleElementResponse struct {
	Staged []payroll.OffCyclePayElement `json:"staged"`
}

type RemoveOffCycleElementRequest struct {
	ID string `json:"id"`
}

type RemoveOffCycleElementResponse struct{}

type TotalsMessage struct {
	Employees   int   `json:"employees"`
	GrossSalary int64 `json:"grossSalary"`
	Tax         int64 `json:"tax"`
	NetSalary   int64 `json:"netSalary"`
}

type ApprovalMessage struct {
	Status       payroll.ApprovalStatus `json:"status,omitempty"`
	Steps        []payroll.ApprovalStep `json:"steps,omitempty"`
	CurrentStep  *payroll.ApprovalStep  `json:"currentStep,omitempty"`
	AutoApproved bool                   `json:"autoApproved"`
	Consistent   bool                   `json:"consistent"`
	Sent         bool                   `json:"sent"`
	CanSend      bool                   `json:"canSend"`
}

// RunStateResponse はバリアントの現在状態です。明細は継続・開始者・退職者に分けて返します。
type RunStateResponse struct {
	Variant      string                     `json:"variant"`
	Step         int                        `json:"step"`
	StepName     string                     `json:"stepName"`
	RunID        string                     `json:"runId,omitempty"`
	PayDate      string                     `json:"payDate,omitempty"`
	Continuing   []payroll.EmployeeSnapshot `json:"continuing"`
	Starters     []payroll.EmployeeSnapshot `json:"starters"`
	Leavers      []payroll.EmployeeSnapshot `json:"leavers"`
	Totals       TotalsMessage              `json:"totals"`
	Busy         string                     `json:"busy,omitempty"`
	Approval     ApprovalMessage            `json:"approval"`
	PollerActive bool                       `json:"pollerActive"`
	LastError    string                     `json:"lastError,omitempty"`
}

func toRunStateResponse(v orchestrator.View) *RunStateResponse {
	return &RunStateResponse{
		Variant:    v.Variant,
		Step:       int(v.Step),
		StepName:   v.Step.String(),
		RunID:      v.RunID,
		PayDate:    v.PayDate,
		Continuing: nonNil(v.Partition.Continuing),
		Starters:   nonNil(v.Partition.Starters),
		Leavers:    nonNil(v.Partition.Leavers),
		Totals: TotalsMessage{
			Employees:   v.Totals.Employees,
			GrossSalary: v.Totals.GrossSalary,
			Tax:         v.Totals.Tax,
			NetSalary:   v.Totals.NetSalary,
		},
		Busy: v.Busy,
		Approval: ApprovalMessage{
			Status:       v.Approval.Status,
			Steps:        v.Approval.Steps,
			CurrentStep:  v.Approval.CurrentStep,
			AutoApproved: v.Approval.AutoApproved,
			Consistent:   v.Approval.Consistent,
			Sent:         v.Approval.Sent,
			CanSend:      v.Approval.CanSend,
		},
		PollerActive: v.PollerActive,
		LastError:    v.LastError,
	}
}

func nonNil(in []payroll.EmployeeSnapshot) []payroll.EmployeeSnapshot {
	if in == nil {
		return []payroll.EmployeeSnapshot{}
	}
	return in
}
