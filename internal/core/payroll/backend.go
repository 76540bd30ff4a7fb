package payroll

import "context"

// Gateway は計算・再計算の抽象です。
type Gateway interface {
	Calculate(ctx context.Context, payDate string, flags CalculationFlags) (*CalculationResult, error)
}

// RunOperations はランに対するバックエンド操作です。
type RunOperations interface {
	GetSummary(ctx context.Context, runID string) ([]EmployeeSnapshot, error)
	GetApprovalStatus(ctx context.Context, runID string) (*ApprovalWorkflow, error)
	SubmitForApproval(ctx context.Context, runID string) error
	CompletePayment(ctx context.Context, runID string) error
	DiscardRun(ctx context.Context, runID string) error
}

// OffCycleAPI は臨時支給要素に対するバックエンド操作です。
type OffCycleAPI interface {
	ListOffCycleElements(ctx context.Context, payDate string) ([]OffCyclePayElement, error)
	CreateOffCycleElement(ctx context.Context, element OffCyclePayElement) (*OffCyclePayElement, error)
	DeleteOffCycleElement(ctx context.Context, id string) error
}

// Backend は計算・承認バックエンドの全操作です。
type Backend interface {
	Gateway
	RunOperations
	OffCycleAPI
}
