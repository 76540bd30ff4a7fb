package payroll

import (
	"strings"
	"time"
)

// PayDateLayout は支給日の文字列表現です。
const PayDateLayout = "2006-01-02"

// EmployeeSnapshot は給与計算結果の社員別明細です。金額は最小通貨単位で保持します。
type EmployeeSnapshot struct {
	EmployeeID          string `json:"employeeId"`
	EmployeeName        string `json:"employeeName,omitempty"`
	GrossSalary         int64  `json:"grossSalary"`
	Tax                 int64  `json:"tax"`
	Pension             int64  `json:"pension"`
	StatutoryDeductions int64  `json:"statutoryDeductions"`
	Bonuses             int64  `json:"bonuses"`
	ReimbursementsTotal int64  `json:"reimbursementsTotal"`
	VoluntaryDeductions int64  `json:"voluntaryDeductions"`
	NetSalary           int64  `json:"netSalary"`
	IsStarter           bool   `json:"isStarter"`
	IsLeaver            bool   `json:"isLeaver"`
}

// CalculationFlags は計算・再計算時の任意フラグです。
type CalculationFlags struct {
	IncludeLeavers bool `json:"includeLeavers,omitempty"`
	OffCycle       bool `json:"offCycle,omitempty"`
}

// CalculationResult は計算バックエンドの応答です。
type CalculationResult struct {
	RunID             string             `json:"runId"`
	EmployeeSnapshots []EmployeeSnapshot `json:"employeeSnapshots"`
}

// ElementType は臨時支給要素の種別です。
type ElementType string

const (
	ElementTypeBonus         ElementType = "bonus"
	ElementTypeCommission    ElementType = "commission"
	ElementTypeReimbursement ElementType = "reimbursement"
	ElementTypeDeduction     ElementType = "deduction"
	ElementTypeOther         ElementType = "other"
)

// OffCyclePayElement は給与計算ラン作成前に登録される臨時支給要素です。
type OffCyclePayElement struct {
	ID           string      `json:"id"`
	EmployeeID   string      `json:"employeeId"`
	Type         ElementType `json:"type"`
	Amount       int64       `json:"amount"`
	Taxable      bool        `json:"taxable"`
	Proratable   bool        `json:"proratable"`
	PayrollDate  string      `json:"payrollDate"`
	Notes        string      `json:"notes,omitempty"`
	PayrollRunID string      `json:"payrollRunId,omitempty"`
}

// Consumed はランに取り込み済みかを返します。
func (e OffCyclePayElement) Consumed() bool {
	return e.PayrollRunID != ""
}

// NormalizePayDate は支給日を検証し正規化した文字列を返します。
func NormalizePayDate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidPayDate
	}
	parsed, err := time.Parse(PayDateLayout, trimmed)
	if err != nil {
		return "", ErrInvalidPayDate
	}
	return parsed.Format(PayDateLayout), nil
}

func isValidElementType(t ElementType) bool {
	switch t {
	case ElementTypeBonus, ElementTypeCommission, ElementTypeReimbursement, ElementTypeDeduction, ElementTypeOther:
		return true
	default:
		return false
	}
}

// Validate は登録前の臨時支給要素を検証し、正規化した値を返します。
func (e OffCyclePayElement) Validate() (OffCyclePayElement, error) {
	out := e
	out.EmployeeID = strings.TrimSpace(e.EmployeeID)
	if out.EmployeeID == "" {
		return OffCyclePayElement{}, ErrInvalidEmployeeID
	}
	out.Type = ElementType(strings.ToLower(strings.TrimSpace(string(e.Type))))
	if !isValidElementType(out.Type) {
		return OffCyclePayElement{}, ErrInvalidElementType
	}
	if e.Amount <= 0 {
		return OffCyclePayElement{}, ErrInvalidAmount
	}
	date, err := NormalizePayDate(e.PayrollDate)
	if err != nil {
		return OffCyclePayElement{}, err
	}
	out.PayrollDate = date
	out.Notes = strings.TrimSpace(e.Notes)
	return out, nil
}
