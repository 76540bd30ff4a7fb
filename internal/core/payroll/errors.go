package payroll

import "errors"

var (
	// ErrInvalidPayDate は支給日が不正な場合に返却されます。
	ErrInvalidPayDate = errors.New("payroll: invalid pay date")
	// ErrInvalidRunID はラン ID が不正な場合に返却されます。
	ErrInvalidRunID = errors.New("payroll: invalid run id")
	// ErrInvalidEmployeeID は従業員 ID が不正な場合に返却されます。
	ErrInvalidEmployeeID = errors.New("payroll: invalid employee id")
	// ErrInvalidElementType は支給項目の種別が不正な場合に返却されます。
	ErrInvalidElementType = errors.New("payroll: invalid pay element type")
	// ErrInvalidAmount は金額が不正な場合に返却されます。
	ErrInvalidAmount = errors.New("payroll: invalid amount")
	// ErrRunNotFound はバックエンドにランが存在しない場合に返却されます。
	ErrRunNotFound = errors.New("payroll: run not found")
	// ErrElementNotFound はバックエンドに支給項目が存在しない場合に返却されます。
	ErrElementNotFound = errors.New("payroll: pay element not found")
)
