package offcycle

import "errors"

var (
	// ErrInvalidID は支給項目 ID が不正な場合に返却されます。
	ErrInvalidID = errors.New("offcycle: invalid element id")
	// ErrElementConsumed は計算ランで消費済みの支給項目を操作した場合に返却されます。
	ErrElementConsumed = errors.New("offcycle: element already consumed by a payroll run")
)
