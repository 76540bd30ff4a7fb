package orchestrator

import "errors"

var (
	// ErrInvalidTransition は現在のステップから要求された遷移ができない場合に返却されます。
	ErrInvalidTransition = errors.New("orchestrator: invalid transition")
	// ErrNoActiveRun は対象となる給与計算ランが存在しない場合に返却されます。
	ErrNoActiveRun = errors.New("orchestrator: no active payroll run")
	// ErrOperationInFlight は別の操作が実行中の場合に返却されます。
	ErrOperationInFlight = errors.New("orchestrator: another operation is in flight")
	// ErrBackDisabled は戻る操作が無効化された承認ステップで戻ろうとした場合に返却されます。
	ErrBackDisabled = errors.New("orchestrator: back is disabled at the approval step")
	// ErrAutoApproved は自動承認済みのランを承認に送信しようとした場合に返却されます。
	ErrAutoApproved = errors.New("orchestrator: run is auto-approved, submission is not required")
	// ErrAlreadySent は送信済みのランを再送信しようとした場合に返却されます。
	ErrAlreadySent = errors.New("orchestrator: run already sent for approval")
	// ErrStaleIdentity は処理中にラン ID が変わった場合に返却されます。
	ErrStaleIdentity = errors.New("orchestrator: run identity changed while the request was in flight")
	// ErrEmptyRunID はバックエンドが空のラン ID を返した場合に返却されます。
	ErrEmptyRunID = errors.New("orchestrator: backend returned an empty run id")
	// ErrClosed はクローズ済みのコントローラーを操作した場合に返却されます。
	ErrClosed = errors.New("orchestrator: controller closed")
	// ErrStateNotPurged はランの永続状態を削除できなかった場合に返却されます。
	ErrStateNotPurged = errors.New("orchestrator: run state could not be purged")
	// ErrUnknownVariant は未登録のバリアント名が指定された場合に返却されます。
	ErrUnknownVariant = errors.New("orchestrator: unknown variant")
	// ErrInvalidVariant はバリアント設定が不正な場合に返却されます。
	ErrInvalidVariant = errors.New("orchestrator: invalid variant configuration")
)
