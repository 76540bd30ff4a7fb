package handler

import (
	"context"
	"errors"

	"github.com/ogurasousui/payroll-orchestrator/internal/core/offcycle"
	"github.com/ogurasousui/payroll-orchestrator/internal/core/orchestrator"
	"github.com/ogurasousui/payroll-orchestrator/internal/core/payroll"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// temporary はバックエンドの一時的な失敗を表すエラーが実装します。
type temporary interface {
	Temporary() bool
}

func toStatusError(err error) error {
	var tmp temporary
	switch {
	case err == nil:
		return nil
	case errors.Is(err, payroll.ErrInvalidPayDate),
		errors.Is(err, payroll.ErrInvalidRunID),
		errors.Is(err, payroll.ErrInvalidEmployeeID),
		errors.Is(err, payroll.ErrInvalidElementType),
		errors.Is(err, payroll.ErrInvalidAmount),
		errors.Is(err, offcycle.ErrInvalidID),
		errors.Is(err, orchestrator.ErrUnknownVariant):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, orchestrator.ErrInvalidTransition),
		errors.Is(err, orchestrator.ErrNoActiveRun),
		errors.Is(err, orchestrator.ErrBackDisabled),
		errors.Is(err, orchestrator.ErrAutoApproved),
		errors.Is(err, orchestrator.ErrAlreadySent),
		errors.Is(err, orchestrator.ErrClosed),
		errors.Is(err, offcycle.ErrElementConsumed):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, orchestrator.ErrOperationInFlight),
		errors.Is(err, orchestrator.ErrStaleIdentity):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, payroll.ErrRunNotFound), errors.Is(err, payroll.ErrElementNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.As(err, &tmp) && tmp.Temporary():
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
