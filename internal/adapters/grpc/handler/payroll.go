package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/ogurasousui/payroll-orchestrator/internal/core/offcycle"
	"github.com/ogurasousui/payroll-orchestrator/internal/core/orchestrator"
	"github.com/ogurasousui/payroll-orchestrator/internal/core/payroll"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultVariant = "primary"

// PayrollGrpcHandler は PayrollRunService の gRPC 実装です。
type PayrollGrpcHandler struct {
	runs     *orchestrator.Manager
	registry *offcycle.Registry
	log      zerolog.Logger
}

var _ PayrollRunServer = (*PayrollGrpcHandler)(nil)

// NewPayrollGrpcHandler は PayrollGrpcHandler を生成します。
func NewPayrollGrpcHandler(runs *orchestrator.Manager, registry *offcycle.Registry, log zerolog.Logger) *PayrollGrpcHandler {
	return &PayrollGrpcHandler{runs: runs, registry: registry, log: log}
}

// GetState はバリアントの現在状態を返します。
func (h *PayrollGrpcHandler) GetState(_ context.Context, req *VariantRequest) (*RunStateResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	ctrl, err := h.controller(req.Variant)
	if err != nil {
		return nil, err
	}
	return toRunStateResponse(ctrl.View()), nil
}

// Calculate は支給日の計算を実行しレビューステップへ進めます。
func (h *PayrollGrpcHandler) Calculate(ctx context.Context, req *CalculateRequest) (*RunStateResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if strings.TrimSpace(req.PayDate) == "" {
		return nil, status.Error(codes.InvalidArgument, "payDate is required")
	}
	return h.apply(req.Variant, func(c *orchestrator.Controller) error {
		return c.Calculate(ctx, req.PayDate, payroll.CalculationFlags{IncludeLeavers: req.IncludeLeavers})
	})
}

func (h *PayrollGrpcHandler) Advance(ctx context.Context, req *VariantRequest) (*RunStateResponse, error) {
	return h.applyVariant(req, func(c *orchestrator.Controller) error { return c.Advance(ctx) })
}

func (h *PayrollGrpcHandler) Back(ctx context.Context, req *VariantRequest) (*RunStateResponse, error) {
	return h.applyVariant(req, func(c *orchestrator.Controller) error { return c.Back(ctx) })
}

func (h *PayrollGrpcHandler) Discard(ctx context.Context, req *VariantRequest) (*RunStateResponse, error) {
	return h.applyVariant(req, func(c *orchestrator.Controller) error { return c.Discard(ctx) })
}

// Resync はステップを維持したまま再計算します。
func (h *PayrollGrpcHandler) Resync(ctx context.Context, req *ResyncRequest) (*RunStateResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	return h.apply(req.Variant, func(c *orchestrator.Controller) error {
		return c.Resync(ctx, orchestrator.ResyncInput{
			PayDate: req.PayDate,
			Flags:   payroll.CalculationFlags{IncludeLeavers: req.IncludeLeavers},
		})
	})
}

func (h *PayrollGrpcHandler) SendForApproval(ctx context.Context, req *VariantRequest) (*RunStateResponse, error) {
	return h.applyVariant(req, func(c *orchestrator.Controller) error { return c.SendForApproval(ctx) })
}

func (h *PayrollGrpcHandler) LoadSummary(ctx context.Context, req *VariantRequest) (*RunStateResponse, error) {
	return h.applyVariant(req, func(c *orchestrator.Controller) error { return c.LoadSummary(ctx) })
}

func (h *PayrollGrpcHandler) Finish(ctx context.Context, req *VariantRequest) (*RunStateResponse, error) {
	return h.applyVariant(req, func(c *orchestrator.Controller) error { return c.Finish(ctx) })
}

// ListOffCycleElements はステージング中の臨時支給要素を返します。
func (h *PayrollGrpcHandler) ListOffCycleElements(ctx context.Context, req *ListOffCycleElementsRequest) (*ListOffCycleElementsResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	var (
		elements []payroll.OffCyclePayElement
		err      error
	)
	switch {
	case req.Refresh && req.PayDate != "":
		elements, err = h.registry.Refresh(ctx, req.PayDate)
	case req.Refresh:
		return nil, status.Error(codes.InvalidArgument, "payDate is required to refresh")
	default:
		elements, err = h.registry.ListAll(ctx)
	}
	if err != nil {
		return nil, toStatusError(err)
	}

	if req.PayDate != "" && !req.Refresh {
		date, err := payroll.NormalizePayDate(req.PayDate)
		if err != nil {
			return nil, toStatusError(err)
		}
		filtered := elements[:0]
		for _, e := range elements {
			if e.PayrollDate == date {
				filtered = append(filtered, e)
			}
		}
		elements = filtered
	}

	resp := &ListOffCycleElementsResponse{
		Elements:   make([]payroll.OffCyclePayElement, 0, len(elements)),
		ByEmployee: make(map[string][]payroll.OffCyclePayElement),
	}
	for _, e := range elements {
		resp.Elements = append(resp.Elements, e)
		resp.ByEmployee[e.EmployeeID] = append(resp.ByEmployee[e.EmployeeID], e)
	}
	return resp, nil
}

// AddOffCycleElement は要素を登録し、その支給日のステージング一覧を返します。
func (h *PayrollGrpcHandler) AddOffCycleElement(ctx context.Context, req *AddOffCycleElementRequest) (*AddOffCycleElementResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	staged, err := h.registry.Add(ctx, req.Element)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &AddOffCycleElementResponse{Staged: staged}, nil
}

// RemoveOffCycleElement はステージング中の要素を削除します。
func (h *PayrollGrpcHandler) RemoveOffCycleElement(ctx context.Context, req *RemoveOffCycleElementRequest) (*RemoveOffCycleElementResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if err := h.registry.Remove(ctx, req.ID); err != nil {
		return nil, toStatusError(err)
	}
	return &RemoveOffCycleElementResponse{}, nil
}

func (h *PayrollGrpcHandler) applyVariant(req *VariantRequest, op func(*orchestrator.Controller) error) (*RunStateResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	return h.apply(req.Variant, op)
}

func (h *PayrollGrpcHandler) apply(variant string, op func(*orchestrator.Controller) error) (*RunStateResponse, error) {
	ctrl, err := h.controller(variant)
	if err != nil {
		return nil, err
	}
	if err := op(ctrl); err != nil {
		if errors.Is(err, orchestrator.ErrStateNotPurged) {
			// バックエンド側では確定済みなので遷移後の状態を返す
			h.log.Error().Err(err).Str("variant", ctrl.Variant().Name).Msg("run state left behind after backend commit")
			return toRunStateResponse(ctrl.View()), nil
		}
		return nil, toStatusError(err)
	}
	return toRunStateResponse(ctrl.View()), nil
}

func (h *PayrollGrpcHandler) controller(variant string) (*orchestrator.Controller, error) {
	variant = strings.TrimSpace(variant)
	if variant == "" {
		variant = defaultVariant
	}
	ctrl, err := h.runs.Controller(variant)
	if err != nil {
		return nil, toStatusError(err)
	}
	return ctrl, nil
}
