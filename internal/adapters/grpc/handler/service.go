package handler

import (
	"context"

	"google.golang.org/grpc"
)

// PayrollServiceName は gRPC サービスの完全修飾名です。
const PayrollServiceName = "payroll.v1.PayrollRunService"

// PayrollRunServer は PayrollRunService のサーバー側インターフェースです。
type PayrollRunServer interface {
	GetState(context.Context, *VariantRequest) (*RunStateResponse, error)
	Calculate(context.Context, *CalculateRequest) (*RunStateResponse, error)
	Advance(context.Context, *VariantRequest) (*RunStateResponse, error)
	Back(context.Context, *VariantRequest) (*RunStateResponse, error)
	Discard(context.Context, *VariantRequest) (*RunStateResponse, error)
	Resync(context.Context, *ResyncRequest) (*RunStateResponse, error)
	SendForApproval(context.Context, *VariantRequest) (*RunStateResponse, error)
	LoadSummary(context.Context, *VariantRequest) (*RunStateResponse, error)
	Finish(context.Context, *VariantRequest) (*RunStateResponse, error)
	ListOffCycleElements(context.Context, *ListOffCycleElementsRequest) (*ListOffCycleElementsResponse, error)
	AddOffCycleElement(context.Context, *AddOffCycleElementRequest) (*AddOffCycleElementResponse, error)
	RemoveOffCycleElement(context.Context, *RemoveOffCycleElementRequest) (*RemoveOffCycleElementResponse, error)
}

// PayrollRunServiceDesc は JSON コーデックで提供するサービス定義です。
var PayrollRunServiceDesc = grpc.ServiceDesc{
	ServiceName: PayrollServiceName,
	HandlerType: (*PayrollRunServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetState", Handler: unaryHandler("GetState", PayrollRunServer.GetState)},
		{MethodName: "Calculate", Handler: unaryHandler("Calculate", PayrollRunServer.Calculate)},
		{MethodName: "Advance", Handler: unaryHandler("Advance", PayrollRunServer.Advance)},
		{MethodName: "Back", Handler: unaryHandler("Back", PayrollRunServer.Back)},
		{MethodName: "Discard", Handler: unaryHandler("Discard", PayrollRunServer.Discard)},
		{MethodName: "Resync", Handler: unaryHandler("Resync", PayrollRunServer.Resync)},
		{MethodName: "SendForApproval", Handler: unaryHandler("SendForApproval", PayrollRunServer.SendForApproval)},
		{MethodName: "LoadSummary", Handler: unaryHandler("LoadSummary", PayrollRunServer.LoadSummary)},
		{MethodName: "Finish", Handler: unaryHandler("Finish", PayrollRunServer.Finish)},
		{MethodName: "ListOffCycleElements", Handler: unaryHandler("ListOffCycleElements", PayrollRunServer.ListOffCycleElements)},
		{MethodName: "AddOffCycleElement", Handler: unaryHandler("AddOffCycleElement", PayrollRunServer.AddOffCycleElement)},
		{MethodName: "RemoveOffCycleElement", Handler: unaryHandler("RemoveOffCycleElement", PayrollRunServer.RemoveOffCycleElement)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "payroll/v1/payroll_run_service",
}

// RegisterPayrollRunServer は srv を s に登録します。
func RegisterPayrollRunServer(s grpc.ServiceRegistrar, srv PayrollRunServer) {
	s.RegisterService(&PayrollRunServiceDesc, srv)
}

func unaryHandler[Req, Resp any](method string, call func(PayrollRunServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + PayrollServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PayrollRunServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(PayrollRunServer), ctx, req.(*Req))
		})
	}
}

// PayrollRunClient は PayrollRunService のクライアントです。呼び出しは常に JSON コーデックを使います。
type PayrollRunClient struct {
	cc grpc.ClientConnInterface
}

// NewPayrollRunClient は PayrollRunClient を生成します。
func NewPayrollRunClient(cc grpc.ClientConnInterface) *PayrollRunClient {
	return &PayrollRunClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *PayrollRunClient, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+PayrollServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PayrollRunClient) GetState(ctx context.Context, in *VariantRequest, opts ...grpc.CallOption) (*RunStateResponse, error) {
	return invoke[RunStateResponse](ctx, c, "GetState", in, opts)
}

func (c *PayrollRunClient) Calculate(ctx context.Context, in *CalculateRequest, opts ...grpc.CallOption) (*RunStateResponse, error) {
	return invoke[RunStateResponse](ctx, c, "Calculate", in, opts)
}

func (c *PayrollRunClient) Advance(ctx context.Context, in *VariantRequest, opts ...grpc.CallOption) (*RunStateResponse, error) {
	return invoke[RunStateResponse](ctx, c, "Advance", in, opts)
}

func (c *PayrollRunClient) Back(ctx context.Context, in *VariantRequest, opts ...grpc.CallOption) (*RunStateResponse, error) {
	return invoke[RunStateResponse](ctx, c, "Back", in, opts)
}

func (c *PayrollRunClient) Discard(ctx context.Context, in *VariantRequest, opts ...grpc.CallOption) (*RunStateResponse, error) {
	return invoke[RunStateResponse](ctx, c, "Discard", in, opts)
}

func (c *PayrollRunClient) Resync(ctx context.Context, in *ResyncRequest, opts ...grpc.CallOption) (*RunStateResponse, error) {
	return invoke[RunStateResponse](ctx, c, "Resync", in, opts)
}

func (c *PayrollRunClient) SendForApproval(ctx context.Context, in *VariantRequest, opts ...grpc.CallOption) (*RunStateResponse, error) {
	return invoke[RunStateResponse](ctx, c, "SendForApproval", in, opts)
}

func (c *PayrollRunClient) LoadSummary(ctx context.Context, in *VariantRequest, opts ...grpc.CallOption) (*RunStateResponse, error) {
	return invoke[RunStateResponse](ctx, c, "LoadSummary", in, opts)
}

func (c *PayrollRunClient) Finish(ctx context.Context, in *VariantRequest, opts ...grpc.CallOption) (*RunStateResponse, error) {
	return invoke[RunStateResponse](ctx, c, "Finish", in, opts)
}

func (c *PayrollRunClient) ListOffCycleElements(ctx context.Context, in *ListOffCycleElementsRequest, opts ...grpc.CallOption) (*ListOffCycleElementsResponse, error) {
	return invoke[ListOffCycleElementsResponse](ctx, c, "ListOffCycleElements", in, opts)
}

func (c *PayrollRunClient) AddOffCycleElement(ctx context.Context, in *AddOffCycleElementRequest, opts ...grpc.CallOption) (*AddOffCycleElementResponse, error) {
	return invoke[AddOffCycleElementResponse](ctx, c, "AddOffCycleElement", in, opts)
}

func (c *PayrollRunClient) RemoveOffCycleElement(ctx context.Context, in *RemoveOffCycleElementRequest, opts ...grpc.CallOption) (*RemoveOffCycleElementResponse, error) {
	return invoke[RemoveOffCycleElementResponse](ctx, c, "RemoveOffCycleElement", in, opts)
}
