package server

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDKey はリクエスト ID を受け渡すメタデータのキーです。
const RequestIDKey = "x-request-id"

// RequestLogger はリクエスト ID 付きのロガーをコンテキストに載せ、完了時にアクセスログを出力します。
func RequestLogger(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		requestID := incomingRequestID(ctx)
		reqLog := log.With().Str("request_id", requestID).Str("method", info.FullMethod).Logger()
		ctx = reqLog.WithContext(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDKey, requestID))

		started := time.Now()
		resp, err := next(ctx, req)

		code := status.Code(err)
		event := reqLog.Info()
		switch code {
		case codes.OK:
		case codes.Internal, codes.Unknown, codes.DataLoss:
			event = reqLog.Error().Err(err)
		default:
			event = reqLog.Warn().Err(err)
		}
		event.Str("code", code.String()).Dur("elapsed", time.Since(started)).Msg("gRPC request handled")

		return resp, err
	}
}

// Recovery はハンドラのパニックを Internal エラーに変換します。
func Recovery(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("method", info.FullMethod).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered in gRPC handler")
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return next(ctx, req)
	}
}

func incomingRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(RequestIDKey); len(values) > 0 && values[0] != "" {
			return values[0]
		}
	}
	return uuid.NewString()
}
