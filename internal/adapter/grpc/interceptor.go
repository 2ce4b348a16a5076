package grpc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/simaogato/kipubank-backend/internal/adapter/auth"
	"github.com/simaogato/kipubank-backend/internal/domain"
)

// publicMethodPrefixes are served without a caller identity
var publicMethodPrefixes = []string{
	"/grpc.health.v1.Health/",
}

type callerContextKey struct{}

// CallerFrom returns the authenticated caller stored by AuthInterceptor
func CallerFrom(ctx context.Context) (domain.Address, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(domain.Address)
	return caller, ok
}

// WithCaller returns a copy of ctx carrying caller
func WithCaller(ctx context.Context, caller domain.Address) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// AuthInterceptor returns a gRPC unary server interceptor that validates
// the bearer JWT from request metadata.
// The token must be HS256-signed with secret and its subject must be an address;
// that address becomes the caller of every operation in the request.
// Health checks pass through unauthenticated.
func AuthInterceptor(secret []byte) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if isPublicMethod(info.FullMethod) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		token := auth.ExtractBearer(authHeaders[0])
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		caller, err := auth.ParseCaller(token, secret)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(WithCaller(ctx, caller), req)
	}
}

func isPublicMethod(fullMethod string) bool {
	for _, prefix := range publicMethodPrefixes {
		if strings.HasPrefix(fullMethod, prefix) {
			return true
		}
	}
	return false
}

// LoggingInterceptor logs every unary call with its status code and duration
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		level := slog.LevelInfo
		code := status.Code(err)
		if code == codes.Internal || code == codes.Unknown {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "grpc request",
			"method", info.FullMethod,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
