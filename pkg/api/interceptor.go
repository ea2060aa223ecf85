package api

import (
	"context"
	"strings"
	"time"

	"github.com/cuemby/googol/pkg/log"
	"github.com/cuemby/googol/pkg/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// UnaryInterceptor maps domain errors to status codes, records request
// metrics and logs failed calls.
func UnaryInterceptor() grpc.UnaryServerInterceptor {
	logger := log.WithComponent("api")
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		err = ToStatus(err)

		name := methodName(info.FullMethod)
		code := status.Code(err)
		metrics.APIRequestsTotal.WithLabelValues(name, code.String()).Inc()
		metrics.APIRequestDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

		if err != nil {
			logger.Debug().Err(err).Str("method", info.FullMethod).Str("code", code.String()).Msg("Request failed")
		}
		return resp, err
	}
}

// StreamInterceptor logs the lifetime of streaming calls
func StreamInterceptor() grpc.StreamServerInterceptor {
	logger := log.WithComponent("api")
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := ToStatus(handler(srv, ss))

		name := methodName(info.FullMethod)
		metrics.APIRequestsTotal.WithLabelValues(name, status.Code(err).String()).Inc()
		logger.Debug().Str("method", info.FullMethod).Dur("duration", time.Since(start)).Msg("Stream closed")
		return err
	}
}

// methodName extracts the method from a full path
// (e.g., "/googol.Queue/AddURL" -> "Queue.AddURL")
func methodName(fullMethod string) string {
	parts := strings.Split(strings.TrimPrefix(fullMethod, "/"), "/")
	if len(parts) != 2 {
		return fullMethod
	}
	return strings.TrimPrefix(parts[0], "googol.") + "." + parts[1]
}
