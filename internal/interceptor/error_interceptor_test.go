package interceptor_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jt828/go-span-tracing/internal/interceptor"
	"github.com/jt828/go-span-tracing/pkg/apperror"
	"github.com/jt828/go-span-tracing/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type mockLogger struct {
	errorCalls []struct {
		msg    string
		fields []observability.Field
	}
}

func (m *mockLogger) Debug(msg string, fields ...observability.Field) {}
func (m *mockLogger) Error(msg string, fields ...observability.Field) {
	m.errorCalls = append(m.errorCalls, struct {
		msg    string
		fields []observability.Field
	}{msg, fields})
}
func (m *mockLogger) Fatal(msg string, fields ...observability.Field)         {}
func (m *mockLogger) Info(msg string, fields ...observability.Field)          {}
func (m *mockLogger) Warn(msg string, fields ...observability.Field)          {}
func (m *mockLogger) With(fields ...observability.Field) observability.Logger { return m }

func callUnary(log observability.Logger, handlerErr error) (any, error) {
	info := &grpc.UnaryServerInfo{FullMethod: "/spantrace.v1.ProbeService/Recent"}
	return interceptor.ErrorInterceptor(log)(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		if handlerErr != nil {
			return nil, handlerErr
		}
		return "ok", nil
	})
}

func TestErrorInterceptor(t *testing.T) {
	t.Run("no error passes through unchanged", func(t *testing.T) {
		log := &mockLogger{}

		resp, err := callUnary(log, nil)

		require.NoError(t, err)
		assert.Equal(t, "ok", resp)
		assert.Empty(t, log.errorCalls)
	})

	t.Run("sentinel errors map to status codes", func(t *testing.T) {
		cases := map[string]struct {
			err  error
			code codes.Code
		}{
			"not found":         {apperror.ErrNotFound, codes.NotFound},
			"wrapped not found": {fmt.Errorf("no probe results: %w", apperror.ErrNotFound), codes.NotFound},
			"invalid argument":  {fmt.Errorf("limit: %w", apperror.ErrInvalidArgument), codes.InvalidArgument},
			"unavailable":       {fmt.Errorf("begin: %w", apperror.ErrUnavailable), codes.Unavailable},
			"canceled":          {context.Canceled, codes.Canceled},
			"deadline":          {context.DeadlineExceeded, codes.DeadlineExceeded},
		}
		for name, tc := range cases {
			t.Run(name, func(t *testing.T) {
				log := &mockLogger{}

				_, err := callUnary(log, tc.err)

				st, ok := status.FromError(err)
				require.True(t, ok)
				assert.Equal(t, tc.code, st.Code())
				assert.Equal(t, tc.err.Error(), st.Message())
				assert.Empty(t, log.errorCalls)
			})
		}
	})

	t.Run("status errors are kept", func(t *testing.T) {
		_, err := callUnary(&mockLogger{}, status.Error(codes.PermissionDenied, "nope"))

		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})

	t.Run("unknown error maps to codes.Internal and is logged", func(t *testing.T) {
		log := &mockLogger{}
		unknownErr := errors.New("database exploded")

		_, err := callUnary(log, unknownErr)

		st, ok := status.FromError(err)
		require.True(t, ok)
		assert.Equal(t, codes.Internal, st.Code())
		assert.Equal(t, "internal server error", st.Message())
		require.Len(t, log.errorCalls, 1)
		assert.Equal(t, "unhandled error", log.errorCalls[0].msg)
		assert.Contains(t, log.errorCalls[0].fields, observability.Err(unknownErr))
		assert.Contains(t, log.errorCalls[0].fields, observability.String("method", "/spantrace.v1.ProbeService/Recent"))
	})

	t.Run("panic is recovered", func(t *testing.T) {
		log := &mockLogger{}
		info := &grpc.UnaryServerInfo{FullMethod: "/spantrace.v1.ProbeService/Check"}

		resp, err := interceptor.ErrorInterceptor(log)(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
			panic("boom")
		})

		assert.Nil(t, resp)
		assert.Equal(t, codes.Internal, status.Code(err))
		require.Len(t, log.errorCalls, 1)
		assert.Equal(t, "panic recovered", log.errorCalls[0].msg)
	})
}

func TestErrorStreamInterceptor(t *testing.T) {
	info := &grpc.StreamServerInfo{FullMethod: "/spantrace.v1.ProbeService/Watch", IsServerStream: true}

	t.Run("maps handler error", func(t *testing.T) {
		log := &mockLogger{}

		err := interceptor.ErrorStreamInterceptor(log)(nil, nil, info, func(srv any, stream grpc.ServerStream) error {
			return fmt.Errorf("watch: %w", apperror.ErrUnavailable)
		})

		assert.Equal(t, codes.Unavailable, status.Code(err))
		assert.Empty(t, log.errorCalls)
	})

	t.Run("nil error", func(t *testing.T) {
		err := interceptor.ErrorStreamInterceptor(&mockLogger{})(nil, nil, info, func(srv any, stream grpc.ServerStream) error {
			return nil
		})

		assert.NoError(t, err)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		log := &mockLogger{}

		err := interceptor.ErrorStreamInterceptor(log)(nil, nil, info, func(srv any, stream grpc.ServerStream) error {
			panic("boom")
		})

		assert.Equal(t, codes.Internal, status.Code(err))
		require.Len(t, log.errorCalls, 1)
	})
}
