package controller

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jt828/go-span-tracing/internal/service"
	"github.com/jt828/go-span-tracing/pkg/model"
	"github.com/jt828/go-span-tracing/pkg/reactive"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type ProbeController struct {
	probeService service.ProbeService
}

func NewProbeController(probeService service.ProbeService) *ProbeController {
	return &ProbeController{probeService: probeService}
}

func (ctrl *ProbeController) Check(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(ctrl.probeService.ProbeOnce(ctx, 0))
}

func (ctrl *ProbeController) Recent(ctx context.Context, request *wrapperspb.Int32Value) (*structpb.ListValue, error) {
	results, err := ctrl.probeService.Recent(ctx, int(request.GetValue()))
	if err != nil {
		return nil, err
	}

	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(results))}
	for _, r := range results {
		s, err := toStruct(r)
		if err != nil {
			return nil, err
		}
		list.Values = append(list.Values, structpb.NewStructValue(s))
	}
	return list, nil
}

// Watch streams probe results until the client goes away or a send fails.
func (ctrl *ProbeController) Watch(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ctx := stream.Context()

	var once sync.Once
	done := make(chan error, 1)
	finish := func(err error) {
		once.Do(func() { done <- err })
	}

	sub := reactive.SubscribeFunc(ctx, ctrl.probeService.Watch(ctx),
		func(_ context.Context, r model.ProbeResult) {
			msg, err := toStruct(r)
			if err == nil {
				err = stream.SendMsg(msg)
			}
			if err != nil {
				finish(err)
			}
		},
		func(_ context.Context, err error) { finish(err) },
		func(context.Context) { finish(nil) },
	)

	select {
	case err := <-done:
		sub.Cancel(context.WithoutCancel(ctx))
		return err
	case <-ctx.Done():
		sub.Cancel(context.WithoutCancel(ctx))
		return nil
	}
}

func toStruct(r model.ProbeResult) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":         strconv.FormatInt(r.Id, 10),
		"sequence":   r.Sequence,
		"healthy":    r.Healthy,
		"latency_ms": float64(r.Latency.Microseconds()) / 1000,
		"error":      r.Error,
		"checked_at": r.CheckedAt.Format(time.RFC3339Nano),
	})
}
