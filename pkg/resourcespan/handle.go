package resourcespan

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jt828/go-span-tracing/pkg/observability"
)

const (
	levelConnection = "connection"
	levelStatement  = "statement"
	levelResultSet  = "result_set"
)

// spanHandle pairs a span with the scope that made it current. A handle is
// ended at most once no matter how many close paths reach it.
type spanHandle struct {
	level string

	mu      sync.Mutex
	span    observability.Span
	scope   observability.Scope
	ctx     context.Context
	started bool
	ended   bool
}

func newHandle(level string, span observability.Span) *spanHandle {
	return &spanHandle{level: level, span: span}
}

func (h *spanHandle) activate(tracer observability.Tracer, ctx context.Context) (context.Context, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended || h.started {
		return ctx, false
	}
	h.span.Start()
	h.ctx, h.scope = tracer.WithSpan(ctx, h.span)
	h.started = true
	return h.ctx, true
}

func (h *spanHandle) context(fallback context.Context) context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx == nil {
		return fallback
	}
	return h.ctx
}

func (h *spanHandle) end(err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended {
		return false
	}
	h.ended = true
	if !h.started {
		return false
	}
	if err != nil {
		h.span.Error(err)
	}
	h.scope.Close()
	h.span.End()
	return true
}

type statementInfo[RS comparable] struct {
	span       *spanHandle
	resultSets syncMap[RS, *spanHandle]
}

type connectionInfo[STMT, RS comparable] struct {
	span       *spanHandle
	statements syncMap[STMT, *statementInfo[RS]]
	resultSets syncMap[RS, *spanHandle]
	// owners maps a result set to the statement that produced it.
	owners syncMap[RS, STMT]
	// closed is set before the close cascade walks the maps. Registrations
	// that observe it after storing undo themselves.
	closed atomic.Bool

	mu                sync.RWMutex
	host              string
	port              int
	remoteServiceName string
}

func (c *connectionInfo[STMT, RS]) remote() (service, host string, port int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.remoteServiceName, c.host, c.port
}

func (c *connectionInfo[STMT, RS]) setRemote(service, host string, port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remoteServiceName, c.host, c.port = service, host, port
}
