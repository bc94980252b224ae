package resourcespan

import (
	"context"
	"strconv"
	"strings"

	"github.com/jt828/go-span-tracing/pkg/apperror"
	"github.com/jt828/go-span-tracing/pkg/observability"
)

const (
	SpanNameConnection = "connection"
	SpanNameQuery      = "query"
	SpanNameResultSet  = "result-set"

	TagQuery    = "sql.query"
	TagRowCount = "sql.row-count"

	EventCommit   = "sql.commit"
	EventRollback = "sql.rollback"
)

// Tracker turns resource lifecycle callbacks (connection, statement, result
// set) into nested client spans. CON, STMT and RS are the caller's identity
// keys for each level. All methods are safe for concurrent use and tolerate
// missing, repeated or out of order callbacks.
type Tracker[CON, STMT, RS comparable] struct {
	tracer      observability.Tracer
	cfg         *Config
	metrics     *trackerMetrics
	connections syncMap[CON, *connectionInfo[STMT, RS]]
}

func NewTracker[CON, STMT, RS comparable](tracer observability.Tracer, opts ...Option) *Tracker[CON, STMT, RS] {
	cfg := ApplyOptions(opts...)
	return &Tracker[CON, STMT, RS]{
		tracer:  tracer,
		cfg:     cfg,
		metrics: newTrackerMetrics(cfg.Meter),
	}
}

// BeforeGetConnection registers a connection under key and, when connection
// tracing is enabled, starts its span. The returned context carries the span.
func (t *Tracker[CON, STMT, RS]) BeforeGetConnection(ctx context.Context, key CON, dataSource any, remoteName string) context.Context {
	info := &connectionInfo[STMT, RS]{remoteServiceName: remoteName}

	scoped := ctx
	if t.cfg.TraceTypes[TraceTypeConnection] {
		span := t.tracer.NextSpan(ctx).
			Name(SpanNameConnection).
			Kind(observability.SpanKindClient).
			RemoteServiceName(remoteName)
		for _, c := range t.cfg.Customizers {
			if c.IsApplicable(dataSource) {
				c.CustomizeConnectionSpan(dataSource, span)
			}
		}
		info.span = newHandle(levelConnection, span)
		scoped = t.activate(ctx, info.span)
	}

	if prev, loaded := t.connections.Swap(key, info); loaded {
		t.cfg.Logger.Debug("connection key reused before close, ending previous spans", observability.Any("connection", key))
		t.closeConnection(prev, nil)
	} else {
		t.metrics.connectionOpened()
	}
	return scoped
}

// AfterGetConnection records the remote endpoint of a live connection. A
// non-nil err means the connection could not be obtained: the span is marked
// failed, ended and the entry removed.
func (t *Tracker[CON, STMT, RS]) AfterGetConnection(ctx context.Context, key CON, live ConnectionMetadata, err error) {
	info, ok := t.connections.Load(key)
	if !ok {
		t.cfg.Logger.Debug("no connection registered", observability.Any("connection", key))
		return
	}

	if live != nil {
		t.resolveRemote(info, live)
		if info.span != nil {
			service, host, port := info.remote()
			info.span.span.RemoteServiceName(service)
			if host != "" {
				info.span.span.RemoteIPAndPort(host, port)
			}
		}
	}

	if err != nil {
		if t.connections.CompareAndDelete(key, info) {
			t.metrics.connectionClosed()
			t.closeConnection(info, err)
		}
	}
}

func (t *Tracker[CON, STMT, RS]) resolveRemote(info *connectionInfo[STMT, RS], live ConnectionMetadata) {
	service, _, _ := info.remote()

	raw, err := live.URL()
	if err != nil {
		t.cfg.Logger.Debug("unable to read connection url", observability.Err(err))
		raw = ""
	}

	var ep Endpoint
	if raw != "" {
		parsed, perr := ParseEndpoint(raw)
		if perr != nil {
			t.cfg.Logger.Debug("unable to parse connection url", observability.Err(perr))
		} else {
			ep = parsed
		}
	}

	switch {
	case ep.ServiceName != "":
		service = ep.ServiceName
	default:
		if catalog, cerr := live.Catalog(); cerr == nil && catalog != "" {
			service = catalog
		} else if ep.Database != "" {
			service = ep.Database
		}
	}
	info.setRemote(service, ep.Host, ep.Port)
}

// BeforeQuery registers a statement on a connection and starts its span as a
// child of the connection span.
func (t *Tracker[CON, STMT, RS]) BeforeQuery(ctx context.Context, connKey CON, stmtKey STMT, remoteName string) context.Context {
	info, ok := t.connections.Load(connKey)
	if !ok {
		t.cfg.Logger.Debug("connection closed before statement execution", observability.Any("connection", connKey))
		return ctx
	}

	stmt := &statementInfo[RS]{}
	if t.cfg.TraceTypes[TraceTypeQuery] {
		span := t.remoteSpan(ctx, info, info.span, remoteName).Name(SpanNameQuery)
		stmt.span = newHandle(levelStatement, span)
	}

	if prev, loaded := info.statements.Swap(stmtKey, stmt); loaded {
		t.closeStatement(info, prev)
	}
	if info.closed.Load() {
		if info.statements.CompareAndDelete(stmtKey, stmt) {
			t.closeStatement(info, stmt)
		}
		t.cfg.Logger.Debug("connection closed during statement registration", observability.Any("connection", connKey), observability.Any("statement", stmtKey))
		return ctx
	}
	if stmt.span == nil {
		return ctx
	}
	return t.activate(ctx, stmt.span)
}

func (t *Tracker[CON, STMT, RS]) AddRowCount(connKey CON, stmtKey STMT, count int64) {
	stmt, ok := t.statement(connKey, stmtKey)
	if !ok || stmt.span == nil {
		return
	}
	stmt.span.span.Tag(TagRowCount, strconv.FormatInt(count, 10))
}

// AfterQuery ends the statement span, naming it after the first word of the
// query. The statement stays registered until AfterStatementClose.
func (t *Tracker[CON, STMT, RS]) AfterQuery(connKey CON, stmtKey STMT, query string, err error) {
	stmt, ok := t.statement(connKey, stmtKey)
	if !ok {
		t.cfg.Logger.Debug("no statement registered", observability.Any("connection", connKey), observability.Any("statement", stmtKey))
		return
	}
	if stmt.span == nil {
		return
	}
	stmt.span.span.Tag(TagQuery, query).Name(StatementSpanName(query))
	t.end(stmt.span, err)
}

// BeforeResultSetNext starts a result-set span on the first row fetch. Later
// calls for the same result set are no-ops.
func (t *Tracker[CON, STMT, RS]) BeforeResultSetNext(ctx context.Context, connKey CON, stmtKey STMT, rsKey RS, remoteName string) {
	if !t.cfg.TraceTypes[TraceTypeFetch] {
		return
	}
	info, ok := t.connections.Load(connKey)
	if !ok {
		t.cfg.Logger.Debug("connection closed before result set fetch", observability.Any("connection", connKey))
		return
	}
	if _, exists := info.resultSets.Load(rsKey); exists {
		return
	}

	parent := info.span
	stmt, hasStmt := info.statements.Load(stmtKey)
	if hasStmt && stmt.span != nil {
		parent = stmt.span
	}

	span := t.remoteSpan(ctx, info, parent, remoteName).Name(SpanNameResultSet)
	h := newHandle(levelResultSet, span)
	if _, loaded := info.resultSets.LoadOrStore(rsKey, h); loaded {
		return
	}
	if hasStmt {
		info.owners.Store(rsKey, stmtKey)
		stmt.resultSets.Store(rsKey, h)
	}
	if info.closed.Load() {
		if info.resultSets.CompareAndDelete(rsKey, h) {
			t.end(h, nil)
		}
		t.cfg.Logger.Debug("connection closed during result set registration", observability.Any("connection", connKey), observability.Any("result_set", rsKey))
		return
	}
	t.activate(ctx, h)
}

// AfterResultSetClose ends the result-set span. A negative rowCount means the
// number of rows read is unknown and is not tagged.
func (t *Tracker[CON, STMT, RS]) AfterResultSetClose(connKey CON, rsKey RS, rowCount int64, err error) {
	info, ok := t.connections.Load(connKey)
	if !ok {
		return
	}
	h, ok := info.resultSets.LoadAndDelete(rsKey)
	if !ok {
		t.cfg.Logger.Debug("result set already closed", observability.Any("connection", connKey), observability.Any("result_set", rsKey))
		return
	}
	if stmtKey, owned := info.owners.LoadAndDelete(rsKey); owned {
		if stmt, ok := info.statements.Load(stmtKey); ok {
			stmt.resultSets.CompareAndDelete(rsKey, h)
		}
	}
	if rowCount >= 0 {
		h.span.Tag(TagRowCount, strconv.FormatInt(rowCount, 10))
	}
	t.end(h, err)
}

// AfterStatementClose removes the statement and ends every result set it
// still owns.
func (t *Tracker[CON, STMT, RS]) AfterStatementClose(connKey CON, stmtKey STMT) {
	info, ok := t.connections.Load(connKey)
	if !ok {
		return
	}
	stmt, ok := info.statements.LoadAndDelete(stmtKey)
	if !ok {
		t.cfg.Logger.Debug("statement already closed", observability.Any("connection", connKey), observability.Any("statement", stmtKey))
		return
	}
	t.closeStatement(info, stmt)
}

func (t *Tracker[CON, STMT, RS]) AfterCommit(connKey CON, err error) {
	info, ok := t.connections.Load(connKey)
	if !ok || info.span == nil {
		return
	}
	if err != nil {
		info.span.span.Error(err)
	}
	info.span.span.Event(EventCommit)
}

func (t *Tracker[CON, STMT, RS]) AfterRollback(connKey CON, err error) {
	info, ok := t.connections.Load(connKey)
	if !ok || info.span == nil {
		return
	}
	switch {
	case err != nil:
		info.span.span.Error(err)
	case t.cfg.RollbackAsError:
		info.span.span.Error(apperror.ErrRolledBack)
	}
	info.span.span.Event(EventRollback)
}

// AfterConnectionClose ends all remaining result sets, then statements, then
// the connection span itself.
func (t *Tracker[CON, STMT, RS]) AfterConnectionClose(connKey CON, err error) {
	info, ok := t.connections.LoadAndDelete(connKey)
	if !ok {
		t.cfg.Logger.Debug("connection already closed", observability.Any("connection", connKey))
		return
	}
	t.metrics.connectionClosed()
	t.closeConnection(info, err)
}

func (t *Tracker[CON, STMT, RS]) OpenConnections() int {
	return t.connections.Len()
}

func (t *Tracker[CON, STMT, RS]) statement(connKey CON, stmtKey STMT) (*statementInfo[RS], bool) {
	info, ok := t.connections.Load(connKey)
	if !ok {
		return nil, false
	}
	return info.statements.Load(stmtKey)
}

func (t *Tracker[CON, STMT, RS]) remoteSpan(ctx context.Context, info *connectionInfo[STMT, RS], parent *spanHandle, remoteName string) observability.Span {
	var span observability.Span
	if parent != nil {
		span = t.tracer.ChildSpan(parent.span)
	} else {
		span = t.tracer.NextSpan(ctx)
	}

	service, host, port := info.remote()
	if service == "" {
		service = remoteName
	}
	span.Kind(observability.SpanKindClient).RemoteServiceName(service)
	if host != "" {
		span.RemoteIPAndPort(host, port)
	}
	return span
}

func (t *Tracker[CON, STMT, RS]) activate(ctx context.Context, h *spanHandle) context.Context {
	scoped, ok := h.activate(t.tracer, ctx)
	if ok {
		t.metrics.spanStarted(h.level)
	}
	return scoped
}

func (t *Tracker[CON, STMT, RS]) end(h *spanHandle, err error) {
	if h.end(err) {
		t.metrics.spanEnded(h.level)
	}
}

func (t *Tracker[CON, STMT, RS]) closeStatement(info *connectionInfo[STMT, RS], stmt *statementInfo[RS]) {
	for _, rsKey := range stmt.resultSets.Keys() {
		stmt.resultSets.Delete(rsKey)
		info.owners.Delete(rsKey)
		if h, ok := info.resultSets.LoadAndDelete(rsKey); ok {
			t.end(h, nil)
		}
	}
	if stmt.span != nil {
		t.end(stmt.span, nil)
	}
}

func (t *Tracker[CON, STMT, RS]) closeConnection(info *connectionInfo[STMT, RS], err error) {
	info.closed.Store(true)
	for _, rsKey := range info.resultSets.Keys() {
		if h, ok := info.resultSets.LoadAndDelete(rsKey); ok {
			t.end(h, nil)
		}
	}
	for _, stmtKey := range info.statements.Keys() {
		if stmt, ok := info.statements.LoadAndDelete(stmtKey); ok {
			t.closeStatement(info, stmt)
		}
	}
	if info.span != nil {
		t.end(info.span, err)
	}
}

// StatementSpanName returns the lowercased first word of query, or "query"
// when the query is blank.
func StatementSpanName(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return SpanNameQuery
	}
	return strings.ToLower(fields[0])
}
