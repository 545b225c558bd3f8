package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/teemow/crmgate/internal/instrumentation"
	"github.com/teemow/crmgate/internal/logging"
	"github.com/teemow/crmgate/internal/schema"
	"github.com/teemow/crmgate/internal/telemetry"
)

// ProtocolVersion is reported by the initialize handshake.
const ProtocolVersion = "2024-11-05"

// ServerInfo identifies the gateway in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the fixed result of the initialize method.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// Dispatcher turns request envelopes into response envelopes. It never
// retries and never lets a handler failure escape as a panic.
type Dispatcher struct {
	registry *Registry
	recorder *telemetry.Recorder
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	info     ServerInfo

	done     chan struct{}
	doneOnce sync.Once
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics records dispatch error codes on m.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithServerInfo sets the identity returned by initialize.
func WithServerInfo(info ServerInfo) Option {
	return func(d *Dispatcher) { d.info = info }
}

// New creates a Dispatcher over registry, recording telemetry on recorder.
func New(registry *Registry, recorder *telemetry.Recorder, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		recorder: recorder,
		logger:   slog.Default(),
		info:     ServerInfo{Name: "crmgate", Version: "dev"},
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.WithComponent(d.logger, "dispatch")
	return d
}

// Registry returns the dispatcher's registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Recorder returns the dispatcher's telemetry recorder.
func (d *Dispatcher) Recorder() *telemetry.Recorder {
	return d.recorder
}

// Done is closed once a shutdown request has been answered. Transports
// should stop reading after writing that response.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// DispatchBytes parses data as an envelope and dispatches it.
func (d *Dispatcher) DispatchBytes(ctx context.Context, data []byte) *Response {
	req, errResp := ParseRequest(data)
	if errResp != nil {
		d.logger.Debug("rejected malformed envelope", "error", errResp.Error.Message)
		d.metrics.RecordDispatchError(ctx, CodeParseError)
		return errResp
	}
	return d.Dispatch(ctx, req)
}

// Call dispatches method with params as a request with a null id.
func (d *Dispatcher) Call(ctx context.Context, method string, params json.RawMessage) *Response {
	return d.Dispatch(ctx, &Request{JSONRPC: Version, Method: method, Params: params})
}

// Dispatch runs one request through lookup, validation, telemetry and the
// handler, and returns exactly one response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	d.logger.Debug("dispatching request",
		logging.Method(req.Method),
		logging.RequestID(req.IDString()))

	switch req.Method {
	case MethodInitialize:
		return NewResult(req.ID, d.initializeResult())
	case MethodShutdown:
		d.logger.Info("shutdown requested", logging.RequestID(req.IDString()))
		d.doneOnce.Do(func() { close(d.done) })
		return NewResult(req.ID, nil)
	}

	op, err := d.registry.Lookup(req.Method)
	if err != nil {
		return d.fail(ctx, req, CodeMethodNotFound, err.Error())
	}

	params, err := schema.Validate(op.Schema, req.Params)
	if err != nil {
		return d.fail(ctx, req, CodeInvalidParams, err.Error())
	}

	call, err := op.bind(params)
	if err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			return d.fail(ctx, req, CodeInvalidParams, err.Error())
		}
		return d.fail(ctx, req, CodeInternalError, err.Error())
	}

	return d.invoke(ctx, req, op, params, call)
}

func (d *Dispatcher) invoke(ctx context.Context, req *Request, op Operation, params schema.Params, call boundCall) *Response {
	correlationID := d.recorder.StartOperation(op.Name, map[string]any{"params": params})

	ctx, span := instrumentation.StartOperationSpan(ctx, op.Name,
		instrumentation.NewSpanAttributeBuilder().
			WithCorrelationID(correlationID).
			WithKind(op.Kind.String()).
			WithRequestID(req.IDString()).
			WithReadOnly(op.ReadOnly).
			Build()...)
	defer span.End()

	result, err := d.call(ctx, op.Name, call)
	if err != nil {
		d.recorder.FailOperation(correlationID, err, nil)
		instrumentation.SetSpanError(span, err)
		return d.fail(ctx, req, CodeInternalError, err.Error())
	}

	resp := NewResult(req.ID, result)
	if resp.IsError() {
		err := errors.New(resp.Error.Message)
		d.recorder.FailOperation(correlationID, err, nil)
		instrumentation.SetSpanError(span, err)
		d.metrics.RecordDispatchError(ctx, resp.Error.Code)
		return resp
	}

	d.recorder.EndOperation(correlationID, nil)
	instrumentation.SetSpanSuccess(span)
	return resp
}

// call invokes the handler, converting a panic into a *PanicError.
func (d *Dispatcher) call(ctx context.Context, name string, call boundCall) (result any, err error) {
	defer func() {
		if v := recover(); v != nil {
			d.logger.Error("handler panicked",
				logging.Operation(name),
				"panic", formatPanic(v),
				"stack", string(debug.Stack()))
			result, err = nil, &PanicError{Method: name, Value: v}
		}
	}()
	return call(ctx)
}

func (d *Dispatcher) fail(ctx context.Context, req *Request, code int, message string) *Response {
	d.logger.Debug("request failed",
		logging.Method(req.Method),
		logging.RequestID(req.IDString()),
		logging.Code(code),
		"message", message)
	d.metrics.RecordDispatchError(ctx, code)
	return NewError(req.ID, code, message)
}

func (d *Dispatcher) initializeResult() InitializeResult {
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
			"prompts":   map[string]any{},
		},
		ServerInfo: d.info,
	}
}

func formatPanic(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(v)
}
