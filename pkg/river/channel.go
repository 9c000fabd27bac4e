package river

import (
	"context"
	"sync"
	"time"

	"github.com/riverproto/channel/internal/codecadapter"
	"github.com/riverproto/channel/internal/dispatcher"
	"github.com/riverproto/channel/internal/handshakefsm"
	"github.com/riverproto/channel/internal/invreg"
	"github.com/riverproto/channel/internal/reqenc"
	"github.com/riverproto/channel/internal/riverapi"
	"github.com/riverproto/channel/internal/riverlog"
	"github.com/riverproto/channel/internal/rivertrace"
	"github.com/riverproto/channel/internal/writecredit"
)

// ClientChannel is the negotiated, ready-to-use EJB client channel: one
// handshake result, one invocation registry, one write credit counter,
// and a permanently installed response dispatcher.
type ClientChannel struct {
	transport riverapi.Transport
	channel   riverapi.Channel
	version   int
	adapter   *codecadapter.Adapter

	registry *invreg.Registry
	credit   *writecredit.Counter
	metrics  *Metrics

	// affinityMu guards weakAffinity, the client-context value most
	// recently observed on a response attachment.
	affinityMu   sync.Mutex
	weakAffinity any
}

// From negotiates a new ClientChannel over transport using factory for the
// codec stream and cfg for tunables. It blocks until the
// handshake completes or fails. Each call uses its own handshake
// Negotiator: separate From calls on the same transport are not collapsed
// into one negotiation, and each successful call returns a distinct
// ClientChannel.
func From(ctx context.Context, transport riverapi.Transport, factory riverapi.CodecFactory, cfg Config, metrics *Metrics) (*ClientChannel, error) {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultConfig().HandshakeTimeout
	}

	negotiator := handshakefsm.New(cfg.HandshakeTimeout)
	result, err := negotiator.Negotiate(ctx, transport)
	if err != nil {
		metrics.ObserveHandshake(false)
		return nil, errHandshakeFailed(err)
	}
	metrics.ObserveHandshake(true)

	adapter, err := codecadapter.NewAdapter(factory, result.Version)
	if err != nil {
		return nil, errProtocolError("build codec adapter for negotiated version", err)
	}

	cc := &ClientChannel{
		transport: transport,
		channel:   result.Channel,
		version:   result.Version,
		adapter:   adapter,
		registry:  invreg.New(),
		credit:    writecredit.New(cfg.InitialWriteCredit),
		metrics:   metrics,
	}

	disp := dispatcher.New(cc.registry, cc.metrics)
	cc.channel.ReceiveMessage(disp.Handle)
	cc.channel.AddCloseHandler(func(closeErr error) {
		riverlog.L().Info("channel closed", riverlog.KeyVersion, cc.version, "error", closeErr)
		cc.registry.Close()
	})

	return cc, nil
}

// Version returns the negotiated protocol version.
func (cc *ClientChannel) Version() int { return cc.version }

// OpenSession opens a stateful session against a stateless locator.
func (cc *ClientChannel) OpenSession(ctx context.Context, req OpenSessionRequest) (result StatefulLocator, err error) {
	ctx, span := rivertrace.Tracer().Start(ctx, "river.open_session")
	defer func() {
		span.SetAttributes(rivertrace.Outcome(spanOutcome(err)))
		span.End()
	}()

	if cc.registry.Closed() {
		err = errChannelClosed("channel is closed")
		return StatefulLocator{}, err
	}

	rec := newOpenSessionRecord(req.Locator, cc.version, cc.adapter)
	id, allocErr := cc.registry.Allocate(rec)
	if allocErr != nil {
		err = errChannelClosed("allocate invocation id: " + allocErr.Error())
		return StatefulLocator{}, err
	}
	span.SetAttributes(rivertrace.InvocationID(id))
	defer cc.registry.Remove(id)

	creditStart := time.Now()
	acquireErr := cc.credit.Acquire(ctx)
	cc.metrics.ObserveCreditWait(time.Since(creditStart))
	if acquireErr != nil {
		err = errInterrupted(acquireErr)
		return StatefulLocator{}, err
	}

	frame, writeErr := cc.channel.WriteMessage(ctx)
	if writeErr != nil {
		cc.credit.Release()
		err = errChannelClosed("open write frame: " + writeErr.Error())
		return StatefulLocator{}, err
	}
	if encErr := reqenc.WriteOpenSessionRequest(frame, id, req); encErr != nil {
		_ = frame.Cancel()
		cc.credit.Release()
		err = errProtocolError("encode open-session request", encErr)
		return StatefulLocator{}, err
	}
	closeErr := frame.Close()
	cc.credit.Release()
	if closeErr != nil {
		err = errChannelClosed("flush open-session request: " + closeErr.Error())
		return StatefulLocator{}, err
	}

	result, err = rec.GetResult(ctx)
	return result, err
}

// ProcessInvocation sends a method invocation request and blocks for its
// result.
func (cc *ClientChannel) ProcessInvocation(ctx context.Context, req MethodInvocationRequest) (value any, err error) {
	ctx, span := rivertrace.Tracer().Start(ctx, "river.process_invocation")
	span.SetAttributes(rivertrace.Method(methodLabel(req)))
	defer func() {
		span.SetAttributes(rivertrace.Outcome(spanOutcome(err)))
		span.End()
	}()

	if cc.registry.Closed() {
		err = errChannelClosed("channel is closed")
		return nil, err
	}

	rec := newInvocationRecord(cc.version, cc.adapter)
	id, allocErr := cc.registry.Allocate(rec)
	if allocErr != nil {
		err = errChannelClosed("allocate invocation id: " + allocErr.Error())
		return nil, err
	}
	span.SetAttributes(rivertrace.InvocationID(id))
	defer cc.registry.Remove(id)

	creditStart := time.Now()
	acquireErr := cc.credit.Acquire(ctx)
	cc.metrics.ObserveCreditWait(time.Since(creditStart))
	if acquireErr != nil {
		err = errInterrupted(acquireErr)
		return nil, err
	}

	frame, writeErr := cc.channel.WriteMessage(ctx)
	if writeErr != nil {
		cc.credit.Release()
		err = errChannelClosed("open write frame: " + writeErr.Error())
		return nil, err
	}
	if encErr := reqenc.WriteInvocationRequest(frame, id, cc.version, cc.adapter, req); encErr != nil {
		_ = frame.Cancel()
		cc.credit.Release()
		err = errProtocolError("encode invocation request", encErr)
		return nil, err
	}
	closeErr := frame.Close()
	cc.credit.Release()
	if closeErr != nil {
		err = errChannelClosed("flush invocation request: " + closeErr.Error())
		return nil, err
	}

	cc.metrics.InvocationStarted()
	defer cc.metrics.InvocationFinished()

	value, err = rec.GetResult(ctx)
	if err != nil {
		riverlog.L().Debug("invocation failed", riverlog.KeyMethod, req.MethodName, "error", err)
	} else if rec.hasWeakAffinity {
		cc.affinityMu.Lock()
		cc.weakAffinity = rec.weakAffinity
		cc.affinityMu.Unlock()
	}
	return value, err
}

// methodLabel picks whichever of MethodLocator/MethodName identifies the
// call for tracing; v>=3 requests carry an opaque MethodLocator object
// instead of a plain name.
func methodLabel(req MethodInvocationRequest) string {
	if name, ok := req.MethodLocator.(string); ok && name != "" {
		return name
	}
	if req.MethodName != "" {
		return req.MethodName
	}
	return "unknown"
}

// spanOutcome classifies a call's terminal error into the small outcome
// set process_invocation/open_session spans report.
func spanOutcome(err error) string {
	if err == nil {
		return rivertrace.OutcomeOK
	}
	rerr, ok := err.(*Error)
	if !ok {
		return rivertrace.OutcomeProtocolError
	}
	switch rerr.Code {
	case ErrApplicationException:
		return rivertrace.OutcomeApplicationException
	case ErrChannelClosed:
		return rivertrace.OutcomeClosed
	default:
		return rivertrace.OutcomeProtocolError
	}
}

// WeakAffinity returns the routing hint most recently observed on a
// response attachment, or nil if the server has never sent one.
func (cc *ClientChannel) WeakAffinity() any {
	cc.affinityMu.Lock()
	defer cc.affinityMu.Unlock()
	return cc.weakAffinity
}

// Close releases the underlying channel and fails every pending invocation.
func (cc *ClientChannel) Close() {
	cc.channel.CloseAsync()
	cc.registry.Close()
}
