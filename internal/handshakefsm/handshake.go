// Package handshakefsm implements the one-shot version-negotiation
// handshake: Opening -> AwaitingGreeting -> Negotiated |
// Failed, memoized per transport connection.
package handshakefsm

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/riverproto/channel/internal/riverapi"
	"github.com/riverproto/channel/internal/riverlog"
	"github.com/riverproto/channel/internal/rivertrace"
	"github.com/riverproto/channel/internal/wireproto"
)

// DefaultTimeout is the handshake budget applied when no caller-supplied
// timeout is configured.
const DefaultTimeout = 5 * time.Second

// Result is the outcome of a successful handshake.
type Result struct {
	Channel riverapi.Channel
	Version int
}

// Negotiator runs the handshake protocol and memoizes its result per
// connection key, so concurrent callers for the same connection observe the
// identical eventual outcome. A successful result is kept and returned to
// every later caller for that key; a failed handshake is not kept.
type Negotiator struct {
	group   singleflight.Group
	timeout time.Duration

	mu      sync.Mutex
	results map[string]Result
}

// New returns a Negotiator with the given timeout (0 selects DefaultTimeout).
func New(timeout time.Duration) *Negotiator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Negotiator{timeout: timeout, results: make(map[string]Result)}
}

// Negotiate returns the memoized handshake result for transport, keyed by
// transport.ConnectionKey(), or performs (or waits on an in-flight)
// handshake if there is none yet. The handshake runs under the ctx of the
// caller that starts it, bounded by the Negotiator's timeout; a caller that
// joins an in-flight handshake waits for its outcome and its own ctx is not
// consulted.
func (n *Negotiator) Negotiate(ctx context.Context, transport riverapi.Transport) (Result, error) {
	key := transport.ConnectionKey()

	v, err, _ := n.group.Do(key, func() (any, error) {
		n.mu.Lock()
		cached, ok := n.results[key]
		n.mu.Unlock()
		if ok {
			return cached, nil
		}
		r, err := n.negotiateOnce(ctx, transport)
		if err != nil {
			return nil, err
		}
		n.mu.Lock()
		n.results[key] = r
		n.mu.Unlock()
		return r, nil
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (n *Negotiator) negotiateOnce(ctx context.Context, transport riverapi.Transport) (result Result, err error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	ctx, span := rivertrace.Tracer().Start(ctx, "river.handshake")
	defer func() {
		outcome := rivertrace.OutcomeOK
		if err != nil {
			outcome = rivertrace.OutcomeProtocolError
		}
		span.SetAttributes(rivertrace.Outcome(outcome))
		span.End()
	}()

	ch, err := transport.OpenChannel(ctx, wireproto.ChannelName)
	if err != nil {
		err = fmt.Errorf("open %q channel: %w", wireproto.ChannelName, err)
		return Result{}, err
	}

	serverVersion, err := readGreeting(ctx, ch)
	if err != nil {
		err = fmt.Errorf("read handshake greeting: %w", err)
		return Result{}, err
	}

	version := int(serverVersion)
	if version > wireproto.MaxSupportedVersion {
		version = wireproto.MaxSupportedVersion
	}

	if sendErr := sendChosenVersion(ctx, ch, version); sendErr != nil {
		err = fmt.Errorf("send chosen version: %w", sendErr)
		return Result{}, err
	}

	riverlog.L().Info("handshake negotiated",
		riverlog.KeyChannel, key(transport),
		riverlog.KeyVersion, version,
	)
	result = Result{Channel: ch, Version: version}
	return result, nil
}

func key(t riverapi.Transport) string { return t.ConnectionKey() }

// readGreeting reads exactly one inbound greeting message, returning its
// first byte (the server's max supported version) and draining the rest of
// the message.
func readGreeting(ctx context.Context, ch riverapi.Channel) (byte, error) {
	type result struct {
		sv  byte
		err error
	}
	resultCh := make(chan result, 1)

	registered := false
	ch.ReceiveMessage(func(stream riverapi.MessageInputStream) {
		if registered {
			return
		}
		registered = true
		defer stream.Close()

		var b [1]byte
		if _, err := io.ReadFull(stream, b[:]); err != nil {
			resultCh <- result{err: fmt.Errorf("read server version byte: %w", err)}
			return
		}
		if _, err := io.Copy(io.Discard, stream); err != nil {
			resultCh <- result{err: fmt.Errorf("drain greeting padding: %w", err)}
			return
		}
		resultCh <- result{sv: b[0]}
	})

	select {
	case r := <-resultCh:
		return r.sv, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// sendChosenVersion writes the client's handshake reply: one byte chosen
// version, followed by the fixed 6-byte codec tag.
func sendChosenVersion(ctx context.Context, ch riverapi.Channel, version int) error {
	frame, err := ch.WriteMessage(ctx)
	if err != nil {
		return fmt.Errorf("reserve handshake reply frame: %w", err)
	}

	if _, err := frame.Write([]byte{byte(version)}); err != nil {
		_ = frame.Cancel()
		return fmt.Errorf("write chosen version: %w", err)
	}
	if _, err := frame.Write(wireproto.CodecTag); err != nil {
		_ = frame.Cancel()
		return fmt.Errorf("write codec tag: %w", err)
	}
	if err := frame.Close(); err != nil {
		return fmt.Errorf("send handshake reply: %w", err)
	}
	return nil
}
