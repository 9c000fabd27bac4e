// Package testtransport is an in-memory Transport/Channel implementation for
// tests, connecting two endpoints with Go channels instead of a socket, in
// the spirit of this corpus's net.Pipe-backed connection test doubles
// (e.g. pkg/adapter/smb/connection_test.go) but framed at the message level
// since riverapi.Channel already deals in whole frames rather than bytes.
package testtransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/riverproto/channel/internal/riverapi"
)

// NewPipePair returns two connected transports. Frames written on one side's
// channel are delivered to the matching channel name on the other side.
func NewPipePair() (client, server *PipeTransport) {
	client = &PipeTransport{key: "pipe-client"}
	server = &PipeTransport{key: "pipe-server"}
	client.peer = server
	server.peer = client
	return client, server
}

// PipeTransport is one endpoint of an in-memory pipe.
type PipeTransport struct {
	key  string
	peer *PipeTransport

	mu       sync.Mutex
	channels map[string]*pipeChannel
}

func (t *PipeTransport) ConnectionKey() string { return t.key }

// OpenChannel returns the named channel, creating it (and its peer
// counterpart) on first use.
func (t *PipeTransport) OpenChannel(_ context.Context, name string) (riverapi.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.channels == nil {
		t.channels = make(map[string]*pipeChannel)
	}
	if ch, ok := t.channels[name]; ok {
		return ch, nil
	}
	ch := &pipeChannel{name: name, owner: t}
	t.channels[name] = ch
	return ch, nil
}

func (t *PipeTransport) peerChannel(name string) *pipeChannel {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.channels == nil {
		t.channels = make(map[string]*pipeChannel)
	}
	ch, ok := t.channels[name]
	if !ok {
		ch = &pipeChannel{name: name, owner: t}
		t.channels[name] = ch
	}
	return ch
}

type pipeChannel struct {
	name  string
	owner *PipeTransport

	mu           sync.Mutex
	recv         func(riverapi.MessageInputStream)
	pending      [][]byte
	closeHandler []func(error)
	closed       bool
}

// ReceiveMessage installs recv and flushes any frame that arrived before a
// receiver was registered, preserving arrival order. Real transports never
// need this (a receiver is registered before the peer could possibly reply)
// but test setup code frequently wires both ends before either is "running".
func (c *pipeChannel) ReceiveMessage(recv func(riverapi.MessageInputStream)) {
	c.mu.Lock()
	c.recv = recv
	queued := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, payload := range queued {
		recv(&pipeInputStream{r: bytes.NewReader(payload)})
	}
}

func (c *pipeChannel) AddCloseHandler(cb func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeHandler = append(c.closeHandler, cb)
}

func (c *pipeChannel) CloseAsync() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	handlers := c.closeHandler
	c.mu.Unlock()
	for _, h := range handlers {
		go h(nil)
	}
}

// WriteMessage returns a buffering OutFrame. Close delivers the accumulated
// bytes to the peer transport's same-named channel as a single inbound
// message, invoking its active receiver synchronously and in arrival order
// so tests can reason about handshake and request/response ordering without
// extra synchronization.
func (c *pipeChannel) WriteMessage(_ context.Context) (riverapi.OutFrame, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("testtransport: channel %q closed", c.name)
	}
	return &pipeOutFrame{channel: c}, nil
}

func (c *pipeChannel) deliver(payload []byte) {
	peerCh := c.owner.peer.peerChannel(c.name)
	peerCh.mu.Lock()
	recv := peerCh.recv
	if recv == nil {
		peerCh.pending = append(peerCh.pending, payload)
		peerCh.mu.Unlock()
		return
	}
	peerCh.mu.Unlock()
	recv(&pipeInputStream{r: bytes.NewReader(payload)})
}

type pipeOutFrame struct {
	channel   *pipeChannel
	buf       bytes.Buffer
	cancelled bool
}

func (f *pipeOutFrame) Write(p []byte) (int, error) {
	if f.cancelled {
		return 0, fmt.Errorf("testtransport: write to cancelled frame")
	}
	return f.buf.Write(p)
}

func (f *pipeOutFrame) Close() error {
	if f.cancelled {
		return nil
	}
	payload := make([]byte, f.buf.Len())
	copy(payload, f.buf.Bytes())
	f.channel.deliver(payload)
	return nil
}

func (f *pipeOutFrame) Cancel() error {
	f.cancelled = true
	f.buf.Reset()
	return nil
}

type pipeInputStream struct {
	r *bytes.Reader
}

func (s *pipeInputStream) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *pipeInputStream) Close() error               { return nil }

var _ io.Reader = (*pipeInputStream)(nil)
