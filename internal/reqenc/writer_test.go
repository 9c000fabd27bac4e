package reqenc

import (
	"bytes"
	"io"
	"testing"

	"github.com/riverproto/channel/internal/codecadapter"
	"github.com/riverproto/channel/internal/riverapi"
	"github.com/riverproto/channel/internal/wireproto"
)

// bufFrame is a minimal riverapi.OutFrame over a bytes.Buffer.
type bufFrame struct {
	bytes.Buffer
	cancelled bool
}

func (f *bufFrame) Close() error  { return nil }
func (f *bufFrame) Cancel() error { f.cancelled = true; return nil }

// stubFactory is a tiny object codec good enough to see plain values
// round-trip through reqenc's writers: strings go through WriteUTF/ReadUTF,
// everything else is written as an empty string, which is enough to
// exercise ordering.
type stubFactory struct{}

func (stubFactory) Name() string                                     { return "stub" }
func (stubFactory) NewEncoder(riverapi.CodecConfig) riverapi.Encoder { return &stubEnc{} }
func (stubFactory) NewDecoder(riverapi.CodecConfig) riverapi.Decoder { return &stubDec{} }

type stubEnc struct{ w io.Writer }

func (e *stubEnc) Start(w io.Writer) error { e.w = w; return nil }
func (e *stubEnc) WriteObject(v any) error {
	s, _ := v.(string)
	return codecadapter.WriteUTF(e.w, s)
}
func (e *stubEnc) Finish() error { return nil }

type stubDec struct{ r io.Reader }

func (d *stubDec) Start(r io.Reader) error { d.r = r; return nil }
func (d *stubDec) ReadObject() (any, error) { return codecadapter.ReadUTF(d.r) }
func (d *stubDec) Finish() error            { return nil }

func TestWriteOpenSessionRequestLayout(t *testing.T) {
	frame := &bufFrame{}
	req := riverapi.OpenSessionRequest{Locator: riverapi.Locator{
		AppName: "app", ModuleName: "mod", BeanName: "bean", DistinctName: "",
	}}
	if err := WriteOpenSessionRequest(frame, 0xabcd, req); err != nil {
		t.Fatal(err)
	}

	r := bytes.NewReader(frame.Bytes())
	var hdr [3]byte
	io.ReadFull(r, hdr[:])
	if wireproto.Opcode(hdr[0]) != wireproto.OpenSessionRequest {
		t.Errorf("opcode = %#x", hdr[0])
	}
	if id := uint16(hdr[1])<<8 | uint16(hdr[2]); id != 0xabcd {
		t.Errorf("id = %#x, want 0xabcd", id)
	}
	for _, want := range []string{"app", "mod", "bean", ""} {
		got, err := codecadapter.ReadUTF(r)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("locator field = %q, want %q", got, want)
		}
	}
}

func TestWriteInvocationRequestV3Layout(t *testing.T) {
	frame := &bufFrame{}
	adapter, err := codecadapter.NewAdapter(stubFactory{}, 3)
	if err != nil {
		t.Fatal(err)
	}

	req := riverapi.MethodInvocationRequest{
		MethodLocator: "doStuff",
		Locator:       riverapi.Locator{ModuleName: "mod", BeanName: "bean"},
		Parameters:    []any{"p1", "p2"},
		Attachments: riverapi.Attachments{
			ContextData: map[string]any{"b-key": "b-val", "a-key": "a-val"},
		},
	}
	if err := WriteInvocationRequest(frame, 7, 3, adapter, req); err != nil {
		t.Fatal(err)
	}

	r := bytes.NewReader(frame.Bytes())
	var hdr [3]byte
	io.ReadFull(r, hdr[:])
	if wireproto.Opcode(hdr[0]) != wireproto.InvocationRequest {
		t.Errorf("opcode = %#x", hdr[0])
	}

	dec, err := adapter.StartDecoder(r)
	if err != nil {
		t.Fatal(err)
	}
	methodLocator, _ := dec.ReadObject()
	if methodLocator != "doStuff" {
		t.Errorf("methodLocator = %v", methodLocator)
	}
	locator, _ := dec.ReadObject() // locator: stubDec reads it as a UTF string, empty on type mismatch
	_ = locator
	p1, _ := dec.ReadObject()
	p2, _ := dec.ReadObject()
	if p1 != "p1" || p2 != "p2" {
		t.Errorf("parameters = %v, %v", p1, p2)
	}

	count, err := codecadapter.ReadPackedUint(r)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("attachment count = %d, want 2", count)
	}
	// Keys are written in sorted order for deterministic wire bytes.
	k1, _ := dec.ReadObject()
	v1, _ := dec.ReadObject()
	k2, _ := dec.ReadObject()
	v2, _ := dec.ReadObject()
	if k1 != "a-key" || v1 != "a-val" || k2 != "b-key" || v2 != "b-val" {
		t.Errorf("attachments out of order: %v=%v, %v=%v", k1, v1, k2, v2)
	}
}

func TestWriteInvocationRequestV1TransactionIDDuplication(t *testing.T) {
	frame := &bufFrame{}
	adapter, err := codecadapter.NewAdapter(stubFactory{}, 1)
	if err != nil {
		t.Fatal(err)
	}

	req := riverapi.MethodInvocationRequest{
		MethodName:      "doStuff",
		MethodSignature: "java.lang.String",
		Locator:         riverapi.Locator{ModuleName: "mod", BeanName: "bean"},
		Attachments: riverapi.Attachments{
			Private: map[string]any{string(wireproto.TransactionIDKey): "txn-42"},
		},
	}
	if err := WriteInvocationRequest(frame, 1, 1, adapter, req); err != nil {
		t.Fatal(err)
	}

	r := bytes.NewReader(frame.Bytes())
	var hdr [3]byte
	io.ReadFull(r, hdr[:])

	dec, err := adapter.StartDecoder(r)
	if err != nil {
		t.Fatal(err)
	}
	dec.ReadObject() // methodName
	dec.ReadObject() // methodSignature
	for i := 0; i < 4; i++ {
		dec.ReadObject() // appName, moduleName, distinctName, beanName
	}
	dec.ReadObject() // locator object

	count, err := codecadapter.ReadPackedUint(r)
	if err != nil {
		t.Fatal(err)
	}
	// totalAttachments counts only contextData pairs (zero here) plus one
	// for the transaction-id duplicate; the private-attachments entry
	// itself is written because the private map is non-empty, and is not
	// separately counted.
	if count != 1 {
		t.Fatalf("totalAttachments = %d, want 1", count)
	}

	privKey, _ := dec.ReadObject()
	if privKey != string(wireproto.PrivateAttachmentsKey) {
		t.Errorf("private attachments key = %v", privKey)
	}
	dec.ReadObject() // private map value (stubEnc wrote the non-string map as "")

	dupKey, _ := dec.ReadObject()
	if dupKey != string(wireproto.TransactionIDDuplicateKey) {
		t.Errorf("duplicate key = %v", dupKey)
	}
	dupVal, _ := dec.ReadObject()
	if dupVal != "txn-42" {
		t.Errorf("duplicated transaction id = %v, want txn-42", dupVal)
	}
}

func TestWriteInvocationRequestPropagatesEncodeFailure(t *testing.T) {
	frame := &bufFrame{}
	adapter, err := codecadapter.NewAdapter(stubFactory{}, 3)
	if err != nil {
		t.Fatal(err)
	}
	// A parameter longer than a u16 length prefix makes stubEnc's
	// WriteUTF fail partway through the codec stream. The writer itself
	// only needs to surface the error; the caller (ClientChannel) is
	// responsible for cancelling the outbound frame.
	huge := make([]byte, 1<<16)
	req := riverapi.MethodInvocationRequest{
		MethodLocator: "m",
		Locator:       riverapi.Locator{ModuleName: "mod", BeanName: "bean"},
		Parameters:    []any{string(huge)},
	}
	if err := WriteInvocationRequest(frame, 1, 3, adapter, req); err == nil {
		t.Fatal("expected an error from an oversize parameter")
	}
}
