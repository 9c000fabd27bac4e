// Package reqenc implements the request writer: encoding an
// OPEN_SESSION_REQUEST or INVOCATION_REQUEST frame body, including the
// version-conditional layout of the invocation request's codec stream.
package reqenc

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/riverproto/channel/internal/codecadapter"
	"github.com/riverproto/channel/internal/riverapi"
	"github.com/riverproto/channel/internal/wireproto"
)

// WriteOpenSessionRequest writes a full OPEN_SESSION_REQUEST frame: opcode,
// id, then four UTF-length-prefixed strings in fixed order. No codec
// stream is started.
func WriteOpenSessionRequest(frame riverapi.OutFrame, id uint16, req riverapi.OpenSessionRequest) error {
	if err := writeHeader(frame, wireproto.OpenSessionRequest, id); err != nil {
		return err
	}
	loc := req.Locator
	for _, s := range []string{loc.AppName, loc.ModuleName, loc.BeanName, loc.DistinctName} {
		if err := codecadapter.WriteUTF(frame, s); err != nil {
			return fmt.Errorf("write open-session locator field: %w", err)
		}
	}
	return nil
}

// WriteInvocationRequest writes a full INVOCATION_REQUEST frame: opcode,
// id, then a codec stream laid out per the negotiated version.
func WriteInvocationRequest(frame riverapi.OutFrame, id uint16, version int, adapter *codecadapter.Adapter, req riverapi.MethodInvocationRequest) error {
	if err := writeHeader(frame, wireproto.InvocationRequest, id); err != nil {
		return err
	}

	enc, err := adapter.StartEncoder(frame)
	if err != nil {
		return fmt.Errorf("start invocation request codec stream: %w", err)
	}

	if version < 3 {
		if err := writeV1Preamble(enc, req); err != nil {
			return err
		}
	} else {
		if err := writeV3Preamble(enc, req); err != nil {
			return err
		}
	}

	for _, param := range req.Parameters {
		if err := enc.WriteObject(param); err != nil {
			return fmt.Errorf("write parameter: %w", err)
		}
	}

	if err := writeAttachments(frame, enc, version, req.Attachments); err != nil {
		return err
	}

	if err := enc.Finish(); err != nil {
		return fmt.Errorf("finish invocation request codec stream: %w", err)
	}
	return nil
}

func writeHeader(frame riverapi.OutFrame, opcode wireproto.Opcode, id uint16) error {
	var hdr [3]byte
	hdr[0] = byte(opcode)
	binary.BigEndian.PutUint16(hdr[1:], id)
	if _, err := frame.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	return nil
}

// writeV1Preamble writes the v<3 INVOCATION_REQUEST preamble: method name,
// method signature, four object writes (appName, moduleName, distinctName,
// beanName in that order), then the locator object.
func writeV1Preamble(enc riverapi.Encoder, req riverapi.MethodInvocationRequest) error {
	// methodName/methodSignature are plain UTF strings written through the
	// codec stream as string objects, per the corpus's own convention of
	// treating short caller-supplied identifiers as ordinary codec values
	// rather than giving them a bespoke wire slot.
	if err := enc.WriteObject(req.MethodName); err != nil {
		return fmt.Errorf("write method name: %w", err)
	}
	if err := enc.WriteObject(req.MethodSignature); err != nil {
		return fmt.Errorf("write method signature: %w", err)
	}

	loc := req.Locator
	for _, v := range []any{loc.AppName, loc.ModuleName, loc.DistinctName, loc.BeanName} {
		if err := enc.WriteObject(v); err != nil {
			return fmt.Errorf("write locator component: %w", err)
		}
	}
	if err := enc.WriteObject(loc); err != nil {
		return fmt.Errorf("write locator object: %w", err)
	}
	return nil
}

// writeV3Preamble writes the v>=3 INVOCATION_REQUEST preamble: a single
// method locator object replacing name+signature, then the target locator.
func writeV3Preamble(enc riverapi.Encoder, req riverapi.MethodInvocationRequest) error {
	if err := enc.WriteObject(req.MethodLocator); err != nil {
		return fmt.Errorf("write method locator: %w", err)
	}
	if err := enc.WriteObject(req.Locator); err != nil {
		return fmt.Errorf("write locator object: %w", err)
	}
	return nil
}

// writeAttachments writes the attachment block: packed-uint count followed
// by that many (string key, object value) pairs from ContextData, then -
// for v<3 only - the backward-compatibility transaction-id duplication
// quirk.
func writeAttachments(frame riverapi.OutFrame, enc riverapi.Encoder, version int, att riverapi.Attachments) error {
	keys := make([]string, 0, len(att.ContextData))
	for k := range att.ContextData {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic wire bytes for identical input

	total := len(keys)

	var txnID any
	hasTxnID := false
	if version < 3 {
		if v, ok := att.Private[wireproto.TransactionIDKey]; ok {
			txnID = v
			hasTxnID = true
			total++ //
		}
	}

	if err := codecadapter.WritePackedUint(frame, uint64(total)); err != nil {
		return fmt.Errorf("write attachment count: %w", err)
	}
	for _, k := range keys {
		if err := enc.WriteObject(k); err != nil {
			return fmt.Errorf("write attachment key %q: %w", k, err)
		}
		if err := enc.WriteObject(att.ContextData[k]); err != nil {
			return fmt.Errorf("write attachment value for %q: %w", k, err)
		}
	}

	if len(att.Private) > 0 {
		if err := enc.WriteObject(string(wireproto.PrivateAttachmentsKey)); err != nil {
			return fmt.Errorf("write private attachments key: %w", err)
		}
		if err := enc.WriteObject(att.Private); err != nil {
			return fmt.Errorf("write private attachments map: %w", err)
		}
	}

	if hasTxnID {
		// Re-emit the same Go value under the second reserved key; a
		// back-reference-aware codec will not re-serialise its payload.
		if err := enc.WriteObject(string(wireproto.TransactionIDDuplicateKey)); err != nil {
			return fmt.Errorf("write transaction-id duplicate key: %w", err)
		}
		if err := enc.WriteObject(txnID); err != nil {
			return fmt.Errorf("write duplicated transaction-id value: %w", err)
		}
	}

	return nil
}
