//go:build js && wasm

package sab

import (
	"encoding/binary"
	"fmt"
	"syscall/js"
)

// Message types for the binary protocol
const (
	MsgTypeNone    uint32 = 0
	MsgTypePayload uint32 = 1 // JSON widget payload
	MsgTypeRender  uint32 = 2 // EncodeRender frame
	MsgTypeAck     uint32 = 0xFF
)

// Header offsets (first 16 bytes are header)
const (
	OffsetReady     = 0  // int32: 0 = idle, 1 = data ready
	OffsetLength    = 4  // uint32: payload length
	OffsetMsgType   = 8  // uint32: message type
	OffsetSeq       = 12 // uint32: message sequence number
	OffsetPayload   = 16 // payload starts here
	DefaultBufferSz = 65536
)

// SharedBuffer provides zero-copy access to a JS SharedArrayBuffer
type SharedBuffer struct {
	uint8View js.Value // Uint8Array view for byte access
	int32View js.Value // Int32Array view for Atomics
	length    int
	seq       uint32
}

// New wraps a JavaScript SharedArrayBuffer. It returns nil for undefined,
// null or undersized buffers.
func New(sabValue js.Value) *SharedBuffer {
	if sabValue.IsUndefined() || sabValue.IsNull() {
		return nil
	}
	byteLength := sabValue.Get("byteLength").Int()
	if byteLength <= OffsetPayload {
		return nil
	}
	return &SharedBuffer{
		uint8View: js.Global().Get("Uint8Array").New(sabValue),
		int32View: js.Global().Get("Int32Array").New(sabValue),
		length:    byteLength,
	}
}

// Length returns the buffer size
func (s *SharedBuffer) Length() int {
	return s.length
}

// Capacity returns the largest payload a single message can carry.
func (s *SharedBuffer) Capacity() int {
	return s.length - OffsetPayload
}

func (s *SharedBuffer) writeBytes(offset int, data []byte) {
	subarray := s.uint8View.Call("subarray", offset, offset+len(data))
	js.CopyBytesToJS(subarray, data)
}

// Busy reports whether the previous message has not been acknowledged.
func (s *SharedBuffer) Busy() bool {
	return js.Global().Get("Atomics").Call("load", s.int32View, 0).Int() != 0
}

// WriteMessage writes header and payload, then signals JS. A payload that
// does not fit is rejected rather than truncated.
func (s *SharedBuffer) WriteMessage(msgType uint32, payload []byte) error {
	if len(payload) > s.Capacity() {
		return fmt.Errorf("sab: %d byte message exceeds %d byte buffer", len(payload), s.Capacity())
	}
	s.seq++

	header := make([]byte, OffsetPayload)
	binary.LittleEndian.PutUint32(header[OffsetLength:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[OffsetMsgType:], msgType)
	binary.LittleEndian.PutUint32(header[OffsetSeq:], s.seq)
	// Ready stays 0 until the payload is in place.
	s.writeBytes(0, header)
	s.writeBytes(OffsetPayload, payload)

	atomics := js.Global().Get("Atomics")
	atomics.Call("store", s.int32View, 0, 1)
	atomics.Call("notify", s.int32View, 0, 1)
	return nil
}
