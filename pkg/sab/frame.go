// Package sab carries render frames from the Go widget to a JS render sink
// through a SharedArrayBuffer.
package sab

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/kittclouds/labelgraph/pkg/widget"
)

// ErrShortFrame is returned when a render frame ends early.
var ErrShortFrame = errors.New("sab: short render frame")

const (
	flagSelected uint32 = 1 << 0
)

// EncodeRender encodes a render model into the binary frame layout.
//
//	[count:4]
//	per shape: [left:8][right:8][flags:4][keyLen:2][key][fillLen:2][fill]
//	[hasDraft:1] then, if set: [left:8][right:8][fillLen:2][fill]
//
// Integers are little endian and floats are IEEE 754 bits.
func EncodeRender(m widget.RenderModel) []byte {
	size := 4 + 1
	for _, sh := range m.Shapes {
		size += 8 + 8 + 4 + 2 + len(sh.Key) + 2 + len(sh.Fill)
	}
	if m.Draft != nil {
		size += 8 + 8 + 2 + len(m.Draft.Fill)
	}

	data := make([]byte, 0, size)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(m.Shapes)))
	for _, sh := range m.Shapes {
		data = appendFloat(data, sh.Left)
		data = appendFloat(data, sh.Right)
		var flags uint32
		if sh.Selected {
			flags |= flagSelected
		}
		data = binary.LittleEndian.AppendUint32(data, flags)
		data = appendString(data, sh.Key)
		data = appendString(data, sh.Fill)
	}
	if m.Draft == nil {
		return append(data, 0)
	}
	data = append(data, 1)
	data = appendFloat(data, m.Draft.Left)
	data = appendFloat(data, m.Draft.Right)
	return appendString(data, m.Draft.Fill)
}

// DecodeRender is the inverse of EncodeRender.
func DecodeRender(data []byte) (widget.RenderModel, error) {
	r := reader{data: data}
	count := r.readUint32()
	if r.err != nil {
		return widget.RenderModel{}, r.err
	}
	// Each shape takes at least 24 bytes.
	if uint64(count)*24 > uint64(len(data)) {
		return widget.RenderModel{}, fmt.Errorf("%w: %d shapes in %d bytes", ErrShortFrame, count, len(data))
	}

	m := widget.RenderModel{Shapes: make([]widget.Shape, 0, count)}
	for i := uint32(0); i < count; i++ {
		sh := widget.Shape{
			Left:  r.readFloat(),
			Right: r.readFloat(),
		}
		sh.Selected = r.readUint32()&flagSelected != 0
		sh.Key = r.readString()
		sh.Fill = r.readString()
		m.Shapes = append(m.Shapes, sh)
	}
	if r.readByte() == 1 {
		m.Draft = &widget.Draft{
			Left:  r.readFloat(),
			Right: r.readFloat(),
			Fill:  r.readString(),
		}
	}
	if r.err != nil {
		return widget.RenderModel{}, r.err
	}
	return m, nil
}

func appendFloat(b []byte, f float64) []byte {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(f))
}

func appendString(b []byte, s string) []byte {
	if len(s) > math.MaxUint16 {
		s = s[:math.MaxUint16]
	}
	b = binary.LittleEndian.AppendUint16(b, uint16(len(s)))
	return append(b, s...)
}

// reader consumes a frame and records the first short read.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d", ErrShortFrame, n, r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) readByte() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) readUint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) readFloat() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func (r *reader) readString() string {
	b := r.take(2)
	if b == nil {
		return ""
	}
	return string(r.take(int(binary.LittleEndian.Uint16(b))))
}
