// Package widget is the command layer of the annotation widget. A Controller
// owns one label store and selection, applies commands coming from the
// presentation layer or the host, and pushes the resulting state outward
// after every change.
package widget

import (
	"errors"

	"github.com/kittclouds/labelgraph/pkg/category"
	"github.com/kittclouds/labelgraph/pkg/label"
)

var (
	// ErrClosed is returned by commands issued after Close.
	ErrClosed = errors.New("widget: controller closed")
	// ErrNotInitialized is returned by commands issued before Init.
	ErrNotInitialized = errors.New("widget: controller not initialized")
)

// DraftColor is the fill of the in-progress draw rectangle.
const DraftColor = "rgba(0, 0, 0, 0.1)"

// Payload is the outbound state handed to the host after each change.
type Payload struct {
	Labels    []label.Label `json:"labels"`
	Selection []string      `json:"selection"`
	Deleted   []string      `json:"deleted"`
}

// Render returns the shapes for p's labels, filled from registry. The
// result carries no draft since gestures are not part of the payload.
func (p Payload) Render(registry *category.Registry) RenderModel {
	selected := make(map[string]struct{}, len(p.Selection))
	for _, key := range p.Selection {
		selected[key] = struct{}{}
	}
	model := RenderModel{Shapes: make([]Shape, 0, len(p.Labels))}
	for _, l := range p.Labels {
		_, sel := selected[l.Key]
		model.Shapes = append(model.Shapes, Shape{
			Key:      l.Key,
			Left:     l.Left,
			Right:    l.Right,
			Fill:     registry.Resolve(l.Category).Color,
			Selected: sel,
		})
	}
	return model
}

// Emitter receives the outbound payload. Implementations must not call back
// into the Controller that is emitting.
type Emitter interface {
	Emit(p Payload) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(p Payload) error

// Emit calls f(p).
func (f EmitterFunc) Emit(p Payload) error { return f(p) }

// MultiEmitter emits to each emitter in order and stops at the first error.
type MultiEmitter []Emitter

// Emit implements Emitter.
func (m MultiEmitter) Emit(p Payload) error {
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(p); err != nil {
			return err
		}
	}
	return nil
}

// Shape is one label as the render sink should draw it.
type Shape struct {
	Key      string  `json:"key"`
	Left     float64 `json:"left"`
	Right    float64 `json:"right"`
	Fill     string  `json:"fill"`
	Selected bool    `json:"selected"`
}

// Draft is the rectangle of an active draw gesture.
type Draft struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
	Fill  string  `json:"fill"`
}

// RenderModel is everything the render sink needs for one frame.
type RenderModel struct {
	Shapes []Shape `json:"shapes"`
	Draft  *Draft  `json:"draft,omitempty"`
}

// DrawState is the transient state of a pointer-drag gesture.
type DrawState struct {
	Active bool    `json:"active"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
}
