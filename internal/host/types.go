// Package host drives a widget controller from JSON action requests and
// binds it to host-side persistence. It is the channel through which a host
// (the browser bridge, the labelhost CLI) issues widget commands.
package host

import (
	"encoding/json"

	"github.com/kittclouds/labelgraph/pkg/label"
	"github.com/kittclouds/labelgraph/pkg/widget"
)

// ---------------------------------------------------------------------------
// Request / Response
// ---------------------------------------------------------------------------

// Request is a batch of actions executed in order.
type Request struct {
	Group   string   `json:"group,omitempty"`
	Actions []Action `json:"actions"`
}

// Action is a single widget command.
type Action struct {
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args,omitempty"`
}

// ActionResult reports the outcome of one action.
type ActionResult struct {
	Op    string `json:"op"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Response carries per-action results and the payload after the batch.
type Response struct {
	Group   string         `json:"group,omitempty"`
	Results []ActionResult `json:"results"`
	Payload widget.Payload `json:"payload"`
}

// ---------------------------------------------------------------------------
// Op names
// ---------------------------------------------------------------------------

const (
	OpInit                 = "init"
	OpReconcile            = "reconcile"
	OpSync                 = "sync"
	OpCreate               = "create"
	OpSetCategory          = "set_category"
	OpSetSelectionCategory = "set_selection_category"
	OpDelete               = "delete"
	OpDeleteSelection      = "delete_selection"
	OpSelect               = "select"
	OpSelectAt             = "select_at"
	OpQueryAt              = "query_at"
	OpList                 = "list"
	OpPayload              = "payload"
	OpRender               = "render"
	OpDrawBegin            = "draw.begin"
	OpDrawMove             = "draw.move"
	OpDrawEnd              = "draw.end"
	OpDrawCancel           = "draw.cancel"
	OpSeries               = "series"
)

// ---------------------------------------------------------------------------
// Action args
// ---------------------------------------------------------------------------

// ArgsSnapshot is the args shape for init and reconcile.
type ArgsSnapshot struct {
	Labels label.Snapshot `json:"labels"`
}

// ArgsRange is the args shape for create.
type ArgsRange struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// ArgsCategory is the args shape for set_category and
// set_selection_category (Keys ignored).
type ArgsCategory struct {
	Keys     []string `json:"keys"`
	Category string   `json:"category"`
}

// ArgsKeys is the args shape for delete and select.
type ArgsKeys struct {
	Keys []string `json:"keys"`
}

// ArgsX is the args shape for select_at, query_at and the draw ops.
type ArgsX struct {
	X float64 `json:"x"`
}

// ArgsSeries is the args shape for series.
type ArgsSeries struct {
	Xs []float64 `json:"xs"`
}

// DrawResult is the data of draw.end.
type DrawResult struct {
	Created bool         `json:"created"`
	Label   *label.Label `json:"label,omitempty"`
}
