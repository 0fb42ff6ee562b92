package host

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kittclouds/labelgraph/pkg/label"
	"github.com/kittclouds/labelgraph/pkg/series"
	"github.com/kittclouds/labelgraph/pkg/widget"
)

// SnapshotSource returns the host's current label set for the sync op.
type SnapshotSource func() (label.Snapshot, error)

// Engine dispatches action requests to a widget controller.
// It accepts raw JSON, dispatches each action in order and returns a strict
// JSON response. A failed action does not stop the batch.
type Engine struct {
	ctrl   *widget.Controller
	source SnapshotSource
	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSnapshotSource enables the sync op.
func WithSnapshotSource(src SnapshotSource) EngineOption {
	return func(e *Engine) { e.source = src }
}

// WithEngineLogger sets the logger. Defaults to slog.Default().
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a dispatch engine over ctrl.
func NewEngine(ctrl *widget.Controller, opts ...EngineOption) *Engine {
	e := &Engine{ctrl: ctrl, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute processes a raw JSON request and returns a JSON response.
func (e *Engine) Execute(reqJSON []byte) ([]byte, error) {
	var req Request
	if err := json.Unmarshal(reqJSON, &req); err != nil {
		return nil, fmt.Errorf("host: invalid request JSON: %w", err)
	}
	return json.Marshal(e.Run(req))
}

// Run executes a decoded request.
func (e *Engine) Run(req Request) Response {
	resp := Response{
		Group:   req.Group,
		Results: make([]ActionResult, len(req.Actions)),
	}
	for i, action := range req.Actions {
		resp.Results[i] = e.dispatch(action)
	}
	resp.Payload = e.ctrl.Payload()
	return resp
}

// dispatch routes a single action to the controller.
func (e *Engine) dispatch(action Action) ActionResult {
	result := ActionResult{Op: action.Op}

	var err error
	var data any

	switch action.Op {

	case OpInit:
		var args ArgsSnapshot
		if err = decodeArgs(action.Args, &args); err != nil {
			break
		}
		err = e.ctrl.Init(args.Labels)

	case OpReconcile:
		var args ArgsSnapshot
		if err = decodeArgs(action.Args, &args); err != nil {
			break
		}
		data, err = e.ctrl.Reconcile(args.Labels)

	case OpSync:
		if e.source == nil {
			err = fmt.Errorf("sync: no snapshot source configured")
			break
		}
		var snap label.Snapshot
		if snap, err = e.source(); err != nil {
			break
		}
		data, err = e.ctrl.Reconcile(snap)

	case OpCreate:
		var args ArgsRange
		if err = decodeArgs(action.Args, &args); err != nil {
			break
		}
		data, err = e.ctrl.Create(args.Left, args.Right)

	case OpSetCategory:
		var args ArgsCategory
		if err = decodeArgs(action.Args, &args); err != nil {
			break
		}
		err = e.ctrl.SetCategory(args.Keys, args.Category)

	case OpSetSelectionCategory:
		var args ArgsCategory
		if err = decodeArgs(action.Args, &args); err != nil {
			break
		}
		err = e.ctrl.SetSelectionCategory(args.Category)

	case OpDelete:
		var args ArgsKeys
		if err = decodeArgs(action.Args, &args); err != nil {
			break
		}
		err = e.ctrl.Delete(args.Keys)

	case OpDeleteSelection:
		err = e.ctrl.DeleteSelection()

	case OpSelect:
		var args ArgsKeys
		if err = decodeArgs(action.Args, &args); err != nil {
			break
		}
		err = e.ctrl.SelectKeys(args.Keys)

	case OpSelectAt:
		var args ArgsX
		if err = decodeArgs(action.Args, &args); err != nil {
			break
		}
		data, err = e.ctrl.SelectAt(args.X)

	case OpQueryAt:
		var args ArgsX
		if err = decodeArgs(action.Args, &args); err != nil {
			break
		}
		data = e.ctrl.LabelsAt(args.X)

	case OpList:
		data = e.ctrl.ListActive()

	case OpPayload:
		data = e.ctrl.Payload()

	case OpRender:
		data = e.ctrl.RenderModel()

	case OpDrawBegin:
		var args ArgsX
		if err = decodeArgs(action.Args, &args); err != nil {
			break
		}
		err = e.ctrl.BeginDraw(args.X)

	case OpDrawMove:
		var args ArgsX
		if err = decodeArgs(action.Args, &args); err != nil {
			break
		}
		if !e.ctrl.MoveDraw(args.X) {
			err = fmt.Errorf("no draw in progress")
		}

	case OpDrawEnd:
		var l label.Label
		var created bool
		l, created, err = e.ctrl.EndDraw()
		res := DrawResult{Created: created}
		if created {
			res.Label = &l
		}
		data = res

	case OpDrawCancel:
		e.ctrl.CancelDraw()

	case OpSeries:
		var args ArgsSeries
		if err = decodeArgs(action.Args, &args); err != nil {
			break
		}
		data = series.Assign(args.Xs, e.ctrl.ListActive())

	default:
		err = fmt.Errorf("unknown op: %q", action.Op)
	}

	if err != nil {
		e.logger.Debug("action failed", "op", action.Op, "error", err)
		result.OK = false
		result.Error = err.Error()
		return result
	}

	result.OK = true
	result.Data = data
	return result
}

// decodeArgs unmarshals args into v; absent args decode as {}.
func decodeArgs(args json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("invalid args: %w", err)
	}
	return nil
}
