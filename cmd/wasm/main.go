//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"syscall/js"

	"github.com/hack-pad/hackpadfs/indexeddb"
	"github.com/kittclouds/labelgraph/internal/host"
	"github.com/kittclouds/labelgraph/internal/journal"
	"github.com/kittclouds/labelgraph/pkg/category"
	"github.com/kittclouds/labelgraph/pkg/label"
	"github.com/kittclouds/labelgraph/pkg/sab"
	"github.com/kittclouds/labelgraph/pkg/widget"
)

// Version info
const Version = "0.3.0"

const defaultGroup = "default"

// Global state
var (
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctrl   *widget.Controller
	engine *host.Engine
	group  = defaultGroup

	// Optional zero-copy render channel, see attachBuffer.
	frames *sab.SharedBuffer

	// Journal writes block on IndexedDB promises, which must not happen
	// inside a JS callback. Payloads are queued and saved from a goroutine.
	journalQueue = make(chan journalEntry, 64)
)

type journalEntry struct {
	group   string
	payload widget.Payload
}

// bridgeConfig is the configJSON accepted by init.
type bridgeConfig struct {
	Group string `json:"group"`
	category.Config
}

func main() {
	go runJournal()

	println("[LabelGraph] WASM Ready v" + Version)

	// Register exports
	js.Global().Set("LabelGraph", js.ValueOf(map[string]interface{}{
		"version":      js.FuncOf(getVersion),
		"init":         js.FuncOf(initialize),
		"reconcile":    js.FuncOf(reconcile),
		"dispatch":     js.FuncOf(dispatch),
		"payload":      js.FuncOf(payload),
		"render":       js.FuncOf(render),
		"attachBuffer": js.FuncOf(attachBuffer),
	}))

	select {}
}

// runJournal saves queued payloads to IndexedDB.
func runJournal() {
	fs, err := indexeddb.NewFS(context.Background(), "labelgraph", indexeddb.Options{})
	if err != nil {
		println("[LabelGraph] journal disabled:", err.Error())
		for range journalQueue {
		}
		return
	}
	j := journal.New(fs, "journal")
	for entry := range journalQueue {
		if err := j.Save(entry.group, entry.payload); err != nil {
			logger.Warn("journal save failed", "group", entry.group, "error", err)
		}
	}
}

func getVersion(this js.Value, args []js.Value) interface{} {
	return Version
}

// initialize: [configJSON string, labelsJSON string, onEmit function]
// Builds a fresh controller and emits the baseline payload.
func initialize(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return errorResult("init requires 3 args: configJSON, labelsJSON, onEmit")
	}
	if args[2].Type() != js.TypeFunction {
		return errorResult("onEmit must be a function")
	}

	var cfg bridgeConfig
	if raw := args[0].String(); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return errorResult("invalid config json: " + err.Error())
		}
	}
	if cfg.Group == "" {
		cfg.Group = defaultGroup
	}

	var snap label.Snapshot
	if raw := args[1].String(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			return errorResult("invalid labels json: " + err.Error())
		}
	}

	if ctrl != nil {
		ctrl.Close()
	}
	group = cfg.Group
	onEmit := args[2]
	emitter := widget.MultiEmitter{
		widget.EmitterFunc(func(p widget.Payload) error {
			data, err := json.Marshal(p)
			if err != nil {
				return err
			}
			onEmit.Invoke(string(data))
			return nil
		}),
		widget.EmitterFunc(func(p widget.Payload) error {
			select {
			case journalQueue <- journalEntry{group: cfg.Group, payload: p}:
			default:
				logger.Warn("journal queue full, payload dropped", "group", cfg.Group)
			}
			return nil
		}),
	}

	registry := category.NewRegistry(cfg.Categories)
	emitter = append(emitter, widget.EmitterFunc(func(p widget.Payload) error {
		writeFrame(p.Render(registry))
		return nil
	}))

	ctrl = widget.New(registry, emitter, widget.WithLogger(logger))
	engine = host.NewEngine(ctrl, host.WithEngineLogger(logger))
	if err := ctrl.Init(snap); err != nil {
		return errorResult(err.Error())
	}
	println("[LabelGraph] ✅ Initialized group", cfg.Group, "with", len(ctrl.ListActive()), "labels")
	return successResult("initialized")
}

// reconcile: [labelsJSON string]
// Returns: JSON reconcile stats
func reconcile(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("reconcile requires 1 arg: labelsJSON")
	}
	if ctrl == nil {
		return errorResult("widget not initialized")
	}
	var snap label.Snapshot
	if err := json.Unmarshal([]byte(args[0].String()), &snap); err != nil {
		return errorResult("invalid labels json: " + err.Error())
	}
	stats, err := ctrl.Reconcile(snap)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(stats)
}

// dispatch: [requestJSON string]
// Returns: JSON response
func dispatch(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("dispatch requires 1 arg: requestJSON")
	}
	if engine == nil {
		return errorResult("widget not initialized")
	}
	var req host.Request
	if err := json.Unmarshal([]byte(args[0].String()), &req); err != nil {
		return errorResult("invalid request json: " + err.Error())
	}
	if req.Group == "" {
		req.Group = group
	}
	return jsonResult(engine.Run(req))
}

func payload(this js.Value, args []js.Value) interface{} {
	if ctrl == nil {
		return errorResult("widget not initialized")
	}
	return jsonResult(ctrl.Payload())
}

func render(this js.Value, args []js.Value) interface{} {
	if ctrl == nil {
		return errorResult("widget not initialized")
	}
	return jsonResult(ctrl.RenderModel())
}

// attachBuffer: [sab SharedArrayBuffer]
// Every later emit also writes a binary render frame into the buffer.
func attachBuffer(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("attachBuffer requires 1 arg: SharedArrayBuffer")
	}
	buf := sab.New(args[0])
	if buf == nil {
		return errorResult("invalid or undersized SharedArrayBuffer")
	}
	frames = buf
	if ctrl != nil {
		writeFrame(ctrl.RenderModel())
	}
	return successResult("buffer attached")
}

// writeFrame pushes a render frame when a buffer is attached. A frame the
// sink has not acknowledged yet is overwritten.
func writeFrame(m widget.RenderModel) {
	if frames == nil {
		return
	}
	if frames.Busy() {
		logger.Debug("render frame overwrites unacknowledged frame")
	}
	if err := frames.WriteMessage(sab.MsgTypeRender, sab.EncodeRender(m)); err != nil {
		logger.Warn("render frame dropped", "error", err)
	}
}

// Helper: Marshal a value for JS
func jsonResult(v interface{}) interface{} {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return errorResult(err.Error())
	}
	return string(jsonBytes)
}

// Helper: Create error result
func errorResult(msg string) interface{} {
	result := map[string]interface{}{
		"error": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}

// Helper: Create success result
func successResult(msg string) interface{} {
	result := map[string]interface{}{
		"success": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}
