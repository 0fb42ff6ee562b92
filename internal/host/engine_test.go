package host

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/kittclouds/labelgraph/pkg/category"
	"github.com/kittclouds/labelgraph/pkg/label"
	"github.com/kittclouds/labelgraph/pkg/series"
	"github.com/kittclouds/labelgraph/pkg/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCategories = []category.Category{
	{Key: "HOT", Color: "rgba(255,110,110,0.1)"},
	{Key: "COLD", Color: "rgba(110,110,255,0.1)"},
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seqKeys() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("k%d", n)
	}
}

// newTestEngine creates an engine over an uninitialized controller that
// records every emitted payload.
func newTestEngine(t *testing.T, opts ...EngineOption) (*Engine, *[]widget.Payload) {
	t.Helper()
	var emitted []widget.Payload
	ctrl := widget.New(
		category.NewRegistry(testCategories),
		widget.EmitterFunc(func(p widget.Payload) error {
			emitted = append(emitted, p)
			return nil
		}),
		widget.WithLogger(discardLogger()),
		widget.WithKeyFunc(seqKeys()),
	)
	opts = append([]EngineOption{WithEngineLogger(discardLogger())}, opts...)
	return NewEngine(ctrl, opts...), &emitted
}

func act(op string, args string) Action {
	a := Action{Op: op}
	if args != "" {
		a.Args = json.RawMessage(args)
	}
	return a
}

func execute(t *testing.T, eng *Engine, actions ...Action) Response {
	t.Helper()
	reqJSON, err := json.Marshal(Request{Group: "test0", Actions: actions})
	require.NoError(t, err)
	respJSON, err := eng.Execute(reqJSON)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(respJSON, &resp))
	require.Len(t, resp.Results, len(actions))
	return resp
}

// decodeData re-decodes an action's data into v.
func decodeData(t *testing.T, r ActionResult, v any) {
	t.Helper()
	raw, err := json.Marshal(r.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestEngine_Execute_InitCreateCategorize(t *testing.T) {
	eng, emitted := newTestEngine(t)

	resp := execute(t, eng,
		act(OpInit, `{"labels":[{"key":"a","category":"HOT","left":1,"right":3,"version":2}]}`),
		act(OpCreate, `{"left":9,"right":5}`),
		act(OpSetCategory, `{"keys":["k1"],"category":"COLD"}`),
	)

	assert.Equal(t, "test0", resp.Group)
	for _, r := range resp.Results {
		assert.True(t, r.OK, "%s: %s", r.Op, r.Error)
	}

	var created label.Label
	decodeData(t, resp.Results[1], &created)
	assert.Equal(t, "k1", created.Key)
	assert.Equal(t, 5.0, created.Left)
	assert.Equal(t, 9.0, created.Right)

	require.Len(t, resp.Payload.Labels, 2)
	assert.Equal(t, "COLD", resp.Payload.Labels[1].Category)
	assert.Equal(t, 1, resp.Payload.Labels[1].Version)
	assert.Len(t, *emitted, 3)
}

func TestEngine_Execute_FailedActionDoesNotStopBatch(t *testing.T) {
	eng, _ := newTestEngine(t)

	resp := execute(t, eng,
		act(OpCreate, `{"left":0,"right":1}`),
		act(OpInit, ""),
		act(OpSetCategory, `{"keys":["k1"],"category":"HTO"}`),
		act("bogus.op", ""),
		act(OpCreate, `{"left":"nope"}`),
		act(OpCreate, `{"left":0,"right":1}`),
	)

	assert.False(t, resp.Results[0].OK)
	assert.Contains(t, resp.Results[0].Error, "not initialized")
	assert.True(t, resp.Results[1].OK)
	assert.False(t, resp.Results[2].OK)
	assert.Contains(t, resp.Results[2].Error, `"HOT"`)
	assert.False(t, resp.Results[3].OK)
	assert.Contains(t, resp.Results[3].Error, "unknown op")
	assert.False(t, resp.Results[4].OK)
	assert.Contains(t, resp.Results[4].Error, "invalid args")
	assert.True(t, resp.Results[5].OK)

	require.Len(t, resp.Payload.Labels, 1)
	assert.Equal(t, "k1", resp.Payload.Labels[0].Key)
}

func TestEngine_Execute_SelectionOps(t *testing.T) {
	eng, _ := newTestEngine(t)

	resp := execute(t, eng,
		act(OpInit, `{"labels":[
			{"key":"a","category":"HOT","left":0,"right":10,"version":0},
			{"key":"b","category":"HOT","left":5,"right":15,"version":0},
			{"key":"c","category":"COLD","left":20,"right":30,"version":0}
		]}`),
		act(OpSelectAt, `{"x":7}`),
		act(OpSetSelectionCategory, `{"category":"COLD"}`),
		act(OpQueryAt, `{"x":25}`),
		act(OpSelect, `{"keys":["c"]}`),
		act(OpDeleteSelection, ""),
	)
	for _, r := range resp.Results {
		require.True(t, r.OK, "%s: %s", r.Op, r.Error)
	}

	var hits []label.Label
	decodeData(t, resp.Results[1], &hits)
	assert.Len(t, hits, 2)

	var queried []label.Label
	decodeData(t, resp.Results[3], &queried)
	require.Len(t, queried, 1)
	assert.Equal(t, "c", queried[0].Key)

	assert.Equal(t, []string{"c"}, resp.Payload.Deleted)
	assert.Empty(t, resp.Payload.Selection)
	require.Len(t, resp.Payload.Labels, 2)
	for _, l := range resp.Payload.Labels {
		assert.Equal(t, "COLD", l.Category)
		assert.Equal(t, 1, l.Version)
	}
}

func TestEngine_Execute_DrawGesture(t *testing.T) {
	eng, emitted := newTestEngine(t)

	resp := execute(t, eng,
		act(OpInit, ""),
		act(OpDrawMove, `{"x":1}`),
		act(OpDrawBegin, `{"x":10}`),
		act(OpDrawMove, `{"x":4}`),
		act(OpRender, ""),
		act(OpDrawEnd, ""),
		act(OpDrawEnd, ""),
		act(OpDrawBegin, `{"x":0}`),
		act(OpDrawCancel, ""),
	)

	assert.False(t, resp.Results[1].OK)
	assert.True(t, resp.Results[2].OK)
	assert.True(t, resp.Results[3].OK)

	var rm widget.RenderModel
	decodeData(t, resp.Results[4], &rm)
	require.NotNil(t, rm.Draft)
	assert.Equal(t, 4.0, rm.Draft.Left)
	assert.Equal(t, 10.0, rm.Draft.Right)

	var end DrawResult
	decodeData(t, resp.Results[5], &end)
	assert.True(t, end.Created)
	require.NotNil(t, end.Label)
	assert.Equal(t, 4.0, end.Label.Left)

	var noop DrawResult
	decodeData(t, resp.Results[6], &noop)
	assert.False(t, noop.Created)
	assert.Nil(t, noop.Label)

	assert.Len(t, resp.Payload.Labels, 1)
	// init + one create
	assert.Len(t, *emitted, 2)
}

func TestEngine_Execute_ReconcileDoesNotEmit(t *testing.T) {
	eng, emitted := newTestEngine(t)

	resp := execute(t, eng,
		act(OpInit, ""),
		act(OpReconcile, `{"labels":[{"key":"a","category":"HOT","left":1,"right":2,"version":0},{"key":"bad","left":1}]}`),
	)
	require.True(t, resp.Results[1].OK)

	var stats label.ReconcileStats
	decodeData(t, resp.Results[1], &stats)
	assert.Equal(t, 1, stats.Adopted)
	assert.Equal(t, 1, stats.Malformed)
	assert.Len(t, resp.Payload.Labels, 1)
	assert.Len(t, *emitted, 1)
}

func TestEngine_Execute_Sync(t *testing.T) {
	eng, _ := newTestEngine(t)
	resp := execute(t, eng, act(OpInit, ""), act(OpSync, ""))
	assert.False(t, resp.Results[1].OK)

	src := label.Snapshot{{Key: "s", Category: "HOT", Left: ptr(1), Right: ptr(2)}}
	eng, _ = newTestEngine(t, WithSnapshotSource(func() (label.Snapshot, error) { return src, nil }))
	resp = execute(t, eng, act(OpInit, ""), act(OpSync, ""))
	require.True(t, resp.Results[1].OK, resp.Results[1].Error)
	require.Len(t, resp.Payload.Labels, 1)
	assert.Equal(t, "s", resp.Payload.Labels[0].Key)
}

func TestEngine_Execute_Series(t *testing.T) {
	eng, _ := newTestEngine(t)

	resp := execute(t, eng,
		act(OpInit, `{"labels":[{"key":"a","category":"HOT","left":1,"right":3,"version":0}]}`),
		act(OpSeries, `{"xs":[0,1,2,3,4]}`),
	)
	require.True(t, resp.Results[1].OK)

	var points []series.Point
	decodeData(t, resp.Results[1], &points)
	require.Len(t, points, 5)
	assert.False(t, points[0].Labeled)
	assert.True(t, points[1].Labeled)
	assert.Equal(t, "HOT", points[3].Category)
	assert.False(t, points[4].Labeled)
}

func TestEngine_Execute_InvalidJSON(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.Execute([]byte(`{not json`))
	assert.Error(t, err)
}

func TestDecodeArgs_Empty(t *testing.T) {
	var args ArgsX
	assert.NoError(t, decodeArgs(nil, &args))
	assert.NoError(t, decodeArgs(json.RawMessage(" null "), &args))
	assert.Equal(t, 0.0, args.X)
	assert.Error(t, decodeArgs(json.RawMessage(`[1]`), &args))
}

func ptr(f float64) *float64 { return &f }
