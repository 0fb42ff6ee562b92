package widget

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/kittclouds/labelgraph/pkg/category"
	"github.com/kittclouds/labelgraph/pkg/label"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Helpers
// =============================================================================

type recorder struct {
	payloads []Payload
	err      error
}

func (r *recorder) Emit(p Payload) error {
	if r.err != nil {
		return r.err
	}
	r.payloads = append(r.payloads, p)
	return nil
}

func (r *recorder) last(t *testing.T) Payload {
	t.Helper()
	require.NotEmpty(t, r.payloads, "expected at least one emit")
	return r.payloads[len(r.payloads)-1]
}

func newTestController(t *testing.T, snapshot label.Snapshot) (*Controller, *recorder) {
	t.Helper()
	reg := category.NewRegistry([]category.Category{
		{Key: "HOT", Color: "rgba(255,110,110,0.1)"},
		{Key: "COLD", Color: "rgba(110,110,255,0.1)"},
	})
	n := 0
	keys := func() string {
		n++
		return fmt.Sprintf("label-%d", n)
	}
	rec := &recorder{}
	c := New(reg, rec,
		WithKeyFunc(keys),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, c.Init(snapshot))
	return c, rec
}

func f(v float64) *float64 { return &v }

func keysOf(labels []label.Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = l.Key
	}
	return out
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestInit_EmitsBaseline(t *testing.T) {
	c, rec := newTestController(t, label.Snapshot{
		{Key: "k1", Category: "HOT", Left: f(0), Right: f(10)},
		{Key: "bad"},
	})

	require.Len(t, rec.payloads, 1)
	p := rec.payloads[0]
	assert.Equal(t, []string{"k1"}, keysOf(p.Labels))
	assert.NotNil(t, p.Selection)
	assert.NotNil(t, p.Deleted)
	assert.Equal(t, p, c.Payload())
}

func TestInit_NilSnapshotStillEmits(t *testing.T) {
	_, rec := newTestController(t, nil)
	require.Len(t, rec.payloads, 1)
	assert.Empty(t, rec.payloads[0].Labels)
}

func TestCommands_RequireInit(t *testing.T) {
	c := New(nil, nil)
	_, err := c.Create(0, 1)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = c.Reconcile(label.Snapshot{})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestClose_RejectsCommands(t *testing.T) {
	c, _ := newTestController(t, nil)
	require.NoError(t, c.Close())

	_, err := c.Create(0, 1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Init(nil), ErrClosed)
	assert.ErrorIs(t, c.Select(nil), ErrClosed)
}

// =============================================================================
// Commands
// =============================================================================

func TestCreate_EmitsNewLabel(t *testing.T) {
	c, rec := newTestController(t, nil)

	l, err := c.Create(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, l.Left)
	assert.Equal(t, 10.0, l.Right)

	require.Len(t, rec.payloads, 2)
	assert.Equal(t, []label.Label{l}, rec.last(t).Labels)
}

func TestCreate_RejectsNaN(t *testing.T) {
	c, rec := newTestController(t, nil)
	_, err := c.Create(math.NaN(), 1)
	assert.Error(t, err)
	assert.Len(t, rec.payloads, 1)
}

func TestSetSelectionCategory(t *testing.T) {
	c, rec := newTestController(t, nil)
	a, _ := c.Create(0, 10)
	b, _ := c.Create(20, 30)
	require.NoError(t, c.Select([]label.Label{a}))

	require.NoError(t, c.SetSelectionCategory("HOT"))

	p := rec.last(t)
	require.Len(t, p.Labels, 2)
	assert.Equal(t, "HOT", p.Labels[0].Category)
	assert.Equal(t, 1, p.Labels[0].Version)
	assert.Equal(t, b, p.Labels[1])
}

func TestSetCategory_InvalidEmitsNothing(t *testing.T) {
	c, rec := newTestController(t, nil)
	a, _ := c.Create(0, 10)
	emits := len(rec.payloads)

	err := c.SetCategory([]string{a.Key}, "WARM")
	assert.ErrorIs(t, err, label.ErrInvalidCategory)
	assert.Len(t, rec.payloads, emits)
	assert.Equal(t, []label.Label{a}, c.ListActive())
}

func TestDeleteSelection(t *testing.T) {
	c, rec := newTestController(t, nil)
	a, _ := c.Create(0, 10)
	b, _ := c.Create(20, 30)
	_, err := c.SelectAt(5)
	require.NoError(t, err)
	assert.Equal(t, []string{a.Key}, c.Selection())

	require.NoError(t, c.DeleteSelection())

	p := rec.last(t)
	assert.Equal(t, []string{b.Key}, keysOf(p.Labels))
	assert.Equal(t, []string{a.Key}, p.Deleted)
	assert.Empty(t, p.Selection, "deleted keys leave the selection")
}

func TestSelect_EmitsAndReplaces(t *testing.T) {
	c, rec := newTestController(t, nil)
	a, _ := c.Create(0, 10)
	b, _ := c.Create(5, 15)

	hits, err := c.SelectAt(7)
	require.NoError(t, err)
	assert.Equal(t, []string{a.Key, b.Key}, keysOf(hits))
	assert.Equal(t, []string{a.Key, b.Key}, rec.last(t).Selection)

	_, err = c.SelectAt(100)
	require.NoError(t, err)
	assert.Empty(t, rec.last(t).Selection)

	require.NoError(t, c.SelectKeys([]string{b.Key, b.Key}))
	assert.Equal(t, []string{b.Key}, rec.last(t).Selection)
}

func TestLabelsAt_DoesNotSelect(t *testing.T) {
	c, rec := newTestController(t, nil)
	a, _ := c.Create(0, 10)
	emits := len(rec.payloads)

	assert.Equal(t, []string{a.Key}, keysOf(c.LabelsAt(1)))
	assert.Empty(t, c.LabelsAt(0))
	assert.Len(t, rec.payloads, emits)
}

// =============================================================================
// Reconcile
// =============================================================================

func TestReconcile_DoesNotEmit(t *testing.T) {
	c, rec := newTestController(t, nil)

	_, err := c.Reconcile(label.Snapshot{{Key: "k1", Left: f(0), Right: f(1)}})
	require.NoError(t, err)
	assert.Len(t, rec.payloads, 1)
	assert.Equal(t, []string{"k1"}, keysOf(c.ListActive()))
}

func TestReconcile_PrunesSelection(t *testing.T) {
	c, _ := newTestController(t, label.Snapshot{
		{Key: "k1", Left: f(0), Right: f(10)},
		{Key: "k2", Left: f(20), Right: f(30)},
	})
	require.NoError(t, c.SelectKeys([]string{"k1", "k2"}))

	_, err := c.Reconcile(label.Snapshot{{Key: "k2", Left: f(20), Right: f(30)}})
	require.NoError(t, err)
	assert.Equal(t, []string{"k2"}, c.Selection())
}

func TestReconcile_OwnPayloadRoundTrip(t *testing.T) {
	c, rec := newTestController(t, label.Snapshot{
		{Key: "k1", Category: "HOT", Left: f(0), Right: f(10), Version: 2},
	})
	_, _ = c.Create(40, 50)
	require.NoError(t, c.SetCategory([]string{"k1"}, "COLD"))
	before := rec.last(t)

	_, err := c.Reconcile(label.ToSnapshot(before.Labels))
	require.NoError(t, err)
	assert.Equal(t, before, c.Payload())
}

func TestReconcile_StaleEchoAfterLocalEdit(t *testing.T) {
	c, rec := newTestController(t, label.Snapshot{
		{Key: "k1", Left: f(0), Right: f(10)},
	})
	baseline := rec.payloads[0]

	require.NoError(t, c.SetCategory([]string{"k1"}, "HOT"))
	_, err := c.Reconcile(label.ToSnapshot(baseline.Labels))
	require.NoError(t, err)

	got := c.ListActive()
	require.Len(t, got, 1)
	assert.Equal(t, "HOT", got[0].Category)
	assert.Equal(t, 1, got[0].Version)
}

// =============================================================================
// Draw gesture
// =============================================================================

func TestDraw_CreatesOnceOnRelease(t *testing.T) {
	c, rec := newTestController(t, nil)

	require.NoError(t, c.BeginDraw(12))
	assert.True(t, c.MoveDraw(8))
	assert.True(t, c.MoveDraw(4))
	assert.Len(t, rec.payloads, 1, "dragging does not emit")

	model := c.RenderModel()
	require.NotNil(t, model.Draft)
	assert.Equal(t, 4.0, model.Draft.Left)
	assert.Equal(t, 12.0, model.Draft.Right)

	l, ok, err := c.EndDraw()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4.0, l.Left)
	assert.Equal(t, 12.0, l.Right)
	assert.False(t, c.Draw().Active)
	assert.Len(t, rec.payloads, 2)

	_, ok, err = c.EndDraw()
	require.NoError(t, err)
	assert.False(t, ok, "second release creates nothing")
	assert.Len(t, c.ListActive(), 1)
}

func TestDraw_ZeroWidthRelease(t *testing.T) {
	c, _ := newTestController(t, nil)
	require.NoError(t, c.BeginDraw(7))

	l, ok, err := c.EndDraw()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7.0, l.Left)
	assert.Equal(t, 7.0, l.Right)
}

func TestDraw_MoveAndCancelWhenIdle(t *testing.T) {
	c, _ := newTestController(t, nil)
	assert.False(t, c.MoveDraw(3))

	require.NoError(t, c.BeginDraw(1))
	c.CancelDraw()
	assert.Nil(t, c.RenderModel().Draft)
	assert.Empty(t, c.ListActive())
}

// =============================================================================
// Render model & emit failures
// =============================================================================

func TestRenderModel_ResolvesFills(t *testing.T) {
	c, _ := newTestController(t, label.Snapshot{
		{Key: "k1", Category: "HOT", Left: f(0), Right: f(10)},
		{Key: "k2", Category: "UNKNOWN", Left: f(20), Right: f(30)},
	})
	require.NoError(t, c.SelectKeys([]string{"k2"}))

	model := c.RenderModel()
	require.Len(t, model.Shapes, 2)
	assert.Equal(t, "rgba(255,110,110,0.1)", model.Shapes[0].Fill)
	assert.False(t, model.Shapes[0].Selected)
	assert.Equal(t, category.DefaultColor, model.Shapes[1].Fill)
	assert.True(t, model.Shapes[1].Selected)
	assert.Nil(t, model.Draft)
}

func TestPayloadRender_MatchesController(t *testing.T) {
	c, rec := newTestController(t, label.Snapshot{
		{Key: "k1", Category: "COLD", Left: f(0), Right: f(10)},
	})
	_, err := c.SelectAt(5)
	require.NoError(t, err)
	require.NoError(t, c.BeginDraw(20))

	fromPayload := rec.last(t).Render(c.Registry())
	fromController := c.RenderModel()
	assert.Equal(t, fromController.Shapes, fromPayload.Shapes)
	assert.Nil(t, fromPayload.Draft)
	assert.NotNil(t, fromController.Draft)
}

func TestEmitFailure_IsReturned(t *testing.T) {
	c, rec := newTestController(t, nil)
	rec.err = errors.New("host gone")

	_, err := c.Create(0, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host gone")
	assert.Len(t, c.ListActive(), 1, "the mutation stands")
}

func TestMultiEmitter_StopsAtFirstError(t *testing.T) {
	first := &recorder{}
	failing := &recorder{err: errors.New("boom")}
	last := &recorder{}

	err := MultiEmitter{first, nil, failing, last}.Emit(Payload{})
	assert.Error(t, err)
	assert.Len(t, first.payloads, 1)
	assert.Empty(t, last.payloads)
}
