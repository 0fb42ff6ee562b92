package widget

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/kittclouds/labelgraph/pkg/category"
	"github.com/kittclouds/labelgraph/pkg/label"
)

// Controller applies widget commands to a label store and emits the
// resulting payload after each state change. Every command runs to
// completion, emit included, before the next one starts.
type Controller struct {
	mu sync.Mutex

	registry  *category.Registry
	store     *label.Store
	selection label.Selection
	draw      DrawState

	emitter Emitter
	logger  *slog.Logger

	initialized bool
	closed      bool
}

// Option configures a Controller.
type Option func(*controllerOptions)

type controllerOptions struct {
	logger    *slog.Logger
	storeOpts []label.Option
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *controllerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithKeyFunc replaces the generator used for new label keys.
func WithKeyFunc(fn func() string) Option {
	return func(o *controllerOptions) {
		o.storeOpts = append(o.storeOpts, label.WithKeyFunc(fn))
	}
}

// New creates a controller for the given categories. A nil emitter discards
// payloads.
func New(registry *category.Registry, emitter Emitter, opts ...Option) *Controller {
	o := controllerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if registry == nil {
		registry = category.NewRegistry(nil)
	}
	return &Controller{
		registry: registry,
		store:    label.NewStore(registry, o.storeOpts...),
		emitter:  emitter,
		logger:   o.logger,
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

// Init loads the initial snapshot and emits the baseline payload. It may be
// called again to reload; every call emits.
func (c *Controller) Init(snapshot label.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	stats := c.store.Reconcile(snapshot)
	c.pruneSelection()
	c.initialized = true
	c.logger.Info("label widget initialized",
		"labels", c.store.Len(),
		"categories", len(c.registry.Categories()),
		"malformed", stats.Malformed)
	return c.emit("init")
}

// Reconcile merges a host snapshot into the store. It does not emit: the
// host already holds the state it is sending.
func (c *Controller) Reconcile(snapshot label.Snapshot) (label.ReconcileStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return label.ReconcileStats{}, err
	}
	stats := c.store.Reconcile(snapshot)
	pruned := c.pruneSelection()
	if snapshot != nil {
		c.logger.Debug("reconciled snapshot",
			"adopted", stats.Adopted,
			"kept", stats.Kept,
			"dropped", stats.Dropped,
			"malformed", stats.Malformed,
			"selection_pruned", pruned)
	}
	return stats, nil
}

// Close ends the session. Later commands fail with ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.draw = DrawState{}
	return nil
}

// =============================================================================
// Commands
// =============================================================================

// Create adds a label spanning left and right in either order.
func (c *Controller) Create(left, right float64) (label.Label, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return label.Label{}, err
	}
	return c.create(left, right)
}

// SetCategory recategorizes the active labels among keys. An unknown
// category fails with label.ErrInvalidCategory and emits nothing.
func (c *Controller) SetCategory(keys []string, categoryKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return err
	}
	return c.setCategory(keys, categoryKey)
}

// SetSelectionCategory recategorizes the selected labels.
func (c *Controller) SetSelectionCategory(categoryKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return err
	}
	return c.setCategory(c.selection.Keys(), categoryKey)
}

// Delete soft-deletes keys and drops them from the selection.
func (c *Controller) Delete(keys []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return err
	}
	return c.delete(keys)
}

// DeleteSelection soft-deletes every selected label.
func (c *Controller) DeleteSelection() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return err
	}
	return c.delete(c.selection.Keys())
}

// Select replaces the selection with labels. Nil clears it.
func (c *Controller) Select(labels []label.Label) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return err
	}
	c.selection.Set(labels)
	return c.emit("select")
}

// SelectKeys replaces the selection with keys.
func (c *Controller) SelectKeys(keys []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return err
	}
	c.selection.SetKeys(keys)
	return c.emit("select")
}

// SelectAt selects exactly the labels strictly containing x and returns
// them. A miss clears the selection.
func (c *Controller) SelectAt(x float64) ([]label.Label, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return nil, err
	}
	hits := c.store.At(x)
	c.selection.Set(hits)
	return hits, c.emit("select")
}

// =============================================================================
// Draw gesture
// =============================================================================

// BeginDraw starts a drag at x. A drag already in progress restarts.
func (c *Controller) BeginDraw(x float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return err
	}
	if math.IsNaN(x) {
		return fmt.Errorf("widget: draw start is NaN")
	}
	c.draw = DrawState{Active: true, Start: x, End: x}
	return nil
}

// MoveDraw updates the drag end. It reports false when no drag is active.
func (c *Controller) MoveDraw(x float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.draw.Active || math.IsNaN(x) {
		return false
	}
	c.draw.End = x
	return true
}

// EndDraw releases the drag and creates its label. It reports false, with
// no label, when no drag was active.
func (c *Controller) EndDraw() (label.Label, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return label.Label{}, false, err
	}
	if !c.draw.Active {
		return label.Label{}, false, nil
	}
	d := c.draw
	c.draw = DrawState{}
	l, err := c.create(d.Start, d.End)
	return l, true, err
}

// CancelDraw abandons the drag without creating a label.
func (c *Controller) CancelDraw() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draw = DrawState{}
}

// Draw returns the current gesture state.
func (c *Controller) Draw() DrawState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draw
}

// =============================================================================
// Queries
// =============================================================================

// Payload returns the state that would be emitted now.
func (c *Controller) Payload() Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload()
}

// ListActive returns the active labels.
func (c *Controller) ListActive() []label.Label {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ListActive()
}

// Selection returns the selected keys.
func (c *Controller) Selection() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.Keys()
}

// LabelsAt returns the active labels strictly containing x without changing
// the selection.
func (c *Controller) LabelsAt(x float64) []label.Label {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.At(x)
}

// RenderModel returns the shapes to draw for the current state.
func (c *Controller) RenderModel() RenderModel {
	c.mu.Lock()
	defer c.mu.Unlock()

	model := c.payload().Render(c.registry)
	if c.draw.Active {
		model.Draft = &Draft{
			Left:  math.Min(c.draw.Start, c.draw.End),
			Right: math.Max(c.draw.Start, c.draw.End),
			Fill:  DraftColor,
		}
	}
	return model
}

// Registry returns the category registry.
func (c *Controller) Registry() *category.Registry {
	return c.registry
}

// =============================================================================
// Internals (callers hold mu)
// =============================================================================

func (c *Controller) ready() error {
	if c.closed {
		return ErrClosed
	}
	if !c.initialized {
		return ErrNotInitialized
	}
	return nil
}

func (c *Controller) create(left, right float64) (label.Label, error) {
	if math.IsNaN(left) || math.IsNaN(right) {
		return label.Label{}, fmt.Errorf("widget: label bounds must be numbers")
	}
	l := c.store.Create(left, right)
	return l, c.emit("create")
}

func (c *Controller) setCategory(keys []string, categoryKey string) error {
	updated, err := c.store.SetCategory(keys, categoryKey)
	if err != nil {
		c.logger.Warn("recategorization rejected", "category", categoryKey, "error", err)
		return err
	}
	c.logger.Debug("recategorized labels", "category", categoryKey, "updated", len(updated))
	return c.emit("set_category")
}

func (c *Controller) delete(keys []string) error {
	c.store.SoftDelete(keys)
	c.pruneSelection()
	return c.emit("delete")
}

// pruneSelection keeps the selection a subset of the active labels.
func (c *Controller) pruneSelection() bool {
	return c.selection.Retain(c.store.IsActive)
}

func (c *Controller) payload() Payload {
	return Payload{
		Labels:    c.store.ListActive(),
		Selection: c.selection.Keys(),
		Deleted:   c.store.Deleted(),
	}
}

func (c *Controller) emit(reason string) error {
	if c.emitter == nil {
		return nil
	}
	p := c.payload()
	if err := c.emitter.Emit(p); err != nil {
		c.logger.Error("emit failed", "reason", reason, "error", err)
		return fmt.Errorf("emit after %s: %w", reason, err)
	}
	c.logger.Debug("emitted payload",
		"reason", reason,
		"labels", len(p.Labels),
		"selection", len(p.Selection),
		"deleted", len(p.Deleted))
	return nil
}
