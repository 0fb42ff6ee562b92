package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kittclouds/labelgraph/internal/journal"
	"github.com/kittclouds/labelgraph/internal/store"
	"github.com/kittclouds/labelgraph/pkg/category"
	"github.com/kittclouds/labelgraph/pkg/label"
	"github.com/kittclouds/labelgraph/pkg/widget"
)

// ErrGroupMismatch is returned when a request names another group.
var ErrGroupMismatch = errors.New("host: request group does not match session")

// SessionConfig configures a Session.
type SessionConfig struct {
	Group    string
	Registry *category.Registry
	Store    store.Storer
	// Journal is optional.
	Journal *journal.Journal
	// Extra receives every payload after it has been persisted.
	Extra  widget.Emitter
	Logger *slog.Logger
	// Clock stamps stored versions. Defaults to time.Now.
	Clock   func() time.Time
	KeyFunc func() string
}

// Session binds one widget controller to the host store for a group.
// Every payload the controller emits is written to the store (and the
// journal, when configured) before the command returns.
type Session struct {
	group   string
	store   store.Storer
	journal *journal.Journal
	clock   func() time.Time
	logger  *slog.Logger

	ctrl   *widget.Controller
	engine *Engine

	mu        sync.Mutex
	lastApply store.ApplyResult
}

// NewSession builds a session. The controller is not initialized until Open.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Group == "" {
		return nil, fmt.Errorf("host: group is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("host: store is required")
	}
	s := &Session{
		group:   cfg.Group,
		store:   cfg.Store,
		journal: cfg.Journal,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("group", cfg.Group)

	emitters := widget.MultiEmitter{widget.EmitterFunc(s.persist)}
	if s.journal != nil {
		emitters = append(emitters, s.journal.Emitter(cfg.Group))
	}
	emitters = append(emitters, cfg.Extra)

	opts := []widget.Option{widget.WithLogger(s.logger)}
	if cfg.KeyFunc != nil {
		opts = append(opts, widget.WithKeyFunc(cfg.KeyFunc))
	}
	s.ctrl = widget.New(cfg.Registry, emitters, opts...)
	s.engine = NewEngine(s.ctrl,
		WithSnapshotSource(s.Snapshot),
		WithEngineLogger(s.logger),
	)
	return s, nil
}

// Open initializes the controller from the labels stored for the group.
func (s *Session) Open() error {
	snap, err := s.Snapshot()
	if err != nil {
		return err
	}
	if err := s.ctrl.Init(snap); err != nil {
		return fmt.Errorf("host: open %s: %w", s.group, err)
	}
	s.logger.Info("session opened", "labels", len(snap))
	return nil
}

// Snapshot returns the stored labels of the group as a widget snapshot.
func (s *Session) Snapshot() (label.Snapshot, error) {
	stored, err := s.store.ListLabels(s.group)
	if err != nil {
		return nil, fmt.Errorf("host: list %s: %w", s.group, err)
	}
	return store.Snapshot(stored), nil
}

// Sync reconciles the controller with the store.
func (s *Session) Sync() (label.ReconcileStats, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return label.ReconcileStats{}, err
	}
	return s.ctrl.Reconcile(snap)
}

// Execute runs a JSON request against the session.
func (s *Session) Execute(reqJSON []byte) ([]byte, error) {
	var req Request
	if err := json.Unmarshal(reqJSON, &req); err != nil {
		return nil, fmt.Errorf("host: invalid request JSON: %w", err)
	}
	resp, err := s.Run(req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

// Run runs a decoded request. An empty request group means this session.
func (s *Session) Run(req Request) (Response, error) {
	if req.Group != "" && req.Group != s.group {
		return Response{}, fmt.Errorf("%w: %q", ErrGroupMismatch, req.Group)
	}
	req.Group = s.group
	return s.engine.Run(req), nil
}

// Controller exposes the underlying widget controller.
func (s *Session) Controller() *widget.Controller { return s.ctrl }

// Group returns the group the session is bound to.
func (s *Session) Group() string { return s.group }

// LastApply reports the store writes of the most recent emit.
func (s *Session) LastApply() store.ApplyResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastApply
}

// Close closes the controller. The store belongs to the caller.
func (s *Session) Close() error {
	return s.ctrl.Close()
}

func (s *Session) persist(p widget.Payload) error {
	res, err := store.Apply(s.store, s.group, p.Labels, p.Deleted, s.clock().UnixMilli())
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	s.mu.Lock()
	s.lastApply = res
	s.mu.Unlock()
	s.logger.Debug("payload persisted",
		"written", res.Written,
		"stale", res.Stale,
		"deleted", res.Deleted,
		"selection", len(p.Selection),
	)
	return nil
}
