// Package drafts keeps open form instances between requests.
package drafts

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/machineskills/console/internal/media"
)

var (
	// ErrNotFound is returned for unknown, closed or foreign drafts.
	ErrNotFound = errors.New("drafts: not found")
	// ErrBusy rejects selection changes while the draft is saving.
	ErrBusy = errors.New("drafts: save in progress")
)

// Config wires the collaborators shared by every draft.
type Config struct {
	Previews media.Previewer
	Notifier media.Notifier
	Observer media.Observer
	Logger   *slog.Logger
	Now      func() time.Time
}

// OpenParams describes a new draft.
type OpenParams struct {
	Owner      string
	Entity     string
	ParentID   string
	Fields     media.Fields
	Repository media.AttachmentRepository
	Messages   media.Messages
	// Detail turns a parent save error into text shown with the failure toast.
	Detail func(err error) string
	// OnSaved runs after a save whose parent phase succeeded, while the form is open.
	OnSaved func(ctx context.Context, d *Draft, outcome media.Outcome)
}

// Store owns every open draft.
type Store struct {
	cfg Config

	mu     sync.Mutex
	drafts map[string]*Draft
}

// NewStore constructs an empty store.
func NewStore(cfg Config) *Store {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{cfg: cfg, drafts: make(map[string]*Draft)}
}

// Open creates a draft with its own preview manager and save coordinator.
func (s *Store) Open(p OpenParams) *Draft {
	d := &Draft{
		ID:       uuid.NewString(),
		Entity:   p.Entity,
		Owner:    p.Owner,
		parentID: p.ParentID,
		fields:   p.Fields.Clone(),
		touched:  s.cfg.Now(),
		now:      s.cfg.Now,
	}
	d.previews = media.NewPreviewManager(s.cfg.Previews)
	hooks := media.Hooks{
		Mounted: func() bool { return !d.closed.Load() },
		Close:   func() { s.Close(d.ID) },
	}
	if p.OnSaved != nil {
		hooks.OnSaved = func(ctx context.Context, outcome media.Outcome) { p.OnSaved(ctx, d, outcome) }
	}
	d.coordinator = media.NewSaveCoordinator(media.CoordinatorConfig{
		Entity:     p.Entity,
		Repository: p.Repository,
		Previews:   d.previews,
		Notifier:   s.cfg.Notifier,
		Messages:   p.Messages,
		Detail:     p.Detail,
		Hooks:      hooks,
		Observer:   s.cfg.Observer,
		Logger:     s.cfg.Logger.With(slog.String("draft_id", d.ID)),
	})

	s.mu.Lock()
	s.drafts[d.ID] = d
	s.mu.Unlock()
	return d
}

// Get returns the owner's draft of the given entity.
func (s *Store) Get(id, owner, entity string) (*Draft, error) {
	s.mu.Lock()
	d, ok := s.drafts[id]
	s.mu.Unlock()
	if !ok || d.Owner != owner || d.Entity != entity || d.Closed() {
		return nil, ErrNotFound
	}
	d.touch()
	return d, nil
}

// Close tears a draft down, releasing every preview it holds.
func (s *Store) Close(id string) {
	s.mu.Lock()
	d, ok := s.drafts[id]
	delete(s.drafts, id)
	s.mu.Unlock()
	if ok {
		d.teardown()
	}
}

// CloseOwner tears down every draft of owner, e.g. on logout.
func (s *Store) CloseOwner(owner string) int {
	return s.closeWhere(func(d *Draft) bool { return d.Owner == owner })
}

// CloseIdle tears down drafts untouched for longer than ttl. Drafts that are
// saving are left alone.
func (s *Store) CloseIdle(ttl time.Duration) int {
	cutoff := s.cfg.Now().Add(-ttl)
	return s.closeWhere(func(d *Draft) bool {
		return !d.Busy() && d.lastTouched().Before(cutoff)
	})
}

// CloseAll tears down every draft.
func (s *Store) CloseAll() int {
	return s.closeWhere(func(*Draft) bool { return true })
}

func (s *Store) closeWhere(match func(*Draft) bool) int {
	s.mu.Lock()
	var victims []*Draft
	for id, d := range s.drafts {
		if match(d) {
			victims = append(victims, d)
			delete(s.drafts, id)
		}
	}
	s.mu.Unlock()
	for _, d := range victims {
		d.teardown()
	}
	return len(victims)
}

// Len reports the number of open drafts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts)
}

// RunJanitor closes idle drafts every interval until ctx is done.
func (s *Store) RunJanitor(ctx context.Context, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.CloseIdle(ttl); n > 0 {
				s.cfg.Logger.Info("closed idle drafts", slog.Int("count", n))
			}
		}
	}
}

// Draft is one open form instance.
type Draft struct {
	ID     string
	Entity string
	Owner  string

	previews    *media.PreviewManager
	coordinator *media.SaveCoordinator
	closed      atomic.Bool
	now         func() time.Time

	// selMu orders selection changes against the start of a save.
	selMu  sync.Mutex
	saving bool

	mu       sync.Mutex
	parentID string
	fields   media.Fields
	touched  time.Time
}

// ParentID is the existing record ID, empty in create mode.
func (d *Draft) ParentID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.parentID
}

// Editing reports whether the draft edits an existing record.
func (d *Draft) Editing() bool {
	return d.ParentID() != ""
}

// Fields returns a copy of the current field values.
func (d *Draft) Fields() media.Fields {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fields.Clone()
}

// SetFields replaces the field values.
func (d *Draft) SetFields(fields media.Fields) {
	d.mu.Lock()
	d.fields = fields.Clone()
	d.mu.Unlock()
}

// Pending returns the pending attachments in selection order.
func (d *Draft) Pending() []media.PendingAttachment {
	return d.previews.Pending()
}

// Select replaces the pending attachments.
func (d *Draft) Select(files []media.File) error {
	d.selMu.Lock()
	defer d.selMu.Unlock()
	if d.saving {
		return ErrBusy
	}
	return d.previews.SetSelection(files)
}

// Remove drops the pending attachment at index.
func (d *Draft) Remove(index int) error {
	d.selMu.Lock()
	defer d.selMu.Unlock()
	if d.saving {
		return ErrBusy
	}
	return d.previews.Remove(index)
}

// Save runs the two-phase save with the current fields. The selection is
// frozen from the moment the save starts until it returns.
func (d *Draft) Save(ctx context.Context) (media.Outcome, error) {
	d.selMu.Lock()
	if d.saving {
		d.selMu.Unlock()
		return media.Outcome{}, media.ErrSaveInFlight
	}
	d.saving = true
	d.selMu.Unlock()
	defer func() {
		d.selMu.Lock()
		d.saving = false
		d.selMu.Unlock()
	}()

	d.touch()
	return d.coordinator.Save(ctx, media.SaveRequest{ParentID: d.ParentID(), Fields: d.Fields()})
}

// State is the coordinator state.
func (d *Draft) State() media.State {
	return d.coordinator.State()
}

// Busy reports whether a save is running.
func (d *Draft) Busy() bool {
	d.selMu.Lock()
	defer d.selMu.Unlock()
	return d.saving
}

// Closed reports whether the draft was torn down.
func (d *Draft) Closed() bool {
	return d.closed.Load()
}

func (d *Draft) teardown() {
	if d.closed.Swap(true) {
		return
	}
	d.previews.Close()
}

func (d *Draft) touch() {
	d.mu.Lock()
	d.touched = d.now()
	d.mu.Unlock()
}

func (d *Draft) lastTouched() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.touched
}
