package media

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// State is a step of the two-phase save state machine.
type State int

const (
	StateIdle State = iota
	StateSavingParent
	StateParentFailed
	StateUploadingAttachments
	StateAllUploaded
	StateSomeUploadsFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSavingParent:
		return "saving_parent"
	case StateParentFailed:
		return "parent_failed"
	case StateUploadingAttachments:
		return "uploading_attachments"
	case StateAllUploaded:
		return "all_uploaded"
	case StateSomeUploadsFailed:
		return "some_uploads_failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition follows s within one save.
func (s State) Terminal() bool {
	return s == StateParentFailed || s == StateAllUploaded || s == StateSomeUploadsFailed
}

// Outcome is the result of one Save call.
type Outcome struct {
	State     State
	ParentID  string
	Created   bool
	Succeeded int
	Failed    int
	// Err is the phase 1 failure, set only when State is StateParentFailed.
	Err error
	// UploadErrors lists each isolated phase 2 failure in selection order.
	UploadErrors []*UploadError
}

// SaveRequest describes the parent record being saved.
type SaveRequest struct {
	ParentID string
	Fields   Fields
}

// Messages are the user-facing notification texts of a form.
type Messages struct {
	Success string
	// Partial is formatted with the failed and total upload counts.
	Partial string
	Failure string
}

// DefaultMessages returns messages for an entity label such as "Album".
func DefaultMessages(label string) Messages {
	return Messages{
		Success: label + " saved",
		Partial: label + " saved, but %d of %d images failed to upload",
		Failure: label + " could not be saved",
	}
}

// Hooks connect the coordinator to the form that owns it.
type Hooks struct {
	// Mounted reports whether the form is still open. Nil means always mounted.
	Mounted func() bool
	// OnSaved runs after a save whose parent phase succeeded.
	OnSaved func(ctx context.Context, outcome Outcome)
	// Close closes the form after a save whose parent phase succeeded.
	Close func()
}

// Observer receives save and upload events, typically for metrics.
type Observer interface {
	ObserveSave(entity string, state State)
	ObserveUpload(entity string, ok bool)
}

// CoordinatorConfig groups SaveCoordinator dependencies.
type CoordinatorConfig struct {
	Entity     string
	Repository AttachmentRepository
	Previews   *PreviewManager
	Notifier   Notifier
	Messages   Messages
	// Detail extracts user-safe text from a phase 1 error. A non-empty result
	// is appended to the failure message.
	Detail   func(err error) string
	Hooks    Hooks
	Observer Observer
	Logger   *slog.Logger
}

// SaveCoordinator runs "save parent, then upload attachments" for one form.
type SaveCoordinator struct {
	cfg      CoordinatorConfig
	inFlight atomic.Bool

	mu    sync.Mutex
	state State
}

// NewSaveCoordinator constructs a coordinator in the idle state.
func NewSaveCoordinator(cfg CoordinatorConfig) *SaveCoordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Messages == (Messages{}) {
		cfg.Messages = DefaultMessages("Record")
	}
	return &SaveCoordinator{cfg: cfg}
}

// State returns the current state.
func (c *SaveCoordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a save is in flight.
func (c *SaveCoordinator) Busy() bool {
	return c.inFlight.Load()
}

// Save runs both phases. It returns ErrSaveInFlight without side effects when
// another Save on the same coordinator has not finished; every other failure
// is reported through the returned Outcome.
func (c *SaveCoordinator) Save(ctx context.Context, req SaveRequest) (Outcome, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return Outcome{}, ErrSaveInFlight
	}
	defer c.inFlight.Store(false)

	logger := c.cfg.Logger.With(slog.String("entity", c.cfg.Entity))
	fields := req.Fields.Clone()

	c.transition(StateSavingParent)
	outcome := Outcome{ParentID: req.ParentID}
	if req.ParentID != "" {
		if err := c.cfg.Repository.UpdateParent(ctx, req.ParentID, fields); err != nil {
			return c.parentFailed(ctx, logger, req.ParentID, &ParentSaveError{Op: "update", Err: err}), nil
		}
	} else {
		id, err := c.cfg.Repository.CreateParent(ctx, fields)
		if err == nil && id == "" {
			err = ErrMissingParentID
		}
		if err != nil {
			return c.parentFailed(ctx, logger, "", &ParentSaveError{Op: "create", Err: err}), nil
		}
		outcome.ParentID = id
		outcome.Created = true
	}

	c.transition(StateUploadingAttachments)
	pending, release := c.cfg.Previews.Hold()
	defer release()
	for i, p := range pending {
		meta := Metadata{Position: i, Fields: fields}
		if _, err := c.cfg.Repository.UploadAttachment(ctx, outcome.ParentID, p.File, meta); err != nil {
			uerr := &UploadError{Position: i, Name: p.File.Name, Err: err}
			outcome.Failed++
			outcome.UploadErrors = append(outcome.UploadErrors, uerr)
			logger.Warn("attachment upload failed",
				slog.String("parent_id", outcome.ParentID),
				slog.Int("position", i),
				slog.Any("error", err))
			c.observeUpload(false)
			continue
		}
		outcome.Succeeded++
		c.observeUpload(true)
	}

	if outcome.Failed == 0 {
		outcome.State = StateAllUploaded
	} else {
		outcome.State = StateSomeUploadsFailed
	}
	c.transition(outcome.State)
	c.observeSave(outcome.State)

	c.cfg.Previews.Clear()

	if !c.mounted() {
		logger.Info("save finished after form closed",
			slog.String("parent_id", outcome.ParentID),
			slog.String("state", outcome.State.String()))
		return outcome, nil
	}
	if outcome.State == StateAllUploaded {
		c.notify(ctx, c.cfg.Messages.Success, SeveritySuccess)
	} else {
		c.notify(ctx, fmt.Sprintf(c.cfg.Messages.Partial, outcome.Failed, len(pending)), SeverityWarning)
	}
	if c.cfg.Hooks.OnSaved != nil {
		c.cfg.Hooks.OnSaved(ctx, outcome)
	}
	if c.cfg.Hooks.Close != nil {
		c.cfg.Hooks.Close()
	}
	return outcome, nil
}

func (c *SaveCoordinator) parentFailed(ctx context.Context, logger *slog.Logger, parentID string, err *ParentSaveError) Outcome {
	logger.Error("parent save failed", slog.String("op", err.Op), slog.String("parent_id", parentID), slog.Any("error", err.Err))
	c.transition(StateParentFailed)
	c.observeSave(StateParentFailed)
	if c.mounted() {
		msg := c.cfg.Messages.Failure
		if c.cfg.Detail != nil {
			if detail := c.cfg.Detail(err.Err); detail != "" {
				msg += ": " + detail
			}
		}
		c.notify(ctx, msg, SeverityError)
	}
	return Outcome{State: StateParentFailed, ParentID: parentID, Err: err}
}

func (c *SaveCoordinator) transition(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *SaveCoordinator) mounted() bool {
	return c.cfg.Hooks.Mounted == nil || c.cfg.Hooks.Mounted()
}

func (c *SaveCoordinator) notify(ctx context.Context, msg string, sev Severity) {
	if c.cfg.Notifier != nil {
		c.cfg.Notifier.Notify(ctx, msg, sev)
	}
}

func (c *SaveCoordinator) observeSave(s State) {
	if c.cfg.Observer != nil {
		c.cfg.Observer.ObserveSave(c.cfg.Entity, s)
	}
}

func (c *SaveCoordinator) observeUpload(ok bool) {
	if c.cfg.Observer != nil {
		c.cfg.Observer.ObserveUpload(c.cfg.Entity, ok)
	}
}
