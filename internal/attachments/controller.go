package attachments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/machineskills/console/internal/drafts"
	"github.com/machineskills/console/internal/media"
	"github.com/machineskills/console/internal/shared"
	"github.com/machineskills/console/internal/view"
)

// FileField is the multipart field carrying selected files.
const FileField = "files"

const maxFormMemory = 8 << 20

// Form actions posted with the draft form. Removal posts "remove:<index>".
const (
	ActionAttach = "attach"
	ActionRemove = "remove"
	ActionSave   = "save"
	ActionCancel = "cancel"
)

// Config groups Controller dependencies.
type Config struct {
	Entity Entity
	Drafts *drafts.Store
	Stager Stager
	Pages  *view.Responder
	Audit  shared.AuditRecorder
	Logger *slog.Logger
}

// Controller serves the new, edit and draft routes of one entity.
type Controller struct {
	entity Entity
	drafts *drafts.Store
	stager Stager
	pages  *view.Responder
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// NewController constructs a Controller.
func NewController(cfg Config) *Controller {
	audit := cfg.Audit
	if audit == nil {
		audit = shared.NopAuditRecorder{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		entity: cfg.Entity,
		drafts: cfg.Drafts,
		stager: cfg.Stager,
		pages:  cfg.Pages,
		audit:  audit,
		logger: logger.With(slog.String("entity", cfg.Entity.Kind())),
	}
}

// MountRoutes registers the form routes on r.
func (c *Controller) MountRoutes(r chi.Router) {
	r.Get("/new", c.openNew)
	r.Get("/{id}/edit", c.openEdit)
	r.Get("/drafts/{draft}", c.showDraft)
	r.Post("/drafts/{draft}", c.postDraft)
}

// DraftPath is the URL of a draft form.
func (c *Controller) DraftPath(id string) string {
	return fmt.Sprintf("%s/drafts/%s", c.entity.BasePath(), id)
}

func (c *Controller) openNew(w http.ResponseWriter, r *http.Request) {
	d := c.open(r, "", media.Fields{})
	http.Redirect(w, r, c.DraftPath(d.ID), http.StatusSeeOther)
}

func (c *Controller) openEdit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fields, err := c.entity.Load(r.Context(), id)
	if err != nil {
		c.pages.BackendError(w, r, err, c.entity.BasePath(), c.entity.Label()+" could not be loaded")
		return
	}
	d := c.open(r, id, fields)
	http.Redirect(w, r, c.DraftPath(d.ID), http.StatusSeeOther)
}

func (c *Controller) open(r *http.Request, parentID string, fields media.Fields) *drafts.Draft {
	return c.drafts.Open(drafts.OpenParams{
		Owner:      ownerOf(r),
		Entity:     c.entity.Kind(),
		ParentID:   parentID,
		Fields:     fields,
		Repository: c.entity.NewRepository(),
		Messages:   media.DefaultMessages(c.entity.Label()),
		Detail:     func(err error) string { return view.UserMessage(err, "") },
		OnSaved:    c.recordSave,
	})
}

func (c *Controller) draft(w http.ResponseWriter, r *http.Request) (*drafts.Draft, bool) {
	d, err := c.drafts.Get(chi.URLParam(r, "draft"), ownerOf(r), c.entity.Kind())
	if err != nil {
		c.pages.RedirectWithFlash(w, r, c.entity.BasePath(), "warning", "This form is no longer open")
		return nil, false
	}
	return d, true
}

func (c *Controller) showDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := c.draft(w, r)
	if !ok {
		return
	}
	c.renderForm(w, r, d, d.Fields(), map[string]string{}, http.StatusOK)
}

func (c *Controller) postDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := c.draft(w, r)
	if !ok {
		return
	}
	if err := parseForm(r); err != nil {
		c.pages.RedirectWithFlash(w, r, c.DraftPath(d.ID), "error", "The form could not be read")
		return
	}

	action := r.PostFormValue("action")
	if action == ActionCancel {
		c.drafts.Close(d.ID)
		http.Redirect(w, r, c.entity.BasePath(), http.StatusSeeOther)
		return
	}

	fields := c.entity.ParseFields(r)
	d.SetFields(fields)
	c.attach(r, d)

	if raw, ok := strings.CutPrefix(action, ActionRemove+":"); ok {
		index, err := strconv.Atoi(raw)
		if err == nil {
			err = d.Remove(index)
		}
		if err != nil {
			c.flashSelectionError(r, err)
		}
		http.Redirect(w, r, c.DraftPath(d.ID), http.StatusSeeOther)
		return
	}

	switch action {
	case ActionSave:
		c.save(w, r, d, fields)
	default:
		http.Redirect(w, r, c.DraftPath(d.ID), http.StatusSeeOther)
	}
}

func (c *Controller) save(w http.ResponseWriter, r *http.Request, d *drafts.Draft, fields media.Fields) {
	if errs := c.entity.Validate(fields); len(errs) > 0 {
		c.renderForm(w, r, d, fields, errs, http.StatusUnprocessableEntity)
		return
	}

	outcome, err := d.Save(r.Context())
	if errors.Is(err, media.ErrSaveInFlight) {
		c.pages.RedirectWithFlash(w, r, c.DraftPath(d.ID), "warning", "A save is already running for this form")
		return
	}
	if outcome.State == media.StateParentFailed {
		if c.pages.EndIfUnauthorized(w, r, outcome.Err) {
			return
		}
		http.Redirect(w, r, c.DraftPath(d.ID), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, c.entity.BasePath(), http.StatusSeeOther)
}

// attach stages the files posted with the form. A posted batch replaces the
// pending selection; previews of the previous batch are released.
func (c *Controller) attach(r *http.Request, d *drafts.Draft) {
	if r.MultipartForm == nil {
		return
	}
	headers := r.MultipartForm.File[FileField]
	if len(headers) == 0 {
		return
	}
	var staged []media.File
	var rejected []string
	for _, fh := range headers {
		if fh.Size == 0 && fh.Filename == "" {
			continue
		}
		file, err := c.stage(fh)
		if err != nil {
			c.logger.Warn("stage upload", slog.String("name", fh.Filename), slog.Any("error", err))
			rejected = append(rejected, fh.Filename)
			continue
		}
		staged = append(staged, file)
	}
	if len(rejected) > 0 {
		c.pages.Flash(r, "error", "Not accepted: "+strings.Join(rejected, ", "))
	}
	if len(staged) == 0 {
		return
	}

	if err := d.Select(staged); err != nil {
		for _, f := range staged {
			c.stager.Discard(f)
		}
		c.flashSelectionError(r, err)
	}
}

func (c *Controller) stage(fh *multipart.FileHeader) (media.File, error) {
	src, err := fh.Open()
	if err != nil {
		return media.File{}, err
	}
	defer src.Close()
	return c.stager.Stage(fh.Filename, src)
}

func (c *Controller) flashSelectionError(r *http.Request, err error) {
	switch {
	case errors.Is(err, drafts.ErrBusy):
		c.pages.Flash(r, "warning", "Attachments cannot change while saving")
	case errors.Is(err, media.ErrIndexOutOfRange):
		c.pages.Flash(r, "warning", "That attachment was already removed")
	default:
		c.logger.Error("update selection", slog.Any("error", err))
		c.pages.Flash(r, "error", "Attachments could not be updated")
	}
}

// PendingView is one pending attachment as shown on the form.
type PendingView struct {
	Index      int
	Name       string
	Size       int64
	PreviewURI string
}

func (c *Controller) renderForm(w http.ResponseWriter, r *http.Request, d *drafts.Draft, fields media.Fields, errs map[string]string, status int) {
	pending := d.Pending()
	items := make([]PendingView, 0, len(pending))
	for i, p := range pending {
		items = append(items, PendingView{Index: i, Name: p.File.Name, Size: p.File.Size, PreviewURI: p.PreviewURI})
	}
	title := "New " + strings.ToLower(c.entity.Label())
	if d.Editing() {
		title = "Edit " + strings.ToLower(c.entity.Label())
	}
	data := map[string]any{
		"Label":     c.entity.Label(),
		"Action":    c.DraftPath(d.ID),
		"BasePath":  c.entity.BasePath(),
		"Editing":   d.Editing(),
		"ParentID":  d.ParentID(),
		"Fields":    fields,
		"Errors":    errs,
		"Pending":   items,
		"Saving":    d.Busy(),
		"FileField": FileField,
	}
	if dec, ok := c.entity.(FormDecorator); ok {
		dec.DecorateForm(r.Context(), d, data)
	}
	c.pages.Render(w, r, title, c.entity.FormTemplate(), data, status)
}

func (c *Controller) recordSave(ctx context.Context, d *drafts.Draft, outcome media.Outcome) {
	action := "update"
	if outcome.Created {
		action = "create"
	}
	err := c.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   d.Entity,
		EntityID: outcome.ParentID,
		Meta: map[string]any{
			"state":     outcome.State.String(),
			"succeeded": outcome.Succeeded,
			"failed":    outcome.Failed,
		},
	})
	if err != nil {
		c.logger.Warn("record audit", slog.Any("error", err))
	}
}

func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if r.MultipartForm != nil {
			return nil
		}
		return r.ParseMultipartForm(maxFormMemory)
	}
	return r.ParseForm()
}

func ownerOf(r *http.Request) string {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		return sess.ID
	}
	return ""
}
