// Package attachments serves the draft based forms of every record type that
// carries image attachments.
package attachments

import (
	"context"
	"io"
	"net/http"

	"github.com/machineskills/console/internal/drafts"
	"github.com/machineskills/console/internal/media"
)

// Entity supplies the record specific parts of an attachment form.
type Entity interface {
	// Kind is the stable identifier used for drafts, metrics and audit rows.
	Kind() string
	// Label is the human name, e.g. "Album".
	Label() string
	// BasePath is the route prefix the controller is mounted under.
	BasePath() string
	FormTemplate() string
	ParseFields(r *http.Request) media.Fields
	// Validate returns field errors keyed by field name.
	Validate(fields media.Fields) map[string]string
	// Load fetches the field values of an existing record.
	Load(ctx context.Context, id string) (media.Fields, error)
	// NewRepository returns the collaborator for one draft.
	NewRepository() media.AttachmentRepository
}

// FormDecorator adds entity specific values to the form page.
type FormDecorator interface {
	DecorateForm(ctx context.Context, d *drafts.Draft, data map[string]any)
}

// Stager turns uploaded form parts into media files.
type Stager interface {
	Stage(name string, r io.Reader) (media.File, error)
	Discard(file media.File)
}
