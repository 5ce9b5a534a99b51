package media

import (
	"context"
	"io"
)

// File is an opaque handle to raw bytes selected by an administrator.
type File struct {
	ID          string
	Name        string
	ContentType string
	Size        int64
	open        func() (io.ReadCloser, error)
}

// NewFile builds a File whose content is produced by open.
func NewFile(id, name, contentType string, size int64, open func() (io.ReadCloser, error)) File {
	return File{ID: id, Name: name, ContentType: contentType, Size: size, open: open}
}

// Open returns a reader over the file content.
func (f File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, ErrFileUnavailable
	}
	return f.open()
}

// Fields holds the parent form values keyed by field name.
type Fields map[string]string

// Get returns the value for key or an empty string.
func (f Fields) Get(key string) string {
	if f == nil {
		return ""
	}
	return f[key]
}

// Clone returns an independent copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Metadata accompanies each attachment upload.
type Metadata struct {
	Position int
	Caption  string
	Fields   Fields
}

// Descriptor identifies an uploaded attachment on the backend.
type Descriptor struct {
	ID  string
	URL string
}

// ParentRepository persists the parent record.
type ParentRepository interface {
	CreateParent(ctx context.Context, fields Fields) (string, error)
	UpdateParent(ctx context.Context, id string, fields Fields) error
}

// AttachmentUploader stores one attachment for an existing parent.
type AttachmentUploader interface {
	UploadAttachment(ctx context.Context, parentID string, file File, meta Metadata) (Descriptor, error)
}

// AttachmentRepository is the network collaborator used by SaveCoordinator.
type AttachmentRepository interface {
	ParentRepository
	AttachmentUploader
}

// Previewer creates and releases transient preview resources.
type Previewer interface {
	CreatePreview(file File) (string, error)
	ReleasePreview(uri string)
}

// Retainer is implemented by previewers whose preview release may free the
// file bytes. A retained file stays readable until it is released, even after
// its last preview is gone.
type Retainer interface {
	Retain(file File) error
	Release(file File)
}

// Severity classifies a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Notifier surfaces messages to the administrator. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, message string, severity Severity)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, message string, severity Severity)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, message string, severity Severity) {
	f(ctx, message, severity)
}
