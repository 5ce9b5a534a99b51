package media

import (
	"fmt"
	"sync"
)

// PendingAttachment is a selected file together with its live preview.
type PendingAttachment struct {
	File       File
	PreviewURI string
}

// PreviewManager owns the pending attachment set of one form and every preview
// resource created for it. Each created preview is released exactly once.
type PreviewManager struct {
	mu       sync.Mutex
	previews Previewer
	pending  []PendingAttachment
	closed   bool
}

// NewPreviewManager constructs a manager backed by previews.
func NewPreviewManager(previews Previewer) *PreviewManager {
	return &PreviewManager{previews: previews}
}

// SetSelection replaces the pending set with files. Previews of files that are
// not part of the new selection are released before any new preview is created.
func (m *PreviewManager) SetSelection(files []File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	keep := make(map[string]string, len(files))
	wanted := make(map[string]struct{}, len(files))
	for _, f := range files {
		wanted[f.ID] = struct{}{}
	}
	for _, p := range m.pending {
		if _, ok := wanted[p.File.ID]; ok {
			if _, dup := keep[p.File.ID]; !dup {
				keep[p.File.ID] = p.PreviewURI
				continue
			}
		}
		m.previews.ReleasePreview(p.PreviewURI)
	}

	next := make([]PendingAttachment, 0, len(files))
	var created []string
	for _, f := range files {
		if uri, ok := keep[f.ID]; ok {
			delete(keep, f.ID)
			next = append(next, PendingAttachment{File: f, PreviewURI: uri})
			continue
		}
		uri, err := m.previews.CreatePreview(f)
		if err != nil {
			for _, c := range created {
				m.previews.ReleasePreview(c)
			}
			// Kept previews belong to the new set only once it is committed.
			for _, p := range next {
				if !contains(created, p.PreviewURI) {
					m.previews.ReleasePreview(p.PreviewURI)
				}
			}
			m.pending = nil
			return fmt.Errorf("media: create preview for %s: %w", f.Name, err)
		}
		created = append(created, uri)
		next = append(next, PendingAttachment{File: f, PreviewURI: uri})
	}
	m.pending = next
	return nil
}

// Remove releases the preview at index and drops the entry; later entries shift down.
func (m *PreviewManager) Remove(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if index < 0 || index >= len(m.pending) {
		return ErrIndexOutOfRange
	}
	m.previews.ReleasePreview(m.pending[index].PreviewURI)
	m.pending = append(m.pending[:index:index], m.pending[index+1:]...)
	return nil
}

// Clear releases every preview and empties the set.
func (m *PreviewManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseAll()
}

// Close tears the manager down. Later mutations fail with ErrClosed.
func (m *PreviewManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseAll()
	m.closed = true
}

// Pending returns a snapshot of the pending set in selection order.
func (m *PreviewManager) Pending() []PendingAttachment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PendingAttachment, len(m.pending))
	copy(out, m.pending)
	return out
}

// Hold snapshots the pending set and pins the bytes of every file in it so a
// Clear or Close during the upload phase releases previews only. The returned
// func drops the pins and must be called exactly once.
func (m *PreviewManager) Hold() ([]PendingAttachment, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PendingAttachment, len(m.pending))
	copy(out, m.pending)

	retainer, ok := m.previews.(Retainer)
	if !ok {
		return out, func() {}
	}
	held := make([]File, 0, len(out))
	for _, p := range out {
		if err := retainer.Retain(p.File); err != nil {
			continue
		}
		held = append(held, p.File)
	}
	return out, func() {
		for _, f := range held {
			retainer.Release(f)
		}
	}
}

// Len reports the number of pending attachments.
func (m *PreviewManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Closed reports whether Close has been called.
func (m *PreviewManager) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *PreviewManager) releaseAll() {
	for _, p := range m.pending {
		m.previews.ReleasePreview(p.PreviewURI)
	}
	m.pending = nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
