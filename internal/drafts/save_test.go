package drafts_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machineskills/console/internal/drafts"
	"github.com/machineskills/console/internal/media"
	"github.com/machineskills/console/internal/staging"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 32)...)

// readingRepo reads every attachment the way the backend client streams it.
type readingRepo struct {
	mu            sync.Mutex
	uploaded      []string
	afterUpload   func(n int)
	bodiesMatched int
}

func (r *readingRepo) CreateParent(ctx context.Context, fields media.Fields) (string, error) {
	return "center-7", nil
}

func (r *readingRepo) UpdateParent(ctx context.Context, id string, fields media.Fields) error {
	return nil
}

func (r *readingRepo) UploadAttachment(ctx context.Context, parentID string, f media.File, meta media.Metadata) (media.Descriptor, error) {
	rc, err := f.Open()
	if err != nil {
		return media.Descriptor{}, err
	}
	body, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return media.Descriptor{}, err
	}

	r.mu.Lock()
	r.uploaded = append(r.uploaded, f.ID)
	if bytes.Equal(body, pngBytes) {
		r.bodiesMatched++
	}
	n := len(r.uploaded)
	hook := r.afterUpload
	r.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return media.Descriptor{ID: f.ID}, nil
}

func (r *readingRepo) uploadedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.uploaded...)
}

func TestCloseDuringUploadsKeepsPendingBytes(t *testing.T) {
	dir := t.TempDir()
	stage, err := staging.New(staging.Config{Dir: dir, MaxBytes: 1 << 20})
	require.NoError(t, err)
	store := drafts.NewStore(drafts.Config{Previews: stage})

	repo := &readingRepo{}
	d := store.Open(drafts.OpenParams{Owner: "o", Entity: "center", Fields: media.Fields{"title": "Busan"}, Repository: repo})

	var selection []media.File
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		f, err := stage.Stage(name, bytes.NewReader(pngBytes))
		require.NoError(t, err)
		selection = append(selection, f)
	}
	require.NoError(t, d.Select(selection))
	require.Equal(t, 3, stage.ActivePreviews())

	repo.afterUpload = func(n int) {
		if n == 1 {
			store.CloseOwner("o")
		}
	}

	out, err := d.Save(context.Background())
	require.NoError(t, err)

	assert.Equal(t, media.StateAllUploaded, out.State)
	assert.Equal(t, 3, out.Succeeded)
	assert.Zero(t, out.Failed)
	assert.Equal(t, []string{selection[0].ID, selection[1].ID, selection[2].ID}, repo.uploadedIDs())
	assert.Equal(t, 3, repo.bodiesMatched)

	assert.True(t, d.Closed())
	assert.Zero(t, stage.ActivePreviews())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged bytes are removed once the save returns")
}

func TestSelectRacingSaveIsNeverLost(t *testing.T) {
	for i := 0; i < 200; i++ {
		store, previews, _ := newStore()
		repo := &readingRepo{}
		d := store.Open(drafts.OpenParams{Owner: "o", Entity: "album", Repository: repo})
		require.NoError(t, d.Select(testFiles("a")))

		var (
			wg        sync.WaitGroup
			selectErr error
			saveErr   error
		)
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, saveErr = d.Save(context.Background())
		}()
		go func() {
			defer wg.Done()
			<-start
			selectErr = d.Select(testFiles("b"))
		}()
		close(start)
		wg.Wait()

		require.NoError(t, saveErr)
		uploaded := repo.uploadedIDs()
		switch {
		case selectErr == nil:
			assert.Equal(t, []string{"b"}, uploaded, "an accepted selection is part of the save")
		case errors.Is(selectErr, drafts.ErrBusy), errors.Is(selectErr, media.ErrClosed):
			assert.Equal(t, []string{"a"}, uploaded)
		default:
			t.Fatalf("unexpected select error: %v", selectErr)
		}
		assert.Zero(t, previews.count())
	}
}
