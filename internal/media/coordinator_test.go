package media_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machineskills/console/internal/media"
)

const (
	timeoutWait = time.Second
	tick        = 5 * time.Millisecond
)

type uploadCall struct {
	ParentID string
	FileID   string
	Position int
}

type fakeRepo struct {
	mu        sync.Mutex
	createID  string
	createErr error
	updateErr error
	failFiles map[string]bool
	block     chan struct{}

	creates []media.Fields
	updates []string
	uploads []uploadCall
}

func (r *fakeRepo) CreateParent(ctx context.Context, fields media.Fields) (string, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates = append(r.creates, fields)
	return r.createID, r.createErr
}

func (r *fakeRepo) UpdateParent(ctx context.Context, id string, fields media.Fields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, id)
	return r.updateErr
}

func (r *fakeRepo) UploadAttachment(ctx context.Context, parentID string, f media.File, meta media.Metadata) (media.Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads = append(r.uploads, uploadCall{ParentID: parentID, FileID: f.ID, Position: meta.Position})
	if r.failFiles[f.ID] {
		return media.Descriptor{}, errors.New("413 payload too large")
	}
	return media.Descriptor{ID: "img-" + f.ID}, nil
}

type note struct {
	Message  string
	Severity media.Severity
}

type recordingNotifier struct {
	notes []note
}

func (n *recordingNotifier) Notify(_ context.Context, message string, severity media.Severity) {
	n.notes = append(n.notes, note{Message: message, Severity: severity})
}

type harness struct {
	repo     *fakeRepo
	previews *fakePreviewer
	manager  *media.PreviewManager
	notifier *recordingNotifier
	coord    *media.SaveCoordinator
	mounted  bool
	saved    []media.Outcome
	closed   int
}

func newHarness(t *testing.T, repo *fakeRepo) *harness {
	t.Helper()
	h := &harness{
		repo:     repo,
		previews: newFakePreviewer(),
		notifier: &recordingNotifier{},
		mounted:  true,
	}
	h.manager = media.NewPreviewManager(h.previews)
	h.coord = media.NewSaveCoordinator(media.CoordinatorConfig{
		Entity:     "album",
		Repository: repo,
		Previews:   h.manager,
		Notifier:   h.notifier,
		Messages:   media.DefaultMessages("Album"),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Hooks: media.Hooks{
			Mounted: func() bool { return h.mounted },
			OnSaved: func(_ context.Context, o media.Outcome) { h.saved = append(h.saved, o) },
			Close:   func() { h.closed++ },
		},
	})
	return h
}

func TestSaveParentFailureSkipsUploads(t *testing.T) {
	h := newHarness(t, &fakeRepo{createErr: errors.New("500 internal")})
	require.NoError(t, h.manager.SetSelection(files("a", "b")))

	out, err := h.coord.Save(context.Background(), media.SaveRequest{Fields: media.Fields{"title": "Demo"}})
	require.NoError(t, err)

	assert.Equal(t, media.StateParentFailed, out.State)
	var perr *media.ParentSaveError
	require.ErrorAs(t, out.Err, &perr)
	assert.Equal(t, "create", perr.Op)
	assert.Empty(t, h.repo.uploads)
	assert.Equal(t, 2, h.manager.Len(), "previews stay for a retry")
	assert.Empty(t, h.saved)
	assert.Zero(t, h.closed)
	require.Len(t, h.notifier.notes, 1)
	assert.Equal(t, media.SeverityError, h.notifier.notes[0].Severity)
	assert.NotContains(t, h.notifier.notes[0].Message, "500")
}

func TestSaveCreateWithoutIDIsParentFailure(t *testing.T) {
	h := newHarness(t, &fakeRepo{})
	require.NoError(t, h.manager.SetSelection(files("a")))

	out, err := h.coord.Save(context.Background(), media.SaveRequest{Fields: media.Fields{"title": "Demo"}})
	require.NoError(t, err)

	assert.Equal(t, media.StateParentFailed, out.State)
	assert.ErrorIs(t, out.Err, media.ErrMissingParentID)
	assert.Empty(t, h.repo.uploads)
}

func TestSaveIsolatesUploadFailures(t *testing.T) {
	h := newHarness(t, &fakeRepo{createID: "7", failFiles: map[string]bool{"b": true}})
	require.NoError(t, h.manager.SetSelection(files("a", "b", "c")))

	out, err := h.coord.Save(context.Background(), media.SaveRequest{Fields: media.Fields{"title": "Demo"}})
	require.NoError(t, err)

	assert.Equal(t, media.StateSomeUploadsFailed, out.State)
	assert.Equal(t, 2, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	require.Len(t, out.UploadErrors, 1)
	assert.Equal(t, 1, out.UploadErrors[0].Position)
	assert.Len(t, h.repo.uploads, 3)
	assert.Zero(t, h.manager.Len())
	assert.Zero(t, h.previews.liveCount())
	require.Len(t, h.notifier.notes, 1)
	assert.Equal(t, media.SeverityWarning, h.notifier.notes[0].Severity)
	assert.Contains(t, h.notifier.notes[0].Message, "1 of 3")
	assert.Len(t, h.saved, 1)
	assert.Equal(t, 1, h.closed)
}

func TestSaveWithoutAttachmentsCompletesImmediately(t *testing.T) {
	h := newHarness(t, &fakeRepo{createID: "11"})

	out, err := h.coord.Save(context.Background(), media.SaveRequest{Fields: media.Fields{"title": "Demo"}})
	require.NoError(t, err)

	assert.Equal(t, media.StateAllUploaded, out.State)
	assert.Equal(t, "11", out.ParentID)
	assert.True(t, out.Created)
	assert.Len(t, h.repo.creates, 1)
	assert.Equal(t, "Demo", h.repo.creates[0].Get("title"))
	assert.Empty(t, h.repo.uploads)
	assert.Zero(t, h.manager.Len())
	assert.Equal(t, media.StateAllUploaded, h.coord.State())
	require.Len(t, h.notifier.notes, 1)
	assert.Equal(t, media.SeveritySuccess, h.notifier.notes[0].Severity)
	assert.Equal(t, 1, h.closed)
}

func TestSaveEditModeUploadsInSelectionOrder(t *testing.T) {
	h := newHarness(t, &fakeRepo{})
	require.NoError(t, h.manager.SetSelection(files("second", "first")))

	out, err := h.coord.Save(context.Background(), media.SaveRequest{ParentID: "42", Fields: media.Fields{"title": "Edited"}})
	require.NoError(t, err)

	assert.Equal(t, media.StateAllUploaded, out.State)
	assert.False(t, out.Created)
	assert.Equal(t, []string{"42"}, h.repo.updates)
	assert.Empty(t, h.repo.creates)
	assert.Equal(t, []uploadCall{
		{ParentID: "42", FileID: "second", Position: 0},
		{ParentID: "42", FileID: "first", Position: 1},
	}, h.repo.uploads)
	assert.Equal(t, 2, out.Succeeded)
}

func TestSaveUpdateFailure(t *testing.T) {
	h := newHarness(t, &fakeRepo{updateErr: errors.New("404")})

	out, err := h.coord.Save(context.Background(), media.SaveRequest{ParentID: "42"})
	require.NoError(t, err)

	assert.Equal(t, media.StateParentFailed, out.State)
	assert.Equal(t, "42", out.ParentID)
	assert.False(t, out.Created)
	var perr *media.ParentSaveError
	require.ErrorAs(t, out.Err, &perr)
	assert.Equal(t, "update", perr.Op)
}

func TestSaveFailureMessageCarriesDetail(t *testing.T) {
	errTaken := errors.New("title taken")
	for name, tc := range map[string]struct {
		detail string
		want   string
	}{
		"with detail":  {detail: "Title must be unique", want: "Album could not be saved: Title must be unique"},
		"empty detail": {detail: "", want: "Album could not be saved"},
	} {
		t.Run(name, func(t *testing.T) {
			notifier := &recordingNotifier{}
			var seen error
			coord := media.NewSaveCoordinator(media.CoordinatorConfig{
				Entity:     "album",
				Repository: &fakeRepo{createErr: errTaken},
				Previews:   media.NewPreviewManager(newFakePreviewer()),
				Notifier:   notifier,
				Messages:   media.DefaultMessages("Album"),
				Detail: func(err error) string {
					seen = err
					return tc.detail
				},
				Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
			})

			out, err := coord.Save(context.Background(), media.SaveRequest{Fields: media.Fields{"title": "Dup"}})
			require.NoError(t, err)

			assert.Equal(t, media.StateParentFailed, out.State)
			assert.ErrorIs(t, seen, errTaken)
			require.Len(t, notifier.notes, 1)
			assert.Equal(t, tc.want, notifier.notes[0].Message)
		})
	}
}

func TestSaveAfterUnmountStaysQuiet(t *testing.T) {
	h := newHarness(t, &fakeRepo{createID: "5"})
	require.NoError(t, h.manager.SetSelection(files("a")))
	h.mounted = false

	out, err := h.coord.Save(context.Background(), media.SaveRequest{Fields: media.Fields{"title": "Demo"}})
	require.NoError(t, err)

	assert.Equal(t, media.StateAllUploaded, out.State)
	assert.Empty(t, h.notifier.notes)
	assert.Empty(t, h.saved)
	assert.Zero(t, h.closed)
	assert.Zero(t, h.previews.liveCount())
}

func TestSaveRejectsConcurrentSave(t *testing.T) {
	repo := &fakeRepo{createID: "9", block: make(chan struct{})}
	h := newHarness(t, repo)

	done := make(chan media.Outcome)
	go func() {
		out, _ := h.coord.Save(context.Background(), media.SaveRequest{Fields: media.Fields{"title": "Demo"}})
		done <- out
	}()

	require.Eventually(t, h.coord.Busy, timeoutWait, tick)
	_, err := h.coord.Save(context.Background(), media.SaveRequest{Fields: media.Fields{"title": "Again"}})
	assert.ErrorIs(t, err, media.ErrSaveInFlight)

	close(repo.block)
	out := <-done
	assert.Equal(t, media.StateAllUploaded, out.State)
	assert.Len(t, repo.creates, 1)
	assert.False(t, h.coord.Busy())
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, media.StateIdle.Terminal())
	assert.False(t, media.StateSavingParent.Terminal())
	assert.False(t, media.StateUploadingAttachments.Terminal())
	assert.True(t, media.StateParentFailed.Terminal())
	assert.True(t, media.StateAllUploaded.Terminal())
	assert.True(t, media.StateSomeUploadsFailed.Terminal())
	assert.Equal(t, "some_uploads_failed", media.StateSomeUploadsFailed.String())
}
