package notify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machineskills/console/internal/media"
	"github.com/machineskills/console/internal/notify"
	"github.com/machineskills/console/internal/shared"
)

func TestSessionSinkStacksToasts(t *testing.T) {
	mr := miniredis.RunT(t)
	sessions := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "s", "secret", time.Hour, false)
	sess, err := sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	ctx := shared.ContextWithSession(context.Background(), sess)

	sink := notify.NewSessionSink(0, nil)
	sink.Notify(ctx, "Album saved", media.SeveritySuccess)
	sink.Notify(ctx, "2 of 3 images failed to upload", media.SeverityWarning)

	flashes := sess.PopFlashes()
	require.Len(t, flashes, 2)
	assert.Equal(t, "success", flashes[0].Kind)
	assert.Equal(t, "warning", flashes[1].Kind)
	assert.EqualValues(t, 4200, flashes[0].DismissMS)
	assert.Nil(t, sess.PopFlashes())
}

func TestSessionSinkWithoutSession(t *testing.T) {
	sink := notify.NewSessionSink(time.Second, nil)
	assert.NotPanics(t, func() {
		sink.Notify(context.Background(), "lost", media.SeverityError)
	})
}
