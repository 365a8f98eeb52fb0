package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookgate/internal/delivery"
	"github.com/mattjoyce/hookgate/internal/log"
	"github.com/mattjoyce/hookgate/internal/storage"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json") // Suppress logs in tests
	os.Exit(m.Run())
}

func setupQueue(t *testing.T) *delivery.Queue {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "hookgate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return delivery.New(db)
}

func TestProcessNext(t *testing.T) {
	t.Parallel()

	q := setupQueue(t)
	ctx := context.Background()

	okID, err := q.Enqueue(ctx, delivery.EnqueueRequest{Source: "/hook", Payload: []byte(`good`)})
	require.NoError(t, err)
	badID, err := q.Enqueue(ctx, delivery.EnqueueRequest{Source: "/hook", Payload: []byte(`bad`)})
	require.NoError(t, err)

	var seen []string
	d := New(q, HandlerFunc(func(_ context.Context, id string, payload []byte) error {
		seen = append(seen, id)
		if string(payload) == "bad" {
			return errors.New("cannot parse")
		}
		return nil
	}), Options{})

	for n := 0; n < 2; n++ {
		processed, err := d.ProcessNext(ctx)
		require.NoError(t, err)
		assert.True(t, processed)
	}
	processed, err := d.ProcessNext(ctx)
	require.NoError(t, err)
	assert.False(t, processed)

	assert.Equal(t, []string{okID, badID}, seen)

	good, err := q.Get(ctx, okID)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDone, good.Status)
	assert.Nil(t, good.LastError)

	bad, err := q.Get(ctx, badID)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusFailed, bad.Status)
	require.NotNil(t, bad.LastError)
	assert.Equal(t, "cannot parse", *bad.LastError)
}

type countingGuard struct {
	prunes atomic.Int32
}

func (g *countingGuard) Seen(context.Context, string, time.Time) (bool, error) { return false, nil }

func (g *countingGuard) Forget(context.Context, string) error { return nil }

func (g *countingGuard) Prune(context.Context) error {
	g.prunes.Add(1)
	return nil
}

func TestStart_DrainsQueueAndPrunes(t *testing.T) {
	t.Parallel()

	q := setupQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := q.Enqueue(ctx, delivery.EnqueueRequest{Source: "/hook", Payload: []byte(`{}`)})
	require.NoError(t, err)

	guard := &countingGuard{}
	done := make(chan struct{})
	d := New(q, HandlerFunc(func(context.Context, string, []byte) error {
		close(done)
		return nil
	}), Options{
		PollInterval:  10 * time.Millisecond,
		PruneInterval: 10 * time.Millisecond,
		Guard:         guard,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("delivery was not dispatched")
	}

	require.Eventually(t, func() bool {
		dl, err := q.Get(context.Background(), id)
		return err == nil && dl.Status == delivery.StatusDone
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return guard.prunes.Load() > 0 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}
