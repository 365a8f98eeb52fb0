package transcript

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookgate/internal/storage"
)

func newTestHandler(t *testing.T) (*Handler, *Store) {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "hookgate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewStore(db)
	return NewHandler(store), store
}

func TestClean(t *testing.T) {
	got := Clean([]string{"  hello ", "", "   ", "\tworld\n"})
	assert.Equal(t, []string{"hello", "world"}, got)
	assert.Empty(t, Clean(nil))
}

func TestLines(t *testing.T) {
	got := Lines([]Turn{
		{Role: "agent", Message: " Hi, how old is your child? "},
		{Role: "user", Message: "   "},
		{Role: "", Message: "four"},
	})
	assert.Equal(t, []string{"agent: Hi, how old is your child?", "unknown: four"}, got)
}

func TestHandle_StoresPostCallTranscript(t *testing.T) {
	t.Parallel()

	h, store := newTestHandler(t)
	payload := []byte(`{
  "type": "post_call_transcription",
  "event_timestamp": 1700000000,
  "data": {
    "agent_id": "agent_1",
    "conversation_id": "conv_1",
    "transcript": [
      {"role": "agent", "message": "Hello"},
      {"role": "user", "message": " Hi there "}
    ]
  }
}`)

	require.NoError(t, h.Handle(context.Background(), "del-1", payload))

	rec, err := store.Get(context.Background(), "conv_1")
	require.NoError(t, err)
	assert.Equal(t, "agent_1", rec.AgentID)
	assert.Equal(t, "del-1", rec.DeliveryID)
	assert.Equal(t, []string{"agent: Hello", "user: Hi there"}, rec.Lines)
	require.NotNil(t, rec.EventAt)
	assert.Equal(t, int64(1700000000), rec.EventAt.Unix())
}

func TestHandle_RedeliveryReplaces(t *testing.T) {
	t.Parallel()

	h, store := newTestHandler(t)
	first := []byte(`{"type":"post_call_transcription","data":{"conversation_id":"c","transcript":[{"role":"agent","message":"one"}]}}`)
	second := []byte(`{"type":"post_call_transcription","data":{"conversation_id":"c","transcript":[{"role":"agent","message":"two"}]}}`)

	require.NoError(t, h.Handle(context.Background(), "d1", first))
	require.NoError(t, h.Handle(context.Background(), "d2", second))

	rec, err := store.Get(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, "d2", rec.DeliveryID)
	assert.Equal(t, []string{"agent: two"}, rec.Lines)
	assert.Nil(t, rec.EventAt)
}

func TestHandle_Errors(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	ctx := context.Background()

	assert.Error(t, h.Handle(ctx, "d", []byte(`not json`)))
	assert.Error(t, h.Handle(ctx, "d", []byte(`{"type":"post_call_transcription","data":{"transcript":[]}}`)))
	assert.ErrorIs(t,
		h.Handle(ctx, "d", []byte(`{"type":"post_call_transcription","data":{"conversation_id":"c","transcript":[{"role":"user","message":"  "}]}}`)),
		ErrEmptyTranscript,
	)
}

func TestHandle_SkipsOtherEvents(t *testing.T) {
	t.Parallel()

	h, store := newTestHandler(t)
	require.NoError(t, h.Handle(context.Background(), "d", []byte(`{"type":"post_call_audio","data":{"conversation_id":"c"}}`)))

	_, err := store.Get(context.Background(), "c")
	assert.ErrorIs(t, err, ErrNotFound)
}
