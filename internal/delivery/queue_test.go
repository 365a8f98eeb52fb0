package delivery

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mattjoyce/hookgate/internal/storage"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "hookgate.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestQueueEnqueueDequeueFIFO(t *testing.T) {
	t.Parallel()

	q := New(openTestDB(t))
	ctx := context.Background()

	id1, err := q.Enqueue(ctx, EnqueueRequest{Source: "/webhook/elevenlabs", Payload: []byte(`{"n":1}`), SignatureTimestamp: 1700000000})
	if err != nil {
		t.Fatalf("Enqueue 1: %v", err)
	}
	id2, err := q.Enqueue(ctx, EnqueueRequest{Source: "/webhook/elevenlabs", Payload: []byte(`{"n":2}`), SignatureTimestamp: 1700000001})
	if err != nil {
		t.Fatalf("Enqueue 2: %v", err)
	}

	d1, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue 1: %v", err)
	}
	if d1 == nil || d1.ID != id1 || d1.Status != StatusProcessing || d1.StartedAt == nil {
		t.Fatalf("unexpected delivery1: %#v", d1)
	}
	if string(d1.Payload) != `{"n":1}` || d1.SignatureTimestamp != 1700000000 {
		t.Fatalf("payload not preserved: %q ts=%d", d1.Payload, d1.SignatureTimestamp)
	}

	d2, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue 2: %v", err)
	}
	if d2 == nil || d2.ID != id2 {
		t.Fatalf("unexpected delivery2: %#v", d2)
	}

	d3, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue 3: %v", err)
	}
	if d3 != nil {
		t.Fatalf("expected empty queue, got %#v", d3)
	}
}

func TestQueuePreservesRawBytes(t *testing.T) {
	t.Parallel()

	q := New(openTestDB(t))
	ctx := context.Background()

	raw := []byte("{\n  \"event\" : \"ping\"\n}\n")
	id, err := q.Enqueue(ctx, EnqueueRequest{Source: "/hook", Payload: raw})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	d, err := q.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(d.Payload) != string(raw) {
		t.Fatalf("payload = %q, want %q", d.Payload, raw)
	}
}

func TestQueueComplete(t *testing.T) {
	t.Parallel()

	q := New(openTestDB(t))
	ctx := context.Background()

	id, err := q.Enqueue(ctx, EnqueueRequest{Source: "/hook", Payload: []byte(`{}`)})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}

	msg := "boom"
	if err := q.Complete(ctx, id, StatusFailed, &msg); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	d, err := q.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Status != StatusFailed || d.CompletedAt == nil || d.LastError == nil || *d.LastError != "boom" {
		t.Fatalf("unexpected completed delivery: %#v", d)
	}

	if err := q.Complete(ctx, id, StatusQueued, nil); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
	if err := q.Complete(ctx, "missing", StatusDone, nil); err != ErrDeliveryNotFound {
		t.Fatalf("Complete(missing) error = %v, want ErrDeliveryNotFound", err)
	}
}

func TestQueueEnqueueValidation(t *testing.T) {
	t.Parallel()

	q := New(openTestDB(t))
	if _, err := q.Enqueue(context.Background(), EnqueueRequest{Payload: []byte(`{}`)}); err == nil {
		t.Fatal("expected error for empty source")
	}
	if _, err := q.Get(context.Background(), "nope"); err != ErrDeliveryNotFound {
		t.Fatalf("Get(nope) error = %v, want ErrDeliveryNotFound", err)
	}
}

func TestTruncateError(t *testing.T) {
	short := "boom"
	if got := truncateError(short); got != short {
		t.Fatalf("truncateError(%q) = %q", short, got)
	}

	// "é" is two bytes; the cap lands inside one of them.
	long := "x" + strings.Repeat("é", maxErrorBytes)
	got := truncateError(long)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated error is not valid UTF-8")
	}
	if len(got) != maxErrorBytes-1 {
		t.Fatalf("len = %d, want %d", len(got), maxErrorBytes-1)
	}
	if !strings.HasPrefix(long, got) {
		t.Fatal("truncated error is not a prefix of the original")
	}
}

func TestQueueCompleteStoresValidUTF8Error(t *testing.T) {
	t.Parallel()

	q := New(openTestDB(t))
	ctx := context.Background()

	id, err := q.Enqueue(ctx, EnqueueRequest{Source: "/hook", Payload: []byte(`{}`)})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	msg := "x" + strings.Repeat("ü", maxErrorBytes)
	if err := q.Complete(ctx, id, StatusFailed, &msg); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	d, err := q.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.LastError == nil {
		t.Fatal("LastError is nil")
	}
	if len(*d.LastError) > maxErrorBytes || !utf8.ValidString(*d.LastError) {
		t.Fatalf("LastError: len=%d valid=%v", len(*d.LastError), utf8.ValidString(*d.LastError))
	}
}
