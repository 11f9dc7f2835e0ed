package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/EHam1/very-professional-blog/internal/clientstore"
	"github.com/EHam1/very-professional-blog/pkg/types"
	"github.com/google/uuid"
)

func TestVisitorID_CreatedOnceAndReused(t *testing.T) {
	kv := clientstore.NewMemoryStore()
	store := New(kv)

	first := store.VisitorID()
	if first == "" {
		t.Fatal("expected a generated visitor id")
	}
	if _, err := uuid.Parse(string(first)); err != nil {
		t.Errorf("visitor id should be a UUID: %v", err)
	}

	if second := store.VisitorID(); second != first {
		t.Errorf("got %q on second call, want %q", second, first)
	}

	if v, ok, _ := kv.Get(types.VisitorIDKey); !ok || v != string(first) {
		t.Errorf("stored id = %q ok=%v, want %q", v, ok, first)
	}
}

func TestVisitorID_ExistingRecordReturnedUnchanged(t *testing.T) {
	kv := clientstore.NewMemoryStore()
	kv.Set(types.VisitorIDKey, "existing-visitor", time.Time{})

	calls := 0
	store := New(kv, WithGenerator(func() (uuid.UUID, error) {
		calls++
		return uuid.New(), nil
	}))

	if got := store.VisitorID(); got != "existing-visitor" {
		t.Errorf("got %q, want existing-visitor", got)
	}
	if calls != 0 {
		t.Errorf("generator called %d times, want 0", calls)
	}
}

func TestVisitorID_NoStorage(t *testing.T) {
	if got := New(nil).VisitorID(); got != "" {
		t.Errorf("got %q, want empty id without storage", got)
	}

	var nilStore *Store
	if got := nilStore.VisitorID(); got != "" {
		t.Errorf("nil store: got %q, want empty id", got)
	}
}

type failingKV struct {
	getErr error
	setErr error
}

func (f failingKV) Get(string) (string, bool, error)    { return "", false, f.getErr }
func (f failingKV) Set(string, string, time.Time) error { return f.setErr }
func (f failingKV) Delete(string) error                 { return nil }

func TestVisitorID_StorageFailures(t *testing.T) {
	if got := New(failingKV{getErr: errors.New("denied")}).VisitorID(); got != "" {
		t.Errorf("unreadable storage: got %q, want empty id", got)
	}

	if got := New(failingKV{setErr: errors.New("quota exceeded")}).VisitorID(); got == "" {
		t.Error("unwritable storage should still yield a session id")
	}

	failGen := WithGenerator(func() (uuid.UUID, error) { return uuid.Nil, errors.New("entropy") })
	if got := New(clientstore.NewMemoryStore(), failGen).VisitorID(); got != "" {
		t.Errorf("generator failure: got %q, want empty id", got)
	}
}
