package presence

import (
	"testing"
	"time"
)

func TestTrackerLastValueWins(t *testing.T) {
	tr := NewTracker()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return fixed }

	tr.Upsert("u1", 1, 2, "#111111")
	tr.Upsert("u1", 5, 6, "#222222")

	c, ok := tr.Get("u1")
	if !ok {
		t.Fatal("expected cursor for u1")
	}
	want := Cursor{UserID: "u1", X: 5, Y: 6, Color: "#222222", UpdatedAt: fixed}
	if c != want {
		t.Fatalf("Get() = %+v, want %+v", c, want)
	}
	if tr.Len() != 1 {
		t.Fatalf("expected one entry, got %d", tr.Len())
	}
}

func TestTrackerRemove(t *testing.T) {
	tr := NewTracker()
	tr.Upsert("u1", 1, 1, "")
	if !tr.Remove("u1") {
		t.Fatal("expected Remove to report an existing entry")
	}
	if tr.Remove("u1") {
		t.Fatal("second Remove should report nothing removed")
	}
	if _, ok := tr.Get("u1"); ok {
		t.Fatal("cursor still present after Remove")
	}
}

func TestTrackerListSorted(t *testing.T) {
	tr := NewTracker()
	tr.Upsert("c", 0, 0, "")
	tr.Upsert("a", 0, 0, "")
	tr.Upsert("b", 0, 0, "")

	got := tr.List()
	if len(got) != 3 {
		t.Fatalf("expected 3 cursors, got %d", len(got))
	}
	for i, id := range []string{"a", "b", "c"} {
		if got[i].UserID != id {
			t.Fatalf("List()[%d] = %q, want %q", i, got[i].UserID, id)
		}
	}
}
