package repository

import (
	"fmt"
	"testing"

	"github.com/wrongjunior/eventfeed/internal/domain"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	repo := NewSQLiteRepository(db)
	if err := repo.Init(); err != nil {
		t.Fatal(err)
	}
	return repo
}

func TestSaveAndRecentOrder(t *testing.T) {
	repo := newTestRepo(t)
	for i := 1; i <= 5; i++ {
		if err := repo.Save(domain.RawEvent{ID: fmt.Sprintf("e%d", i), Event: "github-push"}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := repo.Recent(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("len = %d", len(all))
	}
	for i, e := range all {
		if want := fmt.Sprintf("e%d", i+1); e.ID != want {
			t.Errorf("all[%d] = %s, want %s", i, e.ID, want)
		}
	}

	last, err := repo.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(last) != 2 || last[0].ID != "e4" || last[1].ID != "e5" {
		t.Errorf("Recent(2) = %+v", last)
	}
}

func TestSaveIgnoresDuplicateID(t *testing.T) {
	repo := newTestRepo(t)
	event := domain.RawEvent{ID: "dup1", Message: "first"}
	if err := repo.Save(event); err != nil {
		t.Fatal(err)
	}
	event.Message = "second"
	if err := repo.Save(event); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := repo.DB.QueryRow("SELECT COUNT(*) FROM events WHERE id = ?", event.ID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected the event stored once, got %d", count)
	}
}

func TestBodyPresenceAndLabelsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	empty := ""
	if err := repo.Save(domain.RawEvent{ID: "with-body", Body: &empty, Labels: []domain.Label{{Name: "bug", Color: "fc2929"}}}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(domain.RawEvent{ID: "no-body"}); err != nil {
		t.Fatal(err)
	}

	events, err := repo.Recent(0)
	if err != nil {
		t.Fatal(err)
	}
	if !events[0].HasBody() || *events[0].Body != "" {
		t.Errorf("empty body must stay present: %+v", events[0])
	}
	if len(events[0].Labels) != 1 || events[0].Labels[0].Name != "bug" {
		t.Errorf("labels = %+v", events[0].Labels)
	}
	if events[1].HasBody() {
		t.Errorf("absent body must stay absent: %+v", events[1])
	}
}

func TestPrune(t *testing.T) {
	repo := newTestRepo(t)
	for i := 1; i <= 10; i++ {
		if err := repo.Save(domain.RawEvent{ID: fmt.Sprintf("e%d", i)}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := repo.Prune(3)
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Errorf("pruned %d, want 7", n)
	}
	left, err := repo.Recent(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 3 || left[0].ID != "e8" {
		t.Errorf("left = %+v", left)
	}
}
