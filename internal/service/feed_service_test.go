package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/wrongjunior/eventfeed/internal/domain"
	"github.com/wrongjunior/eventfeed/internal/metrics"
	"github.com/wrongjunior/eventfeed/internal/repository"
)

func newTestFeed(t *testing.T, buffer int) (*FeedService, *prometheus.Registry) {
	t.Helper()
	db, err := repository.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	repo := repository.NewSQLiteRepository(db)
	if err := repo.Init(); err != nil {
		t.Fatal(err)
	}
	reg := prometheus.NewRegistry()
	feed := NewFeedService(repo, zerolog.Nop(), metrics.NewFeed(reg), buffer)
	t.Cleanup(feed.Shutdown)
	return feed, reg
}

func total(t *testing.T, reg *prometheus.Registry, name string, labelPairs ...string) float64 {
	t.Helper()
	v, err := metrics.Total(reg, name, labelPairs...)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func receive(t *testing.T, sub *Subscription) domain.RawEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domain.RawEvent{}
}

func TestSubscribeReplayThenLive(t *testing.T) {
	feed, reg := newTestFeed(t, 8)
	for i := 1; i <= 3; i++ {
		if _, err := feed.Append(domain.RawEvent{ID: fmt.Sprintf("e%d", i), Event: "github-issue"}); err != nil {
			t.Fatal(err)
		}
	}

	replay, sub, err := feed.Subscribe(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(replay) != 2 || replay[0].ID != "e2" || replay[1].ID != "e3" {
		t.Fatalf("replay = %+v", replay)
	}

	if _, err := feed.Append(domain.RawEvent{ID: "e4"}); err != nil {
		t.Fatal(err)
	}
	if got := receive(t, sub); got.ID != "e4" {
		t.Errorf("live event = %s, want e4", got.ID)
	}
	if got := total(t, reg, "eventfeed_events_appended_total", "event", "github-issue"); got != 3 {
		t.Errorf("appended{github-issue} = %v", got)
	}
	if got := total(t, reg, "eventfeed_subscribers"); got != 1 {
		t.Errorf("subscribers = %v", got)
	}
}

func TestAppendFillsIDAndTime(t *testing.T) {
	feed, _ := newTestFeed(t, 8)
	ev, err := feed.Append(domain.RawEvent{Event: "github-wiki"})
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID == "" || ev.Time == "" {
		t.Errorf("expected id and time to be set: %+v", ev)
	}
	stored, err := feed.Recent(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].ID != ev.ID {
		t.Errorf("stored = %+v", stored)
	}
}

func TestLiveDeliveryKeepsOrder(t *testing.T) {
	feed, _ := newTestFeed(t, 64)
	_, sub, err := feed.Subscribe(0)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		if _, err := feed.Append(domain.RawEvent{ID: fmt.Sprintf("e%02d", i)}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 20; i++ {
		if got, want := receive(t, sub).ID, fmt.Sprintf("e%02d", i); got != want {
			t.Fatalf("event %d = %s, want %s", i, got, want)
		}
	}
}

func TestSlowSubscriberDropped(t *testing.T) {
	feed, reg := newTestFeed(t, 1)
	_, sub, err := feed.Subscribe(0)
	if err != nil {
		t.Fatal(err)
	}
	feed.Append(domain.RawEvent{ID: "a"})
	feed.Append(domain.RawEvent{ID: "b"})

	if got := receive(t, sub); got.ID != "a" {
		t.Errorf("first = %s", got.ID)
	}
	if _, ok := <-sub.C; ok {
		t.Error("expected subscription to be closed")
	}
	if got := total(t, reg, "eventfeed_subscribers_dropped_total"); got != 1 {
		t.Errorf("dropped = %v", got)
	}
	// Unsubscribing a dropped subscriber must not panic.
	feed.Unsubscribe(sub)
}

func TestShutdownClosesSubscriptions(t *testing.T) {
	feed, _ := newTestFeed(t, 8)
	_, sub, err := feed.Subscribe(0)
	if err != nil {
		t.Fatal(err)
	}
	feed.Shutdown()
	if _, ok := <-sub.C; ok {
		t.Error("expected subscription to be closed")
	}
	if _, err := feed.Append(domain.RawEvent{}); !errors.Is(err, ErrShutdown) {
		t.Errorf("append after shutdown: err = %v", err)
	}
	if _, _, err := feed.Subscribe(0); !errors.Is(err, ErrShutdown) {
		t.Errorf("subscribe after shutdown: err = %v", err)
	}
}

func TestPruneAndRetentionSchedule(t *testing.T) {
	feed, reg := newTestFeed(t, 8)
	for i := 0; i < 5; i++ {
		feed.Append(domain.RawEvent{ID: fmt.Sprintf("e%d", i)})
	}
	n, err := feed.Prune(2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("pruned %d", n)
	}
	if got := total(t, reg, "eventfeed_events_pruned_total"); got != 3 {
		t.Errorf("pruned metric = %v", got)
	}

	if err := feed.StartRetention("not a schedule", 2); err == nil {
		t.Error("expected error for bad cron spec")
	}
	if err := feed.StartRetention("@every 1h", 2); err != nil {
		t.Fatal(err)
	}
}
