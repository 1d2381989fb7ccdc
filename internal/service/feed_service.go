package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/wrongjunior/eventfeed/internal/domain"
	"github.com/wrongjunior/eventfeed/internal/metrics"
	"github.com/wrongjunior/eventfeed/internal/repository"
)

// ErrShutdown is returned by Append and Subscribe once the feed is shut down.
var ErrShutdown = errors.New("feed is shut down")

// Subscription is a live consumer of the feed. C is closed when the
// subscriber is dropped or the service shuts down.
type Subscription struct {
	C  <-chan domain.RawEvent
	ch chan domain.RawEvent
}

// FeedService is the push feed: it stores appended records and fans them out
// to subscribers in append order.
type FeedService struct {
	mu      sync.Mutex
	repo    repository.EventRepository
	subs    map[*Subscription]struct{}
	buffer  int
	logger  zerolog.Logger
	metrics *metrics.Feed
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewFeedService returns a feed backed by repo. buffer is the capacity of each
// subscriber's channel; a subscriber that falls that far behind is dropped.
func NewFeedService(repo repository.EventRepository, logger zerolog.Logger, m *metrics.Feed, buffer int) *FeedService {
	ctx, cancel := context.WithCancel(context.Background())
	if buffer <= 0 {
		buffer = 256
	}
	return &FeedService{
		repo:    repo,
		subs:    make(map[*Subscription]struct{}),
		buffer:  buffer,
		logger:  logger,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Append stores ev and pushes it to every subscriber. A missing ID or time is
// filled in. The stored record is returned.
func (s *FeedService) Append(ev domain.RawEvent) (domain.RawEvent, error) {
	if s.ctx.Err() != nil {
		return ev, ErrShutdown
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time == "" {
		ev.Time = time.Now().UTC().Format(time.RFC3339)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Save(ev); err != nil {
		return ev, fmt.Errorf("save event %s: %w", ev.ID, err)
	}
	s.metrics.Appended.WithLabelValues(ev.Event).Inc()

	for sub := range s.subs {
		select {
		case sub.ch <- ev:
		default:
			s.drop(sub)
			s.metrics.Dropped.Inc()
			s.logger.Warn().Str("event_id", ev.ID).Msg("Subscriber dropped, buffer full")
		}
	}
	s.logger.Info().Str("event_id", ev.ID).Str("event", ev.Event).Int("subscribers", len(s.subs)).Msg("Event appended")
	return ev, nil
}

// Subscribe registers a subscriber and returns the newest limit records
// (all when limit <= 0) to replay before reading from the subscription.
// Replay and registration happen under one lock, so nothing is missed or
// delivered twice.
func (s *FeedService) Subscribe(limit int) ([]domain.RawEvent, *Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return nil, nil, ErrShutdown
	}
	replay, err := s.repo.Recent(limit)
	if err != nil {
		return nil, nil, fmt.Errorf("load replay: %w", err)
	}
	ch := make(chan domain.RawEvent, s.buffer)
	sub := &Subscription{C: ch, ch: ch}
	s.subs[sub] = struct{}{}
	s.metrics.Subscribers.Set(float64(len(s.subs)))
	s.logger.Info().Int("replay", len(replay)).Int("subscribers", len(s.subs)).Msg("Subscriber registered")
	return replay, sub, nil
}

// Unsubscribe removes sub. It is safe to call after the sub was dropped.
func (s *FeedService) Unsubscribe(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub]; ok {
		s.drop(sub)
		s.logger.Info().Int("subscribers", len(s.subs)).Msg("Subscriber unregistered")
	}
}

// drop must be called with s.mu held.
func (s *FeedService) drop(sub *Subscription) {
	delete(s.subs, sub)
	close(sub.ch)
	s.metrics.Subscribers.Set(float64(len(s.subs)))
}

// Recent returns the newest limit records in feed order.
func (s *FeedService) Recent(limit int) ([]domain.RawEvent, error) {
	return s.repo.Recent(limit)
}

// Prune keeps the newest keep records.
func (s *FeedService) Prune(keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.repo.Prune(keep)
	if err != nil {
		return 0, err
	}
	s.metrics.Pruned.Add(float64(n))
	return n, nil
}

// StartRetention prunes the store to keep records on the cron schedule spec.
func (s *FeedService) StartRetention(spec string, keep int) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := s.Prune(keep)
		if err != nil {
			s.logger.Error().Err(err).Msg("Retention failed")
			return
		}
		s.logger.Info().Int64("pruned", n).Int("keep", keep).Msg("Retention run")
	})
	if err != nil {
		return fmt.Errorf("retention schedule %q: %w", spec, err)
	}
	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	c.Start()
	s.logger.Info().Str("schedule", spec).Int("keep", keep).Msg("Retention started")
	return nil
}

// Shutdown stops retention and closes every subscription.
func (s *FeedService) Shutdown() {
	s.cancel()
	s.mu.Lock()
	c := s.cron
	for sub := range s.subs {
		s.drop(sub)
	}
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	s.logger.Info().Msg("FeedService shutdown")
}
