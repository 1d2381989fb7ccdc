package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/wrongjunior/eventfeed/internal/domain"
	"github.com/wrongjunior/eventfeed/internal/metrics"
	"github.com/wrongjunior/eventfeed/internal/render"
	"github.com/wrongjunior/eventfeed/internal/transform"
)

// FeedSubscriber turns incoming feed records into fragments on a display
// list. It is the only consumer of its channel, so records are rendered in
// arrival order.
type FeedSubscriber struct {
	transformer *transform.Transformer
	renderer    *render.Renderer
	list        *render.List
	sinks       []render.Sink
	logger      zerolog.Logger
	metrics     *metrics.Widget
	receivedIDs map[string]struct{}
}

// NewFeedSubscriber wires the rendering pipeline for list.
func NewFeedSubscriber(tr *transform.Transformer, r *render.Renderer, list *render.List, logger zerolog.Logger, m *metrics.Widget, sinks ...render.Sink) *FeedSubscriber {
	return &FeedSubscriber{
		transformer: tr,
		renderer:    r,
		list:        list,
		sinks:       sinks,
		logger:      logger,
		metrics:     m,
		receivedIDs: make(map[string]struct{}),
	}
}

// Run drains events until the channel is closed or ctx is done.
func (fs *FeedSubscriber) Run(ctx context.Context, events <-chan domain.RawEvent) {
	for {
		select {
		case <-ctx.Done():
			fs.logger.Info().Msg("Subscriber stopped")
			return
		case ev, ok := <-events:
			if !ok {
				fs.logger.Info().Msg("Feed channel closed")
				return
			}
			fs.ProcessEvent(ev)
		}
	}
}

// ProcessEvent renders one record and appends it. Records already rendered
// (a replay after reconnect) and records that fail to render are skipped.
// It reports whether a fragment was appended.
func (fs *FeedSubscriber) ProcessEvent(ev domain.RawEvent) bool {
	if ev.ID != "" {
		if _, exists := fs.receivedIDs[ev.ID]; exists {
			fs.logger.Debug().Str("event_id", ev.ID).Msg("Duplicate event filtered")
			fs.metrics.Skipped.WithLabelValues("duplicate").Inc()
			return false
		}
		fs.receivedIDs[ev.ID] = struct{}{}
	}

	if fs.list.HideLoading() {
		fs.logger.Debug().Msg("Loading indicator hidden")
		fs.loadingHidden()
	}

	display, err := fs.transformer.Transform(ev)
	if err != nil {
		fs.logger.Error().Err(err).Str("event_id", ev.ID).Msg("Skipping event")
		fs.metrics.Skipped.WithLabelValues("transform").Inc()
		return false
	}
	name := fs.renderer.TemplateFor(display)
	fragment, err := fs.renderer.Render(display)
	if err != nil {
		fs.logger.Error().Err(err).Str("event_id", ev.ID).Msg("Skipping event")
		fs.metrics.Skipped.WithLabelValues("render").Inc()
		return false
	}

	fs.list.Append(fragment)
	fs.metrics.Rendered.WithLabelValues(name).Inc()
	fs.logger.Info().Str("event_id", ev.ID).Str("template", name).Int("items", fs.list.Len()).Msg("Event rendered")

	for _, sink := range fs.sinks {
		if err := sink.Appended(fragment); err != nil {
			fs.logger.Error().Err(err).Msg("Sink failed")
		}
	}
	return true
}

// loadingHidden tells the sinks that show the indicator to drop it, whether
// or not the record that triggered it renders.
func (fs *FeedSubscriber) loadingHidden() {
	for _, sink := range fs.sinks {
		ls, ok := sink.(render.LoadingSink)
		if !ok {
			continue
		}
		if err := ls.LoadingHidden(); err != nil {
			fs.logger.Error().Err(err).Msg("Sink failed")
		}
	}
}
