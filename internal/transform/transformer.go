package transform

import (
	"fmt"

	"github.com/wrongjunior/eventfeed/internal/domain"
	"github.com/wrongjunior/eventfeed/internal/format"
)

// Transformer enriches raw feed records with display fields.
type Transformer struct {
	times *format.TimeFormatter
	icons bool
}

// NewTransformer returns a Transformer. With icons off every record gets an
// empty icon, as in the single-template layout.
func NewTransformer(times *format.TimeFormatter, icons bool) *Transformer {
	return &Transformer{times: times, icons: icons}
}

// Transform builds the DisplayEvent for e. The variant is decided here: a
// record that carries a body becomes a LargeEvent.
func (t *Transformer) Transform(e domain.RawEvent) (domain.DisplayEvent, error) {
	when, err := t.times.Format(e.Time)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", e.ID, err)
	}

	fields := domain.Fields{
		ID:         e.ID,
		Author:     e.Author,
		Target:     e.Target,
		Action:     e.Action,
		ActionURL:  e.ActionURL,
		Avatar:     e.Avatar,
		Message:    e.Message,
		Event:      e.Event,
		Labels:     e.Labels,
		AuthorName: format.Basename(e.Author, -1),
		TargetName: format.Basename(e.Target, -2),
		ActionName: format.Basename(e.Action, -1),
		Time:       when,
	}
	if t.icons {
		fields.Icon = format.Icon(e.Event)
	}

	if e.HasBody() {
		return domain.LargeEvent{Fields: fields, Body: *e.Body}, nil
	}
	return domain.SmallEvent{Fields: fields}, nil
}
