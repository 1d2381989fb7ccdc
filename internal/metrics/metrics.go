package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Feed holds the feed server's collectors.
type Feed struct {
	Appended    *prometheus.CounterVec
	Subscribers prometheus.Gauge
	Dropped     prometheus.Counter
	Pruned      prometheus.Counter
}

// NewFeed creates and registers the feed server collectors on reg.
func NewFeed(reg prometheus.Registerer) *Feed {
	m := &Feed{
		Appended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventfeed",
			Name:      "events_appended_total",
			Help:      "Records appended to the feed, by event tag",
		}, []string{"event"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eventfeed",
			Name:      "subscribers",
			Help:      "Live feed subscribers",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventfeed",
			Name:      "subscribers_dropped_total",
			Help:      "Subscribers dropped because their buffer was full",
		}),
		Pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventfeed",
			Name:      "events_pruned_total",
			Help:      "Records removed by retention",
		}),
	}
	reg.MustRegister(m.Appended, m.Subscribers, m.Dropped, m.Pruned)
	return m
}

// Widget holds the subscriber's collectors.
type Widget struct {
	Rendered *prometheus.CounterVec
	Skipped  *prometheus.CounterVec
}

// NewWidget creates and registers the subscriber collectors on reg.
func NewWidget(reg prometheus.Registerer) *Widget {
	m := &Widget{
		Rendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventfeed_widget",
			Name:      "rendered_total",
			Help:      "Fragments appended to the display list, by template",
		}, []string{"template"}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventfeed_widget",
			Name:      "skipped_total",
			Help:      "Records not rendered, by reason",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.Rendered, m.Skipped)
	return m
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Total sums the counter and gauge samples of the named family whose labels
// include every given name/value pair.
func Total(g prometheus.Gatherer, name string, labelPairs ...string) (float64, error) {
	families, err := g.Gather()
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			have := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				have[lp.GetName()] = lp.GetValue()
			}
			for i := 0; i+1 < len(labelPairs); i += 2 {
				if have[labelPairs[i]] != labelPairs[i+1] {
					continue series
				}
			}
			sum += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	return sum, nil
}
