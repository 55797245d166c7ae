// Package metrics implements the bridge counter sink on top of the
// VictoriaMetrics client library.
package metrics

import (
	"io"
	"strings"

	"github.com/VictoriaMetrics/metrics"
)

// Sink satisfies router.MetricsSink. Counter names arrive in the dotted
// statsd style used across the service and are rewritten into a
// Prometheus-compatible form; tags are "key:value" pairs rendered as
// labels. GetOrCreateCounter is safe for concurrent use, so increments
// from pool workers need no extra locking.
type Sink struct {
	set *metrics.Set
}

func NewSink() *Sink {
	return &Sink{set: metrics.NewSet()}
}

// Increment bumps the named counter by one. Fire and forget.
func (s *Sink) Increment(name string, tags ...string) {
	s.set.GetOrCreateCounter(render(name, tags)).Inc()
}

// WritePrometheus dumps the counter set in Prometheus text format for the
// scrape handler owned by the surrounding service.
func (s *Sink) WritePrometheus(w io.Writer) {
	s.set.WritePrometheus(w)
}

var sanitizer = strings.NewReplacer(".", "_", "-", "_", ":", "_")

func sanitize(s string) string {
	return sanitizer.Replace(s)
}

func render(name string, tags []string) string {
	var b strings.Builder
	b.WriteString(sanitize(name))
	if len(tags) == 0 {
		return b.String()
	}
	b.WriteByte('{')
	for i, tag := range tags {
		key, value, _ := strings.Cut(tag, ":")
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(sanitize(key))
		b.WriteString(`="`)
		b.WriteString(value)
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}
