// Package visit captures per-visit analytics off the redirect hot path.
package visit

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/pulselabs/linkpulse/internal/metrics"
	"github.com/pulselabs/linkpulse/internal/models"
)

// Store is the slice of the link store the recorder writes through.
type Store interface {
	AppendVisit(ctx context.Context, code string, ev models.VisitEvent) error
	IncrementClicks(ctx context.Context, code string) error
}

type job struct {
	code         string
	sourceIP     string
	rawUserAgent string
	timestamp    time.Time
}

// Recorder derives analytics facts from raw requests and records them
// through a bounded queue consumed by background workers. It never fails
// or blocks the caller's resolution: when the queue is full the visit is
// dropped and logged.
type Recorder struct {
	store  Store
	geo    GeoResolver
	logger *slog.Logger
	jobs   chan job
}

func NewRecorder(store Store, geo GeoResolver, logger *slog.Logger, queueSize int) *Recorder {
	return &Recorder{
		store:  store,
		geo:    geo,
		logger: logger,
		jobs:   make(chan job, queueSize),
	}
}

// Record enqueues one visit for asynchronous recording.
func (r *Recorder) Record(code, rawIP, rawUserAgent string) {
	j := job{
		code:         code,
		sourceIP:     normalizeIP(rawIP),
		rawUserAgent: rawUserAgent,
		timestamp:    time.Now(),
	}

	select {
	case r.jobs <- j:
	default:
		metrics.VisitsDropped.Inc()
		r.logger.Warn("visit dropped, queue full", slog.String("code", code))
	}
}

// Run consumes the queue until the context is canceled. Multiple workers
// may run concurrently; the store's append and increment are atomic.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case j := <-r.jobs:
			r.process(ctx, j)
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Recorder) process(ctx context.Context, j job) {
	loc := r.geo.Lookup(j.sourceIP)
	osName, deviceClass, browser := ClassifyUserAgent(j.rawUserAgent)

	ev := models.VisitEvent{
		Timestamp:       j.timestamp,
		SourceIP:        j.sourceIP,
		Country:         orUnknown(loc.Country),
		City:            orUnknown(loc.City),
		OperatingSystem: osName,
		DeviceClass:     deviceClass,
		Browser:         browser,
	}

	// The counter is authoritative; the history row may lag behind it.
	if err := r.store.IncrementClicks(ctx, j.code); err != nil {
		r.logger.Error("failed to increment click count", slog.String("code", j.code), slog.Any("err", err))
		return
	}

	if err := r.store.AppendVisit(ctx, j.code, ev); err != nil {
		r.logger.Error("failed to append visit", slog.String("code", j.code), slog.Any("err", err))
		return
	}

	metrics.VisitsRecorded.Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return models.UnknownValue
	}
	return v
}

// normalizeIP reduces a raw address to a single host: the first hop of a
// forwarded-for chain, with any port stripped.
func normalizeIP(rawIP string) string {
	ip := rawIP
	if i := strings.IndexByte(ip, ','); i >= 0 {
		ip = ip[:i]
	}
	ip = strings.TrimSpace(ip)

	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}

	return ip
}
