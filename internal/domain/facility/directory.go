package facility

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/itsaddyon/MediBridge/internal/platform/metrics"
)

var errEmptyDataset = errors.New("facility source returned no records")

// Directory serves the current facility dataset. It falls back to the
// built-in list whenever its source fails or returns nothing.
type Directory struct {
	source  Source
	timeout time.Duration
	logger  zerolog.Logger
	metrics *metrics.Collector

	mu         sync.RWMutex
	facilities []Facility
	fallback   bool
}

func NewDirectory(source Source, timeout time.Duration, logger zerolog.Logger, collector *metrics.Collector) *Directory {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Directory{
		source:     source,
		timeout:    timeout,
		logger:     logger.With().Str("component", "facility").Logger(),
		metrics:    collector,
		facilities: Fallback(),
		fallback:   true,
	}
}

// Refresh reloads from the source. The returned error is informational: the
// directory always holds a usable dataset afterwards.
func (d *Directory) Refresh(ctx context.Context) error {
	if d.source == nil {
		d.set(Fallback(), true)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	loaded, err := d.source.Load(ctx)
	if err == nil && len(loaded) == 0 {
		err = errEmptyDataset
	}
	if err != nil {
		d.logger.Warn().Err(err).Msg("facility source unavailable, serving fallback dataset")
		d.metrics.FacilityFallback()
		d.set(Fallback(), true)
		return err
	}

	d.set(loaded, false)
	d.logger.Info().Int("count", len(loaded)).Msg("facility dataset loaded")
	return nil
}

// Watch refreshes every interval until ctx is done.
func (d *Directory) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = d.Refresh(ctx)
		}
	}
}

func (d *Directory) set(facilities []Facility, fallback bool) {
	d.mu.Lock()
	d.facilities = facilities
	d.fallback = fallback
	d.mu.Unlock()
}

// All returns a copy of the current dataset.
func (d *Directory) All() []Facility {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Facility, len(d.facilities))
	copy(out, d.facilities)
	return out
}

// UsingFallback reports whether the built-in dataset is being served.
func (d *Directory) UsingFallback() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fallback
}

func (d *Directory) Nearest(lat, lng float64, filter *Type, limit int) ([]Ranked, error) {
	return Nearest(d.All(), lat, lng, filter, limit)
}
