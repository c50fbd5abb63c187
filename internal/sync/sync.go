// Package sync exports criteria and their owners as JSONL and pushes the
// export to destinations on a schedule.
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/eligibility/internal/store"
)

// Destination receives each complete export.
type Destination interface {
	Write(ctx context.Context, data []byte) error
}

// Scheduler exports the stores and fans the snapshot out to its
// destinations, either once or on an interval.
type Scheduler struct {
	owners       store.Store
	criteria     store.CriteriaStore
	apps         []string
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger
}

// NewScheduler exports cs and the owners of apps. interval is only used
// by Run.
func NewScheduler(owners store.Store, cs store.CriteriaStore, apps []string, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		owners:       owners,
		criteria:     cs,
		apps:         apps,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Run syncs immediately and then on every interval until ctx is done.
// Failed rounds are logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", s.interval)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		_ = s.SyncOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// SyncOnce exports once and writes the snapshot to every destination.
// An export failure writes nothing. A failing destination does not stop
// the others.
func (s *Scheduler) SyncOnce(ctx context.Context) error {
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.owners, s.criteria, s.apps, &buf); err != nil {
		s.logger.Error("sync export failed", "err", err)
		return fmt.Errorf("export: %w", err)
	}

	var errs []error
	for _, dest := range s.destinations {
		if err := dest.Write(ctx, buf.Bytes()); err != nil {
			s.logger.Error("sync destination write failed", "destination", destinationName(dest), "err", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("sync: %d of %d destinations failed: %w", len(errs), len(s.destinations), errors.Join(errs...))
	}
	s.logger.Info("sync completed", "destinations", len(s.destinations), "bytes", buf.Len())
	return nil
}

// destinationName labels dest in logs.
func destinationName(dest Destination) string {
	if st, ok := dest.(fmt.Stringer); ok {
		return st.String()
	}
	return fmt.Sprintf("%T", dest)
}
