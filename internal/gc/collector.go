package gc

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"jobboard-backend/internal/shared/metrics"
	"jobboard-backend/internal/shared/telemetry"
	"jobboard-backend/internal/staging"
	"jobboard-backend/internal/tempresumes"
)

const (
	DefaultOrphanGrace = 10 * time.Minute
	DefaultConcurrency = 4
	DefaultBatchSize   = 500
)

// ErrSweepInProgress is returned by TrySweep when another sweep holds the guard.
var ErrSweepInProgress = errors.New("sweep already in progress")

type Store interface {
	ListExpired(ctx context.Context, now time.Time, limit int) ([]tempresumes.Record, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int, error)
	LivePaths(ctx context.Context) (map[string]struct{}, error)
}

type Staging interface {
	List(ctx context.Context) ([]staging.Entry, error)
	Remove(path string) error
}

// Report counts what one sweep reclaimed. Failures are items that were
// skipped and left for the next sweep.
type Report struct {
	Mode           string        `json:"mode"`
	Records        int           `json:"records"`
	Expired        int           `json:"expired"`
	OrphansRemoved int           `json:"orphansRemoved"`
	Failures       int           `json:"failures"`
	Duration       time.Duration `json:"-"`
}

// Reclaimed is the number of records and files removed.
func (r Report) Reclaimed() int {
	return r.Records + r.Expired + r.OrphansRemoved
}

// Collector reconciles the record store with the staging directory.
// At most one sweep runs at a time.
type Collector struct {
	Store       Store
	Staging     Staging
	OrphanGrace time.Duration
	Concurrency int
	BatchSize   int
	Now         func() time.Time

	guard sync.Mutex
}

// StartupSweep removes every record and every staged file regardless of age.
// It must run before the service accepts traffic.
func (c *Collector) StartupSweep(ctx context.Context) (Report, error) {
	if !c.guard.TryLock() {
		return Report{}, ErrSweepInProgress
	}
	defer c.guard.Unlock()

	start := time.Now()
	report := Report{Mode: "startup"}

	n, err := c.Store.DeleteAll(ctx)
	if err != nil {
		return report, fmt.Errorf("delete temp resumes: %w", err)
	}
	report.Records = n

	entries, err := c.Staging.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list staging: %w", err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	removed, failed := c.removeFiles(ctx, paths)
	report.OrphansRemoved = removed
	report.Failures = failed

	c.finish(&report, start)
	return report, nil
}

// TrySweep runs one periodic sweep unless another sweep is in progress.
func (c *Collector) TrySweep(ctx context.Context) (Report, error) {
	if !c.guard.TryLock() {
		metrics.IncSweepSkipped()
		telemetry.Warn("gc.sweep.skipped", map[string]any{"reason": "previous sweep still running"})
		return Report{}, ErrSweepInProgress
	}
	defer c.guard.Unlock()
	return c.sweep(ctx)
}

// sweep deletes expired records file first, then removes staged files that
// no record references and that are older than the grace window.
func (c *Collector) sweep(ctx context.Context) (Report, error) {
	start := time.Now()
	now := c.now()
	report := Report{Mode: "periodic"}

	var errs []error
	expired, failed, err := c.reclaimExpired(ctx, now)
	report.Expired = expired
	report.Failures += failed
	if err != nil {
		errs = append(errs, fmt.Errorf("expired pass: %w", err))
	}

	removed, failed, err := c.reclaimOrphans(ctx, now)
	report.OrphansRemoved = removed
	report.Failures += failed
	if err != nil {
		errs = append(errs, fmt.Errorf("orphan pass: %w", err))
	}

	c.finish(&report, start)
	return report, errors.Join(errs...)
}

// reclaimExpired pages through expired records. Failed items stay in the
// store, so each listing asks for room to step past them; every record is
// attempted at most once per sweep and retried by the next one.
func (c *Collector) reclaimExpired(ctx context.Context, now time.Time) (int, int, error) {
	var reclaimed, failed atomic.Int64
	batch := c.batchSize()
	var (
		mu        sync.Mutex
		attempted = make(map[string]struct{})
		stuck     int
	)
	for {
		if err := ctx.Err(); err != nil {
			return int(reclaimed.Load()), int(failed.Load()), err
		}
		mu.Lock()
		limit := batch + stuck
		mu.Unlock()
		records, err := c.Store.ListExpired(ctx, now, limit)
		if err != nil {
			return int(reclaimed.Load()), int(failed.Load()), err
		}

		fresh := make([]tempresumes.Record, 0, len(records))
		for _, rec := range records {
			if _, seen := attempted[rec.ID]; seen {
				continue
			}
			attempted[rec.ID] = struct{}{}
			fresh = append(fresh, rec)
		}

		g := c.group()
		for _, rec := range fresh {
			g.Go(func() error {
				fail := func(kind string, err error) error {
					failed.Add(1)
					mu.Lock()
					stuck++
					mu.Unlock()
					itemFailed(kind, rec.ID, rec.StagedPath, err)
					return nil
				}
				if rec.StagedPath != "" {
					if err := c.Staging.Remove(rec.StagedPath); err != nil {
						return fail("expired_file", err)
					}
				}
				if err := c.Store.Delete(ctx, rec.ID); err != nil {
					return fail("expired_record", err)
				}
				reclaimed.Add(1)
				return nil
			})
		}
		_ = g.Wait()

		// A short listing is the last page; a page of already attempted
		// records means nothing new is left to try.
		if len(records) < limit || len(fresh) == 0 {
			return int(reclaimed.Load()), int(failed.Load()), nil
		}
	}
}

func (c *Collector) reclaimOrphans(ctx context.Context, now time.Time) (int, int, error) {
	live, err := c.Store.LivePaths(ctx)
	if err != nil {
		return 0, 0, err
	}
	entries, err := c.Staging.List(ctx)
	if err != nil {
		return 0, 0, err
	}
	cutoff := now.Add(-c.orphanGrace())
	var orphans []string
	for _, e := range entries {
		if _, ok := live[e.Path]; ok {
			continue
		}
		// Younger files may belong to an upload whose record is not written yet.
		if e.ModTime.After(cutoff) {
			continue
		}
		orphans = append(orphans, e.Path)
	}
	removed, failed := c.removeFiles(ctx, orphans)
	return removed, failed, nil
}

func (c *Collector) removeFiles(ctx context.Context, paths []string) (int, int) {
	var removed, failed atomic.Int64
	g := c.group()
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := c.Staging.Remove(path); err != nil {
				failed.Add(1)
				itemFailed("orphan_file", "", path, err)
				return nil
			}
			removed.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(removed.Load()), int(failed.Load())
}

func (c *Collector) finish(report *Report, start time.Time) {
	report.Duration = time.Since(start)
	metrics.AddExpired(report.Records + report.Expired)
	metrics.AddOrphansRemoved(report.OrphansRemoved)
	metrics.AddSweepFailures(report.Failures)
	metrics.ObserveSweepDurationMs(float64(report.Duration.Milliseconds()))
	telemetry.Info("gc.sweep.complete", map[string]any{
		"mode":            report.Mode,
		"records":         report.Records,
		"expired":         report.Expired,
		"orphans_removed": report.OrphansRemoved,
		"failures":        report.Failures,
		"reclaimed":       report.Reclaimed(),
		"duration_ms":     report.Duration.Milliseconds(),
	})
}

// Run sweeps every interval until ctx is done. Each tick starts the sweep in
// its own goroutine; a tick that finds the previous sweep still running is
// skipped. Run returns after the in-flight sweep finishes.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.supervisedSweep(ctx)
			}()
		}
	}
}

func (c *Collector) supervisedSweep(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.AddSweepFailures(1)
			telemetry.Error("gc.sweep.panic", map[string]any{
				"panic": fmt.Sprint(rec),
				"stack": string(debug.Stack()),
			})
		}
	}()
	if _, err := c.TrySweep(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
		telemetry.Error("gc.sweep.failed", map[string]any{"error": err})
	}
}

func itemFailed(kind, id, path string, err error) {
	fields := map[string]any{
		"kind":  kind,
		"path":  path,
		"error": err,
	}
	if id != "" {
		fields["temp_resume_id"] = id
	}
	telemetry.Warn("gc.item.failed", fields)
}

func (c *Collector) group() *errgroup.Group {
	g := &errgroup.Group{}
	g.SetLimit(c.concurrency())
	return g
}

func (c *Collector) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c *Collector) orphanGrace() time.Duration {
	if c.OrphanGrace > 0 {
		return c.OrphanGrace
	}
	return DefaultOrphanGrace
}

func (c *Collector) concurrency() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return DefaultConcurrency
}

func (c *Collector) batchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return DefaultBatchSize
}
