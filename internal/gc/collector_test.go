package gc

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jobboard-backend/internal/staging"
	"jobboard-backend/internal/tempresumes"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type env struct {
	stager *staging.Stager
	store  *tempresumes.MemoryStore
	dir    string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	stager, err := staging.New(dir, 1<<20)
	if err != nil {
		t.Fatalf("staging.New: %v", err)
	}
	return &env{stager: stager, store: tempresumes.NewMemoryStore(time.Minute), dir: dir}
}

func (e *env) stage(t *testing.T, owner string) string {
	t.Helper()
	staged, err := e.stager.Stage(context.Background(), owner, staging.Upload{
		FileName:    "cv.pdf",
		ContentType: "application/pdf",
		Size:        -1,
		Body:        bytes.NewBufferString("%PDF-1.4\n%%EOF\n"),
	})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	return staged.Path
}

func (e *env) record(t *testing.T, id, owner string, created time.Time) tempresumes.Record {
	t.Helper()
	rec := tempresumes.Record{
		ID:          id,
		OwnerID:     owner,
		StagedPath:  e.stage(t, owner),
		FileName:    "cv.pdf",
		ContentType: "application/pdf",
		CreatedAt:   created,
		ExpiresAt:   created.Add(time.Hour),
	}
	if err := e.store.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return rec
}

func (e *env) collector(now time.Time) *Collector {
	return &Collector{
		Store:       e.store,
		Staging:     e.stager,
		OrphanGrace: 10 * time.Minute,
		Concurrency: 2,
		Now:         func() time.Time { return now },
	}
}

func ageFile(t *testing.T, path string, at time.Time) {
	t.Helper()
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func dirCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	return len(entries)
}

func TestStartupSweepClearsEverything(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 3; i++ {
		e.record(t, "r"+strconv.Itoa(i), "u1", base)
	}
	e.stage(t, "u2") // orphan with no record

	report, err := e.collector(base).StartupSweep(context.Background())
	if err != nil {
		t.Fatalf("StartupSweep: %v", err)
	}
	if report.Records != 3 || report.OrphansRemoved != 4 || report.Failures != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if dirCount(t, e.dir) != 0 {
		t.Fatalf("staging dir should be empty")
	}
	paths, _ := e.store.LivePaths(context.Background())
	if len(paths) != 0 {
		t.Fatalf("record store should be empty, got %v", paths)
	}
}

func TestSweepReclaimsExpiredAndOrphans(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := base.Add(2 * time.Hour)

	expired := e.record(t, "old", "u1", base)
	live := e.record(t, "live", "u1", now.Add(-5*time.Minute))
	oldOrphan := e.stage(t, "u2")
	ageFile(t, oldOrphan, now.Add(-time.Hour))
	youngOrphan := e.stage(t, "u3")
	ageFile(t, youngOrphan, now.Add(-time.Minute))
	// The grace window only applies to orphans; live files keep their records.
	ageFile(t, live.StagedPath, now.Add(-time.Hour))

	report, err := e.collector(now).TrySweep(ctx)
	if err != nil {
		t.Fatalf("TrySweep: %v", err)
	}
	if report.Expired != 1 || report.OrphansRemoved != 1 || report.Failures != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if exists(expired.StagedPath) || exists(oldOrphan) {
		t.Fatalf("expired and old orphan files should be removed")
	}
	if !exists(live.StagedPath) || !exists(youngOrphan) {
		t.Fatalf("live file and young orphan must survive")
	}
	if _, err := e.store.GetOwned(ctx, "u1", "live", now); err != nil {
		t.Fatalf("live record should survive: %v", err)
	}
	paths, _ := e.store.LivePaths(ctx)
	if _, ok := paths[expired.StagedPath]; ok {
		t.Fatalf("expired record should be deleted")
	}
}

type flakyStaging struct {
	*staging.Stager
	fail map[string]bool
}

func (f *flakyStaging) Remove(path string) error {
	if f.fail[path] {
		return errors.New("permission denied")
	}
	return f.Stager.Remove(path)
}

func TestSweepSkipsFailedItems(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := base.Add(2 * time.Hour)

	bad := e.record(t, "bad", "u1", base)
	good := e.record(t, "good", "u1", base)

	c := e.collector(now)
	c.Staging = &flakyStaging{Stager: e.stager, fail: map[string]bool{bad.StagedPath: true}}

	report, err := c.TrySweep(ctx)
	if err != nil {
		t.Fatalf("TrySweep: %v", err)
	}
	if report.Expired != 1 || report.Failures != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if exists(good.StagedPath) {
		t.Fatalf("good file should be removed")
	}
	// The record stays so the next sweep retries its file.
	paths, _ := e.store.LivePaths(ctx)
	if _, ok := paths[bad.StagedPath]; !ok || !exists(bad.StagedPath) {
		t.Fatalf("failed item must keep both record and file")
	}
}

func TestSweepWorksThroughBatches(t *testing.T) {
	e := newEnv(t)
	now := base.Add(2 * time.Hour)
	for i := 0; i < 5; i++ {
		e.record(t, "r"+strconv.Itoa(i), "u1", base)
	}
	c := e.collector(now)
	c.BatchSize = 2

	report, err := c.TrySweep(context.Background())
	if err != nil {
		t.Fatalf("TrySweep: %v", err)
	}
	if report.Expired != 5 {
		t.Fatalf("expected 5 expired, got %+v", report)
	}
	if dirCount(t, e.dir) != 0 {
		t.Fatalf("staging dir should be empty")
	}
}

func TestSweepStopsWhenBatchMakesNoProgress(t *testing.T) {
	e := newEnv(t)
	now := base.Add(2 * time.Hour)
	rec := e.record(t, "stuck", "u1", base)

	c := e.collector(now)
	c.BatchSize = 1
	c.Staging = &flakyStaging{Stager: e.stager, fail: map[string]bool{rec.StagedPath: true}}

	done := make(chan Report, 1)
	go func() {
		report, _ := c.TrySweep(context.Background())
		done <- report
	}()
	select {
	case report := <-done:
		if report.Failures != 1 || report.Expired != 0 {
			t.Fatalf("unexpected report %+v", report)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("sweep did not terminate")
	}
}

func TestUndeletableHeadDoesNotBlockLaterRecords(t *testing.T) {
	e := newEnv(t)
	now := base.Add(3 * time.Hour)
	stuck := e.record(t, "stuck", "u1", base)
	later := e.record(t, "later", "u1", base.Add(time.Minute))

	c := e.collector(now)
	c.BatchSize = 1
	c.Staging = &flakyStaging{Stager: e.stager, fail: map[string]bool{stuck.StagedPath: true}}

	report, err := c.TrySweep(context.Background())
	if err != nil {
		t.Fatalf("TrySweep: %v", err)
	}
	if report.Expired != 1 || report.Failures != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if exists(later.StagedPath) {
		t.Fatalf("later expired file should be removed")
	}
	if !exists(stuck.StagedPath) {
		t.Fatalf("undeletable file should be left for the next sweep")
	}

	// The next sweep retries the stuck record once more, and only once.
	report, err = c.TrySweep(context.Background())
	if err != nil {
		t.Fatalf("TrySweep: %v", err)
	}
	if report.Expired != 0 || report.Failures != 1 {
		t.Fatalf("unexpected second report %+v", report)
	}
}

func TestFailedItemCountedOncePerSweep(t *testing.T) {
	e := newEnv(t)
	now := base.Add(3 * time.Hour)
	bad := e.record(t, "bad", "u1", base)
	for i := 0; i < 4; i++ {
		e.record(t, "r"+strconv.Itoa(i), "u1", base.Add(time.Duration(i+1)*time.Minute))
	}

	c := e.collector(now)
	c.BatchSize = 2
	c.Staging = &flakyStaging{Stager: e.stager, fail: map[string]bool{bad.StagedPath: true}}

	report, err := c.TrySweep(context.Background())
	if err != nil {
		t.Fatalf("TrySweep: %v", err)
	}
	if report.Expired != 4 || report.Failures != 1 {
		t.Fatalf("expected 4 expired and 1 failure, got %+v", report)
	}
	if dirCount(t, e.dir) != 1 {
		t.Fatalf("only the undeletable file should remain")
	}
}

type blockingStaging struct {
	*staging.Stager
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStaging) List(ctx context.Context) ([]staging.Entry, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.Stager.List(ctx)
}

func TestOverlappingSweepIsSkipped(t *testing.T) {
	e := newEnv(t)
	blocker := &blockingStaging{Stager: e.stager, entered: make(chan struct{}), release: make(chan struct{})}
	c := e.collector(base)
	c.Staging = blocker

	first := make(chan error, 1)
	go func() {
		_, err := c.TrySweep(context.Background())
		first <- err
	}()
	<-blocker.entered

	if _, err := c.TrySweep(context.Background()); !errors.Is(err, ErrSweepInProgress) {
		t.Fatalf("expected ErrSweepInProgress, got %v", err)
	}
	close(blocker.release)
	if err := <-first; err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if _, err := c.TrySweep(context.Background()); err != nil {
		t.Fatalf("guard should be released: %v", err)
	}
}

type panickingStore struct {
	*tempresumes.MemoryStore
}

func (panickingStore) ListExpired(context.Context, time.Time, int) ([]tempresumes.Record, error) {
	panic("boom")
}

func TestSupervisedSweepRecoversPanic(t *testing.T) {
	e := newEnv(t)
	c := e.collector(base)
	c.Store = panickingStore{e.store}

	c.supervisedSweep(context.Background())

	c.Store = e.store
	if _, err := c.TrySweep(context.Background()); err != nil {
		t.Fatalf("guard should be released after panic: %v", err)
	}
}

type countingStore struct {
	*tempresumes.MemoryStore
	calls atomic.Int32
}

func (s *countingStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]tempresumes.Record, error) {
	s.calls.Add(1)
	return s.MemoryStore.ListExpired(ctx, now, limit)
}

func TestRunSweepsUntilCanceled(t *testing.T) {
	e := newEnv(t)
	store := &countingStore{MemoryStore: e.store}
	c := e.collector(base)
	c.Store = store

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for store.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected repeated sweeps, got %d", store.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestOrphanPassIgnoresForeignPaths(t *testing.T) {
	e := newEnv(t)
	now := base.Add(time.Hour)
	outside := filepath.Join(t.TempDir(), "keep.pdf")
	if err := os.WriteFile(outside, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := e.collector(now).TrySweep(context.Background()); err != nil {
		t.Fatalf("TrySweep: %v", err)
	}
	if !exists(outside) {
		t.Fatalf("files outside the staging dir must never be touched")
	}
}
