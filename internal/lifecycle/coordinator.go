package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobboard-backend/internal/analysis"
	"jobboard-backend/internal/extract"
	"jobboard-backend/internal/shared/metrics"
	"jobboard-backend/internal/shared/storage/object"
	"jobboard-backend/internal/shared/telemetry"
	"jobboard-backend/internal/staging"
	"jobboard-backend/internal/tempresumes"
	"jobboard-backend/internal/users"
)

const (
	DefaultTTL             = time.Hour
	DefaultAnalysisTimeout = 120 * time.Second
)

type Stager interface {
	Stage(ctx context.Context, ownerID string, up staging.Upload) (staging.Staged, error)
	Open(path string) (io.ReadCloser, error)
	Remove(path string) error
}

type Extractor interface {
	Extract(ctx context.Context, path string, contentType string) (string, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, ownerID, tempResumeID, text string) (analysis.Outcome, error)
}

type Profiles interface {
	SetResume(ctx context.Context, userID string, resume users.PermanentResume) (*users.PermanentResume, error)
}

// Coordinator drives a temp resume through upload, analyze and save or discard.
type Coordinator struct {
	Store     tempresumes.Store
	Stager    Stager
	Extractor Extractor
	Analyzer  Analyzer
	Permanent object.ObjectStore
	Profiles  Profiles

	TTL             time.Duration
	AnalysisTimeout time.Duration
	Now             func() time.Time
	NewID           func() string
}

// Upload stages the file and creates its record in the staged state.
func (c *Coordinator) Upload(ctx context.Context, ownerID string, up staging.Upload) (tempresumes.Record, error) {
	if strings.TrimSpace(ownerID) == "" {
		return tempresumes.Record{}, fmt.Errorf("%w: missing owner", staging.ErrValidation)
	}
	staged, err := c.Stager.Stage(ctx, ownerID, up)
	if err != nil {
		return tempresumes.Record{}, err
	}

	now := c.now()
	rec := tempresumes.Record{
		ID:          c.newID(),
		OwnerID:     ownerID,
		StagedPath:  staged.Path,
		FileName:    staged.FileName,
		ContentType: staged.ContentType,
		SizeBytes:   staged.SizeBytes,
		CreatedAt:   now,
		ExpiresAt:   now.Add(c.ttl()),
	}
	if err := c.Store.Create(ctx, rec); err != nil {
		if rmErr := c.Stager.Remove(staged.Path); rmErr != nil {
			telemetry.Warn("temp_resume.stage_cleanup_failed", map[string]any{
				"user_id":     ownerID,
				"staged_path": staged.Path,
				"error":       rmErr,
			})
		}
		return tempresumes.Record{}, fmt.Errorf("create temp resume: %w", err)
	}

	metrics.IncTempResumeStaged()
	logTransition("staged", rec.ID, ownerID, "none", tempresumes.StateStaged, map[string]any{
		"content_type": rec.ContentType,
		"size_bytes":   rec.SizeBytes,
	})
	return rec, nil
}

// Analyze extracts the staged text, scores it and writes the result back.
// The paid call runs to completion even if ctx is canceled, bounded by AnalysisTimeout.
func (c *Coordinator) Analyze(ctx context.Context, ownerID, id string) (analysis.Outcome, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.analysisTimeout())
	defer cancel()

	rec, err := c.Store.GetOwned(ctx, ownerID, id, c.now())
	if err != nil {
		return analysis.Outcome{}, err
	}

	text, err := c.Extractor.Extract(ctx, rec.StagedPath, rec.ContentType)
	if err != nil {
		if errors.Is(err, extract.ErrRead) {
			// A concurrent discard, save or sweep may have taken the file with its record.
			if _, getErr := c.Store.GetOwned(ctx, ownerID, id, c.now()); errors.Is(getErr, tempresumes.ErrNotFound) {
				return analysis.Outcome{}, getErr
			}
			return analysis.Outcome{}, fmt.Errorf("%w: %v", ErrFilesystem, err)
		}
		return analysis.Outcome{}, err
	}

	outcome, err := c.Analyzer.Analyze(ctx, ownerID, id, text)
	if err != nil {
		return analysis.Outcome{}, err
	}

	if err := c.Store.SetAnalysis(ctx, ownerID, id, outcome.Result, c.now()); err != nil {
		if errors.Is(err, tempresumes.ErrNotFound) {
			telemetry.Warn("temp_resume.analysis_orphaned", map[string]any{
				"temp_resume_id": id,
				"user_id":        ownerID,
				"cost":           outcome.Usage.Cost,
			})
		}
		return analysis.Outcome{}, err
	}

	logTransition("analyzed", id, ownerID, string(rec.State()), tempresumes.StateAnalyzed, map[string]any{
		"score":        outcome.Result.Score,
		"total_tokens": outcome.Usage.TotalTokens,
		"cost":         outcome.Usage.Cost,
	})
	return outcome, nil
}

// Save moves an analyzed resume into permanent storage and onto the owner's
// profile. The record is claimed first so a concurrent save or discard sees
// ErrNotFound. If copying or the profile update fails, the new permanent file
// is removed and the claim released, leaving the record analyzed and the
// profile untouched.
func (c *Coordinator) Save(ctx context.Context, ownerID, id string) (users.PermanentResume, error) {
	ctx = context.WithoutCancel(ctx)
	now := c.now()

	rec, err := c.Store.Claim(ctx, ownerID, id, now)
	if err != nil {
		if errors.Is(err, tempresumes.ErrNotAnalyzed) {
			return users.PermanentResume{}, ErrInvalidState
		}
		return users.PermanentResume{}, err
	}

	key, err := c.copyToPermanent(ctx, rec)
	if err != nil {
		c.release(ctx, rec)
		return users.PermanentResume{}, err
	}

	saved := users.PermanentResume{Path: key, Analysis: *rec.Analysis, LastAnalyzed: now}
	prev, err := c.Profiles.SetResume(ctx, ownerID, saved)
	if err != nil {
		c.deletePermanent(ctx, key, id, ownerID)
		c.release(ctx, rec)
		return users.PermanentResume{}, fmt.Errorf("update profile: %w", err)
	}

	if prev != nil && prev.Path != "" && prev.Path != key {
		c.deletePermanent(ctx, prev.Path, id, ownerID)
	}
	c.consume(ctx, rec)

	metrics.IncTempResumeSaved()
	logTransition("saved", id, ownerID, string(tempresumes.StateAnalyzed), "saved", map[string]any{
		"permanent_path": key,
		"replaced":       prev != nil,
	})
	return saved, nil
}

// Discard deletes the record and its staged file in either state.
func (c *Coordinator) Discard(ctx context.Context, ownerID, id string) error {
	rec, err := c.Store.DeleteOwned(ctx, ownerID, id, c.now())
	if err != nil {
		return err
	}
	if err := c.Stager.Remove(rec.StagedPath); err != nil {
		// The record is gone; the orphan pass reclaims the file.
		telemetry.Warn("temp_resume.file_remove_failed", map[string]any{
			"temp_resume_id": id,
			"user_id":        ownerID,
			"staged_path":    rec.StagedPath,
			"error":          err,
		})
	}

	metrics.IncTempResumeDiscarded()
	logTransition("discarded", id, ownerID, string(rec.State()), "discarded", nil)
	return nil
}

// Get returns a live record owned by ownerID.
func (c *Coordinator) Get(ctx context.Context, ownerID, id string) (tempresumes.Record, error) {
	return c.Store.GetOwned(ctx, ownerID, id, c.now())
}

func (c *Coordinator) copyToPermanent(ctx context.Context, rec tempresumes.Record) (string, error) {
	f, err := c.Stager.Open(rec.StagedPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key, _, _, err := c.Permanent.Save(ctx, rec.OwnerID, rec.FileName, f)
	if err != nil {
		return "", fmt.Errorf("%w: write permanent resume: %v", ErrFilesystem, err)
	}
	return key, nil
}

// consume removes the record before its file so that a live record never
// points at a missing file. Failures are left to the sweeper.
func (c *Coordinator) consume(ctx context.Context, rec tempresumes.Record) {
	if err := c.Store.Delete(ctx, rec.ID); err != nil {
		telemetry.Error("temp_resume.record_delete_failed", map[string]any{
			"temp_resume_id": rec.ID,
			"user_id":        rec.OwnerID,
			"error":          err,
		})
		return
	}
	if err := c.Stager.Remove(rec.StagedPath); err != nil {
		telemetry.Warn("temp_resume.file_remove_failed", map[string]any{
			"temp_resume_id": rec.ID,
			"user_id":        rec.OwnerID,
			"staged_path":    rec.StagedPath,
			"error":          err,
		})
	}
}

func (c *Coordinator) release(ctx context.Context, rec tempresumes.Record) {
	if rec.ClaimedAt == nil {
		return
	}
	if err := c.Store.Release(ctx, rec.ID, *rec.ClaimedAt); err != nil {
		telemetry.Error("temp_resume.release_failed", map[string]any{
			"temp_resume_id": rec.ID,
			"user_id":        rec.OwnerID,
			"error":          err,
		})
	}
}

func (c *Coordinator) deletePermanent(ctx context.Context, key, id, ownerID string) {
	if err := c.Permanent.Delete(ctx, key); err != nil {
		telemetry.Error("permanent_resume.delete_failed", map[string]any{
			"temp_resume_id": id,
			"user_id":        ownerID,
			"permanent_path": key,
			"error":          err,
		})
	}
}

func logTransition(name, id, ownerID, from string, to tempresumes.State, extra map[string]any) {
	fields := map[string]any{
		"temp_resume_id":    id,
		"user_id":           ownerID,
		"status_transition": from + "->" + string(to),
	}
	for k, v := range extra {
		fields[k] = v
	}
	telemetry.Info("temp_resume."+name, fields)
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c *Coordinator) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}

func (c *Coordinator) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultTTL
}

func (c *Coordinator) analysisTimeout() time.Duration {
	if c.AnalysisTimeout > 0 {
		return c.AnalysisTimeout
	}
	return DefaultAnalysisTimeout
}
