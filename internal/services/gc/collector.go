// Package gc retries vector deletions that failed during document deletes.
package gc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
)

// sweepBatch is the number of orphan records handled per sweep
const sweepBatch = 100

// SweepResult summarizes one sweep
type SweepResult struct {
	Checked int `json:"checked"`
	Cleaned int `json:"cleaned"`
	Failed  int `json:"failed"`
}

// Collector deletes orphaned document vectors on a cron schedule
type Collector struct {
	orphans  interfaces.OrphanStorage
	index    interfaces.VectorIndex
	schedule string
	cron     *cron.Cron
	logger   arbor.ILogger

	mu      sync.Mutex // Serializes sweeps
	running bool
}

func NewCollector(orphans interfaces.OrphanStorage, index interfaces.VectorIndex, config *common.GCConfig, logger arbor.ILogger) *Collector {
	return &Collector{
		orphans:  orphans,
		index:    index,
		schedule: config.Schedule,
		cron:     cron.New(cron.WithSeconds()),
		logger:   logger,
	}
}

// Start registers the sweep and starts the scheduler
func (c *Collector) Start() error {
	if _, err := c.cron.AddFunc(c.schedule, c.runScheduled); err != nil {
		return fmt.Errorf("invalid gc schedule %q: %w", c.schedule, err)
	}
	c.cron.Start()
	c.logger.Info().Str("schedule", c.schedule).Msg("Orphan collector started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep
func (c *Collector) Stop() {
	<-c.cron.Stop().Done()
	c.logger.Info().Msg("Orphan collector stopped")
}

func (c *Collector) runScheduled() {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("Recovered from panic in orphan sweep")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := c.SweepOnce(ctx); err != nil {
		c.logger.Error().Err(err).Msg("Orphan sweep failed")
	}
}

// SweepOnce retries the pending vector deletions. Records are removed once
// their vectors are gone and updated with the error otherwise.
func (c *Collector) SweepOnce(ctx context.Context) (*SweepResult, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.logger.Debug().Msg("Orphan sweep already running, skipping")
		return &SweepResult{}, nil
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	orphans, err := c.orphans.ListOrphans(ctx, sweepBatch)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphans: %w", err)
	}

	result := &SweepResult{}
	for _, orphan := range orphans {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++

		if err := c.index.Delete(ctx, models.PointFilter{DocumentID: orphan.DocumentID}); err != nil {
			result.Failed++
			orphan.Attempts++
			orphan.LastError = err.Error()
			orphan.UpdatedAt = time.Now().UTC()
			if saveErr := c.orphans.SaveOrphan(ctx, orphan); saveErr != nil {
				c.logger.Warn().Err(saveErr).Str("orphan_id", orphan.ID).Msg("Failed to update orphan record")
			}
			c.logger.Warn().
				Err(err).
				Str("document_id", orphan.DocumentID).
				Int("attempts", orphan.Attempts).
				Msg("Orphaned vectors still not deleted")
			continue
		}

		if err := c.orphans.DeleteOrphan(ctx, orphan.ID); err != nil {
			c.logger.Warn().Err(err).Str("orphan_id", orphan.ID).Msg("Failed to remove orphan record")
		}
		result.Cleaned++
	}

	if result.Checked > 0 {
		c.logger.Info().
			Int("checked", result.Checked).
			Int("cleaned", result.Cleaned).
			Int("failed", result.Failed).
			Msg("Orphan sweep finished")
	}
	return result, nil
}
