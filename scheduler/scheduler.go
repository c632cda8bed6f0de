package scheduler

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	log15 "github.com/inconshreveable/log15/v3"
	"github.com/robfig/cron/v3"

	"slackmirror/syncer"
)

var log = log15.New("module", "scheduler")

// Start schedules full re-syncs of the configured selector on the given
// cron expression. Firings that land while a previous scheduled run is
// still crawling are skipped; upsert idempotence makes the eventual next
// run catch up on its own.
func Start(s *syncer.Syncer, cronSpec string, selector []string) (*cron.Cron, error) {
	c := cron.New()
	var running atomic.Bool

	_, err := c.AddFunc(cronSpec, func() {
		if !running.CompareAndSwap(false, true) {
			log.Warn("previous scheduled sync still running, skipping")
			return
		}
		defer running.Store(false)

		jobID := "cron-" + uuid.NewString()
		log.Info("scheduled sync starting", "job", jobID)
		if err := s.Run(context.Background(), jobID, selector); err != nil {
			log.Error("scheduled sync failed", "job", jobID, "err", err)
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	log.Info("scheduler started", "spec", cronSpec)
	return c, nil
}
