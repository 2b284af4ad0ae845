package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/recommend"
)

// RecommendRefreshJob rebuilds the cached recommendation set on a
// configurable interval (default: 1 hour) so buyers never wait on a cold
// cache. The refresher also runs once at startup.
type RecommendRefreshJob struct {
	recommender *recommend.Service
	logger      *log.Logger
	interval    time.Duration
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewRecommendRefreshJob creates a new recommendation refresh job.
func NewRecommendRefreshJob(r *recommend.Service, logger *log.Logger, interval time.Duration) *RecommendRefreshJob {
	if interval == 0 {
		interval = 1 * time.Hour
	}
	return &RecommendRefreshJob{
		recommender: r,
		logger:      logger,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the background job.
func (j *RecommendRefreshJob) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.Printf("RecommendRefreshJob: started (interval=%v)", j.interval)
}

// Stop gracefully stops the background job.
func (j *RecommendRefreshJob) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Println("RecommendRefreshJob: stopped")
}

func (j *RecommendRefreshJob) run() {
	defer j.wg.Done()

	// Run immediately on start
	j.refresh()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.refresh()
		case <-j.stopCh:
			return
		}
	}
}

func (j *RecommendRefreshJob) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := j.recommender.Refresh(ctx); err != nil {
		j.logger.Printf("RecommendRefreshJob: refresh failed: %v", err)
	}
}
