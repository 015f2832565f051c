package dedup

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper periodically evicts expired cache entries on a cron schedule.
type Sweeper struct {
	cache *Cache
	cron  *cron.Cron
	log   zerolog.Logger
}

// NewSweeper schedules a sweep of cache every interval.
func NewSweeper(cache *Cache, interval time.Duration, log zerolog.Logger) (*Sweeper, error) {
	s := &Sweeper{
		cache: cache,
		cron:  cron.New(),
		log:   log,
	}

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if n := s.cache.Sweep(); n > 0 {
			s.log.Debug().Int("removed", n).Msg("dedup sweep")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule dedup sweep: %w", err)
	}
	return s, nil
}

// Start begins the sweep schedule in its own goroutine.
func (s *Sweeper) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
