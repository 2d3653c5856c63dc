package scheduler

import (
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/codr1/themekit/internal/cache"
)

const CacheSweepJobName = "theme-cache-sweep"

// SweepCache drops expired cache entries. Reads already treat them as misses;
// the sweep only reclaims their memory.
func SweepCache(c *cache.Cache) int {
	if c == nil || !c.Enabled() {
		return 0
	}
	removed := c.Prune()
	if removed > 0 {
		log.Debug().Int("removed", removed).Int("remaining", c.Len()).Msg("Swept expired theme cache entries")
	}
	return removed
}

// RegisterCacheSweep schedules SweepCache on cronExpr.
func RegisterCacheSweep(s *Service, c *cache.Cache, cronExpr string) (gocron.Job, error) {
	return s.AddJob(CacheSweepJobName, cronExpr, func() {
		SweepCache(c)
	})
}
