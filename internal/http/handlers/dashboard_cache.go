package handlers

import (
	"strings"
	"sync"
	"time"
)

type dashboardCacheEntry struct {
	value     any
	expiresAt time.Time
}

const (
	dashboardCacheMaxEntries = 200
	dashboardCacheTTL        = 30 * time.Second
)

var (
	dashboardCacheMu sync.Mutex
	dashboardCache   = map[string]dashboardCacheEntry{}
)

func dashboardCacheKey(prefix string, parts ...string) string {
	return strings.Join(append([]string{prefix}, parts...), "|")
}

func getDashboardCache(key string) (any, bool) {
	dashboardCacheMu.Lock()
	defer dashboardCacheMu.Unlock()

	entry, ok := dashboardCache[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(dashboardCache, key)
		return nil, false
	}
	return entry.value, true
}

func setDashboardCache(key string, value any, ttl time.Duration) {
	dashboardCacheMu.Lock()
	defer dashboardCacheMu.Unlock()

	dashboardCache[key] = dashboardCacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
	if len(dashboardCache) > dashboardCacheMaxEntries {
		dashboardCache = map[string]dashboardCacheEntry{}
	}
}

// invalidateDashboardCache drops every entry, or only those under the given prefixes.
func invalidateDashboardCache(prefixes ...string) {
	dashboardCacheMu.Lock()
	defer dashboardCacheMu.Unlock()

	if len(prefixes) == 0 {
		dashboardCache = map[string]dashboardCacheEntry{}
		return
	}
	for key := range dashboardCache {
		for _, prefix := range prefixes {
			if key == prefix || strings.HasPrefix(key, prefix+"|") {
				delete(dashboardCache, key)
				break
			}
		}
	}
}
