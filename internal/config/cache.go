package config

import "time"

// CacheConfig tunes the Redis response cache in front of the public
// catalog.  Book listings are read-heavy and tolerate short staleness;
// everything stateful (tickets, loans, payments) bypasses the cache.
type CacheConfig struct {
    Enabled      bool
    TTL          time.Duration
    Prefix       string
    MaxBodyBytes int
}

func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      envBool("CATALOG_CACHE_ENABLED", true),
        TTL:          envDur("CATALOG_CACHE_TTL", 30*time.Second),
        Prefix:       envStr("CATALOG_CACHE_PREFIX", "catalog"),
        MaxBodyBytes: envInt("CATALOG_CACHE_MAX_BODY", 1<<20),
    }
}
