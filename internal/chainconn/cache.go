package chainconn

import (
	chaincache "github.com/frennadev/nitro-launch-bot-sub004/infrastructure/cache"
)

// newBalanceCache and newBlockhashCache build on the shared in-process TTL
// cache rather than a bespoke map+mutex: a single stale balance read costs
// nothing since the next hop re-derives max_transferable anyway (§4.3), so
// the generic cache's per-key TTL and background eviction are sufficient.
func newBalanceCache() *chaincache.Cache {
	return chaincache.NewCache(chaincache.CacheConfig{DefaultTTL: balanceCacheTTL})
}

func newBlockhashCache() *chaincache.Cache {
	return chaincache.NewCache(chaincache.CacheConfig{DefaultTTL: blockhashCacheTTL})
}
