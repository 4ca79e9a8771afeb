package content

import (
	"context"
	"encoding/json"
	"fmt"
	"hotel-api-go/cache"
	"hotel-api-go/logcolors"
	"hotel-api-go/services/notifier"

	log "github.com/sirupsen/logrus"
)

// DefaultBatchSize caps the number of HIDs per content-store query.
const DefaultBatchSize = 500

// Resolver maps HIDs to enriched hotel content, serving from the content
// cache where possible and batch-querying the local store for the rest.
// Store failures degrade to stale cache entries, never to an error: a hotel
// that cannot be resolved is simply absent from the result.
type Resolver struct {
	store     Store
	cache     *cache.TieredCache
	batchSize int
}

// NewResolver creates a content resolver. batchSize <= 0 uses the default.
func NewResolver(store Store, contentCache *cache.TieredCache, batchSize int) *Resolver {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Resolver{
		store:     store,
		cache:     contentCache,
		batchSize: batchSize,
	}
}

// CacheKey returns the content-cache key for a hotel.
func CacheKey(hid int64) string {
	return fmt.Sprintf("hid:%d", hid)
}

// IsCached reports whether a hotel's content is fresh in the cache. Used by
// the enrichment planner to count "free" hotels.
func (r *Resolver) IsCached(hid int64) bool {
	return r.cache.HasFresh(CacheKey(hid))
}

// Resolve returns canonical content for as many of the given HIDs as
// possible. Cached-fresh entries are served directly; the rest are fetched
// from the store in batches and written back with a fresh timestamp.
func (r *Resolver) Resolve(ctx context.Context, hids []int64) map[int64]HotelContent {
	resolved := make(map[int64]HotelContent, len(hids))
	var uncached []int64

	for _, hid := range hids {
		if hc, ok := r.fromCacheFresh(hid); ok {
			resolved[hid] = hc
		} else {
			uncached = append(uncached, hid)
		}
	}

	if len(uncached) > 0 {
		log.Infof("%s Resolving %d hotels (%d cached, %d from store)",
			logcolors.LogContent, len(hids), len(resolved), len(uncached))
	}

	for start := 0; start < len(uncached); start += r.batchSize {
		end := start + r.batchSize
		if end > len(uncached) {
			end = len(uncached)
		}
		r.resolveBatch(ctx, uncached[start:end], resolved)
	}

	return resolved
}

// resolveBatch queries the store for one chunk of HIDs, filling resolved.
// On store failure the affected HIDs fall back to stale cache entries.
func (r *Resolver) resolveBatch(ctx context.Context, hids []int64, resolved map[int64]HotelContent) {
	docs, err := r.store.FindByHIDs(ctx, hids)
	if err != nil {
		log.Errorf("%s Store query for %d hotels failed: %v", logcolors.LogContent, len(hids), err)
		notifier.PublishContentStoreError(len(hids), err)

		for _, hid := range hids {
			if hc, ok := r.fromCacheAnyAge(hid); ok {
				resolved[hid] = hc
			}
		}
		return
	}

	for _, hid := range hids {
		doc, ok := docs[hid]
		if !ok {
			continue
		}

		hc, err := NormalizeDoc(hid, doc)
		if err != nil {
			log.Warnf("%s Malformed document for hid %d: %v", logcolors.LogContent, hid, err)
			continue
		}
		resolved[hid] = hc
		r.writeBack(hid, hc)
	}
}

// fromCacheFresh decodes a fresh cache entry for the hotel.
func (r *Resolver) fromCacheFresh(hid int64) (HotelContent, bool) {
	data, ok := r.cache.GetFresh(CacheKey(hid))
	if !ok {
		return HotelContent{}, false
	}
	return decodeCached(hid, data)
}

// fromCacheAnyAge decodes any entry still within the stale TTL.
func (r *Resolver) fromCacheAnyAge(hid int64) (HotelContent, bool) {
	data, age, ok := r.cache.Get(CacheKey(hid))
	if !ok {
		return HotelContent{}, false
	}
	hc, ok := decodeCached(hid, data)
	if ok && !r.cache.IsFresh(age) {
		log.Infof("%s Serving stale content for hid %d (age: %v)", logcolors.LogCacheStale, hid, age)
	}
	return hc, ok
}

func (r *Resolver) writeBack(hid int64, hc HotelContent) {
	data, err := json.Marshal(hc)
	if err != nil {
		log.Errorf("%s Failed to marshal content for hid %d: %v", logcolors.LogCacheContent, hid, err)
		return
	}
	if err := r.cache.Put(CacheKey(hid), string(data)); err != nil {
		log.Errorf("%s Failed to cache content for hid %d: %v", logcolors.LogCacheContent, hid, err)
	}
}

func decodeCached(hid int64, data string) (HotelContent, bool) {
	var hc HotelContent
	if err := json.Unmarshal([]byte(data), &hc); err != nil {
		log.Warnf("%s Corrupt cached content for hid %d: %v", logcolors.LogCacheContent, hid, err)
		return HotelContent{}, false
	}
	return hc, true
}
