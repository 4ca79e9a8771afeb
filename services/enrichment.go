package services

// EnrichmentPlan decides which hotels get content enrichment this call.
// Derived per search from the content cache's current population; never
// persisted.
type EnrichmentPlan struct {
	EffectiveLimit int
	HIDs           []int64 // first EffectiveLimit HIDs, original order preserved
	CachedCount    int
}

// PlanEnrichment bounds the number of NEW content lookups per request while
// letting already-cached hotels pass through free: the limit counts only
// uncached hotels, so repeated identical searches converge toward full
// enrichment as the cache fills. limit <= 0 means enrich everything.
//
// The HID list is truncated in its original (price-sorted) order; cached
// HIDs are deliberately not promoted ahead of the cut.
func PlanEnrichment(hids []int64, isCached func(int64) bool, limit int) EnrichmentPlan {
	total := len(hids)

	cached := 0
	for _, hid := range hids {
		if isCached(hid) {
			cached++
		}
	}

	if limit <= 0 {
		return EnrichmentPlan{EffectiveLimit: total, HIDs: hids, CachedCount: cached}
	}

	effective := cached + limit
	if effective > total {
		effective = total
	}

	return EnrichmentPlan{
		EffectiveLimit: effective,
		HIDs:           hids[:effective],
		CachedCount:    cached,
	}
}
