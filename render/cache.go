package render

// Cache holds the most recent applied result per rendering context. It is
// owned by the same goroutine that applies results, so it takes no locks:
// the single handoff point between workers and owner is the scheduler's
// result channel, not the cache.
//
// Single-page mode keeps exactly one entry. Continuous mode keeps the pages
// of the last applied visible range plus their cumulative heights for
// scroll-to-page mapping. Thumbnails keep one low-resolution entry per page,
// invalidated wholesale when the key's epoch changes. There is no eviction
// beyond replace-on-new-generation: entries are bounded by document size and
// view mode.
type Cache struct {
	entries [3]cacheEntry
}

type cacheEntry struct {
	valid bool
	key   Key
	pages []PageImage
}

// Lookup returns the cached pages for key, if the exact key is present.
func (c *Cache) Lookup(key Key) ([]PageImage, bool) {
	e := &c.entries[key.Kind]
	if !e.valid || e.key != key {
		return nil, false
	}
	return e.pages, true
}

// Put replaces the entry for the key's context.
func (c *Cache) Put(key Key, pages []PageImage) {
	c.entries[key.Kind] = cacheEntry{valid: true, key: key, pages: pages}
}

// Invalidate drops the entry for one context.
func (c *Cache) Invalidate(kind Kind) {
	c.entries[kind] = cacheEntry{}
}

// Current returns the pages of a context's entry regardless of key, for
// consumers that just want whatever is on screen.
func (c *Cache) Current(kind Kind) ([]PageImage, bool) {
	e := &c.entries[kind]
	if !e.valid {
		return nil, false
	}
	return e.pages, true
}

// ScrollOffsets returns the cumulative top offsets, in canvas pixels, of the
// cached continuous-mode pages. Offset i is where page i of the cached range
// starts; the final element is the total stacked height.
func (c *Cache) ScrollOffsets() []float64 {
	pages, ok := c.Current(Continuous)
	if !ok {
		return nil
	}
	offsets := make([]float64, len(pages)+1)
	for i, p := range pages {
		h := 0.0
		if p.Image != nil {
			h = float64(p.Image.Bounds().Dy())
		}
		offsets[i+1] = offsets[i] + h
	}
	return offsets
}

// PageAtOffset maps a vertical scroll position to the page index of the
// cached continuous range that covers it. Positions past the end clamp to
// the last page.
func (c *Cache) PageAtOffset(y float64) (int, bool) {
	pages, ok := c.Current(Continuous)
	if !ok || len(pages) == 0 {
		return 0, false
	}
	offsets := c.ScrollOffsets()
	for i := 0; i < len(pages); i++ {
		if y < offsets[i+1] {
			return pages[i].Page, true
		}
	}
	return pages[len(pages)-1].Page, true
}
