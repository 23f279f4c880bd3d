// Package cache provides a bounded LRU cache for GPU objects that must be
// destroyed when they fall out of the cache.
//
// The render device keeps two of these: compiled shader modules keyed by
// source hash, and render pipelines keyed by shader, vertex layout and
// fixed state. Eviction hands the value to an OnEvict callback so the
// owner can release the underlying HAL object.
//
//	c := cache.New[pipelineKey, hal.RenderPipeline](64, func(_ pipelineKey, p hal.RenderPipeline) {
//	    device.DestroyRenderPipeline(p)
//	})
//	p, hit, err := c.GetOrCreate(key, build)
//
// # Thread Safety
//
// Cache is safe for concurrent use. The OnEvict callback runs with the
// cache lock held and must not call back into the cache.
package cache
