// Package registry provides slot-indexed pools for GPU resource objects.
//
// A Pool hands out small integer handles. Released handles go onto a free
// list and are reused before the pool grows, so handle values stay dense.
// Handle 0 is never allocated and serves as the "unset" sentinel.
//
// Handles carry no generation: after Release the same numeric handle may
// name a different object, and callers must not keep handles past release.
//
// Pools are not safe for concurrent use.
package registry
