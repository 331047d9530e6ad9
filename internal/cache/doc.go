// Package cache provides a generic soft-limit cache used for compiled
// shader modules.
//
// When the cache grows past its limit the least recently used quarter of
// the entries is evicted and handed to the eviction callback, which
// releases the GPU objects they own.
//
//	c := cache.New[uint64, hal.ShaderModule](256, func(_ uint64, m hal.ShaderModule) {
//	    device.DestroyShaderModule(m)
//	})
//	module, err := c.GetOrCreate(key, compile)
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
