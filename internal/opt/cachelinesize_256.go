//go:build atomx_cachelinesize_256

package opt

const CacheLineSize_ = 256
