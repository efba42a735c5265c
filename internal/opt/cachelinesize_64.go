//go:build atomx_cachelinesize_64

package opt

const CacheLineSize_ = 64
