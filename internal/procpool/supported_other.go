//go:build !unix

package procpool

// Supported reports whether this platform can run the worker-process pool.
const Supported = false
