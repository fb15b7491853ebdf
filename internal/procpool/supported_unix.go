//go:build unix

package procpool

// Supported reports whether this platform can run the worker-process pool
// (shared mappings plus descriptor inheritance).
const Supported = true
