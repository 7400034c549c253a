// Package query answers questions about the calling process's own address space.
//
// # Predicates
//
// IsCommitted and IsWritable are the two predicates the snapshot engine relies
// on. Both are advisory: a failed or impossible query is reported as a negative
// answer and never as an error, so serialization can consult them freely.
//
//	if query.IsWritable(addr) {
//	    copy(query.Bytes(addr, size), saved)
//	}
//
// # Regions
//
// Query mirrors VirtualQuery semantics on every platform. It returns the region
// containing an address, including unmapped gaps (StateFree), so that callers can
// walk a range with
//
//	for pos := start; pos < end; pos = r.End() { r, ok := q.Query(pos); ... }
//
// On Linux regions come from /proc/self/maps; on Windows from VirtualQuery. Other
// platforms report every address as free.
//
// # Modules
//
// Modules enumerates loaded images with their base address and size and flags the
// main executable. On Linux an image is the set of mappings backed by the same
// file, extended over the anonymous writable mapping that directly follows it
// (the ELF .bss).
//
// # Thread Safety
//
// All functions are safe for concurrent use. A Map is immutable after Load.
package query
