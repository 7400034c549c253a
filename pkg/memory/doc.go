// Package memory is the memory virtualization component: it owns the process
// arena, the heap interception shim that routes allocations into it, and the
// snapshot engine that saves and restores it.
//
// A Module is created explicitly and lives for the rest of the process; there
// is no Close because arena-backed memory may be referenced until exit.
//
//	m := memory.New(memory.WithMemorySize(256 << 20))
//	if err := m.Install(installer); err != nil {
//	    return err
//	}
//	// ... the host runs; its heap calls land in the arena ...
//
//	f, _ := archive.Create("state.snap", archive.FileOptions{Compression: archive.DefaultCompression})
//	defer f.Close()
//	if err := m.Serialize(f); err != nil {
//	    return err
//	}
//
// The arena is created lazily by the first intercepted heap call, by
// Initialize, or by Serialize, whichever comes first.
package memory
