//go:build windows

package query

import (
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

// memFree is MEM_FREE, which x/sys/windows does not export.
const memFree = 0x10000

func queryAddr(addr uintptr) (Region, bool) {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
		return Region{}, false
	}
	return fromMBI(&mbi), true
}

func fromMBI(mbi *windows.MemoryBasicInformation) Region {
	r := Region{
		Base: mbi.BaseAddress,
		Size: mbi.RegionSize,
	}
	switch mbi.State {
	case windows.MEM_COMMIT:
		r.State = StateCommitted
		r.Prot = protFromPage(mbi.Protect)
	case windows.MEM_RESERVE:
		r.State = StateReserved
	case memFree:
		r.State = StateFree
	}
	return r
}

func protFromPage(p uint32) Prot {
	if p&windows.PAGE_GUARD != 0 {
		return 0
	}
	switch p & 0xff {
	case windows.PAGE_READONLY:
		return ProtRead
	case windows.PAGE_READWRITE:
		return ProtRead | ProtWrite
	case windows.PAGE_WRITECOPY:
		return ProtRead | ProtCopyOnWrite
	case windows.PAGE_EXECUTE:
		return ProtExec
	case windows.PAGE_EXECUTE_READ:
		return ProtRead | ProtExec
	case windows.PAGE_EXECUTE_READWRITE:
		return ProtRead | ProtWrite | ProtExec
	case windows.PAGE_EXECUTE_WRITECOPY:
		return ProtRead | ProtExec | ProtCopyOnWrite
	default:
		return 0
	}
}

// Load walks the whole user address space with VirtualQuery.
func Load() (*Map, error) {
	var regions []Region
	var addr uintptr
	for {
		r, ok := queryAddr(addr)
		if !ok || r.Size == 0 {
			break
		}
		regions = append(regions, r)
		next := r.End()
		if next <= addr {
			break
		}
		addr = next
	}
	return NewMap(regions), nil
}

// Modules lists the images loaded into this process.
func Modules() ([]Module, error) {
	proc := windows.CurrentProcess()

	var mainMod windows.Handle
	if err := windows.GetModuleHandleEx(0, nil, &mainMod); err != nil {
		return nil, err
	}

	handles := make([]windows.Handle, 1024)
	var needed uint32
	for {
		cb := uint32(len(handles)) * uint32(unsafe.Sizeof(handles[0]))
		if err := windows.EnumProcessModules(proc, &handles[0], cb, &needed); err != nil {
			return nil, err
		}
		if needed <= cb {
			handles = handles[:needed/uint32(unsafe.Sizeof(handles[0]))]
			break
		}
		handles = make([]windows.Handle, needed/uint32(unsafe.Sizeof(handles[0])))
	}

	mods := make([]Module, 0, len(handles))
	for _, h := range handles {
		var info windows.ModuleInfo
		if err := windows.GetModuleInformation(proc, h, &info, uint32(unsafe.Sizeof(info))); err != nil {
			continue
		}
		name := make([]uint16, windows.MAX_LONG_PATH)
		path := ""
		if err := windows.GetModuleFileNameEx(proc, h, &name[0], uint32(len(name))); err == nil {
			path = filepath.Clean(windows.UTF16ToString(name))
		}
		mods = append(mods, Module{
			Path: path,
			Base: info.BaseOfDll,
			Size: uintptr(info.SizeOfImage),
			Main: h == mainMod,
		})
	}
	return mods, nil
}
