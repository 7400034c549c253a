package snapshot

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/joshuapare/procstate/mem/archive"
)

// Manifest describes an archive without its payload.
type Manifest struct {
	Capacity      uint64
	HighWaterMark uint64
	Regions       []Region
}

// RegionBytes returns the total size of all module regions.
func (m Manifest) RegionBytes() uint64 {
	return lo.SumBy(m.Regions, func(r Region) uint64 { return r.Size })
}

// Inspect reads the field layout of ar, skipping every payload.
func Inspect(ar archive.Archive) (Manifest, error) {
	var m Manifest
	if ar.Mode() != archive.ModeReader {
		return m, fmt.Errorf("%w: inspect needs a reader, got %s", ErrWrongMode, ar.Mode())
	}
	if err := ar.Size(&m.Capacity); err != nil {
		return m, err
	}
	if err := ar.Size(&m.HighWaterMark); err != nil {
		return m, err
	}
	if err := ar.Skip(m.HighWaterMark); err != nil {
		return m, err
	}

	var count uint64
	if err := ar.Size(&count); err != nil {
		return m, err
	}
	m.Regions = make([]Region, 0, min(count, 1<<12))
	for i := uint64(0); i < count; i++ {
		var r Region
		if err := ar.Pointer(&r.Addr); err != nil {
			return m, err
		}
		if err := ar.Size(&r.Size); err != nil {
			return m, err
		}
		if err := ar.Skip(r.Size); err != nil {
			return m, err
		}
		m.Regions = append(m.Regions, r)
	}
	return m, nil
}
