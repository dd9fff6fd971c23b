package process

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	pageSize = 0x1000

	// scanChunkSize bounds the local copy of a single region. Chunks
	// overlap by the signature length so no in-region match is lost.
	scanChunkSize = 16 << 20
)

// Regions describes every region overlapping [base, base+size), in
// ascending address order.
func (h *Handle) Regions(base uintptr, size uintptr) ([]Region, error) {
	var regions []Region
	err := h.do(func(t Target) error {
		return walkRegions(t, base, size, func(r Region, _ uintptr, _ uintptr) (bool, error) {
			regions = append(regions, r)
			return false, nil
		}, true)
	})
	return regions, err
}

// FindSignature scans [base, base+size) of the process for sig and
// returns the absolute address of the first match.
//
// The range is walked one region at a time; free regions are skipped.
// Each other region is copied locally and searched. A region that can
// only be partially copied is searched as far as the copy got. A match
// cannot span two regions, even when they are contiguous.
func (h *Handle) FindSignature(base uintptr, size uintptr, sig Signature) (uintptr, error) {
	err := sig.validate()
	if err != nil {
		return 0, err
	}

	var found uintptr
	var hasIt bool
	err = h.do(func(t Target) error {
		return walkRegions(t, base, size, func(_ Region, start uintptr, n uintptr) (bool, error) {
			found, hasIt = scanSpan(t, start, n, sig)
			return hasIt, nil
		}, false)
	})
	if err != nil {
		return 0, err
	}

	if !hasIt {
		return 0, errors.Wrapf(ErrSignatureNotFound, "%s in 0x%x-0x%x", sig, base, base+size)
	}

	return found, nil
}

// FindModuleSignature scans the address range of mod.
func (h *Handle) FindModuleSignature(mod Module, sig Signature) (uintptr, error) {
	return h.FindSignature(mod.Base, uintptr(mod.Size), sig)
}

// walkRegions calls fn with each region overlapping [base, base+size)
// and the part of it, starting at the cursor and clamped to the range,
// that should be searched. Free regions are only passed on when
// includeFree is set. Addresses wrap instead of overflowing.
func walkRegions(t Target, base uintptr, size uintptr,
	fn func(r Region, start uintptr, n uintptr) (bool, error), includeFree bool) error {

	query := regionQuery(t)

	var offset uintptr
	for offset < size {
		cursor := base + offset

		region, err := query(cursor)
		if err != nil {
			return errors.Wrapf(err, "failed to query region at 0x%x", cursor)
		}

		step := region.End() - cursor
		if region.Size == 0 || !region.Contains(cursor) {
			step = pageSize
		}

		remaining := size - offset
		n := step
		if n > remaining {
			n = remaining
		}

		if region.State != RegionFree || includeFree {
			stop, err := fn(region, cursor, n)
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
		}

		if step >= remaining {
			return nil
		}
		offset += step
	}

	return nil
}

// regionQuery returns the region lookup used for one walk. Targets that
// support it are snapshotted once; a failed snapshot falls back to
// querying every region.
func regionQuery(t Target) func(uintptr) (Region, error) {
	snapshotter, ok := t.(regionSnapshotter)
	if !ok {
		return t.QueryRegion
	}

	snap, err := snapshotter.snapshotRegions()
	if err != nil {
		Log.WithField("err", err).Debug("region snapshot failed")
		return t.QueryRegion
	}

	return func(addr uintptr) (Region, error) {
		if r, ok := snap.regionAt(addr); ok {
			return r, nil
		}
		return t.QueryRegion(addr)
	}
}

// scanSpan copies n bytes at start in chunks and searches them for sig.
// A failed or short copy ends the span after searching what was copied.
func scanSpan(t Target, start uintptr, n uintptr, sig Signature) (uintptr, bool) {
	overlap := uintptr(sig.Len() - 1)

	for done := uintptr(0); done < n; {
		want := n - done
		if want > scanChunkSize+overlap {
			want = scanChunkSize + overlap
		}

		at := start + done
		buf := make([]byte, want)
		count, err := t.ReadMemory(at, buf)
		if err != nil || uintptr(count) < want {
			Log.WithFields(logrus.Fields{"addr": at, "read": count, "want": want, "err": err}).
				Debug("partial region copy")
		}

		if i := sig.index(buf[:count]); i >= 0 {
			return at + uintptr(i), true
		}

		if uintptr(count) < want || done+want >= n {
			return 0, false
		}
		done += want - overlap
	}

	return 0, false
}
