package process

import (
	"runtime"
	"sync/atomic"

	"github.com/pkg/errors"
)

type ScanOptions struct {
	// Workers is the number of regions searched at once.
	// Zero or less means runtime.NumCPU.
	Workers int
}

type spanMatch struct {
	addr  uintptr
	found bool
}

// FindSignatureParallel is FindSignature with regions searched by a
// pool of workers. Regions are disjoint and only read, so the result is
// the same lowest-address match the sequential scan returns.
func (h *Handle) FindSignatureParallel(base uintptr, size uintptr, sig Signature, opts ScanOptions) (uintptr, error) {
	err := sig.validate()
	if err != nil {
		return 0, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var found uintptr
	var hasIt bool
	err = h.do(func(t Target) error {
		type span struct {
			start uintptr
			n     uintptr
		}

		var spans []span
		err := walkRegions(t, base, size, func(_ Region, start uintptr, n uintptr) (bool, error) {
			spans = append(spans, span{start: start, n: n})
			return false, nil
		}, false)
		if err != nil {
			return err
		}

		// best is the lowest span index known to match. Spans above it
		// cannot hold the first match, so they are neither submitted
		// nor scanned once it is known.
		var best atomic.Int64
		best.Store(int64(len(spans)))

		pool := startWorkers(workers)
		waits := make([]func() (spanMatch, error), len(spans))
		for i, s := range spans {
			if int64(i) > best.Load() {
				break
			}

			i, s := i, s
			waits[i] = submit(pool, func() (spanMatch, error) {
				if int64(i) > best.Load() {
					return spanMatch{}, nil
				}

				addr, ok := scanSpan(t, s.start, s.n, sig)
				if ok {
					lowerBest(&best, int64(i))
				}
				return spanMatch{addr: addr, found: ok}, nil
			})
		}
		pool.stop()

		for _, wait := range waits {
			if wait == nil {
				break
			}

			m, err := wait()
			if err != nil {
				return errors.Wrap(err, "region scan failed")
			}
			if m.found {
				found, hasIt = m.addr, true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if !hasIt {
		return 0, errors.Wrapf(ErrSignatureNotFound, "%s in 0x%x-0x%x", sig, base, base+size)
	}

	return found, nil
}

func lowerBest(best *atomic.Int64, i int64) {
	for {
		cur := best.Load()
		if i >= cur || best.CompareAndSwap(cur, i) {
			return
		}
	}
}
