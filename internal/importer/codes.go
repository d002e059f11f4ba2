package importer

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// DefaultClientCodeStart is the first client code handed out on an empty store.
const DefaultClientCodeStart = 10000

// CodeSource reports client codes already held by persisted leads.
type CodeSource interface {
	ClientCodesFrom(ctx context.Context, from int) ([]int, error)
}

// CodeAllocator hands out increasing client codes. The first code follows
// the highest one already stored, so codes freed by a purge are never handed
// out again. Codes claimed later by another writer are skipped, and a
// failed insert leaves a gap rather than a reuse.
type CodeAllocator struct {
	src   CodeSource
	start int

	mu     sync.Mutex
	next   int
	taken  map[int]bool
	loaded bool
}

// NewCodeAllocator creates an allocator for codes at or above start.
func NewCodeAllocator(src CodeSource, start int) *CodeAllocator {
	if start <= 0 {
		start = DefaultClientCodeStart
	}
	return &CodeAllocator{src: src, start: start, next: start}
}

// Next returns the lowest free code above every stored code and every code
// handed out so far.
func (a *CodeAllocator) Next(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.loaded {
		codes, err := a.src.ClientCodesFrom(ctx, a.start)
		if err != nil {
			return 0, eris.Wrap(err, "importer: load client codes")
		}
		a.taken = make(map[int]bool, len(codes))
		for _, c := range codes {
			a.taken[c] = true
			if c >= a.next {
				a.next = c + 1
			}
		}
		a.loaded = true
	}

	code := a.next
	for a.taken[code] {
		code++
	}
	a.taken[code] = true
	a.next = code + 1
	return code, nil
}
