package micro

import "github.com/pkg/errors"

// pageSize is the fixed power-of-two element count per page. Grounded on
// the teacher's wazevoapi.Pool (internal/engine/wazevo/wazevoapi/pool.go),
// generalized from a same-type-only pool into the typed, per-T arena the
// spec's Storage Arena (§4.1) describes: a dense, pageable, append-only
// store of instructions and operand slots.
const pageSize = 1024

// Ref is a stable 32-bit reference into an Arena: (page, offset) packed
// into 32 bits. References are stable for the arena's lifetime and survive
// growth (§4.1, §8 "Arena stability").
type Ref uint32

// RefInvalid is the sentinel "no reference" value.
const RefInvalid Ref = 1<<32 - 1

func makeRef(page, offset uint32) Ref {
	return Ref(page<<20 | (offset & (1<<20 - 1)))
}

func (r Ref) decode() (page, offset uint32) {
	return uint32(r) >> 20, uint32(r) & (1<<20 - 1)
}

// SpanRef identifies the first chunk of a pushed span (§4.1).
type SpanRef Ref

// Arena is a dense, pageable, append-only store of T. It provides the
// Storage Arena contract from spec §4.1: emplace_uninit, push_back,
// push_span, find_ref, all with stable references.
type Arena[T any] struct {
	pages [][]T
	tail  []T // convenience alias to pages[len(pages)-1]
}

// NewArena returns an empty arena.
func NewArena[T any]() *Arena[T] {
	a := &Arena[T]{}
	a.newPage()
	return a
}

func (a *Arena[T]) newPage() {
	p := make([]T, 0, pageSize)
	a.pages = append(a.pages, p)
	a.tail = a.pages[len(a.pages)-1]
}

func (a *Arena[T]) curPageIndex() uint32 { return uint32(len(a.pages) - 1) }

// EmplaceUninit allocates storage for one record and returns a stable
// reference plus a pointer the caller initializes in place.
func (a *Arena[T]) EmplaceUninit() (Ref, *T) {
	if len(a.tail) == cap(a.tail) {
		a.newPage()
	}
	page := a.curPageIndex()
	offset := uint32(len(a.tail))
	a.tail = append(a.tail, *new(T))
	a.pages[page] = a.tail
	return makeRef(page, offset), &a.pages[page][offset]
}

// EmplaceUninitArray allocates n contiguous records in the current page,
// starting a fresh page if the run would straddle a page boundary — this
// keeps "contiguous" a property of the backing slice, not just of the
// logical span (needed by MicroInstr operand spans, which are addressed by
// plain slicing in builder.go).
func (a *Arena[T]) EmplaceUninitArray(n int) (Ref, []T) {
	if n == 0 {
		return RefInvalid, nil
	}
	if len(a.tail)+n > cap(a.tail) {
		a.newPage()
	}
	page := a.curPageIndex()
	offset := uint32(len(a.tail))
	a.tail = append(a.tail, make([]T, n)...)
	a.pages[page] = a.tail
	return makeRef(page, offset), a.pages[page][offset : offset+uint32(n)]
}

// PushBack copies v into the arena and returns its reference.
func (a *Arena[T]) PushBack(v T) Ref {
	ref, p := a.EmplaceUninit()
	*p = v
	return ref
}

// Ptr resolves a reference to a mutable pointer. Panics (via a wrapped
// internal error) on an out-of-range reference — arena corruption is a
// fatal resource-exhaustion-class bug, not a recoverable condition (§7.3).
func (a *Arena[T]) Ptr(ref Ref) *T {
	if ref == RefInvalid {
		panic(errors.New("micro: dereferenced RefInvalid"))
	}
	page, offset := ref.decode()
	if int(page) >= len(a.pages) || int(offset) >= len(a.pages[page]) {
		panic(errors.Errorf("micro: arena reference out of range: page=%d offset=%d", page, offset))
	}
	return &a.pages[page][offset]
}

// At dereferences ref by value.
func (a *Arena[T]) At(ref Ref) T { return *a.Ptr(ref) }

// Len returns the total number of elements ever allocated (erased elements
// still count; erasure is lazy and marked per §3).
func (a *Arena[T]) Len() int {
	n := 0
	for _, p := range a.pages {
		n += len(p)
	}
	return n
}

// FindRef performs a reverse lookup from a pointer previously returned by
// EmplaceUninit/Ptr back to its Ref. Linear across pages, as specified.
func (a *Arena[T]) FindRef(p *T) (Ref, bool) {
	for pageIdx, page := range a.pages {
		if len(page) == 0 {
			continue
		}
		base := &page[0]
		// Compute whether p lies within this page's backing array by
		// comparing addresses through a stable slice walk (no unsafe
		// pointer arithmetic: loop is bounded by pageSize and this path
		// is a diagnostic/back-reference helper, not hot).
		for i := range page {
			if &page[i] == p {
				return makeRef(uint32(pageIdx), uint32(i)), true
			}
		}
		_ = base
	}
	return RefInvalid, false
}

// PushSpan copies xs into one contiguous chunk and returns a SpanRef;
// Span returns that chunk. A span is never split across several chunks.
// Grounded on Store::push_span_raw.
func PushSpan[T any](sa *SpanStore[T], xs []T) SpanRef {
	return sa.push(xs)
}

// SpanStore is the span-flavored counterpart to Arena, keyed by SpanRef.
type SpanStore[T any] struct {
	spans [][]T
}

func NewSpanStore[T any]() *SpanStore[T] { return &SpanStore[T]{} }

func (s *SpanStore[T]) push(xs []T) SpanRef {
	cp := make([]T, len(xs))
	copy(cp, xs)
	s.spans = append(s.spans, cp)
	return SpanRef(len(s.spans) - 1)
}

// Span returns the concatenation of chunk contents in order (§8 "Span
// fidelity"): for a single contiguous backing array this is exactly one
// chunk, which is the common case for operand spans.
func (s *SpanStore[T]) Span(ref SpanRef) []T {
	if int(ref) < 0 || int(ref) >= len(s.spans) {
		return nil
	}
	return s.spans[ref]
}
