package framecache

import "github.com/hszk-dev/framestream/internal/domain/model"

// window is the resident run of items [lo, lo+len(items)-1]. It never wraps.
type window[T any] struct {
	lo    int
	items []T
}

func (w *window[T]) empty() bool {
	return len(w.items) == 0
}

func (w *window[T]) hi() int {
	return w.lo + len(w.items) - 1
}

func (w *window[T]) contains(index int) bool {
	return !w.empty() && index >= w.lo && index <= w.hi()
}

func (w *window[T]) get(index int) (T, bool) {
	if !w.contains(index) {
		var zero T
		return zero, false
	}
	return w.items[index-w.lo], true
}

func (w *window[T]) indices() []int {
	out := make([]int, len(w.items))
	for i := range w.items {
		out[i] = w.lo + i
	}
	return out
}

// span is an inclusive run of frame indices.
type span struct {
	from, to int
}

func (s span) len() int {
	return s.to - s.from + 1
}

// plan describes a window transition computed under the read lock and
// applied later under the write lock, provided gen still matches.
type plan struct {
	lo, hi int
	fetch  []span
	gen    uint64
	kind   string
}

const (
	planCold   = "cold"
	planExtend = "extend"
	planCenter = "center"
)

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// centered returns the window of radius r around center, clamped to [0, n-1].
func centered(center, n, r int) (lo, hi int) {
	return clamp(center-r, 0, n-1), clamp(center+r, 0, n-1)
}

// extended returns the window after one refill run past the leading edge.
// ok is false when the leading edge already sits at the end of the space.
func extended(lo, hi, n, r, total int, dir model.Direction) (newLo, newHi int, ok bool) {
	if dir == model.Backward {
		if lo == 0 {
			return lo, hi, false
		}
		newLo = max(lo-1-r, 0)
		newHi = min(hi, newLo+total-1)
		return newLo, newHi, true
	}
	if hi == n-1 {
		return lo, hi, false
	}
	newHi = min(hi+1+r, n-1)
	newLo = max(lo, newHi-total+1)
	return newLo, newHi, true
}

// missing returns the parts of [lo, hi] not covered by w, ascending.
func (w *window[T]) missing(lo, hi int) []span {
	if w.empty() || hi < w.lo || lo > w.hi() {
		return []span{{lo, hi}}
	}
	var out []span
	if lo < w.lo {
		out = append(out, span{lo, w.lo - 1})
	}
	if hi > w.hi() {
		out = append(out, span{w.hi() + 1, hi})
	}
	return out
}
