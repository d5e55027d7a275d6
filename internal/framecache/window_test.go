package framecache

import (
	"testing"

	"github.com/hszk-dev/framestream/internal/domain/model"
)

func TestCentered(t *testing.T) {
	tests := []struct {
		name           string
		center, n, r   int
		wantLo, wantHi int
	}{
		{"middle", 50, 100, 15, 35, 65},
		{"clamped at start", 3, 100, 15, 0, 18},
		{"clamped at end", 95, 100, 15, 80, 99},
		{"space shorter than window", 4, 10, 15, 0, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := centered(tt.center, tt.n, tt.r)
			if lo != tt.wantLo || hi != tt.wantHi {
				t.Errorf("centered() = [%d..%d], want [%d..%d]", lo, hi, tt.wantLo, tt.wantHi)
			}
		})
	}
}

func TestExtended(t *testing.T) {
	tests := []struct {
		name           string
		lo, hi, n      int
		dir            model.Direction
		wantLo, wantHi int
		wantOK         bool
	}{
		{"forward", 35, 65, 100, model.Forward, 51, 81, true},
		{"forward clamped", 60, 90, 100, model.Forward, 69, 99, true},
		{"forward at end", 69, 99, 100, model.Forward, 69, 99, false},
		{"forward from short window", 0, 15, 100, model.Forward, 1, 31, true},
		{"backward", 35, 65, 100, model.Backward, 19, 49, true},
		{"backward clamped", 10, 40, 100, model.Backward, 0, 30, true},
		{"backward at start", 0, 30, 100, model.Backward, 0, 30, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi, ok := extended(tt.lo, tt.hi, tt.n, 15, 31, tt.dir)
			if lo != tt.wantLo || hi != tt.wantHi || ok != tt.wantOK {
				t.Errorf("extended() = [%d..%d] %v, want [%d..%d] %v", lo, hi, ok, tt.wantLo, tt.wantHi, tt.wantOK)
			}
		})
	}
}

func TestWindow_Missing(t *testing.T) {
	w := window[int]{lo: 35, items: make([]int, 31)}

	tests := []struct {
		name   string
		lo, hi int
		want   []span
	}{
		{"same window", 35, 65, nil},
		{"leading run", 51, 81, []span{{66, 81}}},
		{"trailing run", 19, 49, []span{{19, 34}}},
		{"both sides", 30, 70, []span{{30, 34}, {66, 70}}},
		{"disjoint", 80, 90, []span{{80, 90}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := w.missing(tt.lo, tt.hi)
			if len(got) != len(tt.want) {
				t.Fatalf("missing() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("missing()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}

	var empty window[int]
	if got := empty.missing(0, 9); len(got) != 1 || got[0] != (span{0, 9}) {
		t.Errorf("missing() on empty window = %v", got)
	}
}
