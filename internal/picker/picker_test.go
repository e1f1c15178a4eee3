package picker

import (
	"testing"

	"github.com/layerpaper/layerpaper/internal/config"
)

func TestNextEmpty(t *testing.T) {
	p := New(nil, config.SortingRandom, 0)
	if got := p.Next(); got != "" {
		t.Errorf("Next() on empty picker = %q, want \"\"", got)
	}
}

func TestNextSingleCandidate(t *testing.T) {
	p := New([]string{"/w/only.png"}, config.SortingRandom, 0)
	for i := 0; i < 5; i++ {
		if got := p.Next(); got != "/w/only.png" {
			t.Fatalf("Next() = %q, want /w/only.png", got)
		}
	}
}

func TestRandomNeverRepeatsBackToBack(t *testing.T) {
	p := New([]string{"/w/a.png", "/w/b.png", "/w/c.png"}, config.SortingRandom, 0)

	prev := p.Next()
	seen := map[string]bool{prev: true}
	for i := 0; i < 200; i++ {
		next := p.Next()
		if next == prev {
			t.Fatalf("draw %d repeated %q back-to-back", i, next)
		}
		seen[next] = true
		prev = next
	}
	if len(seen) != 3 {
		t.Errorf("saw %d distinct candidates, want 3", len(seen))
	}
}

func TestAscendingCyclesInOrder(t *testing.T) {
	p := New([]string{"/w/c.png", "/w/a.png", "/w/b.png"}, config.SortingAscending, 0)

	want := []string{"/w/a.png", "/w/b.png", "/w/c.png", "/w/a.png"}
	for i, w := range want {
		if got := p.Next(); got != w {
			t.Errorf("draw %d = %q, want %q", i, got, w)
		}
	}
}

func TestDescendingCyclesInReverse(t *testing.T) {
	p := New([]string{"/w/a.png", "/w/c.png", "/w/b.png"}, config.SortingDescending, 0)

	want := []string{"/w/c.png", "/w/b.png", "/w/a.png", "/w/c.png"}
	for i, w := range want {
		if got := p.Next(); got != w {
			t.Errorf("draw %d = %q, want %q", i, got, w)
		}
	}
}

func TestQueueSizeDefersRecentPicksAcrossRefills(t *testing.T) {
	files := []string{"/w/a.png", "/w/b.png", "/w/c.png", "/w/d.png"}
	p := New(files, config.SortingRandom, 2)

	// Each block of four draws exhausts one shuffled queue. The first draw
	// of a fresh queue must avoid the two picks remembered from the
	// previous block, not just the immediately preceding one.
	var draws []string
	for i := 0; i < 40; i++ {
		draws = append(draws, p.Next())
	}
	for i := len(files); i < len(draws); i += len(files) {
		if draws[i] == draws[i-1] || draws[i] == draws[i-2] {
			t.Fatalf("draw %d = %q repeats one of the %d most recent picks (%q, %q)",
				i, draws[i], 2, draws[i-1], draws[i-2])
		}
	}
}

func TestQueueSizeLargerThanCandidatesStillRotates(t *testing.T) {
	p := New([]string{"/w/a.png", "/w/b.png"}, config.SortingRandom, 10)

	prev := p.Next()
	for i := 0; i < 50; i++ {
		next := p.Next()
		if next == prev {
			t.Fatalf("draw %d repeated %q back-to-back", i, next)
		}
		prev = next
	}
}

func TestSetFilesKeepsNoRepeatInvariant(t *testing.T) {
	p := New([]string{"/w/a.png", "/w/b.png"}, config.SortingRandom, 0)

	prev := p.Next()
	p.SetFiles([]string{"/w/a.png", "/w/b.png", "/w/c.png"})
	for i := 0; i < 50; i++ {
		next := p.Next()
		if next == prev {
			t.Fatalf("draw %d repeated %q across SetFiles", i, next)
		}
		prev = next
	}
}

func TestCurrentTracksLastPick(t *testing.T) {
	p := New([]string{"/w/a.png", "/w/b.png"}, config.SortingAscending, 0)
	if p.Current() != "" {
		t.Errorf("Current() before first draw = %q, want \"\"", p.Current())
	}
	got := p.Next()
	if p.Current() != got {
		t.Errorf("Current() = %q, want %q", p.Current(), got)
	}
}
