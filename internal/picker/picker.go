// Package picker selects the next wallpaper from a candidate list, one
// picker per output.
package picker

import (
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/layerpaper/layerpaper/internal/config"
)

// Picker walks a candidate list according to the configured sorting. In
// random mode it draws from a shuffled queue and reshuffles on exhaustion,
// never handing out the same path twice in direct succession when more than
// one candidate exists. The last queueSize picks are remembered and sink to
// the back of every fresh shuffle, so recently shown wallpapers are not
// replayed while anything older is still available.
type Picker struct {
	files     []string
	sorting   config.Sorting
	queueSize int

	queue   []string // remaining shuffled candidates (random mode)
	index   int      // next position (ascending/descending mode)
	history []string // most recent picks, oldest first, capped at queueSize
	last    string
}

func New(files []string, sorting config.Sorting, queueSize int) *Picker {
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Picker{sorting: sorting, queueSize: queueSize}
	p.SetFiles(files)
	return p
}

// SetFiles replaces the candidate list, e.g. after a config reload or a
// directory rescan. The pick history is kept so the next draws still avoid
// what was recently shown.
func (p *Picker) SetFiles(files []string) {
	p.files = slices.Clone(files)
	sort.Strings(p.files)
	if p.sorting == config.SortingDescending {
		slices.Reverse(p.files)
	}
	p.queue = nil
	p.index = 0
}

func (p *Picker) Len() int {
	return len(p.files)
}

// Current returns the most recent pick, or "" before the first Next.
func (p *Picker) Current() string {
	return p.last
}

// Next advances to the next candidate, or returns "" when the list is empty.
func (p *Picker) Next() string {
	if len(p.files) == 0 {
		return ""
	}

	var next string
	switch p.sorting {
	case config.SortingAscending, config.SortingDescending:
		next = p.files[p.index%len(p.files)]
		p.index++
	default:
		if len(p.queue) == 0 {
			p.refill()
		}
		next = p.queue[0]
		p.queue = p.queue[1:]
	}

	p.remember(next)
	return next
}

func (p *Picker) remember(path string) {
	p.last = path
	if p.queueSize == 0 {
		return
	}
	p.history = append(p.history, path)
	if len(p.history) > p.queueSize {
		p.history = p.history[len(p.history)-p.queueSize:]
	}
}

func (p *Picker) refill() {
	shuffled := slices.Clone(p.files)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	// Candidates still in the pick history go to the back of the fresh
	// queue, in shuffle order, so the next draws prefer what has not been
	// shown for the longest.
	recent := make(map[string]bool, len(p.history))
	for _, h := range p.history {
		recent[h] = true
	}
	queue := make([]string, 0, len(shuffled))
	deferred := make([]string, 0, len(recent))
	for _, f := range shuffled {
		if recent[f] {
			deferred = append(deferred, f)
		} else {
			queue = append(queue, f)
		}
	}
	p.queue = append(queue, deferred...)

	// The partition alone cannot help when every candidate is recent; make
	// sure rotation still never repeats back-to-back.
	if len(p.queue) > 1 && p.queue[0] == p.last {
		j := 1 + rand.IntN(len(p.queue)-1)
		p.queue[0], p.queue[j] = p.queue[j], p.queue[0]
	}
}
