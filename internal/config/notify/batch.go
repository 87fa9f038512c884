package notify

import (
	"sort"
	"time"
)

// Batch is the set of rules tied for the soonest next-fire time,
// computed on demand and never persisted.
type Batch struct {
	waitFor time.Duration
	rules   []*Rule
}

// WaitFor is how long to sleep before delivering the batch.
func (b *Batch) WaitFor() time.Duration {
	return b.waitFor
}

// Rules are the rules firing simultaneously at the batch instant.
func (b *Batch) Rules() []*Rule {
	return b.rules
}

// Nearest selects the next batch to fire. Rules due within one second
// are treated as already past and skipped. Returns nil when nothing is
// pending right now; callers must re-poll later, since fixed
// daily-time rules become due again.
func Nearest(rules []*Rule, start, now time.Time) *Batch {
	type candidate struct {
		rule *Rule
		left time.Duration
	}
	pending := make([]candidate, 0, len(rules))
	for _, r := range rules {
		left := r.LeftTime(start, now)
		if left <= time.Second {
			continue
		}
		pending = append(pending, candidate{rule: r, left: left})
	}
	if len(pending) == 0 {
		return nil
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].left < pending[j].left
	})

	batch := &Batch{waitFor: pending[0].left}
	for _, c := range pending {
		if c.left != batch.waitFor {
			break
		}
		batch.rules = append(batch.rules, c.rule)
	}
	return batch
}
