// Package ledger builds the per-contributor index of contributions across
// every scraped listing of a run.
package ledger

import (
	"github.com/micahco/sym/internal/domain/model"
)

// Ledger maps contributor id to that contributor's contributions.
//
// Buckets are kept in first-seen contributor order. Inside a bucket the most
// recently processed contribution comes first. A bucket never holds two
// contributions for the same release title.
//
// A Ledger is built once by Build and is read-only afterwards; accessors
// hand out copies.
type Ledger struct {
	order    []string
	buckets  map[string][]model.Contribution
	replaced int
}

func newLedger() *Ledger {
	return &Ledger{buckets: make(map[string][]model.Contribution)}
}

// Build indexes catalogs in the order given, entries in catalog order.
func Build(catalogs []model.Catalog) *Ledger {
	l := newLedger()
	for _, c := range catalogs {
		for _, e := range c.Entries {
			l.insert(e.ContributorID, model.Contribution{Release: c.Release, Score: e.Score})
		}
	}
	return l
}

// insert prepends c to the contributor's bucket, dropping any earlier
// contribution with the same release title.
func (l *Ledger) insert(contributorID string, c model.Contribution) {
	existing, ok := l.buckets[contributorID]
	if !ok {
		l.order = append(l.order, contributorID)
	}

	bucket := make([]model.Contribution, 0, len(existing)+1)
	bucket = append(bucket, c)
	for _, prev := range existing {
		if prev.Release.Title == c.Release.Title {
			l.replaced++
			continue
		}
		bucket = append(bucket, prev)
	}
	l.buckets[contributorID] = bucket
}

// Len returns the number of contributors.
func (l *Ledger) Len() int {
	return len(l.order)
}

// Size returns the total number of contributions across all buckets.
func (l *Ledger) Size() int {
	n := 0
	for _, b := range l.buckets {
		n += len(b)
	}
	return n
}

// Replaced returns how many contributions were dropped because a later one
// for the same contributor and title superseded them.
func (l *Ledger) Replaced() int {
	return l.replaced
}

// Contributors returns contributor ids in first-seen order.
func (l *Ledger) Contributors() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Records returns a copy of the contributor's bucket.
func (l *Ledger) Records(contributorID string) ([]model.Contribution, bool) {
	b, ok := l.buckets[contributorID]
	if !ok {
		return nil, false
	}
	out := make([]model.Contribution, len(b))
	copy(out, b)
	return out, true
}

// Each calls fn for every bucket in first-seen order until fn returns false.
// The slice passed to fn is a copy.
func (l *Ledger) Each(fn func(contributorID string, records []model.Contribution) bool) {
	if l == nil {
		return
	}
	for _, id := range l.order {
		records, _ := l.Records(id)
		if !fn(id, records) {
			return
		}
	}
}
