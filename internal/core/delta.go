package core

type (
	// TokenDelta is the signed contribution of one reconciliation to a
	// single token's counters.
	TokenDelta struct {
		Total   int
		DocFreq int
		Counts  map[string]int
	}

	// Delta is the exact signed adjustment a record transition makes to the
	// model aggregates and token statistics. Applying a Delta must be the
	// only way any of those counters ever change.
	Delta struct {
		TotalDocs           int
		CategoryDocCounts   map[string]int
		CategoryTokenTotals map[string]int
		Tokens              map[string]*TokenDelta
	}
)

// ComputeDelta derives the aggregate delta for a record moving from prev to
// next. Either sample may be nil (record created, removed, or invalid).
//
// A same-category edit adjusts only token totals and per-token counters;
// document counts stay untouched, but docFreq still moves for every token
// whose membership in the sample's unique-token set changed. A category
// change, creation, or removal applies the full delta including totalDocs
// and per-category document counts.
func ComputeDelta(prev, next *Sample) Delta {
	d := Delta{
		CategoryDocCounts:   map[string]int{},
		CategoryTokenTotals: map[string]int{},
		Tokens:              map[string]*TokenDelta{},
	}

	switch {
	case prev == nil && next == nil:
		return d
	case prev != nil && next != nil:
		if prev.Equal(next) {
			return d
		}
		if prev.CategoryKey == next.CategoryKey {
			// Same category, different tokens: token-set membership
			// changed, so docFreq moves even though doc counts do not.
			d.applySample(prev, -1, false, true)
			d.applySample(next, +1, false, true)
		} else {
			d.applySample(prev, -1, true, true)
			d.applySample(next, +1, true, true)
		}
	case prev != nil:
		d.applySample(prev, -1, true, true)
	default:
		d.applySample(next, +1, true, true)
	}

	d.prune()
	return d
}

func (d *Delta) applySample(s *Sample, multiplier int, includeDocCounts, includeDocFreq bool) {
	if s == nil || s.TokenTotal <= 0 {
		return
	}
	d.CategoryTokenTotals[s.CategoryKey] += multiplier * s.TokenTotal
	if includeDocCounts {
		d.CategoryDocCounts[s.CategoryKey] += multiplier
		d.TotalDocs += multiplier
	}

	for token, count := range s.TokenCounts {
		delta := multiplier * count
		if delta == 0 {
			continue
		}
		td := d.token(token)
		td.Total += delta
		td.Counts[s.CategoryKey] += delta
	}

	if includeDocFreq {
		for token := range s.TokenCounts {
			d.token(token).DocFreq += multiplier
		}
	}
}

func (d *Delta) token(token string) *TokenDelta {
	td, ok := d.Tokens[token]
	if !ok {
		td = &TokenDelta{Counts: map[string]int{}}
		d.Tokens[token] = td
	}
	return td
}

// prune drops entries that net to zero so a Delta describes only real work.
// Tokens shared by prev and next with identical counts cancel out here.
func (d *Delta) prune() {
	for key, n := range d.CategoryDocCounts {
		if n == 0 {
			delete(d.CategoryDocCounts, key)
		}
	}
	for key, n := range d.CategoryTokenTotals {
		if n == 0 {
			delete(d.CategoryTokenTotals, key)
		}
	}
	for token, td := range d.Tokens {
		for key, n := range td.Counts {
			if n == 0 {
				delete(td.Counts, key)
			}
		}
		if td.Total == 0 && td.DocFreq == 0 && len(td.Counts) == 0 {
			delete(d.Tokens, token)
		}
	}
}

// Empty reports whether applying the delta would change nothing but the
// ledger entry itself.
func (d *Delta) Empty() bool {
	return d.TotalDocs == 0 &&
		len(d.CategoryDocCounts) == 0 &&
		len(d.CategoryTokenTotals) == 0 &&
		len(d.Tokens) == 0
}
