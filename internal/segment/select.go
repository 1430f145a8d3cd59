package segment

// SelectionMode decides which pattern of the table is adopted for a document.
type SelectionMode string

const (
	// SelectFirstMatch adopts the first pattern with at least one raw match.
	// Candidates that then fail validation do not move on to the next pattern.
	SelectFirstMatch SelectionMode = "first"
	// SelectScored evaluates every pattern and adopts the one whose accepted
	// markers are most numerous and most consistent. Fallback patterns are
	// only adopted when no other pattern has an accepted marker.
	SelectScored SelectionMode = "scored"
)

type evaluation struct {
	pattern    BoundaryPattern
	priority   int
	candidates []Candidate
	markers    []Marker
	rejected   []Candidate
}

// score is accepted²/raw: favours many accepted markers with a high pass rate.
func (e evaluation) score() float64 {
	if len(e.candidates) == 0 {
		return 0
	}
	a := float64(len(e.markers))
	return a * a / float64(len(e.candidates))
}

func evaluate(p BoundaryPattern, text string) evaluation {
	ev := evaluation{pattern: p}
	ev.candidates = p.Recognizer.Find(text)
	ev.markers, ev.rejected = DiscoverMarkers(ev.candidates)
	return ev
}

func selectPattern(patterns []BoundaryPattern, text string, mode SelectionMode) (evaluation, error) {
	if mode == SelectScored {
		return selectScored(patterns, text)
	}
	for _, p := range patterns {
		ev := evaluate(p, text)
		if len(ev.candidates) > 0 {
			return ev, nil
		}
	}
	return evaluation{}, ErrNoBoundaryPatternMatched
}

func selectScored(patterns []BoundaryPattern, text string) (evaluation, error) {
	var best, fallback, firstMatched *evaluation
	for i, p := range patterns {
		ev := evaluate(p, text)
		ev.priority = i
		if len(ev.candidates) == 0 {
			continue
		}
		if firstMatched == nil {
			firstMatched = &ev
		}
		if len(ev.markers) == 0 {
			continue
		}
		if p.Fallback {
			if fallback == nil {
				fallback = &ev
			}
			continue
		}
		// Strictly greater keeps the earlier pattern on ties.
		if best == nil || ev.score() > best.score() {
			best = &ev
		}
	}
	switch {
	case best != nil:
		return *best, nil
	case fallback != nil:
		return *fallback, nil
	case firstMatched != nil:
		// Something matched but nothing validated: report the first such pattern.
		return *firstMatched, nil
	}
	return evaluation{}, ErrNoBoundaryPatternMatched
}
