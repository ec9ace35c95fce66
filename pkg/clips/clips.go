// Package clips models the set of kept ranges of a recording. The playback
// loop consults it to apply jump cuts: when the play position leaves the
// kept set, playback seeks to the next kept range or pauses when none is
// left. Persisting the ranges to disk is not this repository's concern.
package clips

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Range is a half-open kept interval [Start, End).
type Range struct {
	Start time.Duration `yaml:"start"`
	End   time.Duration `yaml:"end"`
}

func (r Range) IsValid() bool {
	return r.Start >= 0 && r.End > r.Start
}

func (r Range) Contains(pos time.Duration) bool {
	return pos >= r.Start && pos < r.End
}

func (r Range) String() string {
	return fmt.Sprintf("[%v..%v)", r.Start, r.End)
}

// Set is a normalized (sorted, merged, non-empty ranges only) collection of
// kept ranges. An empty Set means "keep everything".
type Set []Range

// Normalize sorts the ranges, drops empty/negative ones and merges
// overlapping or touching neighbors.
func Normalize(ranges []Range) Set {
	filtered := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.IsValid() {
			filtered = append(filtered, r)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Start < filtered[j].Start
	})

	var result Set
	for _, r := range filtered {
		if l := len(result); l > 0 && r.Start <= result[l-1].End {
			if r.End > result[l-1].End {
				result[l-1].End = r.End
			}
			continue
		}
		result = append(result, r)
	}
	return result
}

// Contains reports whether the position is inside the kept set. An empty
// set keeps everything.
func (s Set) Contains(pos time.Duration) bool {
	if len(s) == 0 {
		return true
	}
	for _, r := range s {
		if r.Contains(pos) {
			return true
		}
	}
	return false
}

// NextStartAfter returns the start of the first kept range that begins
// strictly after the given position.
func (s Set) NextStartAfter(pos time.Duration) (time.Duration, bool) {
	for _, r := range s {
		if r.Start > pos {
			return r.Start, true
		}
	}
	return 0, false
}

// Parse converts a textual range list like "1s-2.5s,10s-1m" into a
// normalized Set. An empty string yields an empty Set (keep everything).
func Parse(s string) (Set, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var ranges []Range
	for _, part := range strings.Split(s, ",") {
		startStr, endStr, ok := strings.Cut(strings.TrimSpace(part), "-")
		if !ok {
			return nil, fmt.Errorf("invalid range %q: expected the <start>-<end> format", part)
		}
		start, err := time.ParseDuration(strings.TrimSpace(startStr))
		if err != nil {
			return nil, fmt.Errorf("invalid range %q: unable to parse the start: %w", part, err)
		}
		end, err := time.ParseDuration(strings.TrimSpace(endStr))
		if err != nil {
			return nil, fmt.Errorf("invalid range %q: unable to parse the end: %w", part, err)
		}
		r := Range{Start: start, End: end}
		if !r.IsValid() {
			return nil, fmt.Errorf("invalid range %v: the end should be after the start", r)
		}
		ranges = append(ranges, r)
	}
	return Normalize(ranges), nil
}

// FirstStart returns the start of the first kept range.
func (s Set) FirstStart() (time.Duration, bool) {
	if len(s) == 0 {
		return 0, false
	}
	return s[0].Start, true
}
