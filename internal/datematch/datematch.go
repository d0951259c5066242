// Package datematch selects which remote log files satisfy a download
// request. Filenames follow the convention <base>-DD-MM-YYYY.log; a request
// may carry a date token in either YYYY-MM-DD or DD-MM-YYYY form, or no token
// at all, in which case the most recent log wins.
package datematch

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Accepted date token layouts, tried in order.
var tokenLayouts = []string{"2006-01-02", "02-01-2006"}

// filenameLayout is the date form embedded in log filenames.
const filenameLayout = "02-01-2006"

// ErrBadFormat is returned when a date token matches neither accepted format.
var ErrBadFormat = errors.New("invalid date format, use YYYY-MM-DD or DD-MM-YYYY")

// ErrNoMatch is returned when no remote file satisfies the prefix and date.
var ErrNoMatch = errors.New("no matching log file found")

// Entry is one remote directory listing line: a filename and its size in
// bytes, or -1 when the size is unknown.
type Entry struct {
	Name string
	Size int64
}

// Candidate is a listing entry whose name matched the module's filename
// convention, together with the calendar date embedded in the name.
type Candidate struct {
	Name string
	Size int64
	Date time.Time
}

// ParseToken normalizes a date token to a calendar date. Both accepted
// layouts that denote the same day produce the same result.
func ParseToken(s string) (time.Time, error) {
	for _, layout := range tokenLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadFormat, s)
}

// parseName extracts the embedded date from a filename of the form
// <base>-DD-MM-YYYY.log. Rotated copies carry a suffix after .log (e.g.
// app-01-11-2025.log.1) and still match. Returns false for names that do not
// follow the convention for this base.
func parseName(base, name string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(name, base+"-")
	if !ok || len(rest) < len(filenameLayout)+len(".log") {
		return time.Time{}, false
	}
	datePart := rest[:len(filenameLayout)]
	if !strings.HasPrefix(rest[len(filenameLayout):], ".log") {
		return time.Time{}, false
	}
	d, err := time.Parse(filenameLayout, datePart)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Select returns the candidates a request should fetch, in deterministic
// order. With a date token only exact calendar-date matches remain; without
// one the files of the latest embedded date are returned. Same-date files
// (rotated copies) are ordered by filename.
func Select(base string, listing []Entry, dateToken string) ([]Candidate, error) {
	var want time.Time
	haveToken := dateToken != ""
	if haveToken {
		d, err := ParseToken(dateToken)
		if err != nil {
			return nil, err
		}
		want = d
	}

	var candidates []Candidate
	for _, e := range listing {
		d, ok := parseName(base, e.Name)
		if !ok {
			continue
		}
		if haveToken && !d.Equal(want) {
			continue
		}
		candidates = append(candidates, Candidate{Name: e.Name, Size: e.Size, Date: d})
	}
	if len(candidates) == 0 {
		if haveToken {
			return nil, fmt.Errorf("%w for %s-%s.log", ErrNoMatch, base, want.Format(filenameLayout))
		}
		return nil, fmt.Errorf("%w with prefix %q", ErrNoMatch, base)
	}

	// Latest date first, then filename order for rotated copies
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].Date.Equal(candidates[j].Date) {
			return candidates[i].Date.After(candidates[j].Date)
		}
		return candidates[i].Name < candidates[j].Name
	})

	if !haveToken {
		// Keep only the files of the latest date
		latest := candidates[0].Date
		n := 0
		for _, c := range candidates {
			if c.Date.Equal(latest) {
				n++
			}
		}
		candidates = candidates[:n]
	}
	return candidates, nil
}
