// Package urlpath holds the pure URL and path helpers used to decide which
// served resource a changed file corresponds to. Paths are compared by their
// trailing segments so that "/a/b/style.css" and "style.css" still match.
package urlpath

import (
	"net/url"
	"regexp"
	"strings"
)

// ExactMatch is the score returned by MatchingSegments when both paths are
// equal after normalisation.
const ExactMatch = 10000

// Parts is a URL split into base, query and fragment. Params keeps its
// leading '?' and Hash its leading '#'; both are empty when absent.
type Parts struct {
	URL    string
	Params string
	Hash   string
}

// Split separates the fragment and the query string from the base URL.
func Split(raw string) Parts {
	var p Parts
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		p.Hash = raw[i:]
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		p.Params = raw[i:]
		raw = raw[:i]
	}
	p.URL = raw
	return p
}

var (
	fileScheme = regexp.MustCompile(`^file://(localhost)?`)
	//                                http  :   // hostname  :8080  /
	netOrigin = regexp.MustCompile(`^([^:]+:)?//([^:/]+)(:\d*)?/`)
)

// PathFromURL derives a filesystem-style path from any URL form. file://
// URLs keep their absolute path, network URLs lose scheme, host and port.
// The result is percent-decoded; input that does not decode is returned as is.
func PathFromURL(raw string) string {
	u := Split(raw).URL

	var p string
	if strings.HasPrefix(u, "file://") {
		p = fileScheme.ReplaceAllString(u, "")
	} else {
		p = netOrigin.ReplaceAllString(u, "/")
	}

	// PathUnescape decodes reserved characters such as ';' and "%2F" like
	// decodeURIComponent does, without turning '+' into a space.
	decoded, err := url.PathUnescape(p)
	if err != nil {
		return p
	}
	return decoded
}

// MatchingSegments scores how well two paths agree. Leading slashes are
// ignored and the comparison is case-insensitive. Equal paths score
// ExactMatch; otherwise the score is the number of equal trailing segments.
func MatchingSegments(p1, p2 string) int {
	p1 = strings.ToLower(strings.TrimLeft(p1, "/"))
	p2 = strings.ToLower(strings.TrimLeft(p2, "/"))

	if p1 == p2 {
		return ExactMatch
	}

	c1 := strings.Split(p1, "/")
	c2 := strings.Split(p2, "/")

	n := 0
	for i, j := len(c1)-1, len(c2)-1; i >= 0 && j >= 0; i, j = i-1, j-1 {
		if c1[i] != c2[j] {
			break
		}
		n++
	}
	return n
}

// PathsMatch reports whether the two paths share at least one trailing segment.
func PathsMatch(p1, p2 string) bool {
	return MatchingSegments(p1, p2) > 0
}

// Match is the best candidate found by PickBestMatch.
type Match[T any] struct {
	Object T
	Score  int
}

// PickBestMatch scores every candidate against path and returns the highest
// scoring one. The first candidate wins ties. ok is false when no candidate
// scores above zero.
func PickBestMatch[T any](path string, candidates []T, pathOf func(T) string) (best Match[T], ok bool) {
	for _, c := range candidates {
		score := MatchingSegments(path, pathOf(c))
		if score > best.Score {
			best = Match[T]{Object: c, Score: score}
		}
	}
	return best, best.Score > 0
}
