package query

import (
	"regexp"
	"strings"
)

// FilterKind discriminates the closed set of metadata filters.
type FilterKind int

const (
	// FilterNone means retrieval is unrestricted. Distinct from a filter
	// that matches nothing.
	FilterNone FilterKind = iota
	// FilterDisplayName restricts retrieval to an exact display name.
	FilterDisplayName
	// FilterType restricts retrieval to a document type tag.
	FilterType
)

// Filter is an optional structured retrieval restriction.
type Filter struct {
	kind  FilterKind
	value string
}

// NoFilter returns the absent filter.
func NoFilter() Filter { return Filter{} }

// ByDisplayName returns a filter matching an exact display name.
func ByDisplayName(name string) Filter {
	return Filter{kind: FilterDisplayName, value: name}
}

// ByType returns a filter matching a document type tag.
func ByType(typeTag string) Filter {
	return Filter{kind: FilterType, value: strings.ToLower(typeTag)}
}

// Kind returns the filter's discriminator.
func (f Filter) Kind() FilterKind { return f.kind }

// Value returns the display name or type tag the filter matches.
func (f Filter) Value() string { return f.value }

// IsNone reports whether no filter is set.
func (f Filter) IsNone() bool { return f.kind == FilterNone }

// filenameRe matches a quoted or bare name.ext-shaped token.
var filenameRe = regexp.MustCompile(`'([^']+\.\w+)'|"([^"]+\.\w+)"|(\S+\.\w+)`)

// extractFilename returns the first name.ext-shaped token in the text, or "".
func extractFilename(text string) string {
	m := filenameRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

var (
	imageKeywords = []string{"image", "photo", "picture", "screenshot"}
	videoKeywords = []string{"video", "clip", "recording", "mp4"}
)

// BuildFilter derives the retrieval filter for a request. Precedence:
// explicit file filter, then explicit type filter, then inference from the
// question text.
func BuildFilter(req Request) Filter {
	if req.File != "" {
		return ByDisplayName(req.File)
	}
	if req.Type != "" {
		return ByType(req.Type)
	}
	return inferFilter(req.Question)
}

// inferFilter guesses a filter from the question: a name.ext token becomes a
// display-name filter, media keywords become type filters.
func inferFilter(question string) Filter {
	q := strings.ToLower(question)
	if fname := extractFilename(q); fname != "" {
		return ByDisplayName(fname)
	}
	for _, kw := range imageKeywords {
		if strings.Contains(q, kw) {
			return ByType("image")
		}
	}
	for _, kw := range videoKeywords {
		if strings.Contains(q, kw) {
			return ByType("video")
		}
	}
	return NoFilter()
}
