package arxiv

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	newStyleID = regexp.MustCompile(`^(\d{4}\.\d{4,5})(?:v(\d+))?$`)
	oldStyleID = regexp.MustCompile(`^([a-z]+(?:-[a-z]+)*(?:\.[A-Z]{2})?/\d{7})(?:v(\d+))?$`)
	scheme     = regexp.MustCompile(`(?i)^https?://`)
)

// markers lists the path segments that introduce an identifier, per host.
var markers = map[string]map[string]bool{
	"arxiv.org":            {"abs": true, "pdf": true, "html": true},
	"ar5iv.org":            {"abs": true, "html": true},
	"ar5iv.labs.arxiv.org": {"abs": true, "html": true},
}

// Identifier is a canonical arXiv id plus its optional version.
type Identifier struct {
	ID      string
	Version int // 0 when absent
}

// HasVersion reports whether a version suffix was given.
func (i Identifier) HasVersion() bool {
	return i.Version > 0
}

// String renders the id with its version suffix, for display.
func (i Identifier) String() string {
	if i.Version > 0 {
		return i.ID + "v" + strconv.Itoa(i.Version)
	}
	return i.ID
}

// AbsURL is the landing page of the identifier.
func (i Identifier) AbsURL() string {
	return "https://arxiv.org/abs/" + i.String()
}

// PDFURL is the direct document link of the identifier.
func (i Identifier) PDFURL() string {
	return "https://arxiv.org/pdf/" + i.String()
}

// Normalize parses a bare identifier or an arXiv, ar5iv URL into its canonical
// form. Inputs are trimmed; hosts and schemes match case-insensitively while
// category tokens are case-sensitive.
func Normalize(input string) (Identifier, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Identifier{}, &IdentifierError{Input: input, Reason: "empty"}
	}

	if id, ok := parseBare(s); ok {
		return id, nil
	}

	raw, ok := identifierFromURL(s)
	if !ok {
		return Identifier{}, &IdentifierError{Input: input}
	}
	id, ok := parseBare(raw)
	if !ok {
		return Identifier{}, &IdentifierError{Input: input, Reason: "unrecognized identifier " + strconv.Quote(raw)}
	}
	return id, nil
}

// MustNormalize is Normalize for inputs known to be valid.
func MustNormalize(input string) Identifier {
	id, err := Normalize(input)
	if err != nil {
		panic(err)
	}
	return id
}

func parseBare(s string) (Identifier, bool) {
	for _, re := range []*regexp.Regexp{newStyleID, oldStyleID} {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		id := Identifier{ID: m[1]}
		if m[2] != "" {
			v, err := strconv.Atoi(m[2])
			if err != nil || v < 1 {
				return Identifier{}, false
			}
			id.Version = v
		}
		return id, true
	}
	return Identifier{}, false
}

// identifierFromURL returns the raw identifier segment of a recognized URL.
func identifierFromURL(s string) (string, bool) {
	s = scheme.ReplaceAllString(s, "")
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}

	host, path, found := strings.Cut(s, "/")
	if !found {
		return "", false
	}
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "export.")

	allowed, ok := markers[host]
	if !ok {
		return "", false
	}

	marker, rest, found := strings.Cut(path, "/")
	if !found || !allowed[marker] {
		return "", false
	}

	// New-style ids take one path segment, old-style ids two
	// (archive/number). Anything after the id is discarded.
	segments := strings.Split(rest, "/")
	raw := trimPDF(marker, segments[0])
	if !newStyleID.MatchString(raw) && len(segments) > 1 {
		raw = segments[0] + "/" + trimPDF(marker, segments[1])
	}
	if raw == "" {
		return "", false
	}
	return raw, true
}

func trimPDF(marker, segment string) string {
	if marker == "pdf" {
		return strings.TrimSuffix(segment, ".pdf")
	}
	return segment
}
