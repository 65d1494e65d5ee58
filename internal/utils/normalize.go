package utils

import (
	"strings"
	"unicode"

	"github.com/farsilandtv/farsihub/internal/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD, drops combining marks, and recomposes, so
// accented variants fold to their base letters before the filter below.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeTitle reduces a title to its comparison key: combining marks
// folded away, everything that is not a Unicode letter or digit stripped,
// the rest lowercased. "Spider-Man", "Spider Man" and "SPIDERMAN" all
// normalize to "spiderman".
func NormalizeTitle(title string) string {
	folded, _, err := transform.String(stripMarks, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// SearchDeduper suppresses duplicate titles within one source while keeping
// duplicates across sources: the same title found on three sites must appear
// three times in aggregated results, but never twice from the same site.
// The owning source of an item is determined from its URL's domain.
type SearchDeduper struct {
	sourceOf func(rawURL string) (models.SourceID, bool)
	seen     map[models.SourceID]map[string]struct{}
}

// NewSearchDeduper creates a deduper. sourceOf maps an item URL to the
// source whose domain it belongs to.
func NewSearchDeduper(sourceOf func(rawURL string) (models.SourceID, bool)) *SearchDeduper {
	return &SearchDeduper{
		sourceOf: sourceOf,
		seen:     make(map[models.SourceID]map[string]struct{}),
	}
}

// Admit reports whether the item should be kept, recording it if so.
// Items whose URL belongs to no known source are kept but never deduped
// against anything.
func (d *SearchDeduper) Admit(title, rawURL string) bool {
	source, ok := d.sourceOf(rawURL)
	if !ok {
		return true
	}

	key := NormalizeTitle(title)
	if key == "" {
		return true
	}

	set, ok := d.seen[source]
	if !ok {
		set = make(map[string]struct{})
		d.seen[source] = set
	}
	if _, dup := set[key]; dup {
		return false
	}
	set[key] = struct{}{}
	return true
}

// GenreMatches applies OR semantics over a denormalized genre string: the
// item matches if any of its genres contains any requested genre,
// case-insensitively. An empty filter matches everything.
func GenreMatches(itemGenres string, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, have := range models.SplitGenres(itemGenres) {
		haveLower := strings.ToLower(have)
		for _, want := range wanted {
			want = strings.ToLower(strings.TrimSpace(want))
			if want == "" {
				continue
			}
			if strings.Contains(haveLower, want) {
				return true
			}
		}
	}
	return false
}
