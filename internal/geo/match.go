// Package geo resolves flow-log city names to coordinates for the traffic map.
package geo

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/biter777/countries"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	FuzzyMatchThreshold = 0.85

	matchCacheSize = 2048
	matchCacheTTL  = time.Hour
)

const (
	MatchExact    = "exact"
	MatchUSSuffix = "us_suffix"
	MatchPartial  = "partial"
	MatchFuzzy    = "fuzzy"
)

var (
	nonAlnumSpace = regexp.MustCompile(`[^a-z0-9\s]`)
	multiSpace    = regexp.MustCompile(`\s+`)
	citySuffix    = regexp.MustCompile(`\s+city$`)
)

// Match is a resolved table entry and how it was found.
type Match struct {
	City  City
	Kind  string
	Score float64
}

type cachedMatch struct {
	match Match
	ok    bool
}

// Matcher looks up coordinates in the built-in city table. Safe for concurrent use.
type Matcher struct {
	cities    []City
	index     map[string]int
	cache     *expirable.LRU[string, cachedMatch]
	metric    *metrics.JaroWinkler
	threshold float64
}

func NewMatcher() *Matcher {
	return newMatcher(cityTable)
}

func newMatcher(table []City) *Matcher {
	index := make(map[string]int, len(table))
	for i, c := range table {
		if _, dup := index[c.Key]; !dup {
			index[c.Key] = i
		}
	}
	jw := metrics.NewJaroWinkler()
	jw.CaseSensitive = false

	return &Matcher{
		cities:    table,
		index:     index,
		cache:     expirable.NewLRU[string, cachedMatch](matchCacheSize, nil, matchCacheTTL),
		metric:    jw,
		threshold: FuzzyMatchThreshold,
	}
}

// Len reports the number of cities in the table.
func (m *Matcher) Len() int {
	return len(m.cities)
}

// NormalizeCityName lowercases, strips punctuation and collapses whitespace.
func NormalizeCityName(city string) string {
	s := strings.ToLower(strings.TrimSpace(city))
	s = nonAlnumSpace.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Lookup resolves a city, trying in order: exact key, US "<name> city" suffix removal,
// substring containment in table order, then Jaro-Winkler similarity.
func (m *Matcher) Lookup(city, country string) (Match, bool) {
	name := NormalizeCityName(city)
	if name == "" {
		return Match{}, false
	}

	key := name + "|" + strings.ToLower(strings.TrimSpace(country))
	if hit, ok := m.cache.Get(key); ok {
		return hit.match, hit.ok
	}

	match, ok := m.lookup(name, country)
	m.cache.Add(key, cachedMatch{match: match, ok: ok})
	return match, ok
}

func (m *Matcher) lookup(name, country string) (Match, bool) {
	if i, ok := m.index[name]; ok {
		return Match{City: m.cities[i], Kind: MatchExact, Score: 1}, true
	}

	if IsUnitedStates(country) {
		trimmed := citySuffix.ReplaceAllString(name, "")
		if i, ok := m.index[trimmed]; ok {
			return Match{City: m.cities[i], Kind: MatchUSSuffix, Score: 1}, true
		}
	}

	for _, c := range m.cities {
		if strings.Contains(name, c.Key) || strings.Contains(c.Key, name) {
			return Match{City: c, Kind: MatchPartial, Score: 1}, true
		}
	}

	best := Match{}
	for _, c := range m.cities {
		score := strutil.Similarity(name, c.Key, m.metric)
		if score > best.Score {
			best = Match{City: c, Kind: MatchFuzzy, Score: score}
		}
	}
	if best.Score >= m.threshold {
		return best, true
	}
	return Match{}, false
}

// IsUnitedStates matches the spellings flow logs use for the US.
func IsUnitedStates(country string) bool {
	c := strings.ToLower(strings.TrimSpace(country))
	switch c {
	case "":
		return false
	case "united states", "usa", "us":
		return true
	}
	return countries.ByName(c).Alpha2() == "US"
}

// CountryCode returns the ISO 3166-1 alpha-2 code for a country name, or "" when unknown.
func CountryCode(country string) string {
	country = strings.TrimSpace(country)
	if country == "" {
		return ""
	}
	c := countries.ByName(country)
	if c == countries.Unknown {
		return ""
	}
	return c.Alpha2()
}

// DisplayName title-cases each space-separated word; empty input becomes "Unknown".
func DisplayName(city string) string {
	if city == "" {
		return "Unknown"
	}
	words := strings.Split(city, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
