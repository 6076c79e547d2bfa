package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCityName(t *testing.T) {
	tts := []struct {
		in       string
		expected string
	}{
		{"  New   York ", "new york"},
		{"St. Louis", "st louis"},
		{"Frankfurt am Main!", "frankfurt am main"},
		{"", ""},
	}
	for _, tt := range tts {
		assert.Equal(t, tt.expected, NormalizeCityName(tt.in), tt.in)
	}
}

func TestLookup_Exact(t *testing.T) {
	m := NewMatcher()

	got, ok := m.Lookup("Tokyo", "Japan")
	assert.True(t, ok)
	assert.Equal(t, MatchExact, got.Kind)
	assert.InDelta(t, 35.6762, got.City.Lat, 1e-9)
	assert.InDelta(t, 139.6503, got.City.Lon, 1e-9)
}

func TestLookup_USCitySuffix(t *testing.T) {
	m := newMatcher([]City{{Key: "carson", Lat: 1, Lon: 2}})

	got, ok := m.Lookup("Carson City", "United States")
	assert.True(t, ok)
	assert.Equal(t, MatchUSSuffix, got.Kind)

	got, ok = m.Lookup("Carson City", "US")
	assert.True(t, ok)
	assert.Equal(t, MatchUSSuffix, got.Kind)
}

func TestLookup_PartialFollowsTableOrder(t *testing.T) {
	m := NewMatcher()

	got, ok := m.Lookup("Greater London", "United Kingdom")
	assert.True(t, ok)
	assert.Equal(t, MatchPartial, got.Kind)
	assert.Equal(t, "london", got.City.Key)

	got, ok = m.Lookup("York", "United States")
	assert.True(t, ok)
	assert.Equal(t, "new york", got.City.Key)
}

func TestLookup_FuzzyFallback(t *testing.T) {
	m := NewMatcher()

	// Accented characters are stripped by normalization, leaving "so paulo".
	got, ok := m.Lookup("São Paulo", "Brazil")
	assert.True(t, ok)
	assert.Equal(t, MatchFuzzy, got.Kind)
	assert.Equal(t, "sao paulo", got.City.Key)
	assert.GreaterOrEqual(t, got.Score, FuzzyMatchThreshold)
}

func TestLookup_NoMatch(t *testing.T) {
	m := NewMatcher()

	_, ok := m.Lookup("Xqzvbnwk", "Nowhere")
	assert.False(t, ok)

	_, ok = m.Lookup("   ", "Japan")
	assert.False(t, ok)
}

func TestLookup_CachesResult(t *testing.T) {
	m := newMatcher([]City{{Key: "oslo", Lat: 59.9, Lon: 10.7}})

	first, ok := m.Lookup("Oslo", "Norway")
	assert.True(t, ok)
	m.cities = nil
	m.index = map[string]int{}

	second, ok := m.Lookup("oslo", "norway")
	assert.True(t, ok)
	assert.Equal(t, first, second)
}

func TestIsUnitedStates(t *testing.T) {
	assert.True(t, IsUnitedStates("United States"))
	assert.True(t, IsUnitedStates("usa"))
	assert.True(t, IsUnitedStates(" US "))
	assert.False(t, IsUnitedStates("Canada"))
	assert.False(t, IsUnitedStates(""))
}

func TestCountryCode(t *testing.T) {
	assert.Equal(t, "FR", CountryCode("France"))
	assert.Equal(t, "", CountryCode(""))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "New York", DisplayName("new YORK"))
	assert.Equal(t, "Unknown", DisplayName(""))
	assert.Equal(t, "Rio  De Janeiro", DisplayName("rio  de janeiro"))
}

func TestCityTable(t *testing.T) {
	m := NewMatcher()
	assert.Greater(t, m.Len(), 150)
	for _, c := range cityTable {
		assert.Equal(t, NormalizeCityName(c.Key), c.Key, "table keys must already be normalized")
		assert.True(t, c.Lat >= -90 && c.Lat <= 90, c.Key)
		assert.True(t, c.Lon >= -180 && c.Lon <= 180, c.Key)
	}
}
