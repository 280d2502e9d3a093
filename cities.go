package civix

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// maxFuzzyDistance caps typo tolerance in SearchCity.
const maxFuzzyDistance = 3

// maxCityInputLen bounds input to the Levenshtein comparison.
const maxCityInputLen = 64

// CityMatch is a place name found in the table with the ZIPs that carry it.
type CityMatch struct {
	Name     string   `json:"name"`
	County   string   `json:"county"`
	ZIPs     []string `json:"zips"`
	Distance int      `json:"distance"`
}

// fuzzyMatch compares two strings with optional Levenshtein distance tolerance.
// If maxDist is 0, performs exact case-insensitive match.
func fuzzyMatch(query, candidate string, maxDist int) (int, bool) {
	if maxDist == 0 {
		return 0, strings.EqualFold(query, candidate)
	}
	dist := levenshtein.ComputeDistance(toLower(query), toLower(candidate))
	return dist, dist <= maxDist
}

// SearchCity returns table places named name. With fuzzy set, names within
// an edit distance of 3 also match, closest first.
func (r *Resolver) SearchCity(name string, fuzzy bool) []CityMatch {
	q := strings.TrimSpace(name)
	if q == "" || len(q) > maxCityInputLen {
		return nil
	}
	if !fuzzy {
		if _, ok := r.table.cityIndex[toLower(q)]; ok {
			return []CityMatch{r.cityMatch(toLower(q), 0)}
		}
		return nil
	}

	maxDist := maxFuzzyDistance
	// Short names would match half the state at distance 3.
	if len(q) <= 4 {
		maxDist = 1
	}
	var out []CityMatch
	for key := range r.table.cityIndex {
		if d, ok := fuzzyMatch(q, key, maxDist); ok {
			out = append(out, r.cityMatch(key, d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r *Resolver) cityMatch(key string, dist int) CityMatch {
	zips := r.table.cityIndex[key]
	first, _ := r.table.Lookup(zips[0])
	return CityMatch{
		Name:     r.table.cityNames[key],
		County:   first.County,
		ZIPs:     append([]string(nil), zips...),
		Distance: dist,
	}
}
