package civix

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const censusBaseURL = "https://geocoding.geo.census.gov/geocoder"

// CensusGeocoder queries the US Census Bureau geographies endpoint for the
// counties, congressional and state legislative districts, and places at a
// point. The Census matcher needs a street address, so a ZIP is first turned
// into a centroid by another geocoder (Zippopotam unless told otherwise).
type CensusGeocoder struct {
	httpGeocoder
	centroids Geocoder
	benchmark string
	vintage   string
}

// NewCensusGeocoder returns a geocoder for the public Census API. centroids
// supplies ZIP coordinates; nil uses Zippopotam with the same HTTP client and
// retry policy.
func NewCensusGeocoder(centroids Geocoder, opts ...GeocoderOption) *CensusGeocoder {
	g := &CensusGeocoder{
		httpGeocoder: newHTTPGeocoder(censusBaseURL),
		centroids:    centroids,
		benchmark:    "Public_AR_Current",
		vintage:      "Current_Current",
	}
	for _, opt := range opts {
		opt(&g.httpGeocoder)
	}
	if g.centroids == nil {
		z := &ZippopotamGeocoder{httpGeocoder: newHTTPGeocoder(zippopotamBaseURL)}
		z.client, z.retry = g.client, g.retry
		g.centroids = z
	}
	return g
}

// Name implements Geocoder.
func (g *CensusGeocoder) Name() string { return "census" }

type censusResponse struct {
	Result struct {
		// Layer names carry the vintage ("119th Congressional Districts",
		// "2024 State Legislative Districts - Upper"), so they are matched by
		// substring rather than decoded into fixed fields.
		Geographies map[string][]map[string]interface{} `json:"geographies"`
	} `json:"result"`
}

// Geocode implements Geocoder.
func (g *CensusGeocoder) Geocode(ctx context.Context, zip string) (*GeocodeResult, error) {
	c, err := g.centroids.Geocode(ctx, zip)
	if err != nil {
		return nil, fmt.Errorf("centroid for %s: %w", zip, err)
	}
	if !c.hasCoordinates() {
		return nil, fmt.Errorf("%w: no centroid for %s", ErrNoMatch, zip)
	}
	p, err := g.locate(ctx, c.Latitude, c.Longitude)
	if err != nil {
		return nil, err
	}
	p.ZIP = zip
	p.State = c.State
	p.City = pickCity(c.City, p.City, p.incorporated)
	return &p.GeocodeResult, nil
}

// censusPoint is a Locate answer plus whether its place is incorporated.
type censusPoint struct {
	GeocodeResult
	incorporated bool
}

// pickCity keeps the postal city unless the point lies in a census
// designated place, which names an unincorporated ZIP better than the
// neighbouring town its mail is addressed to.
func pickCity(postal, place string, incorporated bool) string {
	if place != "" && !incorporated {
		return place
	}
	if postal != "" {
		return titleCase(postal)
	}
	return place
}

// Locate returns the county, districts and place containing a point.
func (g *CensusGeocoder) Locate(ctx context.Context, lat, lng float64) (*GeocodeResult, error) {
	p, err := g.locate(ctx, lat, lng)
	if err != nil {
		return nil, err
	}
	return &p.GeocodeResult, nil
}

func (g *CensusGeocoder) locate(ctx context.Context, lat, lng float64) (*censusPoint, error) {
	q := url.Values{}
	q.Set("x", strconv.FormatFloat(lng, 'f', 6, 64))
	q.Set("y", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("benchmark", g.benchmark)
	q.Set("vintage", g.vintage)
	q.Set("layers", "all")
	q.Set("format", "json")
	u := g.baseURL + "/geographies/coordinates?" + q.Encode()

	var resp censusResponse
	if err := g.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result.Geographies) == 0 {
		return nil, fmt.Errorf("%w: no geographies at %f,%f", ErrNoMatch, lat, lng)
	}
	return censusGeographies(resp.Result.Geographies, lat, lng), nil
}

func censusGeographies(geos map[string][]map[string]interface{}, lat, lng float64) *censusPoint {
	p := &censusPoint{GeocodeResult: GeocodeResult{
		Latitude:  lat,
		Longitude: lng,
		Provider:  "census",
	}}
	for layer, features := range geos {
		if len(features) == 0 {
			continue
		}
		f := features[0]
		switch {
		case strings.Contains(layer, "Congressional District"):
			p.Districts.Congressional = censusDistrict(f, "CD")
		case strings.Contains(layer, "Legislative Districts - Upper"):
			p.Districts.StateSenate = censusDistrict(f, "SLDU")
		case strings.Contains(layer, "Legislative Districts - Lower"):
			p.Districts.Assembly = censusDistrict(f, "SLDL")
		case layer == "Counties":
			p.County = censusString(f, "BASENAME")
		case layer == "Incorporated Places":
			if name := censusString(f, "BASENAME"); name != "" {
				p.City = name
				p.incorporated = true
			}
		}
	}
	if cdp := geos["Census Designated Places"]; !p.incorporated && len(cdp) > 0 {
		p.City = censusString(cdp[0], "BASENAME")
	}
	return p
}

func censusString(f map[string]interface{}, key string) string {
	s, _ := f[key].(string)
	return strings.TrimSpace(s)
}

// censusDistrict reads a district number. The Census names the field after
// the Congress ("CD119"), so the prefix alone or followed by digits is
// accepted, falling back to BASENAME. "ZZ" and "00" mean no district.
func censusDistrict(f map[string]interface{}, prefix string) int {
	candidates := []string{}
	for k := range f {
		if rest, ok := strings.CutPrefix(k, prefix); ok && (rest == "" || allDigits(rest)) {
			candidates = append(candidates, k)
		}
	}
	candidates = append(candidates, "BASENAME")
	for _, k := range candidates {
		if n, err := strconv.Atoi(censusString(f, k)); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// titleCase turns the Census's upper-case city names into "San Luis Obispo".
func titleCase(s string) string {
	words := strings.Fields(toLower(s))
	for i, w := range words {
		r, n := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[n:]
	}
	return strings.Join(words, " ")
}
