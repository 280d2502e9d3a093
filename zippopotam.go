package civix

import (
	"context"
	"fmt"
	"strconv"
)

const zippopotamBaseURL = "https://api.zippopotam.us"

// ZippopotamGeocoder queries api.zippopotam.us. It knows place names and
// centroids but no districts; the Resolver places the centroid itself.
type ZippopotamGeocoder struct {
	httpGeocoder
}

// NewZippopotamGeocoder returns a geocoder for the public Zippopotam API.
func NewZippopotamGeocoder(opts ...GeocoderOption) *ZippopotamGeocoder {
	g := &ZippopotamGeocoder{httpGeocoder: newHTTPGeocoder(zippopotamBaseURL)}
	for _, opt := range opts {
		opt(&g.httpGeocoder)
	}
	return g
}

// Name implements Geocoder.
func (g *ZippopotamGeocoder) Name() string { return "zippopotam" }

type zippopotamResponse struct {
	PostCode string `json:"post code"`
	Places   []struct {
		PlaceName string `json:"place name"`
		StateAbbr string `json:"state abbreviation"`
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"places"`
}

// Geocode implements Geocoder.
func (g *ZippopotamGeocoder) Geocode(ctx context.Context, zip string) (*GeocodeResult, error) {
	var resp zippopotamResponse
	if err := g.getJSON(ctx, g.baseURL+"/us/"+zip, &resp); err != nil {
		return nil, err
	}
	if len(resp.Places) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, zip)
	}
	p := resp.Places[0]
	lat, errLat := strconv.ParseFloat(p.Latitude, 64)
	lng, errLng := strconv.ParseFloat(p.Longitude, 64)
	if errLat != nil || errLng != nil {
		lat, lng = 0, 0
	}
	return &GeocodeResult{
		ZIP:       zip,
		City:      p.PlaceName,
		State:     toUpper(p.StateAbbr),
		Latitude:  lat,
		Longitude: lng,
		Provider:  "zippopotam",
	}, nil
}
