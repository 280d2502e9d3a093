package civix

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// JurisdictionKind says whether a place has a municipal government.
type JurisdictionKind string

const (
	Incorporated   JurisdictionKind = "incorporated"
	Unincorporated JurisdictionKind = "unincorporated"
	UnknownKind    JurisdictionKind = "unknown"
)

// Jurisdiction is the classifier's verdict for a place.
type Jurisdiction struct {
	Kind JurisdictionKind `json:"kind"`
	// Municipality is the governing city when Kind is Incorporated. It differs
	// from the place for city neighborhoods with their own postal name.
	Municipality string `json:"municipality,omitempty"`
	County       string `json:"county,omitempty"`
}

// ShowMunicipal reports whether municipal officials apply.
func (j Jurisdiction) ShowMunicipal() bool {
	return j.Kind == Incorporated && j.Municipality != ""
}

type countyPlaces struct {
	Incorporated   []string `yaml:"incorporated"`
	Unincorporated []string `yaml:"unincorporated"`
}

type placesFile struct {
	Counties      map[string]countyPlaces      `yaml:"counties"`
	Neighborhoods map[string]map[string]string `yaml:"neighborhoods"`
}

// Classifier labels places as incorporated or unincorporated.
type Classifier struct {
	// county (lowercase) -> place (lowercase) -> canonical municipality name
	incorporated   map[string]map[string]string
	unincorporated map[string]map[string]bool
	neighborhoods  map[string]map[string]string
	counties       map[string]string // lowercase -> canonical county name
}

func parsePlaces(r io.Reader) (*Classifier, error) {
	var pf placesFile
	if err := yaml.NewDecoder(r).Decode(&pf); err != nil {
		return nil, fmt.Errorf("decoding places: %w", err)
	}
	c := &Classifier{
		incorporated:   make(map[string]map[string]string),
		unincorporated: make(map[string]map[string]bool),
		neighborhoods:  make(map[string]map[string]string),
		counties:       make(map[string]string),
	}
	for county, places := range pf.Counties {
		ck := toLower(county)
		c.counties[ck] = county
		c.incorporated[ck] = make(map[string]string, len(places.Incorporated))
		for _, p := range places.Incorporated {
			c.incorporated[ck][toLower(p)] = p
		}
		c.unincorporated[ck] = make(map[string]bool, len(places.Unincorporated))
		for _, p := range places.Unincorporated {
			c.unincorporated[ck][toLower(p)] = true
		}
	}
	for county := range caCountyFIPS {
		c.counties[toLower(county)] = county
	}
	for county, hoods := range pf.Neighborhoods {
		ck := toLower(county)
		c.neighborhoods[ck] = make(map[string]string, len(hoods))
		for hood, city := range hoods {
			c.neighborhoods[ck][toLower(hood)] = city
		}
	}
	return c, nil
}

func loadClassifier(dataDir string) (*Classifier, error) {
	fh, cleanup, err := openDataFile(dataDir, "places.yaml")
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return parsePlaces(fh)
}

// Classify labels place within county. Neighborhood names resolve to the city
// that governs them; a place found in neither list is UnknownKind.
func (c *Classifier) Classify(place, county string) Jurisdiction {
	ck := toLower(strings.TrimSpace(county))
	pk := toLower(strings.TrimSpace(place))
	j := Jurisdiction{Kind: UnknownKind, County: county}
	if canonical, ok := c.counties[ck]; ok {
		j.County = canonical
	}
	if pk == "" || ck == "" {
		return j
	}
	if city, ok := c.neighborhoods[ck][pk]; ok {
		j.Kind = Incorporated
		j.Municipality = city
		return j
	}
	if city, ok := c.incorporated[ck][pk]; ok {
		j.Kind = Incorporated
		j.Municipality = city
		return j
	}
	if c.unincorporated[ck][pk] {
		j.Kind = Unincorporated
		return j
	}
	return j
}

// IsCounty reports whether name is a known county.
func (c *Classifier) IsCounty(name string) bool {
	_, ok := c.counties[toLower(strings.TrimSpace(name))]
	return ok
}

// CanonicalCounty returns the canonical spelling of a county name, accepting
// a trailing " County" as geocoders report it.
func (c *Classifier) CanonicalCounty(name string) (string, bool) {
	n := strings.TrimSpace(name)
	n = strings.TrimSuffix(n, " County")
	canonical, ok := c.counties[toLower(n)]
	return canonical, ok
}

// Counties returns the number of counties the classifier knows.
func (c *Classifier) Counties() int { return len(c.counties) }
