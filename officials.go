package civix

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Level is the tier of government an official serves.
type Level string

const (
	LevelFederal   Level = "federal"
	LevelState     Level = "state"
	LevelCounty    Level = "county"
	LevelMunicipal Level = "municipal"
)

// Official is an elected officeholder.
type Official struct {
	Name     string `json:"name" yaml:"name"`
	Office   string `json:"office" yaml:"office"`
	Party    string `json:"party,omitempty" yaml:"party"`
	Level    Level  `json:"level" yaml:"-"`
	District int    `json:"district,omitempty" yaml:"-"`
}

type rosterFile struct {
	Statewide   []Official            `yaml:"statewide"`
	Senators    []Official            `yaml:"senators"`
	House       map[string]Official   `yaml:"house"`
	StateSenate map[string]Official   `yaml:"state_senate"`
	Assembly    map[string]Official   `yaml:"assembly"`
	County      map[string][]Official `yaml:"county"`
	Municipal   map[string][]Official `yaml:"municipal"`
}

// Roster holds the officials for California. Read-only after loading.
type Roster struct {
	statewide   []Official
	senators    []Official
	house       map[int]Official
	stateSenate map[int]Official
	assembly    map[int]Official
	county      map[string][]Official // lowercase county
	municipal   map[string][]Official // lowercase city
}

// stand-in names left behind when a seat was not researched.
var standInName = regexp.MustCompile(`(?i)^(representative|senator|assembly ?member|member|official)\b.*\bdistrict\s*\d*$|^(tbd|tba|vacant|unknown|n/?a|placeholder)$`)

// isStandIn reports whether name is not a real person's name.
func isStandIn(name string) bool {
	n := strings.TrimSpace(name)
	return n == "" || standInName.MatchString(n)
}

func parseRoster(r io.Reader, logger *zap.Logger) (*Roster, error) {
	var rf rosterFile
	if err := yaml.NewDecoder(r).Decode(&rf); err != nil {
		return nil, fmt.Errorf("decoding officials: %w", err)
	}
	ro := &Roster{
		house:       make(map[int]Official),
		stateSenate: make(map[int]Official),
		assembly:    make(map[int]Official),
		county:      make(map[string][]Official),
		municipal:   make(map[string][]Official),
	}

	keep := func(o Official, where string) bool {
		if isStandIn(o.Name) {
			logger.Warn("dropping stand-in official", zap.String("seat", where), zap.String("name", o.Name))
			return false
		}
		return true
	}
	for _, o := range rf.Statewide {
		if keep(o, o.Office) {
			o.Level = LevelState
			ro.statewide = append(ro.statewide, o)
		}
	}
	for _, o := range rf.Senators {
		if keep(o, o.Office) {
			o.Level = LevelFederal
			ro.senators = append(ro.senators, o)
		}
	}

	seats := []struct {
		src    map[string]Official
		dst    map[int]Official
		office string
		level  Level
		max    int
	}{
		{rf.House, ro.house, "U.S. Representative", LevelFederal, maxCongressional},
		{rf.StateSenate, ro.stateSenate, "State Senator", LevelState, maxStateSenate},
		{rf.Assembly, ro.assembly, "Assembly Member", LevelState, maxAssembly},
	}
	for _, s := range seats {
		for key, o := range s.src {
			n, err := strconv.Atoi(strings.TrimSpace(key))
			if err != nil || n < 1 || n > s.max {
				return nil, fmt.Errorf("%s: bad district %q", s.office, key)
			}
			if !keep(o, fmt.Sprintf("%s %d", s.office, n)) {
				continue
			}
			if o.Office == "" {
				o.Office = s.office
			}
			o.Level = s.level
			o.District = n
			s.dst[n] = o
		}
	}

	for county, list := range rf.County {
		for _, o := range list {
			if keep(o, county+" "+o.Office) {
				o.Level = LevelCounty
				ro.county[toLower(county)] = append(ro.county[toLower(county)], o)
			}
		}
	}
	for city, list := range rf.Municipal {
		for _, o := range list {
			if keep(o, city+" "+o.Office) {
				o.Level = LevelMunicipal
				ro.municipal[toLower(city)] = append(ro.municipal[toLower(city)], o)
			}
		}
	}
	return ro, nil
}

func loadRoster(dataDir string, logger *zap.Logger) (*Roster, error) {
	fh, cleanup, err := openDataFile(dataDir, "officials.yaml")
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return parseRoster(fh, logger)
}

// For returns the officials representing res, federal first. Municipal
// officials are included only when the place is an incorporated city; an
// unincorporated community is governed by its county.
func (ro *Roster) For(res *Resolution) []Official {
	if res == nil || res.State != "CA" {
		return nil
	}
	var out []Official
	out = append(out, ro.senators...)
	if o, ok := ro.house[res.Districts.Congressional]; ok {
		out = append(out, o)
	}
	out = append(out, ro.statewide...)
	if o, ok := ro.stateSenate[res.Districts.StateSenate]; ok {
		out = append(out, o)
	}
	if o, ok := ro.assembly[res.Districts.Assembly]; ok {
		out = append(out, o)
	}
	out = append(out, ro.county[toLower(res.County)]...)
	if res.Jurisdiction.ShowMunicipal() {
		out = append(out, ro.municipal[toLower(res.Jurisdiction.Municipality)]...)
	}
	return out
}

// Seats returns how many district seats have a named official, by level of
// legislature: congressional, state senate, assembly.
func (ro *Roster) Seats() (house, senate, assembly int) {
	return len(ro.house), len(ro.stateSenate), len(ro.assembly)
}
