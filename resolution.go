package civix

import (
	"strings"
	"time"
)

// Source identifies which step of the fallback chain produced a field.
type Source string

const (
	SourceTable     Source = "table"
	SourceGeocoder  Source = "geocoder"
	SourceHeuristic Source = "heuristic"
)

// Confidence grades how much a resolution can be trusted.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// Districts holds legislative district numbers. Zero means unknown.
type Districts struct {
	Congressional int `json:"congressional,omitempty"`
	StateSenate   int `json:"state_senate,omitempty"`
	Assembly      int `json:"assembly,omitempty"`
}

// Complete reports whether all three districts are known.
func (d Districts) Complete() bool {
	return d.Congressional > 0 && d.StateSenate > 0 && d.Assembly > 0
}

// Resolution is the answer for a single ZIP code.
type Resolution struct {
	ZIP          string       `json:"zip"`
	State        string       `json:"state"`
	City         string       `json:"city,omitempty"`
	Community    string       `json:"community,omitempty"`
	County       string       `json:"county,omitempty"`
	Districts    Districts    `json:"districts"`
	Jurisdiction Jurisdiction `json:"jurisdiction"`
	Latitude     float64      `json:"latitude,omitempty"`
	Longitude    float64      `json:"longitude,omitempty"`
	Source       Source       `json:"source"`
	Sources      []Source     `json:"sources,omitempty"`
	Confidence   Confidence   `json:"confidence"`
	Warnings     []string     `json:"warnings,omitempty"`
	ResolvedAt   time.Time    `json:"resolved_at"`
}

// Usable reports whether the resolution carries the minimum a caller needs:
// a county and a congressional district.
func (r *Resolution) Usable() bool {
	return r.County != "" && r.Districts.Congressional > 0
}

// Complete reports whether no further source could add anything.
func (r *Resolution) Complete() bool {
	return r.Usable() && r.City != "" && r.Districts.Complete()
}

// Place returns the name the jurisdiction classifier should see: the
// community when the postal city differs from the governing place.
func (r *Resolution) Place() string {
	if r.Community != "" {
		return r.Community
	}
	return r.City
}

// partial is what a single source contributes to a resolution.
type partial struct {
	City       string
	Community  string
	County     string
	Districts  Districts
	Latitude   float64
	Longitude  float64
	Confidence Confidence
	Warning    string
}

// placeholderNames are values hand-maintained data used when it had no answer.
var placeholderNames = map[string]bool{
	"unknown": true, "n/a": true, "na": true, "tbd": true, "none": true,
	"unincorporated": true, "-": true, "?": true,
}

// isPlaceholder reports whether s carries no information.
func isPlaceholder(s string) bool {
	return placeholderNames[toLower(strings.TrimSpace(s))] || strings.TrimSpace(s) == ""
}

// merge fills every empty field of r from p and reports whether p contributed.
// Fields already set are never overwritten: earlier sources in the chain win.
func (r *Resolution) merge(p partial, src Source) bool {
	contributed := false
	setStr := func(dst *string, v string) {
		if *dst == "" && !isPlaceholder(v) {
			*dst = strings.TrimSpace(v)
			contributed = true
		}
	}
	setInt := func(dst *int, v int) {
		if *dst == 0 && v > 0 {
			*dst = v
			contributed = true
		}
	}
	setStr(&r.City, p.City)
	setStr(&r.County, p.County)
	if r.Community == "" && !isPlaceholder(p.Community) && !strings.EqualFold(p.Community, r.City) {
		r.Community = strings.TrimSpace(p.Community)
		contributed = true
	}
	setInt(&r.Districts.Congressional, p.Districts.Congressional)
	setInt(&r.Districts.StateSenate, p.Districts.StateSenate)
	setInt(&r.Districts.Assembly, p.Districts.Assembly)
	if r.Latitude == 0 && r.Longitude == 0 && (p.Latitude != 0 || p.Longitude != 0) {
		r.Latitude, r.Longitude = p.Latitude, p.Longitude
		contributed = true
	}
	if !contributed {
		return false
	}
	if r.Source == "" {
		r.Source = src
	}
	r.Sources = append(r.Sources, src)
	if r.Confidence == "" || p.Confidence.rank() < r.Confidence.rank() {
		r.Confidence = p.Confidence
	}
	if p.Warning != "" {
		r.Warnings = append(r.Warnings, p.Warning)
	}
	return true
}

func (r *Resolution) usedSource(src Source) bool {
	for _, s := range r.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// clone returns a deep copy so cached resolutions are never shared with callers.
func (r *Resolution) clone() *Resolution {
	c := *r
	c.Sources = append([]Source(nil), r.Sources...)
	c.Warnings = append([]string(nil), r.Warnings...)
	return &c
}

// partialFromResolution replays a stored resolution through merge. The stored
// confidence is kept so a restart does not upgrade a guess.
func partialFromResolution(r *Resolution) partial {
	p := partial{
		City:       r.City,
		Community:  r.Community,
		County:     r.County,
		Districts:  r.Districts,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		Confidence: r.Confidence,
	}
	if p.Confidence == "" {
		p.Confidence = ConfidenceMedium
	}
	if len(r.Warnings) > 0 {
		p.Warning = strings.Join(r.Warnings, "; ")
	}
	return p
}
