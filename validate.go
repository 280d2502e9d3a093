package civix

import (
	"context"
	"fmt"
	"io"
	"strconv"
)

const (
	minZIPCount = 250 // Expect at least 250 curated ZIPs
)

// knownZIP is a ZIP whose answer is checked on every validation run.
type knownZIP struct {
	zip          string
	wantCounty   string
	wantCD       int
	wantKind     JurisdictionKind
	wantMunicipe string
}

// knownZIPs cover a large city, a neighbourhood with its own postal name, and
// unincorporated communities inside a city's postal area.
var knownZIPs = []knownZIP{
	{"94102", "San Francisco", 11, Incorporated, "San Francisco"},
	{"90210", "Los Angeles", 36, Incorporated, "Beverly Hills"},
	{"95814", "Sacramento", 7, Incorporated, "Sacramento"},
	{"92101", "San Diego", 50, Incorporated, "San Diego"},
	{"91331", "Los Angeles", 29, Incorporated, "Los Angeles"},
	{"90022", "Los Angeles", 34, Unincorporated, ""},
	{"91001", "Los Angeles", 28, Unincorporated, ""},
	{"94305", "Santa Clara", 16, Unincorporated, ""},
}

// ValidateData loads the data sets and runs integrity and known-answer
// checks, writing progress to w. It returns the first failure.
func ValidateData(w io.Writer, opts ...Option) error {
	r, err := NewResolver(opts...)
	if err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}
	return r.Validate(w)
}

// Validate runs integrity and known-answer checks against r's data.
func (r *Resolver) Validate(w io.Writer) error {
	n := r.table.Len()
	if n < minZIPCount {
		return fmt.Errorf("ZIP count too low: got %d, want >= %d", n, minZIPCount)
	}
	fmt.Fprintf(w, "      ZIP count: %d (OK)\n", n)

	if got := r.classifier.Counties(); got != caCountyCount {
		return fmt.Errorf("county count: got %d, want %d", got, caCountyCount)
	}
	for _, rec := range r.table.Records() {
		if !IsCaliforniaZIP(rec.ZIP) {
			return fmt.Errorf("%s: not a California ZIP", rec.ZIP)
		}
		if _, ok := caCountyFIPS[rec.County]; !ok {
			return fmt.Errorf("%s: unknown county %q", rec.ZIP, rec.County)
		}
		d := rec.Districts
		if d.Congressional < 1 || !validDistricts(d) {
			return fmt.Errorf("%s: districts out of range %+v", rec.ZIP, d)
		}
	}
	fmt.Fprintf(w, "      Records: counties and districts OK\n")

	house, senate, assembly := r.roster.Seats()
	fmt.Fprintf(w, "      Officials: %d/%d house, %d/%d senate, %d/%d assembly\n",
		house, maxCongressional, senate, maxStateSenate, assembly, maxAssembly)

	fmt.Fprintf(w, "      Known answers: ")
	for _, tc := range knownZIPs {
		res, err := r.Resolve(context.Background(), tc.zip)
		if err != nil {
			return fmt.Errorf("resolve(%s): %w", tc.zip, err)
		}
		if res.County != tc.wantCounty {
			return fmt.Errorf("resolve(%s) county = %q, want %q", tc.zip, res.County, tc.wantCounty)
		}
		if res.Districts.Congressional != tc.wantCD {
			return fmt.Errorf("resolve(%s) CD = %d, want %d", tc.zip, res.Districts.Congressional, tc.wantCD)
		}
		if res.Jurisdiction.Kind != tc.wantKind || res.Jurisdiction.Municipality != tc.wantMunicipe {
			return fmt.Errorf("resolve(%s) jurisdiction = %+v, want %s %q",
				tc.zip, res.Jurisdiction, tc.wantKind, tc.wantMunicipe)
		}
	}
	fmt.Fprintf(w, "%d ZIPs OK\n", len(knownZIPs))
	return nil
}

// AuditFinding is a disagreement between the curated table and the range
// heuristic for one ZIP.
type AuditFinding struct {
	ZIP       string `json:"zip"`
	Field     string `json:"field"`
	Table     string `json:"table"`
	Heuristic string `json:"heuristic"`
}

// Audit compares every table row with what the range heuristic would have
// guessed. Disagreements show where the ranges need splitting, and ZIPs the
// ranges do not cover at all.
func (r *Resolver) Audit() []AuditFinding {
	var out []AuditFinding
	for _, rec := range r.table.Records() {
		g, ok := GuessRange(rec.ZIP)
		if !ok {
			out = append(out, AuditFinding{ZIP: rec.ZIP, Field: "range", Table: rec.County, Heuristic: "-"})
			continue
		}
		if g.County != rec.County {
			out = append(out, AuditFinding{ZIP: rec.ZIP, Field: "county", Table: rec.County, Heuristic: g.County})
		}
		checks := []struct {
			field      string
			table, est int
		}{
			{"congressional", rec.Districts.Congressional, g.Districts.Congressional},
			{"state_senate", rec.Districts.StateSenate, g.Districts.StateSenate},
			{"assembly", rec.Districts.Assembly, g.Districts.Assembly},
		}
		for _, c := range checks {
			if c.table != 0 && c.table != c.est {
				out = append(out, AuditFinding{
					ZIP: rec.ZIP, Field: c.field,
					Table: strconv.Itoa(c.table), Heuristic: strconv.Itoa(c.est),
				})
			}
		}
	}
	return out
}
