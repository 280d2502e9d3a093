package civix

import (
	"strings"
	"testing"
)

func testClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := loadClassifier("")
	if err != nil {
		t.Fatalf("loadClassifier() error = %v", err)
	}
	return c
}

func TestClassify(t *testing.T) {
	c := testClassifier(t)
	tests := []struct {
		place, county string
		kind          JurisdictionKind
		municipality  string
		wantCounty    string
	}{
		{"Oakland", "Alameda", Incorporated, "Oakland", "Alameda"},
		{"oakland", "ALAMEDA", Incorporated, "Oakland", "Alameda"},
		{"Pacoima", "Los Angeles", Incorporated, "Los Angeles", "Los Angeles"},
		{"La Jolla", "San Diego", Incorporated, "San Diego", "San Diego"},
		{"Anaheim Hills", "Orange", Incorporated, "Anaheim", "Orange"},
		{"Altadena", "Los Angeles", Unincorporated, "", "Los Angeles"},
		{"East Los Angeles", "los angeles", Unincorporated, "", "Los Angeles"},
		{"Stanford", "Santa Clara", Unincorporated, "", "Santa Clara"},
		{" Kentfield ", "Marin", Unincorporated, "", "Marin"},
		// Same name in a different county is not a match.
		{"Oakland", "Marin", UnknownKind, "", "Marin"},
		{"Nowhere", "Alpine", UnknownKind, "", "Alpine"},
		{"", "Alameda", UnknownKind, "", "Alameda"},
		{"Oakland", "", UnknownKind, "", ""},
		{"Oakland", "Atlantis", UnknownKind, "", "Atlantis"},
	}
	for _, tt := range tests {
		got := c.Classify(tt.place, tt.county)
		if got.Kind != tt.kind || got.Municipality != tt.municipality || got.County != tt.wantCounty {
			t.Errorf("Classify(%q, %q) = %+v, want {%s %q %q}",
				tt.place, tt.county, got, tt.kind, tt.municipality, tt.wantCounty)
		}
		if got.ShowMunicipal() != (tt.kind == Incorporated) {
			t.Errorf("Classify(%q, %q).ShowMunicipal() = %v", tt.place, tt.county, got.ShowMunicipal())
		}
	}
}

func TestCanonicalCounty(t *testing.T) {
	c := testClassifier(t)
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"Alameda", "Alameda", true},
		{"Alameda County", "Alameda", true},
		{"san luis obispo", "San Luis Obispo", true},
		{" Alpine County ", "Alpine", true},
		{"Orleans Parish", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := c.CanonicalCounty(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("CanonicalCounty(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
	if !c.IsCounty("modoc") || c.IsCounty("Cook") {
		t.Error("IsCounty mismatch")
	}
}

func TestClassifierKnowsEveryCounty(t *testing.T) {
	c := testClassifier(t)
	if c.Counties() != caCountyCount {
		t.Errorf("Counties() = %d, want %d", c.Counties(), caCountyCount)
	}
	for _, county := range CaliforniaCounties() {
		if !c.IsCounty(county) {
			t.Errorf("IsCounty(%q) = false", county)
		}
	}
}

func TestParsePlacesRejectsBadYAML(t *testing.T) {
	if _, err := parsePlaces(strings.NewReader("counties: [not, a, map]")); err == nil {
		t.Fatal("expected error")
	}
}

func TestPlacesDoNotOverlap(t *testing.T) {
	c := testClassifier(t)
	for county, inc := range c.incorporated {
		for place := range inc {
			if c.unincorporated[county][place] {
				t.Errorf("%s/%s listed as both incorporated and unincorporated", county, place)
			}
		}
	}
}
