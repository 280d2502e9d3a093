package civix

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidZIP is returned for input that is not a 5-digit ZIP or ZIP+4.
	ErrInvalidZIP = errors.New("invalid ZIP code")
	// ErrNoCoverage is returned when no source can resolve a valid ZIP.
	ErrNoCoverage = errors.New("no coverage for ZIP code")
)

// maxZIPInputLen bounds the input accepted by NormalizeZIP ("12345-6789" plus slack
// for surrounding whitespace).
const maxZIPInputLen = 32

// NormalizeZIP validates s and returns the 5-digit ZIP it denotes.
// Accepted forms are "NNNNN" and "NNNNN-NNNN"; surrounding whitespace is ignored.
func NormalizeZIP(s string) (string, error) {
	if len(s) > maxZIPInputLen {
		return "", fmt.Errorf("%w: input too long", ErrInvalidZIP)
	}
	z := strings.TrimSpace(s)
	if len(z) == 10 && z[5] == '-' {
		if !allDigits(z[6:]) {
			return "", fmt.Errorf("%w: %q", ErrInvalidZIP, s)
		}
		z = z[:5]
	}
	if len(z) != 5 || !allDigits(z) {
		return "", fmt.Errorf("%w: %q", ErrInvalidZIP, s)
	}
	if z == "00000" {
		return "", fmt.Errorf("%w: %q", ErrInvalidZIP, s)
	}
	return z, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// zipPrefix returns the 3-digit sectional center prefix of a normalized ZIP.
func zipPrefix(zip string) int {
	if len(zip) < 3 {
		return -1
	}
	p, err := strconv.Atoi(zip[:3])
	if err != nil {
		return -1
	}
	return p
}

// zipNumber returns the numeric value of a normalized ZIP, or -1.
func zipNumber(zip string) int {
	n, err := strconv.Atoi(zip)
	if err != nil || len(zip) != 5 {
		return -1
	}
	return n
}

// IsCaliforniaZIP reports whether zip falls in California's 900-961 prefix block.
func IsCaliforniaZIP(zip string) bool {
	p := zipPrefix(zip)
	return p >= 900 && p <= 961
}

// statePrefixRange assigns a block of 3-digit ZIP prefixes to a state.
type statePrefixRange struct {
	lo, hi int
	state  string
}

// statePrefixes lists USPS prefix allocations; the first matching range wins.
var statePrefixes = []statePrefixRange{
	{5, 5, "NY"}, {6, 7, "PR"}, {8, 8, "VI"}, {9, 9, "PR"},
	{10, 27, "MA"}, {28, 29, "RI"}, {30, 38, "NH"}, {39, 49, "ME"},
	{50, 59, "VT"}, {60, 69, "CT"}, {70, 89, "NJ"}, {90, 98, "AE"},
	{100, 149, "NY"}, {150, 196, "PA"}, {197, 199, "DE"},
	{200, 200, "DC"}, {201, 201, "VA"}, {202, 205, "DC"}, {206, 219, "MD"},
	{220, 246, "VA"}, {247, 268, "WV"}, {270, 289, "NC"}, {290, 299, "SC"},
	{300, 319, "GA"}, {320, 339, "FL"}, {340, 340, "AA"}, {341, 349, "FL"},
	{350, 369, "AL"}, {370, 385, "TN"}, {386, 397, "MS"}, {398, 399, "GA"},
	{400, 427, "KY"}, {430, 459, "OH"}, {460, 479, "IN"}, {480, 499, "MI"},
	{500, 528, "IA"}, {530, 549, "WI"}, {550, 567, "MN"}, {569, 569, "DC"},
	{570, 577, "SD"}, {580, 588, "ND"}, {590, 599, "MT"},
	{600, 629, "IL"}, {630, 658, "MO"}, {660, 679, "KS"}, {680, 693, "NE"},
	{700, 714, "LA"}, {716, 729, "AR"}, {730, 749, "OK"},
	{750, 799, "TX"}, {885, 885, "TX"},
	{800, 816, "CO"}, {820, 831, "WY"}, {832, 838, "ID"}, {840, 847, "UT"},
	{850, 865, "AZ"}, {870, 884, "NM"}, {889, 898, "NV"},
	{900, 961, "CA"}, {962, 966, "AP"}, {967, 968, "HI"}, {969, 969, "GU"},
	{970, 979, "OR"}, {980, 994, "WA"}, {995, 999, "AK"},
}

// StateForZIP returns the two-letter postal code of the state a ZIP belongs to,
// or "" when the prefix is unallocated.
func StateForZIP(zip string) string {
	p := zipPrefix(zip)
	if p < 0 {
		return ""
	}
	// 733 (Austin IRS) sits inside Oklahoma's block.
	if p == 733 {
		return "TX"
	}
	for _, r := range statePrefixes {
		if p >= r.lo && p <= r.hi {
			return r.state
		}
	}
	return ""
}
