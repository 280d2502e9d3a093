package civix

import (
	"fmt"
	"sort"
)

// zipRange assigns a contiguous block of California ZIPs a county and the
// districts covering most of the block. Blocks straddling district lines get
// the district of their population center; the guesses are coarse by nature.
type zipRange struct {
	lo, hi    int
	county    string
	city      string // set only when the whole block is one city
	districts Districts
}

// caZIPRanges must stay sorted by lo and non-overlapping.
var caZIPRanges = []zipRange{
	{90001, 90089, "Los Angeles", "Los Angeles", Districts{34, 26, 54}},
	{90090, 90099, "Los Angeles", "Los Angeles", Districts{34, 26, 54}},
	{90201, 90249, "Los Angeles", "", Districts{42, 33, 64}},
	{90250, 90299, "Los Angeles", "", Districts{36, 24, 66}},
	{90301, 90399, "Los Angeles", "", Districts{43, 35, 61}},
	{90401, 90411, "Los Angeles", "Santa Monica", Districts{36, 24, 51}},
	{90501, 90599, "Los Angeles", "", Districts{36, 24, 66}},
	{90601, 90699, "Los Angeles", "", Districts{38, 30, 56}},
	{90701, 90749, "Los Angeles", "", Districts{44, 35, 65}},
	{90750, 90899, "Los Angeles", "Long Beach", Districts{42, 33, 69}},
	{91001, 91199, "Los Angeles", "", Districts{28, 25, 41}},
	{91201, 91299, "Los Angeles", "Glendale", Districts{30, 25, 44}},
	{91301, 91399, "Los Angeles", "", Districts{32, 27, 46}},
	{91401, 91499, "Los Angeles", "", Districts{32, 20, 46}},
	{91501, 91599, "Los Angeles", "Burbank", Districts{30, 25, 44}},
	{91601, 91699, "Los Angeles", "", Districts{30, 20, 46}},
	{91701, 91739, "San Bernardino", "", Districts{35, 29, 53}},
	{91740, 91799, "Los Angeles", "", Districts{28, 22, 49}},
	{91801, 91899, "Los Angeles", "", Districts{28, 22, 49}},
	{91901, 91999, "San Diego", "", Districts{52, 18, 80}},
	{92001, 92099, "San Diego", "", Districts{49, 38, 77}},
	{92101, 92199, "San Diego", "San Diego", Districts{50, 39, 78}},
	{92201, 92226, "Riverside", "", Districts{25, 19, 36}},
	{92227, 92227, "Imperial", "Brawley", Districts{25, 18, 36}},
	{92228, 92230, "Riverside", "", Districts{25, 19, 36}},
	{92231, 92233, "Imperial", "", Districts{25, 18, 36}},
	{92234, 92242, "Riverside", "", Districts{41, 19, 47}},
	{92243, 92251, "Imperial", "", Districts{25, 18, 36}},
	{92252, 92256, "Riverside", "", Districts{41, 19, 47}},
	{92257, 92259, "Imperial", "", Districts{25, 18, 36}},
	{92260, 92276, "Riverside", "", Districts{41, 19, 47}},
	{92277, 92278, "San Bernardino", "Twentynine Palms", Districts{23, 19, 34}},
	{92279, 92282, "Riverside", "", Districts{41, 19, 47}},
	{92283, 92283, "Imperial", "Winterhaven", Districts{25, 18, 36}},
	{92284, 92286, "San Bernardino", "Yucca Valley", Districts{23, 19, 34}},
	{92301, 92312, "San Bernardino", "", Districts{23, 21, 34}},
	{92313, 92377, "San Bernardino", "", Districts{33, 29, 50}},
	{92378, 92399, "San Bernardino", "", Districts{23, 21, 34}},
	{92401, 92499, "San Bernardino", "San Bernardino", Districts{33, 29, 45}},
	{92501, 92522, "Riverside", "Riverside", Districts{39, 31, 58}},
	{92530, 92569, "Riverside", "", Districts{41, 32, 71}},
	{92570, 92572, "Riverside", "Perris", Districts{39, 31, 60}},
	{92590, 92599, "Riverside", "Temecula", Districts{48, 32, 71}},
	{92602, 92620, "Orange", "Irvine", Districts{47, 37, 73}},
	{92621, 92699, "Orange", "", Districts{47, 36, 72}},
	{92701, 92799, "Orange", "Santa Ana", Districts{46, 34, 68}},
	{92801, 92839, "Orange", "", Districts{46, 34, 67}},
	{92840, 92846, "Orange", "Garden Grove", Districts{45, 34, 70}},
	{92847, 92859, "Orange", "", Districts{40, 37, 59}},
	{92860, 92860, "Riverside", "Norco", Districts{41, 31, 58}},
	{92861, 92876, "Orange", "", Districts{40, 37, 59}},
	{92877, 92883, "Riverside", "Corona", Districts{41, 31, 63}},
	{92884, 92899, "Orange", "", Districts{40, 37, 59}},
	{93001, 93099, "Ventura", "", Districts{26, 21, 38}},
	{93101, 93199, "Santa Barbara", "", Districts{24, 21, 37}},
	{93201, 93229, "Tulare", "", Districts{20, 16, 33}},
	{93230, 93232, "Kings", "Hanford", Districts{22, 16, 27}},
	{93233, 93299, "Tulare", "", Districts{20, 16, 33}},
	{93301, 93399, "Kern", "Bakersfield", Districts{20, 16, 35}},
	{93401, 93435, "San Luis Obispo", "", Districts{24, 17, 30}},
	{93436, 93438, "Santa Barbara", "Lompoc", Districts{24, 21, 37}},
	{93440, 93453, "San Luis Obispo", "", Districts{24, 17, 30}},
	{93454, 93458, "Santa Barbara", "Santa Maria", Districts{24, 21, 37}},
	{93460, 93463, "Santa Barbara", "", Districts{24, 21, 37}},
	{93465, 93499, "San Luis Obispo", "", Districts{19, 17, 30}},
	{93501, 93509, "Kern", "", Districts{20, 16, 32}},
	{93510, 93511, "Los Angeles", "", Districts{27, 23, 34}},
	{93512, 93517, "Inyo", "", Districts{3, 4, 8}},
	{93518, 93529, "Kern", "", Districts{20, 16, 32}},
	{93530, 93540, "Los Angeles", "", Districts{27, 23, 34}},
	{93541, 93546, "Mono", "", Districts{3, 4, 8}},
	{93547, 93552, "Los Angeles", "", Districts{27, 23, 39}},
	{93553, 93599, "Kern", "", Districts{20, 16, 32}},
	{93601, 93699, "Fresno", "", Districts{21, 14, 31}},
	{93701, 93799, "Fresno", "Fresno", Districts{21, 14, 31}},
	{93901, 93908, "Monterey", "Salinas", Districts{18, 17, 29}},
	{93909, 93999, "Monterey", "", Districts{19, 17, 30}},
	{94001, 94021, "San Mateo", "", Districts{15, 13, 21}},
	{94022, 94024, "Santa Clara", "Los Altos", Districts{16, 13, 23}},
	{94025, 94034, "San Mateo", "", Districts{16, 13, 23}},
	{94035, 94043, "Santa Clara", "Mountain View", Districts{16, 13, 23}},
	{94044, 94084, "San Mateo", "", Districts{15, 13, 21}},
	{94085, 94089, "Santa Clara", "Sunnyvale", Districts{17, 13, 26}},
	{94090, 94099, "San Mateo", "", Districts{15, 13, 21}},
	{94101, 94199, "San Francisco", "San Francisco", Districts{11, 11, 17}},
	{94201, 94299, "Sacramento", "Sacramento", Districts{7, 8, 6}},
	{94301, 94399, "Santa Clara", "Palo Alto", Districts{16, 13, 23}},
	{94401, 94499, "San Mateo", "", Districts{15, 13, 21}},
	{94501, 94502, "Alameda", "Alameda", Districts{12, 7, 18}},
	{94503, 94503, "Napa", "American Canyon", Districts{4, 3, 4}},
	{94505, 94532, "Contra Costa", "", Districts{10, 7, 15}},
	{94533, 94535, "Solano", "", Districts{8, 3, 11}},
	{94536, 94546, "Alameda", "", Districts{14, 10, 20}},
	{94547, 94549, "Contra Costa", "", Districts{10, 9, 16}},
	{94550, 94557, "Alameda", "", Districts{14, 9, 16}},
	{94558, 94559, "Napa", "Napa", Districts{4, 3, 4}},
	{94560, 94568, "Alameda", "", Districts{14, 9, 16}},
	{94569, 94573, "Contra Costa", "", Districts{10, 7, 15}},
	{94574, 94576, "Napa", "", Districts{4, 3, 4}},
	{94577, 94581, "Alameda", "", Districts{14, 10, 20}},
	{94582, 94583, "Contra Costa", "San Ramon", Districts{10, 9, 16}},
	{94585, 94585, "Solano", "Suisun City", Districts{8, 3, 11}},
	{94586, 94588, "Alameda", "", Districts{14, 9, 16}},
	{94589, 94592, "Solano", "Vallejo", Districts{8, 3, 11}},
	{94595, 94598, "Contra Costa", "", Districts{10, 9, 16}},
	{94599, 94599, "Napa", "Yountville", Districts{4, 3, 4}},
	{94601, 94699, "Alameda", "Oakland", Districts{12, 7, 18}},
	{94701, 94799, "Alameda", "", Districts{12, 7, 14}},
	{94801, 94899, "Contra Costa", "", Districts{8, 7, 14}},
	{94901, 94950, "Marin", "", Districts{2, 2, 12}},
	{94951, 94955, "Sonoma", "Petaluma", Districts{2, 3, 12}},
	{94956, 94999, "Marin", "", Districts{2, 2, 12}},
	{95001, 95007, "Santa Cruz", "", Districts{19, 17, 28}},
	{95008, 95015, "Santa Clara", "", Districts{17, 15, 26}},
	{95017, 95019, "Santa Cruz", "", Districts{19, 17, 28}},
	{95020, 95059, "Santa Clara", "", Districts{18, 15, 26}},
	{95060, 95077, "Santa Cruz", "", Districts{19, 17, 28}},
	{95101, 95199, "Santa Clara", "San Jose", Districts{18, 15, 25}},
	{95201, 95219, "San Joaquin", "Stockton", Districts{9, 5, 13}},
	{95220, 95239, "Calaveras", "", Districts{5, 4, 8}},
	{95240, 95242, "San Joaquin", "Lodi", Districts{9, 5, 9}},
	{95243, 95299, "Calaveras", "", Districts{5, 4, 8}},
	{95301, 95349, "Merced", "", Districts{13, 12, 27}},
	{95350, 95375, "Stanislaus", "", Districts{13, 5, 22}},
	{95376, 95377, "San Joaquin", "Tracy", Districts{9, 5, 13}},
	{95378, 95399, "Stanislaus", "", Districts{13, 5, 22}},
	{95401, 95481, "Sonoma", "", Districts{4, 3, 12}},
	{95482, 95482, "Mendocino", "Ukiah", Districts{2, 2, 2}},
	{95483, 95499, "Sonoma", "", Districts{4, 3, 12}},
	{95501, 95530, "Humboldt", "", Districts{2, 2, 2}},
	{95531, 95531, "Del Norte", "Crescent City", Districts{2, 2, 2}},
	{95532, 95599, "Humboldt", "", Districts{2, 2, 2}},
	{95601, 95607, "Placer", "", Districts{3, 4, 5}},
	{95608, 95615, "Sacramento", "", Districts{6, 6, 7}},
	{95616, 95618, "Yolo", "Davis", Districts{4, 3, 4}},
	{95619, 95629, "Sacramento", "", Districts{6, 8, 10}},
	{95630, 95630, "Sacramento", "Folsom", Districts{3, 6, 7}},
	{95631, 95669, "El Dorado", "", Districts{5, 4, 5}},
	{95670, 95670, "Sacramento", "Rancho Cordova", Districts{6, 8, 10}},
	{95671, 95676, "El Dorado", "", Districts{5, 4, 5}},
	{95677, 95678, "Placer", "", Districts{3, 4, 5}},
	{95679, 95799, "Placer", "", Districts{3, 4, 5}},
	{95801, 95899, "Sacramento", "Sacramento", Districts{7, 8, 6}},
	{95901, 95999, "Butte", "", Districts{1, 4, 3}},
	{96001, 96099, "Shasta", "", Districts{1, 1, 1}},
	{96101, 96149, "Lassen", "", Districts{1, 1, 1}},
	{96150, 96158, "El Dorado", "South Lake Tahoe", Districts{3, 1, 1}},
	{96159, 96199, "Lassen", "", Districts{1, 1, 1}},
}

// RangeGuess is the heuristic's answer for a ZIP.
type RangeGuess struct {
	County    string
	City      string
	Districts Districts
	Lo, Hi    string // the matched block, for diagnostics
}

// GuessRange estimates county and districts for a California ZIP from the
// numeric block it falls in.
func GuessRange(zip string) (RangeGuess, bool) {
	n := zipNumber(zip)
	if n < 0 || !IsCaliforniaZIP(zip) {
		return RangeGuess{}, false
	}
	i := sort.Search(len(caZIPRanges), func(i int) bool { return caZIPRanges[i].hi >= n })
	if i == len(caZIPRanges) || caZIPRanges[i].lo > n {
		return RangeGuess{}, false
	}
	r := caZIPRanges[i]
	return RangeGuess{
		County:    r.county,
		City:      r.city,
		Districts: r.districts,
		Lo:        fmt.Sprintf("%05d", r.lo),
		Hi:        fmt.Sprintf("%05d", r.hi),
	}, true
}

func (g RangeGuess) partial() partial {
	return partial{
		City:       g.City,
		County:     g.County,
		Districts:  g.Districts,
		Confidence: ConfidenceLow,
		Warning:    fmt.Sprintf("estimated from ZIP block %s-%s", g.Lo, g.Hi),
	}
}
