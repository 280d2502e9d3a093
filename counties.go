package civix

import "sort"

// caCountyFIPS maps California county names to their 3-digit FIPS codes.
var caCountyFIPS = map[string]string{
	"Alameda": "001", "Alpine": "003", "Amador": "005", "Butte": "007",
	"Calaveras": "009", "Colusa": "011", "Contra Costa": "013", "Del Norte": "015",
	"El Dorado": "017", "Fresno": "019", "Glenn": "021", "Humboldt": "023",
	"Imperial": "025", "Inyo": "027", "Kern": "029", "Kings": "031",
	"Lake": "033", "Lassen": "035", "Los Angeles": "037", "Madera": "039",
	"Marin": "041", "Mariposa": "043", "Mendocino": "045", "Merced": "047",
	"Modoc": "049", "Mono": "051", "Monterey": "053", "Napa": "055",
	"Nevada": "057", "Orange": "059", "Placer": "061", "Plumas": "063",
	"Riverside": "065", "Sacramento": "067", "San Benito": "069", "San Bernardino": "071",
	"San Diego": "073", "San Francisco": "075", "San Joaquin": "077", "San Luis Obispo": "079",
	"San Mateo": "081", "Santa Barbara": "083", "Santa Clara": "085", "Santa Cruz": "087",
	"Shasta": "089", "Sierra": "091", "Siskiyou": "093", "Solano": "095",
	"Sonoma": "097", "Stanislaus": "099", "Sutter": "101", "Tehama": "103",
	"Trinity": "105", "Tulare": "107", "Tuolumne": "109", "Ventura": "111",
	"Yolo": "113", "Yuba": "115",
}

// caCountyCount is the number of counties in California.
const caCountyCount = 58

// CaliforniaCounties returns the county names in alphabetical order.
func CaliforniaCounties() []string {
	out := make([]string, 0, len(caCountyFIPS))
	for name := range caCountyFIPS {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CountyFIPS returns the 3-digit FIPS code of a California county.
func CountyFIPS(county string) (string, bool) {
	f, ok := caCountyFIPS[county]
	return f, ok
}
