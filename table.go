package civix

import (
	"bytes"
	"compress/bzip2"
	"embed"
	"encoding/csv"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

//go:embed civix-data
var embeddedData embed.FS

// DataSourceID identifies a data file.
type DataSourceID string

const (
	DataSourceZIPTable  DataSourceID = "caZIPTable"
	DataSourcePlaces    DataSourceID = "caPlaces"
	DataSourceOfficials DataSourceID = "caOfficials"
)

// DataSource names a hand-maintained data file. Files are looked up in the
// configured data directory first and fall back to the embedded copy.
type DataSource struct {
	Name string
	ID   DataSourceID
}

var dataSetFiles = []DataSource{
	{Name: "ca_zips.csv", ID: DataSourceZIPTable},
	{Name: "places.yaml", ID: DataSourcePlaces},
	{Name: "officials.yaml", ID: DataSourceOfficials},
}

// snapshotFile is the gob dump of the parsed ZIP table written by RegenerateCache.
const snapshotFile = "zips.dmp"

// zipTableHeader is the required column order of ca_zips.csv.
var zipTableHeader = []string{
	"zip", "city", "county", "community",
	"congressional", "state_senate", "assembly",
	"latitude", "longitude",
}

// ZIPRecord is one row of the static lookup table.
type ZIPRecord struct {
	ZIP       string
	City      string // USPS preferred city name
	County    string
	Community string // governing place when it differs from City
	Districts Districts
	Latitude  float64
	Longitude float64
}

// Table is the static ZIP lookup table. Read-only after construction.
type Table struct {
	records   map[string]ZIPRecord
	zips      []string            // sorted
	cityIndex map[string][]string // lowercase city or community -> ZIPs
	cityNames map[string]string   // lowercase -> display name
}

func newTable(recs []ZIPRecord) *Table {
	t := &Table{
		records:   make(map[string]ZIPRecord, len(recs)),
		cityIndex: make(map[string][]string),
		cityNames: make(map[string]string),
	}
	for _, r := range recs {
		if _, dup := t.records[r.ZIP]; dup {
			continue
		}
		t.records[r.ZIP] = r
		t.zips = append(t.zips, r.ZIP)
		t.indexCity(r.City, r.ZIP)
		if r.Community != "" && !strings.EqualFold(r.Community, r.City) {
			t.indexCity(r.Community, r.ZIP)
		}
	}
	sort.Strings(t.zips)
	for k := range t.cityIndex {
		sort.Strings(t.cityIndex[k])
	}
	return t
}

func (t *Table) indexCity(name, zip string) {
	key := toLower(name)
	t.cityIndex[key] = append(t.cityIndex[key], zip)
	if _, ok := t.cityNames[key]; !ok {
		t.cityNames[key] = name
	}
}

// Lookup returns the record for a normalized ZIP.
func (t *Table) Lookup(zip string) (ZIPRecord, bool) {
	r, ok := t.records[zip]
	return r, ok
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.records) }

// ZIPs returns all ZIPs in ascending order.
func (t *Table) ZIPs() []string {
	out := make([]string, len(t.zips))
	copy(out, t.zips)
	return out
}

// Records returns all records ordered by ZIP.
func (t *Table) Records() []ZIPRecord {
	out := make([]ZIPRecord, 0, len(t.zips))
	for _, z := range t.zips {
		out = append(out, t.records[z])
	}
	return out
}

func (r ZIPRecord) partial() partial {
	return partial{
		City:       r.City,
		Community:  r.Community,
		County:     r.County,
		Districts:  r.Districts,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		Confidence: ConfidenceHigh,
	}
}

// loadTable prefers a gob snapshot in the cache directory and falls back to
// parsing the raw CSV. A ca_zips.csv in the data directory that is newer than
// the snapshot wins, so edits are not silently shadowed by a stale dump.
func loadTable(cfg *Config) (*Table, error) {
	snapTime, hasSnap := newestModTime(cfg.CacheDir, snapshotFile)
	csvTime, hasCSV := newestModTime(cfg.DataDir, "ca_zips.csv")
	switch {
	case hasSnap && hasCSV && csvTime.After(snapTime):
		cfg.Logger.Info("ZIP table in data directory is newer than snapshot, ignoring snapshot",
			zap.String("data_dir", cfg.DataDir), zap.String("cache_dir", cfg.CacheDir))
	case hasSnap:
		if recs, err := loadSnapshot(cfg.CacheDir); err == nil && len(recs) > 0 {
			if hasCSV {
				cfg.Logger.Info("ZIP table snapshot shadows data directory",
					zap.String("data_dir", cfg.DataDir), zap.String("cache_dir", cfg.CacheDir))
			}
			cfg.Logger.Debug("loaded ZIP table snapshot", zap.Int("records", len(recs)))
			return newTable(recs), nil
		} else if err != nil {
			cfg.Logger.Warn("unreadable ZIP table snapshot", zap.Error(err))
		}
	}
	recs, err := loadRawTable(cfg)
	if err != nil {
		return nil, err
	}
	return newTable(recs), nil
}

func loadRawTable(cfg *Config) ([]ZIPRecord, error) {
	fh, cleanup, err := openDataFile(cfg.DataDir, "ca_zips.csv")
	if err != nil {
		return nil, err
	}
	defer cleanup()
	recs, err := parseZIPTable(fh, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("parsing ZIP table: %w", err)
	}
	return recs, nil
}

// parseZIPTable reads ca_zips.csv. Rows that are malformed or carry placeholder
// values are skipped with a warning rather than failing the whole load.
func parseZIPTable(r io.Reader, logger *zap.Logger) ([]ZIPRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(zipTableHeader)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i, h := range zipTableHeader {
		if strings.TrimSpace(strings.ToLower(header[i])) != h {
			return nil, fmt.Errorf("unexpected column %d: got %q, want %q", i, header[i], h)
		}
	}

	seen := make(map[string]bool)
	var recs []ZIPRecord
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				logger.Warn("skipping malformed ZIP table row", zap.Error(err))
				continue
			}
			return nil, err
		}
		rec, err := parseZIPRow(fields)
		if err != nil {
			logger.Warn("skipping ZIP table row", zap.Strings("row", fields), zap.Error(err))
			continue
		}
		if seen[rec.ZIP] {
			logger.Warn("duplicate ZIP table row", zap.String("zip", rec.ZIP))
			continue
		}
		seen[rec.ZIP] = true
		recs = append(recs, rec)
	}
	return recs, nil
}

var errPlaceholderRow = errors.New("placeholder value")

func parseZIPRow(f []string) (ZIPRecord, error) {
	zip, err := NormalizeZIP(f[0])
	if err != nil {
		return ZIPRecord{}, err
	}
	rec := ZIPRecord{
		ZIP:       zip,
		City:      strings.TrimSpace(f[1]),
		County:    strings.TrimSpace(f[2]),
		Community: strings.TrimSpace(f[3]),
	}
	if isPlaceholder(rec.City) || isPlaceholder(rec.County) {
		return ZIPRecord{}, fmt.Errorf("%w: city=%q county=%q", errPlaceholderRow, rec.City, rec.County)
	}
	if isPlaceholder(rec.Community) {
		rec.Community = ""
	}

	districts := []*int{&rec.Districts.Congressional, &rec.Districts.StateSenate, &rec.Districts.Assembly}
	for i, dst := range districts {
		raw := strings.TrimSpace(f[4+i])
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return ZIPRecord{}, fmt.Errorf("column %s: %q is not a district number", zipTableHeader[4+i], raw)
		}
		*dst = n
	}
	if rec.Districts.Congressional == 0 {
		return ZIPRecord{}, fmt.Errorf("%w: congressional district missing", errPlaceholderRow)
	}
	if !validDistricts(rec.Districts) {
		return ZIPRecord{}, fmt.Errorf("district out of range: %+v", rec.Districts)
	}

	// Coordinates are optional; a row without them still resolves districts.
	if lat, lng := strings.TrimSpace(f[7]), strings.TrimSpace(f[8]); lat != "" && lng != "" {
		la, errLat := strconv.ParseFloat(lat, 64)
		lo, errLng := strconv.ParseFloat(lng, 64)
		if errLat != nil || errLng != nil {
			return ZIPRecord{}, fmt.Errorf("bad coordinates %q,%q", lat, lng)
		}
		rec.Latitude, rec.Longitude = la, lo
	}
	return rec, nil
}

// California district counts after the 2021 redistricting.
const (
	maxCongressional = 52
	maxStateSenate   = 40
	maxAssembly      = 80
)

func validDistricts(d Districts) bool {
	return d.Congressional >= 0 && d.Congressional <= maxCongressional &&
		d.StateSenate >= 0 && d.StateSenate <= maxStateSenate &&
		d.Assembly >= 0 && d.Assembly <= maxAssembly
}

// openDataFile opens name from dir, optionally bzip2-compressed, falling back
// to the embedded copy. Files on disk override the embedded data so operators
// can ship corrections without a rebuild.
func openDataFile(dir, name string) (io.Reader, func() error, error) {
	open := func(n string) (fs.File, error) {
		if dir != "" {
			if fh, err := os.Open(filepath.Join(dir, n)); err == nil {
				return fh, nil
			}
		}
		return embeddedData.Open("civix-data/" + n)
	}
	fh, err := open(name + ".bz2")
	if err != nil {
		fh, err = open(name)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", name, err)
		}
		return fh, fh.Close, nil
	}
	return bzip2.NewReader(fh), fh.Close, nil
}

// newestModTime reports the later modification time of name and name.bz2 in
// dir, if either exists on disk.
func newestModTime(dir, name string) (time.Time, bool) {
	if dir == "" {
		return time.Time{}, false
	}
	var (
		newest time.Time
		found  bool
	)
	for _, n := range []string{name + ".bz2", name} {
		fi, err := os.Stat(filepath.Join(dir, n))
		if err != nil {
			continue
		}
		if !found || fi.ModTime().After(newest) {
			newest = fi.ModTime()
		}
		found = true
	}
	return newest, found
}

func loadSnapshot(cacheDir string) ([]ZIPRecord, error) {
	if cacheDir == "" {
		return nil, os.ErrNotExist
	}
	path := filepath.Join(cacheDir, snapshotFile)
	var (
		r  io.Reader
		fh *os.File
	)
	fh, err := os.Open(path + ".bz2")
	if err == nil {
		r = bzip2.NewReader(fh)
	} else {
		fh, err = os.Open(path)
		if err != nil {
			return nil, err
		}
		r = fh
	}
	defer fh.Close()

	var recs []ZIPRecord
	if err := gob.NewDecoder(r).Decode(&recs); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return recs, nil
}

func storeSnapshot(cacheDir string, recs []ZIPRecord) error {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	b := new(bytes.Buffer)
	if err := gob.NewEncoder(b).Encode(recs); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cacheDir, snapshotFile), b.Bytes(), 0644)
}

// RegenerateCache parses the raw data files and rewrites the gob snapshot used
// for fast startup. Raw files are read from the data directory, or from the
// embedded copy when the directory has none.
//
// Compress the result with bzip2 if desired:
//
//	bzip2 -f civix-cache/zips.dmp
func RegenerateCache(opts ...Option) (int, error) {
	cfg := newConfig(opts)
	recs, err := loadRawTable(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to load data sets: %w", err)
	}
	if err := storeSnapshot(cfg.CacheDir, recs); err != nil {
		return 0, fmt.Errorf("failed to store cache: %w", err)
	}
	return len(recs), nil
}
