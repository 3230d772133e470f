// Package weather answers a ZIP query with one DailyRecord per day by
// walking the ranked stations and reading their archives.
package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/gojiplus/get-weather-data/internal/archive"
	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/gojiplus/get-weather-data/internal/extract"
	"github.com/gojiplus/get-weather-data/internal/observability"
	"github.com/gojiplus/get-weather-data/internal/resolver"
)

// Policy decides when the search stops advancing to the next station.
type Policy string

const (
	// PolicyComplete keeps advancing until every requested element has a
	// value or a limit is reached. Earlier stations win per element.
	PolicyComplete Policy = "complete"
	// PolicyFirstStation stops at the first station that yields any element.
	PolicyFirstStation Policy = "first-station"
)

// ZipLookup resolves a ZIP code to its coordinate columns.
type ZipLookup interface {
	ZipLocation(ctx context.Context, zip string) (domain.ZipLocation, error)
}

// Fetcher makes a station archive available on local disk.
type Fetcher interface {
	EnsureLocal(ctx context.Context, rawURL, localPath string) archive.Outcome
}

// Locator maps a station and day to its archive URL and cache path.
type Locator interface {
	Locate(st domain.Station, date time.Time) (rawURL, localPath string, err error)
}

// DailyLookup reads GHCND station-days out of a by_year archive on disk.
type DailyLookup interface {
	Lookup(ctx context.Context, archivePath, stationID string, date time.Time, elems *domain.Elements) (bool, error)
}

// Options configures a Searcher. A non-nil Daily answers GHCND stations in
// place of the .dly extractor.
type Options struct {
	Columns []string
	Limits  resolver.Limits
	Policy  Policy
	Daily   DailyLookup
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Searcher builds DailyRecords for ZIP queries.
type Searcher struct {
	zips       ZipLookup
	ranker     resolver.Ranker
	fetcher    Fetcher
	locator    Locator
	extractors map[domain.StationType]extract.Extractor
	daily      DailyLookup
	columns    []string
	limits     resolver.Limits
	policy     Policy
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewSearcher creates a Searcher.
func NewSearcher(zips ZipLookup, ranker resolver.Ranker, fetcher Fetcher, locator Locator, opts Options) *Searcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	policy := opts.Policy
	if policy == "" {
		policy = PolicyComplete
	}

	extractors := make(map[domain.StationType]extract.Extractor, 3)
	for _, t := range []domain.StationType{domain.StationGHCND, domain.StationUSAFWBAN, domain.StationCOOP} {
		ex, err := extract.ForType(t, logger)
		if err != nil {
			continue
		}
		extractors[t] = ex
	}

	return &Searcher{
		zips:       zips,
		ranker:     ranker,
		fetcher:    fetcher,
		locator:    locator,
		extractors: extractors,
		daily:      opts.Daily,
		columns:    opts.Columns,
		limits:     opts.Limits,
		policy:     policy,
		logger:     logger,
		metrics:    metrics,
	}
}

// Search returns one record per day of q's inclusive range. A ZIP that is
// unknown or has no coordinates still yields its rows, with empty station
// and element columns.
func (s *Searcher) Search(ctx context.Context, q domain.ZipQuery) []domain.DailyRecord {
	zip := domain.PadZip(q.Zip)
	days := q.Days()
	records := make([]domain.DailyRecord, 0, len(days))

	ranked := s.rank(ctx, zip)
	for _, day := range days {
		rec := domain.DailyRecord{UniqID: q.UniqID, Zip: zip, Date: day}
		if ranked != nil && len(ranked.stations) > 0 {
			rec.Station, rec.Values = s.searchDay(ctx, ranked, day)
		}
		records = append(records, rec)
	}
	return records
}

// ranking is one query's view of a ZIP's ranked stations. It grows past the
// ranker's head at most once.
type ranking struct {
	zip      string
	lat, lon float64
	stations []domain.RankedStation
	extended bool
}

// extend appends the stations beyond the current head and reports whether
// any were added.
func (r *ranking) extend(ranker resolver.Ranker) bool {
	ext, ok := ranker.(resolver.Extender)
	if !ok || r.extended {
		return false
	}
	r.extended = true
	more := ext.Extend(r.zip, r.lat, r.lon, len(r.stations))
	if len(more) == 0 {
		return false
	}
	r.stations = append(slices.Clip(r.stations), more...)
	return true
}

func (s *Searcher) rank(ctx context.Context, zip string) *ranking {
	loc, err := s.zips.ZipLocation(ctx, zip)
	if err != nil {
		if errors.Is(err, domain.ErrZipNotFound) {
			s.logger.Warn("zip code not found", "zip", zip)
		} else {
			s.logger.Error("zip lookup failed", "zip", zip, "error", err)
		}
		return nil
	}

	lat, lon, err := loc.Coordinates()
	if err != nil {
		s.logger.Warn("no coordinates for zip code", "zip", zip)
		return nil
	}
	return &ranking{zip: zip, lat: lat, lon: lon, stations: s.ranker.Rank(zip, lat, lon)}
}

// searchDay advances through the ranked stations for one day. Stations whose
// archive cannot be retrieved are skipped without counting toward nth; the
// returned info describes the last station that was counted.
func (s *Searcher) searchDay(ctx context.Context, ranked *ranking, day time.Time) (*domain.StationInfo, map[string]string) {
	elems := domain.NewElements(s.columns)
	var info *domain.StationInfo
	nth := 0

	for i := 0; ; i++ {
		if i == len(ranked.stations) && !ranked.extend(s.ranker) {
			break
		}
		rs := ranked.stations[i]
		if ctx.Err() != nil {
			break
		}
		if s.limits.Exceeded(nth+1, rs.Distance) {
			s.logger.Debug("station limit reached", "nth", nth+1, "distance", rs.Distance)
			break
		}

		st := rs.Station
		rawURL, localPath, err := s.locator.Locate(st, day)
		if err != nil {
			s.logger.Warn("cannot locate station archive", "sid", st.ID, "error", err)
			continue
		}
		if s.fetcher.EnsureLocal(ctx, rawURL, localPath) != archive.Present {
			continue
		}

		nth++
		info = &domain.StationInfo{
			ID:       st.ID,
			Type:     st.Type,
			Name:     st.Name,
			Lat:      st.Lat,
			Lon:      st.Lon,
			Nth:      nth,
			Distance: rs.Distance,
		}

		before := elems.Found()
		matched, err := s.extractFile(ctx, localPath, st, day, elems)
		if err != nil {
			s.logger.Warn("extract failed", "sid", st.ID, "path", localPath, "error", err)
		}
		if !matched {
			s.metrics.ExtractMisses.WithLabelValues(string(st.Type)).Inc()
		}

		if elems.Complete() {
			break
		}
		if s.policy == PolicyFirstStation && elems.Found() > before {
			break
		}
	}
	return info, elems.Values()
}

func (s *Searcher) extractFile(ctx context.Context, path string, st domain.Station, day time.Time, elems *domain.Elements) (bool, error) {
	if st.Type == domain.StationGHCND && s.daily != nil {
		return s.daily.Lookup(ctx, path, st.ID, day, elems)
	}

	ex, ok := s.extractors[st.Type]
	if !ok {
		return false, fmt.Errorf("no extractor for station type %q", st.Type)
	}

	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	return ex.Extract(f, st.ID, day, elems)
}
