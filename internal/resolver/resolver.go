// Package resolver ranks weather stations by distance from a ZIP code.
package resolver

import (
	"cmp"
	"math"
	"slices"

	"github.com/gojiplus/get-weather-data/internal/domain"
)

// Ranker returns the stations ordered by distance from a ZIP's coordinates.
type Ranker interface {
	Rank(zip string, lat, lon float64) []domain.RankedStation
}

// Rank computes the distance from (lat, lon) to every station with both
// coordinates present and sorts ascending by distance, then station id.
// Stations whose coordinates do not parse sort last at domain.MaxDistance.
func Rank(lat, lon float64, stations []domain.Station) []domain.RankedStation {
	ranked := make([]domain.RankedStation, 0, len(stations))
	for _, st := range stations {
		if !st.HasCoordinates() {
			continue
		}
		ranked = append(ranked, domain.RankedStation{
			Distance: distance(lat, lon, st),
			Station:  st,
		})
	}

	slices.SortStableFunc(ranked, func(a, b domain.RankedStation) int {
		return cmp.Or(
			cmp.Compare(a.Distance, b.Distance),
			cmp.Compare(a.Station.ID, b.Station.ID),
		)
	})
	return ranked
}

func distance(lat, lon float64, st domain.Station) int {
	sLat, okLat := domain.ParseCoordinate(st.Lat)
	sLon, okLon := domain.ParseCoordinate(st.Lon)
	if !okLat || !okLon {
		return domain.MaxDistance
	}
	d := math.Round(domain.GeoDistanceMeters(lat, lon, sLat, sLon))
	if math.IsNaN(d) || d >= domain.MaxDistance {
		return domain.MaxDistance
	}
	return int(d)
}

// StationRanker ranks a fixed station list loaded once per process.
type StationRanker struct {
	stations []domain.Station
}

// NewStationRanker creates a Ranker over stations.
func NewStationRanker(stations []domain.Station) *StationRanker {
	return &StationRanker{stations: stations}
}

func (r *StationRanker) Rank(_ string, lat, lon float64) []domain.RankedStation {
	return Rank(lat, lon, r.stations)
}

// Limits bound how far down the ranked list a search may advance.
// Zero means unlimited.
type Limits struct {
	MaxRank     int
	MaxDistance int // meters
}

// Exceeded reports whether a station at rank nth (1-based) and the given
// distance falls outside the limits.
func (l Limits) Exceeded(nth, distance int) bool {
	if l.MaxRank > 0 && nth > l.MaxRank {
		return true
	}
	return l.MaxDistance > 0 && distance > l.MaxDistance
}
