package domain

import "errors"

// StationType selects the archive family and record layout for a station.
type StationType string

const (
	StationGHCND    StationType = "GHCND"
	StationUSAFWBAN StationType = "USAF-WBAN"
	StationCOOP     StationType = "COOP"
)

var (
	// ErrZipNotFound is returned when the reference store has no row for a ZIP.
	ErrZipNotFound = errors.New("zip code not found")

	// ErrNoCoordinates is returned when a ZIP has neither a geocoded nor a
	// primary coordinate pair.
	ErrNoCoordinates = errors.New("no coordinates for zip code")

	// ErrQueueUnavailable is returned when the queue transport cannot be
	// started or reached.
	ErrQueueUnavailable = errors.New("queue unavailable")
)

// Station is one weather station from the reference store. Lat and Lon hold
// the store text unchanged; an empty string means the column was null.
type Station struct {
	ID   string      `json:"id"`
	Type StationType `json:"type"`
	Name string      `json:"name"`
	Lat  string      `json:"lat"`
	Lon  string      `json:"lon"`
}

// HasCoordinates reports whether both coordinate columns were non-null.
func (s Station) HasCoordinates() bool {
	return s.Lat != "" && s.Lon != ""
}

// RankedStation pairs a station with its rounded distance in meters from a ZIP.
type RankedStation struct {
	Distance int
	Station  Station
}

// ZipLocation holds the coordinate columns for a ZIP code. Geo* come from a
// geocoding pass and are preferred when present.
type ZipLocation struct {
	Zip    string
	Lat    string
	Lon    string
	GeoLat string
	GeoLon string
}

// Coordinates picks the geocoded pair over the primary pair, column by
// column, and parses the result.
func (z ZipLocation) Coordinates() (lat, lon float64, err error) {
	latText := z.GeoLat
	if latText == "" {
		latText = z.Lat
	}
	lonText := z.GeoLon
	if lonText == "" {
		lonText = z.Lon
	}

	lat, okLat := ParseCoordinate(latText)
	lon, okLon := ParseCoordinate(lonText)
	if !okLat || !okLon {
		return 0, 0, ErrNoCoordinates
	}
	return lat, lon, nil
}
