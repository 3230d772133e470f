// Package extract reads element values for one station and day out of the
// fixed-width archive layouts published for each station type.
package extract

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gojiplus/get-weather-data/internal/domain"
)

const maxLineSize = 1 << 20

// Extractor populates elems from an archive stream. matched reports whether
// the archive held a record for the station and date at all.
type Extractor interface {
	Extract(r io.Reader, stationID string, date time.Time, elems *domain.Elements) (matched bool, err error)
}

// ForType returns the extractor for a station type's archive layout.
func ForType(t domain.StationType, logger *slog.Logger) (Extractor, error) {
	switch t {
	case domain.StationGHCND:
		return GHCND{}, nil
	case domain.StationUSAFWBAN:
		return GSOD{}, nil
	case domain.StationCOOP:
		return COOP{logger: logger}, nil
	default:
		return nil, fmt.Errorf("no extractor for station type %q", t)
	}
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return sc
}

// field returns the trimmed text in line[start:end], or false if the line
// is too short.
func field(line string, start, end int) (string, bool) {
	if start < 0 || end > len(line) || start >= end {
		return "", false
	}
	return strings.TrimSpace(line[start:end]), true
}

// tenthsCelsius converts a Fahrenheit reading to tenths of a degree Celsius.
func tenthsCelsius(raw string) (string, bool) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", false
	}
	return domain.FormatTenths(domain.FahrenheitToCelsius(f) * 10), true
}

// tenthsMetersPerSecond converts a knots reading to tenths of m/s.
func tenthsMetersPerSecond(raw string) (string, bool) {
	k, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", false
	}
	return domain.FormatTenths(domain.KnotsToMetersPerSecond(k) * 10), true
}
