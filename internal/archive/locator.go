package archive

import (
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gojiplus/get-weather-data/internal/domain"
)

// Templates holds the archive URL template for each station type.
// Placeholders: {station}, {year}, {mon} (lower-case three-letter month).
// When GHCNDByYear is set, GHCND stations resolve to the per-year archive
// instead of the per-station one.
type Templates struct {
	GHCND       string
	GHCNDByYear string
	GSOD        string
	COOP        string
}

// Locator maps a station and day to the archive URL and its cache path.
type Locator struct {
	cacheDir  string
	templates Templates
}

// NewLocator creates a Locator rooted at cacheDir.
func NewLocator(cacheDir string, t Templates) *Locator {
	return &Locator{cacheDir: cacheDir, templates: t}
}

// Locate returns the archive URL holding the station's data for date and
// the local path it is cached at.
func (l *Locator) Locate(st domain.Station, date time.Time) (rawURL, localPath string, err error) {
	year := strconv.Itoa(date.Year())
	mon := strings.ToLower(date.Month().String()[:3])

	var tmpl, dir string
	switch st.Type {
	case domain.StationGHCND:
		tmpl, dir = l.templates.GHCND, filepath.Join("ghcn-daily", "all")
		if l.templates.GHCNDByYear != "" {
			tmpl, dir = l.templates.GHCNDByYear, filepath.Join("ghcn-daily", "by_year")
		}
	case domain.StationUSAFWBAN:
		tmpl, dir = l.templates.GSOD, filepath.Join("gsod", year)
	case domain.StationCOOP:
		tmpl, dir = l.templates.COOP, filepath.Join("coop", "3200", year)
	default:
		return "", "", fmt.Errorf("unknown station type %q", st.Type)
	}
	if tmpl == "" {
		return "", "", fmt.Errorf("no archive url configured for %s stations", st.Type)
	}

	rawURL = strings.NewReplacer(
		"{station}", st.ID,
		"{year}", year,
		"{mon}", mon,
	).Replace(tmpl)

	return rawURL, filepath.Join(l.cacheDir, dir, path.Base(rawURL)), nil
}
