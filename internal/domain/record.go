package domain

import (
	"strconv"
	"time"
)

// BaseColumns lead every output row.
var BaseColumns = []string{"uniqid", "zip", "year", "month", "day"}

// StationInfoColumns describe the station that was last consulted for a row.
var StationInfoColumns = []string{"sid", "type", "name", "lat", "lon", "nth", "distance"}

// StationInfo is the station-info part of a DailyRecord.
type StationInfo struct {
	ID       string      `json:"sid"`
	Type     StationType `json:"type"`
	Name     string      `json:"name"`
	Lat      string      `json:"lat"`
	Lon      string      `json:"lon"`
	Nth      int         `json:"nth"`
	Distance int         `json:"distance"`
}

// DailyRecord is the result row for one ZIP and one calendar day.
type DailyRecord struct {
	UniqID  string            `json:"uniqid"`
	Zip     string            `json:"zip"`
	Date    time.Time         `json:"date"`
	Station *StationInfo      `json:"station,omitempty"`
	Values  map[string]string `json:"values,omitempty"`
}

// Header returns the full output header for the given element columns.
func Header(elements []string) []string {
	h := make([]string, 0, len(BaseColumns)+len(StationInfoColumns)+len(elements))
	h = append(h, BaseColumns...)
	h = append(h, StationInfoColumns...)
	return append(h, elements...)
}

// Row renders the record in Header(elements) order. Missing values are empty.
func (r DailyRecord) Row(elements []string) []string {
	row := make([]string, 0, len(BaseColumns)+len(StationInfoColumns)+len(elements))
	row = append(row,
		r.UniqID,
		r.Zip,
		strconv.Itoa(r.Date.Year()),
		strconv.Itoa(int(r.Date.Month())),
		strconv.Itoa(r.Date.Day()),
	)

	if s := r.Station; s != nil {
		row = append(row, s.ID, string(s.Type), s.Name, s.Lat, s.Lon,
			strconv.Itoa(s.Nth), strconv.Itoa(s.Distance))
	} else {
		row = append(row, "", "", "", "", "", "", "")
	}

	for _, e := range elements {
		row = append(row, r.Values[e])
	}
	return row
}
