package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipLocation_Coordinates(t *testing.T) {
	t.Run("geocoded pair preferred", func(t *testing.T) {
		z := ZipLocation{Lat: "30.1", Lon: "-92.1", GeoLat: "30.2241", GeoLon: "-92.0198"}
		lat, lon, err := z.Coordinates()
		require.NoError(t, err)
		assert.Equal(t, 30.2241, lat)
		assert.Equal(t, -92.0198, lon)
	})

	t.Run("falls back to primary pair", func(t *testing.T) {
		z := ZipLocation{Lat: "30.1", Lon: "-92.1"}
		lat, lon, err := z.Coordinates()
		require.NoError(t, err)
		assert.Equal(t, 30.1, lat)
		assert.Equal(t, -92.1, lon)
	})

	t.Run("missing everywhere", func(t *testing.T) {
		_, _, err := ZipLocation{Zip: "00000"}.Coordinates()
		assert.ErrorIs(t, err, ErrNoCoordinates)
	})

	t.Run("non-numeric", func(t *testing.T) {
		_, _, err := ZipLocation{Lat: "abc", Lon: "-92.1"}.Coordinates()
		assert.ErrorIs(t, err, ErrNoCoordinates)
	})
}

func TestElements_FirstWriterWins(t *testing.T) {
	e := NewElements([]string{"TMAX", "TMIN"})

	assert.True(t, e.Wants("TMAX"))
	assert.False(t, e.Wants("PRCP"), "unrequested code")

	assert.True(t, e.Set("TMAX", "183"))
	assert.False(t, e.Set("TMAX", "200"), "second writer ignored")
	assert.False(t, e.Set("PRCP", "5"))
	assert.Equal(t, 1, e.Found())
	assert.False(t, e.Complete())

	assert.True(t, e.Set("TMIN", "6"))
	assert.True(t, e.Complete())
	assert.Equal(t, map[string]string{"TMAX": "183", "TMIN": "6"}, e.Values())
}

func TestDailyRecord_Row(t *testing.T) {
	elements := []string{"TMAX", "PRCP"}
	assert.Equal(t,
		[]string{"uniqid", "zip", "year", "month", "day", "sid", "type", "name", "lat", "lon", "nth", "distance", "TMAX", "PRCP"},
		Header(elements))

	rec := DailyRecord{
		UniqID: "7",
		Zip:    "70503",
		Date:   Date(1999, 12, 5),
		Station: &StationInfo{
			ID: "USW00013976", Type: StationGHCND, Name: "LAFAYETTE RGNL AP",
			Lat: "30.2053", Lon: "-91.9875", Nth: 1, Distance: 2781,
		},
		Values: map[string]string{"TMAX": "183"},
	}
	assert.Equal(t,
		[]string{"7", "70503", "1999", "12", "5", "USW00013976", "GHCND", "LAFAYETTE RGNL AP", "30.2053", "-91.9875", "1", "2781", "183", ""},
		rec.Row(elements))

	empty := DailyRecord{UniqID: "8", Zip: "00000", Date: Date(2000, 1, 1)}
	row := empty.Row(elements)
	assert.Len(t, row, 14)
	assert.Equal(t, "", row[5])
	assert.Equal(t, "", row[12])
}
