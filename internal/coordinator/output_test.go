package coordinator

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf, []string{"TMAX", "TMIN"})
	require.NoError(t, w.WriteHeader())

	recs := []domain.DailyRecord{
		{
			UniqID: "1", Zip: "70503", Date: domain.Date(2010, 8, 17),
			Station: &domain.StationInfo{ID: "USC00165026", Type: domain.StationGHCND, Name: "LAFAYETTE, LA", Lat: "30.2167", Lon: "-92.05", Nth: 1, Distance: 0},
			Values:  map[string]string{"TMAX": "333"},
		},
		{UniqID: "1", Zip: "70503", Date: domain.Date(2010, 8, 18)},
	}
	require.NoError(t, w.WriteRecords(recs))
	assert.Equal(t, 2, w.Rows())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "uniqid,zip,year,month,day,sid,type,name,lat,lon,nth,distance,TMAX,TMIN", lines[0])
	assert.Equal(t, `1,70503,2010,8,17,USC00165026,GHCND,"LAFAYETTE, LA",30.2167,-92.05,1,0,333,`, lines[1])
	assert.Equal(t, "1,70503,2010,8,18,,,,,,,,,", lines[2])
}

func TestWriteBatch_IndexOrder(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf, nil)

	r := domain.ResultBatch{Records: map[int][]domain.DailyRecord{
		2: {{UniqID: "c", Date: domain.Date(2010, 1, 1)}},
		0: {{UniqID: "a", Date: domain.Date(2010, 1, 1)}, {UniqID: "a", Date: domain.Date(2010, 1, 2)}},
		1: {{UniqID: "b", Date: domain.Date(2010, 1, 1)}},
	}}

	rows, err := writeBatch(w, r)
	require.NoError(t, err)
	assert.Equal(t, 4, rows)

	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		ids = append(ids, strings.SplitN(line, ",", 2)[0])
	}
	assert.Equal(t, []string{"a", "a", "b", "c"}, ids)
}
