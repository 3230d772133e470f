package domain

// DefaultElements is the element list used when no columns file is configured.
var DefaultElements = []string{
	"PRCP", "SNOW", "SNWD", "TMAX", "TMIN", "TOBS", "AWND",
	"WSFG", "WDFG", "WT01", "WT03", "WT04", "WT05", "WT06",
	"WT07", "WT08", "WT09", "WT11", "WT14", "WT16", "WT18",
}

// Elements accumulates element values for one ZIP and day. Only requested
// codes are stored and the first value stored for a code is kept.
type Elements struct {
	wanted map[string]struct{}
	values map[string]string
}

// NewElements creates an accumulator for the requested element codes.
func NewElements(codes []string) *Elements {
	wanted := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		wanted[c] = struct{}{}
	}
	return &Elements{
		wanted: wanted,
		values: make(map[string]string, len(wanted)),
	}
}

// Wants reports whether code is requested and still unset.
func (e *Elements) Wants(code string) bool {
	if _, ok := e.wanted[code]; !ok {
		return false
	}
	_, set := e.values[code]
	return !set
}

// Set stores value for code unless the code is unrequested or already set.
// It reports whether the value was stored.
func (e *Elements) Set(code, value string) bool {
	if !e.Wants(code) {
		return false
	}
	e.values[code] = value
	return true
}

// Found is the number of requested codes that have a value.
func (e *Elements) Found() int {
	return len(e.values)
}

// Complete reports whether every requested code has a value.
func (e *Elements) Complete() bool {
	return len(e.values) >= len(e.wanted)
}

// Values returns the collected values. The map is shared, not copied.
func (e *Elements) Values() map[string]string {
	return e.values
}
