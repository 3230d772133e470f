package domain

import (
	"math"
	"strconv"
	"strings"
)

const (
	nauticalMilePerLatitude  = 60.00721
	nauticalMilePerLongitude = 60.10793
	metersPerNauticalMile    = 1852
	radiansPerDegree         = math.Pi / 180.0
)

// MaxDistance is the distance assigned to stations whose coordinates cannot
// be parsed, so they rank after every measurable station.
const MaxDistance = math.MaxInt32

// GeoDistanceMeters returns the approximate distance in meters between two
// latitude/longitude pairs given in decimal degrees.
func GeoDistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	y := (lat2 - lat1) * nauticalMilePerLatitude
	x := (math.Cos(lat1*radiansPerDegree) + math.Cos(lat2*radiansPerDegree)) *
		(lon2 - lon1) * (nauticalMilePerLongitude / 2)
	return math.Sqrt(x*x+y*y) * metersPerNauticalMile
}

// FahrenheitToCelsius converts degrees Fahrenheit to degrees Celsius.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5.0 / 9.0
}

// KnotsToMetersPerSecond converts knots to meters per second.
func KnotsToMetersPerSecond(k float64) float64 {
	return 0.51444 * k
}

// ParseCoordinate parses a decimal-degree coordinate from store text.
// Empty or non-numeric text reports false.
func ParseCoordinate(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// FormatTenths renders a converted measurement with one decimal place.
func FormatTenths(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
