// Package domain models ZIP-code weather lookups against NOAA station archives.
//
// # Data Sources
//
// Observations come from three NOAA/NCEI archive families, one per station
// type recorded in the station reference store:
//
//	GHCND      Global Historical Climatology Network - Daily, one ".dly" file per station
//	USAF-WBAN  Global Summary of the Day (GSOD), one gzipped ".op.gz" file per station and year
//	COOP       TD-3200 cooperative summary of the day, one ledger per month for all stations
//
// # Archive Layouts
//
// GHCND lines (fixed width, one element per station/month):
//
//	ID(11) YEAR(4) MONTH(2) ELEMENT(4) then 31 day slots of
//	VALUE(5) MFLAG(1) QFLAG(1) SFLAG(1)
//	Slot for day d starts at byte 21 + 8*(d-1). "-9999" means no observation.
//
// GSOD lines (one line per station/day, header line first):
//
//	bytes 14-22 hold YYYYMMDD; the remaining fields sit at fixed byte ranges
//	(see the field table in package extract). Temperatures are Fahrenheit, wind speeds knots.
//	"9999.9" and "999.9" are missing-value sentinels.
//
// TD-3200 lines (one element per station/month):
//
//	bytes 3-9 hold the first six characters of the station id, 11-15 the
//	element, 17-23 YYYYMM. Day slots are 12 bytes wide starting at byte 30:
//	DAY(2) HOUR(2) VALUE(6) FLAG1(1) FLAG2(1). "-99999" means missing.
//
// # Units
//
// Output temperatures follow the GHCND convention of tenths of a degree
// Celsius and wind speeds tenths of meters per second, so converted GSOD and
// TD-3200 values are multiplied by ten after conversion.
//
// # Distances
//
// Station distance uses an equirectangular approximation with nautical-mile
// scale factors per degree of latitude and longitude. It is accurate enough
// to rank stations within a few hundred kilometers of a ZIP centroid.
package domain
