// Package noaa implements queries to NOAA CO-OPS to retrieve tide data. Hourly
// water level predictions are requested per station for a window of calendar
// days (see PredictionQuery). All times are UTC and heights are meters above
// MLLW.
package noaa
