// Package influxdb records BabyBox telemetry to InfluxDB v2.
//
// Playback sessions and quota consumption are written as non-blocking
// batched points so a parent can chart viewing habits over weeks. The
// feature is optional; when disabled in config the controller runs
// without telemetry.
package influxdb
