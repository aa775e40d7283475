// Package library holds the BabyBox media catalogue: media items, the
// RFID tag bindings that point at them, the playback history, and the
// runtime settings table.
//
// Repositories are thin SQL layers over the database package. All
// timestamps are stored as RFC3339 UTC strings, matching the schema
// defaults.
package library
