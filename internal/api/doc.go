// Package api provides the parental admin HTTP API and WebSocket server
// for BabyBox.
//
// It exposes the media library, tag bindings, quota settings, playback
// history, downloads, and Bluetooth speaker management to the admin web
// UI. Login is a parental PIN exchanged for a short-lived JWT; every
// mutating route requires it.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
