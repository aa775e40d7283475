// Package mqtt wraps paho.mqtt.golang for the BabyBox appliance.
//
// The front-panel firmware (RFID reader, button, LED ring) talks to the
// core over a local broker. This package provides the connection with
// auto-reconnect, Last Will and Testament on babybox/system/status,
// subscription restoration after reconnect, and topic builders so every
// component names topics the same way.
//
// Topic hierarchy:
//
//	babybox/event/tag          tag presentations from the panel
//	babybox/event/button       button presses from the panel
//	babybox/command/feedback   LED/sound patterns to the panel
//	babybox/core/state         retained controller state
//	babybox/core/download/{id} download job progress
//	babybox/system/status      retained online/offline (LWT)
package mqtt
