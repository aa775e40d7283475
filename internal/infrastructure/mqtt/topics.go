package mqtt

import "fmt"

// Topic prefixes for the BabyBox broker namespace.
//
// Panel topics use the flat scheme babybox/{category}/{name} so the
// front-panel firmware can hardcode its publish/subscribe list.
const (
	// TopicPrefix is the base for all BabyBox topics.
	TopicPrefix = "babybox"

	// TopicPrefixCore is the base for controller-published topics.
	TopicPrefixCore = "babybox/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "babybox/system"
)

// Topics provides builders for BabyBox MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	client.Subscribe(topics.EventTag(), 1, handler)
type Topics struct{}

// EventTag returns the topic the panel publishes tag presentations on.
//
// Payload: {"uid":"04A1B2C3","at":"2026-02-15T10:00:00Z"}
func (Topics) EventTag() string {
	return TopicPrefix + "/event/tag"
}

// EventButton returns the topic the panel publishes button presses on.
//
// Payload: {"button":"stop","at":"2026-02-15T10:00:00Z"}
func (Topics) EventButton() string {
	return TopicPrefix + "/event/button"
}

// CommandFeedback returns the topic the core publishes feedback patterns on.
// The panel renders these as LED/sound sequences.
//
// Payload: {"pattern":"accepted"}
func (Topics) CommandFeedback() string {
	return TopicPrefix + "/command/feedback"
}

// CoreState returns the retained topic carrying the controller state.
// New subscribers (the admin UI, the panel) see the current state immediately.
//
// Example payload: {"state":"playing","media_id":12,"title":"Bluey S1E3"}
func (Topics) CoreState() string {
	return TopicPrefixCore + "/state"
}

// CoreDownload returns the progress topic for a download job.
//
// Example: babybox/core/download/3f1c9a
func (Topics) CoreDownload(jobID string) string {
	return fmt.Sprintf("%s/download/%s", TopicPrefixCore, jobID)
}

// SystemStatus returns the retained online/offline status topic.
// The broker publishes the LWT here if the core dies unexpectedly.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
