package mqtt

import "testing"

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"event tag", topics.EventTag(), "babybox/event/tag"},
		{"event button", topics.EventButton(), "babybox/event/button"},
		{"command feedback", topics.CommandFeedback(), "babybox/command/feedback"},
		{"core state", topics.CoreState(), "babybox/core/state"},
		{"core download", topics.CoreDownload("3f1c9a"), "babybox/core/download/3f1c9a"},
		{"system status", topics.SystemStatus(), "babybox/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("topic = %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if err := c.Publish("", []byte("x"), 1, false); err != ErrInvalidTopic {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("babybox/event/tag", []byte("x"), 3, false); err != ErrInvalidQoS {
		t.Errorf("invalid QoS error = %v, want ErrInvalidQoS", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if err := c.Subscribe("", 1, func(string, []byte) error { return nil }); err != ErrInvalidTopic {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("babybox/event/tag", 1, nil); err == nil {
		t.Error("nil handler error = nil, want error")
	}
}
