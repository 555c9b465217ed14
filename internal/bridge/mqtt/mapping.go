// Package mqtt publishes tag values as text payloads on a rate limit and
// stages inbound writes for safe application during the input scan.
package mqtt

import (
	"strings"

	"github.com/plcforge/plcsim/internal/tag"
)

// Mapping declares one tag's topic relative to the bridge's prefix. A
// writable mapping is also subscribed so external publishers can drive
// the tag.
type Mapping struct {
	Topic    string
	Tag      string
	Writable bool
}

// binding is a resolved mapping: full topic, tag pointer and the
// last-sent cache used by only-send-changed publishing. hasSent is the
// unset sentinel so the first value is always published.
type binding struct {
	topic    string
	tag      *tag.Tag
	writable bool
	lastSent tag.Value
	hasSent  bool
}

// payloadToSend returns the text to publish, or false when
// only-if-changed suppresses an unchanged value. It updates the last-sent
// cache on every send.
func (b *binding) payloadToSend(onlyIfChanged bool) (string, bool) {
	value := b.tag.Get()
	if onlyIfChanged && b.hasSent && value.Equal(b.lastSent) {
		return "", false
	}
	b.lastSent = value
	b.hasSent = true
	return value.Text(), true
}

// JoinTopic joins prefix and topic with exactly one separator, stripping
// trailing slashes from the prefix and leading slashes from the topic.
func JoinTopic(prefix, topic string) string {
	prefix = strings.TrimRight(prefix, "/")
	topic = strings.TrimLeft(topic, "/")
	return prefix + "/" + topic
}
