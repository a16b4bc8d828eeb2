package mqttsn

import (
	"encoding/base64"
	"strings"
)

// SanitizeTopicName trims a topic name and collapses runs of whitespace
// into a single space.
func SanitizeTopicName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// topicKey is the canonical registry key of a sanitized topic name.
func topicKey(sanitized string) string {
	return base64.StdEncoding.EncodeToString([]byte(sanitized))
}

// TopicRegistry maps topic names to topic ids for one gateway.
// Topic ids are never reclaimed.
//
// TopicRegistry is not safe for concurrent use.
type TopicRegistry struct {
	ids   *IDManager
	byKey map[string]uint16
	names map[uint16]string
}

// NewTopicRegistry creates an empty registry.
func NewTopicRegistry() *TopicRegistry {
	return newTopicRegistry(NewIDManager())
}

func newTopicRegistry(ids *IDManager) *TopicRegistry {
	return &TopicRegistry{
		ids:   ids,
		byKey: make(map[string]uint16),
		names: make(map[uint16]string),
	}
}

// Resolve returns the id registered for name.
// Returns ErrTopicNotFound if the name has not been registered.
func (r *TopicRegistry) Resolve(name string) (uint16, error) {
	id, ok := r.byKey[topicKey(SanitizeTopicName(name))]
	if !ok {
		return 0, ErrTopicNotFound
	}
	return id, nil
}

// Register allocates a new id for name. It does not look for an existing
// mapping; callers check Resolve first.
// Returns ErrEmptyTopic for names that sanitize to nothing and
// ErrIDExhausted when no topic ids are left.
func (r *TopicRegistry) Register(name string) (uint16, error) {
	sanitized := SanitizeTopicName(name)
	if sanitized == "" {
		return 0, ErrEmptyTopic
	}

	id, err := r.ids.Allocate()
	if err != nil {
		return 0, err
	}

	r.byKey[topicKey(sanitized)] = id
	r.names[id] = sanitized

	return id, nil
}

// Name returns the sanitized topic name of id.
func (r *TopicRegistry) Name(id uint16) (string, bool) {
	name, ok := r.names[id]
	return name, ok
}

// Len returns the number of registered topic ids.
func (r *TopicRegistry) Len() int {
	return len(r.names)
}
