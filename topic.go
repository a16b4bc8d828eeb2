package mqttsn

import (
	"errors"
	"strings"
)

// ErrInvalidTopicFilter is returned by ValidateTopicFilter.
var ErrInvalidTopicFilter = errors.New("mqttsn: invalid topic filter")

const (
	topicSeparator      = "/"
	singleLevelWildcard = "+"
	multiLevelWildcard  = "#"
)

// ValidateTopicFilter checks a local filter used to route delivered messages.
// '+' must fill a whole level and '#' must be the whole last level.
func ValidateTopicFilter(filter string) error {
	if filter == "" {
		return ErrEmptyTopic
	}

	levels := strings.Split(filter, topicSeparator)
	for i, level := range levels {
		if strings.Contains(level, singleLevelWildcard) && level != singleLevelWildcard {
			return ErrInvalidTopicFilter
		}
		if strings.Contains(level, multiLevelWildcard) && (level != multiLevelWildcard || i != len(levels)-1) {
			return ErrInvalidTopicFilter
		}
	}

	return nil
}

// TopicMatch reports whether a sanitized topic name matches filter.
// Gateways match topics exactly; wildcards only apply to local routing.
func TopicMatch(filter, topic string) bool {
	if filter == "" || topic == "" {
		return false
	}

	fl := strings.Split(filter, topicSeparator)
	tl := strings.Split(topic, topicSeparator)

	for i, level := range fl {
		if level == multiLevelWildcard {
			return true
		}
		if i >= len(tl) {
			return false
		}
		if level != singleLevelWildcard && level != tl[i] {
			return false
		}
	}

	return len(fl) == len(tl)
}
