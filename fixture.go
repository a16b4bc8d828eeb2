package mqttsn

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidFixture is returned by Fixture.Validate.
var ErrInvalidFixture = errors.New("mqttsn: invalid fixture")

// FixtureItem is one sample payload a client publishes.
type FixtureItem struct {
	QoS     byte
	Retain  bool
	Message string
}

// Fixture maps topic names to the payloads a client registers and publishes.
type Fixture map[string][]FixtureItem

// Validate checks that every topic name is non-empty, has at least one item
// and that every item carries a valid QoS.
func (f Fixture) Validate() error {
	for name, items := range f {
		if SanitizeTopicName(name) == "" {
			return fmt.Errorf("%w: empty topic name", ErrInvalidFixture)
		}
		if len(items) == 0 {
			return fmt.Errorf("%w: topic %q has no messages", ErrInvalidFixture, name)
		}
		for i, item := range items {
			if !validQoS(item.QoS) {
				return fmt.Errorf("%w: topic %q item %d: QoS %d", ErrInvalidFixture, name, i, item.QoS)
			}
		}
	}
	return nil
}

// Topics returns the topic names in sorted order.
func (f Fixture) Topics() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
