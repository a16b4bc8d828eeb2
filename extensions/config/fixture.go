package config

import "github.com/vitalvas/mqttsn"

// FixtureItem is one candidate message of a fixture topic.
type FixtureItem struct {
	QoS     int    `yaml:"qos" toml:"qos" validate:"gte=0,lte=2"`
	Retain  bool   `yaml:"retain" toml:"retain"`
	Message string `yaml:"message" toml:"message"`
}

// Fixture maps topic names to the messages a publisher client picks from.
type Fixture map[string][]FixtureItem

// Fixture converts f to the engine representation.
func (f Fixture) Fixture() mqttsn.Fixture {
	if len(f) == 0 {
		return nil
	}

	out := make(mqttsn.Fixture, len(f))
	for topic, items := range f {
		converted := make([]mqttsn.FixtureItem, 0, len(items))
		for _, item := range items {
			converted = append(converted, mqttsn.FixtureItem{
				QoS:     byte(item.QoS),
				Retain:  item.Retain,
				Message: item.Message,
			})
		}
		out[topic] = converted
	}
	return out
}
