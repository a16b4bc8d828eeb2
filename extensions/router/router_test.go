package router

import (
	"regexp"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/mqttsn"
)

func TestRouterHandle(t *testing.T) {
	r := New()

	var called bool
	r.Handle(func(_ *mqttsn.Message) {
		called = true
	}, WithTopic("test/topic"))

	assert.Equal(t, 1, r.Len())

	r.Route(&mqttsn.Message{Topic: "test/topic"})
	assert.True(t, called)
}

func TestRouterExactMatch(t *testing.T) {
	r := New()

	var received string
	r.Handle(func(msg *mqttsn.Message) {
		received = msg.Topic
	}, WithTopic("sensors/temperature"))

	r.Route(&mqttsn.Message{Topic: "sensors/temperature"})
	assert.Equal(t, "sensors/temperature", received)

	received = ""
	r.Route(&mqttsn.Message{Topic: "sensors/humidity"})
	assert.Empty(t, received)
}

func TestRouterWildcards(t *testing.T) {
	tests := []struct {
		name    string
		filter  string
		topics  []string
		matched int
	}{
		{
			name:    "single level",
			filter:  "sensors/+/value",
			topics:  []string{"sensors/temp/value", "sensors/humidity/value", "sensors/temp/other"},
			matched: 2,
		},
		{
			name:    "multi level",
			filter:  "sensors/#",
			topics:  []string{"sensors", "sensors/temp", "sensors/a/b/c", "other/topic"},
			matched: 3,
		},
		{
			name:    "everything",
			filter:  "#",
			topics:  []string{"a", "a/b", "c/d/e"},
			matched: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()

			var count int
			r.Handle(func(_ *mqttsn.Message) {
				count++
			}, WithTopic(tt.filter))

			for _, topic := range tt.topics {
				r.Route(&mqttsn.Message{Topic: topic})
			}

			assert.Equal(t, tt.matched, count)
		})
	}
}

func TestRouterMultipleHandlers(t *testing.T) {
	r := New()

	var count int32
	r.Handle(func(_ *mqttsn.Message) {
		atomic.AddInt32(&count, 1)
	}, WithTopic("topic/+"))
	r.Handle(func(_ *mqttsn.Message) {
		atomic.AddInt32(&count, 1)
	}, WithTopic("topic/test"))
	r.Handle(func(_ *mqttsn.Message) {
		atomic.AddInt32(&count, 1)
	}, WithTopic("#"))

	r.Route(&mqttsn.Message{Topic: "topic/test"})
	assert.Equal(t, int32(3), atomic.LoadInt32(&count))
}

func TestRouterConditions(t *testing.T) {
	msg := &mqttsn.Message{
		Topic:   "sensors/temp",
		TopicID: 7,
		Payload: []byte("21"),
		QoS:     mqttsn.QoS1,
		Retain:  true,
	}

	tests := []struct {
		name  string
		opts  []ConditionOption
		match bool
	}{
		{"no conditions", nil, true},
		{"topic id match", []ConditionOption{WithTopicID(7)}, true},
		{"topic id mismatch", []ConditionOption{WithTopicID(8)}, false},
		{"qos match", []ConditionOption{WithQoS(mqttsn.QoS1)}, true},
		{"qos mismatch", []ConditionOption{WithQoS(mqttsn.QoS2)}, false},
		{"retain match", []ConditionOption{WithRetain(true)}, true},
		{"retain mismatch", []ConditionOption{WithRetain(false)}, false},
		{"payload match", []ConditionOption{WithPayload(regexp.MustCompile(`^\d+$`))}, true},
		{"payload mismatch", []ConditionOption{WithPayload(regexp.MustCompile(`^[a-z]+$`))}, false},
		{"combined", []ConditionOption{WithTopic("sensors/+"), WithQoS(mqttsn.QoS1), WithTopicID(7)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()

			var called bool
			r.Handle(func(_ *mqttsn.Message) {
				called = true
			}, tt.opts...)

			r.Route(msg)
			assert.Equal(t, tt.match, called)
		})
	}
}

func TestRouterNilMessage(t *testing.T) {
	r := New()

	var called bool
	r.Handle(func(_ *mqttsn.Message) {
		called = true
	})

	r.Route(nil)
	assert.False(t, called)
}

func TestRouterFilters(t *testing.T) {
	r := New()

	r.Handle(func(_ *mqttsn.Message) {}, WithTopic("topic/a"))
	r.Handle(func(_ *mqttsn.Message) {}, WithTopic("topic/b"))
	r.Handle(func(_ *mqttsn.Message) {}, WithTopic("topic/a"))
	r.Handle(func(_ *mqttsn.Message) {}, WithQoS(1))

	assert.Equal(t, []string{"topic/a", "topic/b"}, r.Filters())
}

func TestRouterClear(t *testing.T) {
	r := New()

	r.Handle(func(_ *mqttsn.Message) {}, WithTopic("topic/a"))
	r.Handle(func(_ *mqttsn.Message) {}, WithTopic("topic/b"))

	r.Clear()
	assert.Equal(t, 0, r.Len())
}

func TestRouterOption(t *testing.T) {
	r := New()
	require.NotNil(t, r.Option())
}
