package mqttsn

// WillMessage is the topic and payload a gateway publishes on behalf of a
// client it has declared lost.
type WillMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// Validate checks the will QoS and topic.
func (w *WillMessage) Validate() error {
	if !validQoS(w.QoS) {
		return ErrInvalidQoS
	}
	if SanitizeTopicName(w.Topic) == "" {
		return ErrEmptyTopic
	}
	return nil
}

// Clone returns a deep copy of the will.
func (w *WillMessage) Clone() *WillMessage {
	if w == nil {
		return nil
	}

	clone := *w
	if w.Payload != nil {
		clone.Payload = make([]byte, len(w.Payload))
		copy(clone.Payload, w.Payload)
	}
	return &clone
}
