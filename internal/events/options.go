package events

type ProducerOptions func(e *EventProducer)

// WithOutputTopic overrides the topic the producer publishes to.
func WithOutputTopic(topic string) ProducerOptions {
	return func(e *EventProducer) {
		e.topic = topic
	}
}

// WithEventSource overrides the cloudevents source attribute stamped on
// every outgoing event.
func WithEventSource(source string) ProducerOptions {
	return func(e *EventProducer) {
		e.source = source
	}
}
