package events

import (
	"bytes"
	"context"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("producer", Ordered, func() {
	Context("write", func() {
		It("delivers buffered events to the writer", func() {
			w := newTestWriter()
			ep := NewEventProducer(w)

			err := ep.Write(context.TODO(), RunCompletedMessageKind, bytes.NewReader([]byte(`{"run_id":"r1"}`)))
			Expect(err).To(BeNil())

			err = ep.Write(context.TODO(), RunFailureMessageKind, bytes.NewReader([]byte(`{"run_id":"r1"}`)))
			Expect(err).To(BeNil())

			Eventually(w.Count, "2s", "10ms").Should(Equal(2))

			events := w.Events()
			Expect(events[0].Type()).To(Equal(RunCompletedMessageKind))
			Expect(events[0].Source()).To(Equal("dataforge.ingest"))
			Expect(events[0].Data()).To(Equal([]byte(`{"run_id":"r1"}`)))
			Expect(events[1].Type()).To(Equal(RunFailureMessageKind))

			Expect(ep.Close()).To(BeNil())
		})

		It("writes to the configured topic", func() {
			w := newTestWriter()
			ep := NewEventProducer(w, WithOutputTopic("custom.topic"))

			err := ep.Write(context.TODO(), RunCompletedMessageKind, bytes.NewReader([]byte("msg")))
			Expect(err).To(BeNil())

			Eventually(w.Count, "2s", "10ms").Should(Equal(1))
			Expect(w.Topics()[0]).To(Equal("custom.topic"))

			Expect(ep.Close()).To(BeNil())
		})

		It("closes cleanly with an empty buffer", func() {
			w := newTestWriter()
			ep := NewEventProducer(w)

			// give the consumer loop a chance to park on the empty buffer
			<-time.After(50 * time.Millisecond)
			Expect(ep.Close()).To(BeNil())
		})
	})
})

type testwriter struct {
	lock   sync.Mutex
	events []cloudevents.Event
	topics []string
}

func newTestWriter() *testwriter {
	return &testwriter{}
}

func (t *testwriter) Write(ctx context.Context, topic string, e cloudevents.Event) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.events = append(t.events, e)
	t.topics = append(t.topics, topic)
	return nil
}

func (t *testwriter) Close(_ context.Context) error {
	return nil
}

func (t *testwriter) Count() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.events)
}

func (t *testwriter) Events() []cloudevents.Event {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]cloudevents.Event(nil), t.events...)
}

func (t *testwriter) Topics() []string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]string(nil), t.topics...)
}
