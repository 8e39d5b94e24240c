package events

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("buffer", Ordered, func() {
	Context("buffer", func() {
		It("add successfully", func() {
			buffer := newBuffer()

			err := buffer.PushBack(&message{Kind: RunCompletedMessageKind, Data: []byte("msg1")})
			Expect(err).To(BeNil())
			Expect(buffer.Size()).To(Equal(1))

			err = buffer.PushBack(&message{Kind: RunCompletedMessageKind, Data: []byte("msg2")})
			Expect(err).To(BeNil())
			Expect(buffer.Size()).To(Equal(2))

			err = buffer.PushBack(&message{Kind: RunFailureMessageKind, Data: []byte("msg3")})
			Expect(err).To(BeNil())
			Expect(buffer.Size()).To(Equal(3))
		})

		It("pop in insertion order", func() {
			buffer := newBuffer()

			for _, data := range [][]byte{[]byte("msg1"), []byte("msg2"), []byte("msg3")} {
				err := buffer.PushBack(&message{Kind: RunCompletedMessageKind, Data: data})
				Expect(err).To(BeNil())
			}
			Expect(buffer.Size()).To(Equal(3))

			m := buffer.Pop()
			Expect(m).NotTo(BeNil())
			Expect(m.Data).To(Equal([]byte("msg1")))
			Expect(buffer.Size()).To(Equal(2))

			m = buffer.Pop()
			Expect(m).NotTo(BeNil())
			Expect(m.Data).To(Equal([]byte("msg2")))

			m = buffer.Pop()
			Expect(m).NotTo(BeNil())
			Expect(m.Data).To(Equal([]byte("msg3")))
			Expect(buffer.Size()).To(Equal(0))

			// empty buffer
			m = buffer.Pop()
			Expect(m).To(BeNil())
		})
	})
})
