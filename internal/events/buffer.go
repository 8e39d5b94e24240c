package events

import "sync"

type message struct {
	Kind string
	Data []byte
}

// buffer is a mutex-guarded FIFO queue of pending messages. It decouples the
// producer from the writer so a slow broker never blocks the pipeline.
type buffer struct {
	lock     sync.Mutex
	messages []*message
}

func newBuffer() *buffer {
	return &buffer{}
}

func (b *buffer) PushBack(msg *message) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.messages = append(b.messages, msg)
	return nil
}

func (b *buffer) Pop() *message {
	b.lock.Lock()
	defer b.lock.Unlock()

	if len(b.messages) == 0 {
		return nil
	}
	msg := b.messages[0]
	b.messages = b.messages[1:]
	return msg
}

func (b *buffer) Size() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.messages)
}
