package events

// Buffer holds events until the surrounding state transition settles. Flush
// hands them to the downstream emitter in emission order; Discard drops them
// when the transition is rolled back.
type Buffer struct {
	pending []Event
}

func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.pending = append(b.pending, evt)
}

// Len reports how many events are waiting.
func (b *Buffer) Len() int { return len(b.pending) }

func (b *Buffer) Flush(to Emitter) {
	pending := b.pending
	b.pending = nil
	if to == nil {
		return
	}
	for _, evt := range pending {
		to.Emit(evt)
	}
}

func (b *Buffer) Discard() {
	b.pending = nil
}
