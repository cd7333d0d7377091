package listener

// Bindings maps output identifiers to their last-known labels. It is owned
// by the protocol machine and touched only from the listening goroutine, so
// it needs no locking.
type Bindings struct {
	labels map[uint32]string
}

// NewBindings creates an empty binding cache.
func NewBindings() *Bindings {
	return &Bindings{labels: make(map[uint32]string)}
}

// Put stores the label for id. Identifier 0 is the run-name channel and is
// never stored here.
func (b *Bindings) Put(id uint32, label string) {
	if id == 0 {
		return
	}
	b.labels[id] = label
}

// Get returns the label for id and whether one is known.
func (b *Bindings) Get(id uint32) (string, bool) {
	label, ok := b.labels[id]
	return label, ok
}

// Remove forgets the label for id.
func (b *Bindings) Remove(id uint32) {
	delete(b.labels, id)
}

// Clear forgets every binding. Called on each session start so stale labels
// never leak into a new run.
func (b *Bindings) Clear() {
	clear(b.labels)
}

// Len reports the number of known bindings.
func (b *Bindings) Len() int {
	return len(b.labels)
}
