package l2scans

// Entry is one accumulated return: position plus semantic label.
type Entry struct {
	X, Y, Z float32
	Label   int32
}

// ChannelRingBuffer keeps the most recent Cap() entries appended to one
// channel, in arrival order. Appending past capacity overwrites the oldest
// entry, so after any number of appends the buffer holds exactly the last
// min(Total(), Cap()) entries.
type ChannelRingBuffer struct {
	buf   []Entry
	head  int // index of the oldest entry once the buffer has wrapped
	total int // entries ever appended
}

// NewChannelRingBuffer allocates a buffer holding capacity entries.
func NewChannelRingBuffer(capacity int) *ChannelRingBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &ChannelRingBuffer{buf: make([]Entry, 0, capacity)}
}

// Append adds e as the newest entry.
func (r *ChannelRingBuffer) Append(e Entry) {
	r.total++
	if cap(r.buf) == 0 {
		return
	}
	if len(r.buf) < cap(r.buf) {
		r.buf = append(r.buf, e)
		return
	}
	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
}

// Len returns the number of entries currently retained.
func (r *ChannelRingBuffer) Len() int { return len(r.buf) }

// Cap returns the retention capacity.
func (r *ChannelRingBuffer) Cap() int { return cap(r.buf) }

// Total returns the number of entries ever appended, including dropped ones.
func (r *ChannelRingBuffer) Total() int { return r.total }

// Dropped returns how many of the oldest entries were overwritten.
func (r *ChannelRingBuffer) Dropped() int { return r.total - len(r.buf) }

// Do calls fn for each retained entry from oldest to newest.
func (r *ChannelRingBuffer) Do(fn func(Entry)) {
	n := len(r.buf)
	for i := 0; i < n; i++ {
		fn(r.buf[(r.head+i)%n])
	}
}

// Entries returns a copy of the retained entries from oldest to newest.
func (r *ChannelRingBuffer) Entries() []Entry {
	out := make([]Entry, 0, len(r.buf))
	r.Do(func(e Entry) { out = append(out, e) })
	return out
}
