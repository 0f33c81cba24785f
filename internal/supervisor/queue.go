package supervisor

// queue is the FIFO of payloads waiting for an open transport.
type queue struct {
	items []string
}

func (q *queue) push(payload string) {
	q.items = append(q.items, payload)
}

func (q *queue) front() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	return q.items[0], true
}

// pop drops the front entry. Only call after front reported one.
func (q *queue) pop() {
	q.items[0] = ""
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
}

func (q *queue) len() int {
	return len(q.items)
}

func (q *queue) snapshot() []string {
	if len(q.items) == 0 {
		return nil
	}
	out := make([]string, len(q.items))
	copy(out, q.items)
	return out
}
