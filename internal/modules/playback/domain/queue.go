package domain

// RequestQueue is a FIFO of pending playback requests for one destination.
// It is not safe for concurrent use; the registry guards it.
type RequestQueue struct {
	items []*PlaybackRequest
}

// Push appends a request to the tail.
func (q *RequestQueue) Push(r *PlaybackRequest) {
	q.items = append(q.items, r)
}

// Pop removes and returns the head, or nil if the queue is empty.
func (q *RequestQueue) Pop() *PlaybackRequest {
	if len(q.items) == 0 {
		return nil
	}
	head := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return head
}

// Len returns the number of pending requests.
func (q *RequestQueue) Len() int {
	return len(q.items)
}

// IsEmpty reports whether no requests are pending.
func (q *RequestQueue) IsEmpty() bool {
	return len(q.items) == 0
}

// Snapshot returns a copy of the pending requests in order.
func (q *RequestQueue) Snapshot() []PlaybackRequest {
	out := make([]PlaybackRequest, len(q.items))
	for i, r := range q.items {
		out[i] = *r
	}
	return out
}
