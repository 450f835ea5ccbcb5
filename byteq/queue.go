package byteq

// segment is one contiguous buffer held in the queue, along with the
// number of bytes already consumed from its front.
type segment struct {
	data     []byte
	consumed int
}

// Queue is an ordered sequence of segments plus a cached byte count.
// The zero value is a ready-to-use, empty queue.
type Queue struct {
	segments []segment
	total    int
}

// Enqueue copies data onto the end of the queue.
func (q *Queue) Enqueue(data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	q.EnqueueMove(cp)
}

// EnqueueMove takes ownership of data and appends it onto the end of
// the queue without copying. The caller must not mutate data
// afterward.
func (q *Queue) EnqueueMove(data []byte) {
	q.segments = append(q.segments, segment{data: data})
	q.total += len(data)
}

// Dequeue removes and returns up to numBytes from the front of the
// queue. Fewer bytes are returned if the queue holds fewer.
func (q *Queue) Dequeue(numBytes int) []byte {
	return q.take(numBytes, true, true)
}

// Peek returns up to numBytes from the front of the queue without
// removing them. Calling Peek twice with the same argument and no
// intervening mutation returns identical bytes.
func (q *Queue) Peek(numBytes int) []byte {
	return q.take(numBytes, true, false)
}

// Drop removes up to numBytes from the front of the queue, discarding
// them.
func (q *Queue) Drop(numBytes int) {
	q.take(numBytes, false, true)
}

// Segments returns the number of distinct buffers currently held. It
// exists for tests: the internal organization of segments is otherwise
// not part of the contract.
func (q *Queue) Segments() int { return len(q.segments) }

// Bytes returns the total number of bytes currently queued, which is
// always the exact sum of each segment's unconsumed length.
func (q *Queue) Bytes() int { return q.total }

// take implements the single algorithm behind Dequeue/Peek/Drop: walk
// segments from the head, consuming up to numBytes, optionally
// collecting the bytes seen and optionally removing what was consumed.
//
// The whole-segment fast path fires only when data is being removed,
// the head segment is entirely unconsumed, and its length exactly
// matches what's being requested (capped at the total queue length):
// the segment's backing array is handed out directly instead of
// copied. Peek never takes it -- a peeked slice must not alias bytes
// the queue still owns, or a caller writing to it would corrupt what
// a later Peek or Dequeue returns.
func (q *Queue) take(numBytes int, returnData, removeData bool) []byte {
	remaining := numBytes
	if remaining > q.total {
		remaining = q.total
	}
	var out []byte
	consumedHead := 0
	for remaining > 0 {
		head := &q.segments[consumedHead]
		if removeData && head.consumed == 0 && len(head.data) == remaining && len(out) == 0 {
			if returnData {
				out = head.data
			}
			q.segments = append(q.segments[:consumedHead], q.segments[consumedHead+1:]...)
			q.total -= remaining
			remaining = 0
			break
		}
		available := len(head.data) - head.consumed
		take := remaining
		if take > available {
			take = available
		}
		if returnData {
			out = append(out, head.data[head.consumed:head.consumed+take]...)
		}
		remaining -= take
		if removeData {
			head.consumed += take
			q.total -= take
			if head.consumed >= len(head.data) {
				q.segments = append(q.segments[:consumedHead], q.segments[consumedHead+1:]...)
			}
		} else {
			if head.consumed+take >= len(head.data) {
				consumedHead++
			}
		}
	}
	if out == nil {
		return []byte{}
	}
	return out
}
