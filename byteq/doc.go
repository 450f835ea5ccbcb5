// Package byteq implements a FIFO queue of byte segments with
// partial-consumption bookkeeping. It backs the outbound side of
// Connection: data handed to Send is enqueued here and drained by the
// worker as the socket becomes writable. Endpoint keeps its outbound
// datagrams in a list of its own.
//
// Queue chooses at most one of two paths on every Dequeue: if the head
// segment is wholly unconsumed and exactly matches the requested
// length, it is handed out by move (no copy); otherwise bytes are
// copied out of however many head segments are needed. Peek always
// copies, so the returned slice never aliases bytes still queued.
package byteq
