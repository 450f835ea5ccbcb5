package netconn

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/HANABLI/SystemUtils/diagnostics"
	"github.com/HANABLI/SystemUtils/netio"
)

// farFuture is used as a read deadline that never legitimately fires;
// only an explicit wake (SetReadDeadline(time.Now())) interrupts a
// worker blocked on Read.
var farFuture = time.Now().Add(365 * 24 * time.Hour)

// drainPoll is how often a worker draining a clean close re-checks
// whether the outbound queue has emptied, and how often a worker whose
// peer already closed re-checks for a pending Send or Close it might
// have missed a wake for.
const drainPoll = 50 * time.Millisecond

// wakeConn interrupts a worker currently blocked in conn.Read by
// forcing an immediate read deadline. The worker treats the resulting
// timeout as "re-check state", not as an error, so it does not matter
// whether the wake was for a pending Send, a pending Close, or both.
func wakeConn(conn net.Conn) {
	if conn == nil {
		return
	}
	_ = conn.SetReadDeadline(time.Now())
}

// onWorkerGoroutine reports whether the calling goroutine is the
// worker goroutine identified by id.
func onWorkerGoroutine(id int64) bool {
	return id >= 0 && netio.GoroutineID() == id
}

// trace publishes a worker breadcrumb at the floor level, skipping the
// formatting entirely unless someone actually subscribed down there.
func (c *Connection) trace(message string) {
	if c.diag.MinLevel() == diagnostics.LevelFloor {
		c.diag.Publish(diagnostics.LevelFloor, message)
	}
}

// runWorker is the single dedicated I/O goroutine for one session. It
// alternates between reading whatever the peer has sent and flushing
// whatever the owner has queued for send, until the session ends. The
// sess argument keeps the session state reachable for as long as the
// goroutine runs, even after a recycling Connect has pointed the
// owning Connection at a newer session.
func (c *Connection) runWorker(sess *session) {
	c.mu.Lock()
	sess.workerID = netio.GoroutineID()
	done := sess.workerDone
	c.mu.Unlock()

	defer func() {
		if done != nil {
			close(done)
		}
	}()

	buf := make([]byte, netio.MaxReadSize)

	for {
		c.mu.Lock()
		conn := sess.conn
		closing := sess.closing
		cleanClose := sess.cleanClose
		c.mu.Unlock()

		if conn == nil {
			c.fireBrokenSession(sess, false)
			return
		}

		// An abrupt close discards whatever is still queued rather
		// than flushing it; a clean close keeps flushing until the
		// queue is empty.
		if !closing || cleanClose {
			if !c.flushOutbound(sess) {
				return
			}
		}

		// Observing state and arming the long read deadline happen
		// under one lock acquisition: a Send or Close that slips in
		// after this section finds the deadline already armed, so its
		// wake (an immediate deadline) cannot be overwritten and lost.
		c.mu.Lock()
		closing = sess.closing
		cleanClose = sess.cleanClose
		peerClosed := sess.peerClosed
		queued := sess.outbound.Bytes()
		armed := !closing && !peerClosed && queued == 0 && sess.conn != nil
		if armed {
			_ = sess.conn.SetReadDeadline(farFuture)
		}
		c.mu.Unlock()

		if closing && (!cleanClose || queued == 0) {
			c.finishClose(sess)
			return
		}

		if peerClosed {
			// conn.Read returns EOF immediately from here on, so it
			// can no longer serve as the wait primitive: block on
			// wakeCh instead until Send or Close wakes us, with a
			// poll interval as a backstop.
			c.trace("going to sleep")
			select {
			case <-sess.wakeCh:
			case <-time.After(drainPoll):
			}
			c.trace("woke up")
			continue
		}

		if !armed {
			if !closing {
				// A Send raced in after the flush above; flush again
				// before blocking on the peer.
				continue
			}
			// Still draining a clean close: keep waking promptly so we
			// notice the drain finishing without waiting on the peer.
			_ = conn.SetReadDeadline(time.Now().Add(drainPoll))
		}

		c.trace("trying to read")
		n, err := conn.Read(buf)
		if n > 0 {
			c.mu.Lock()
			onMessage := sess.onMessage
			c.mu.Unlock()
			if onMessage != nil {
				onMessage(append([]byte(nil), buf[:n]...))
			}
		}
		if err == nil {
			continue
		}

		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			// Either an explicit wake or the drain poll interval; loop
			// around and re-evaluate state fresh.
			continue
		}
		if errors.Is(err, io.EOF) {
			// A peer-initiated close fires broken(graceful=true)
			// immediately but does not tear the session down: the
			// local side may still send until it closes its own end.
			c.diag.Publish(diagnostics.LevelWarning, printer.Sprintf("msg.peer_closed_gracefully"))
			c.mu.Lock()
			sess.peerClosed = true
			c.mu.Unlock()
			c.fireBrokenSession(sess, true)
			continue
		}

		c.diag.Publish(diagnostics.LevelError, printer.Sprintf("msg.peer_closed_abruptly"))
		c.abortClose(sess)
		return
	}
}

// flushOutbound writes as much of the outbound queue as the socket
// will currently accept, one write at a time, respecting the order
// data was enqueued. It returns false when an unrecoverable write
// error ended the session.
func (c *Connection) flushOutbound(sess *session) bool {
	for {
		c.mu.Lock()
		chunk := sess.outbound.Peek(netio.MaxWriteSize)
		conn := sess.conn
		c.mu.Unlock()

		if len(chunk) == 0 || conn == nil {
			return true
		}

		c.trace("trying to write")
		n, err := conn.Write(chunk)
		if n > 0 {
			c.mu.Lock()
			sess.outbound.Drop(n)
			c.mu.Unlock()
		}
		if err != nil {
			c.diag.Publish(diagnostics.LevelError, printer.Sprintf("msg.send_failed", err))
			c.abortClose(sess)
			return false
		}
		if n == 0 {
			// The underlying write reported success with zero bytes
			// written. The original implementation this is grounded on
			// treats that as an unrecoverable condition rather than
			// retrying indefinitely; preserved here rather than
			// "fixed", since callers may depend on the resulting
			// broken callback.
			c.diag.Publish(diagnostics.LevelError, printer.Sprintf("msg.send_returned_zero"))
			c.abortClose(sess)
			return false
		}
	}
}

// finishClose performs the orderly or abrupt teardown requested by
// Close, once the outbound queue (for a clean close) has drained.
func (c *Connection) finishClose(sess *session) {
	c.mu.Lock()
	conn := sess.conn
	clean := sess.cleanClose
	peerClosed := sess.peerClosed
	c.mu.Unlock()

	if clean && conn != nil {
		c.diag.Publish(diagnostics.LevelFloor, printer.Sprintf("msg.closing"))
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.CloseWrite()
			c.mu.Lock()
			sess.shutdownSent = true
			c.mu.Unlock()
			if !peerClosed {
				c.readUntilPeerCloses(sess, conn)
			}
		}
	}

	c.teardownSession(sess, clean)
	c.diag.Publish(diagnostics.LevelFloor, printer.Sprintf("msg.closed"))
	c.fireBrokenSession(sess, clean)
}

// readUntilPeerCloses waits for the peer to acknowledge a half-close
// before the socket is released, without blocking indefinitely if the
// peer never responds. The read step stays live through the wait:
// bytes the peer sends before closing its own end are still delivered
// to the message delegate, in order, exactly as in the main loop.
func (c *Connection) readUntilPeerCloses(sess *session, conn net.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, netio.MaxReadSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			c.mu.Lock()
			onMessage := sess.onMessage
			c.mu.Unlock()
			if onMessage != nil {
				onMessage(append([]byte(nil), buf[:n]...))
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.mu.Lock()
				sess.peerClosed = true
				c.mu.Unlock()
			}
			return
		}
	}
}

// abortClose closes the socket immediately after an unrecoverable I/O
// error, discarding anything still queued.
func (c *Connection) abortClose(sess *session) {
	c.teardownSession(sess, false)
	c.fireBrokenSession(sess, false)
}
