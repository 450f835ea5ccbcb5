package netendpoint

import (
	"errors"
	"net"
	"time"

	"github.com/HANABLI/SystemUtils/diagnostics"
	"github.com/HANABLI/SystemUtils/netconn"
	"github.com/HANABLI/SystemUtils/netio"
)

var farFuture = time.Now().Add(365 * 24 * time.Hour)

// wake interrupts a worker blocked in Accept or ReadFrom so it
// re-checks state (a queued packet, a pending Close) without waiting
// on the network first.
func (e *Endpoint) wake() {
	// The deadlines are forced while holding the lock so they
	// serialize with the worker's observe-and-arm sections; a wake can
	// then never be overwritten by a stale long deadline.
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if tl, ok := e.ln.(*net.TCPListener); ok {
		_ = tl.SetDeadline(now)
	}
	if e.conn != nil {
		_ = e.conn.SetReadDeadline(now)
	}
}

// trace publishes a worker breadcrumb at the floor level, skipping the
// formatting entirely unless someone actually subscribed down there.
func (e *Endpoint) trace(message string) {
	if e.diag.MinLevel() == diagnostics.LevelFloor {
		e.diag.Publish(diagnostics.LevelFloor, message)
	}
}

func (e *Endpoint) runWorker() {
	e.mu.Lock()
	e.workerID = netio.GoroutineID()
	mode := e.mode
	done := e.workerDone
	e.mu.Unlock()

	defer close(done)

	switch mode {
	case Connection:
		e.runAcceptLoop()
	default:
		e.runDatagramLoop()
	}

	e.teardown()
}

func (e *Endpoint) runAcceptLoop() {
	for {
		e.mu.Lock()
		closing := e.closing
		ln := e.ln
		if !closing {
			if tl, ok := ln.(*net.TCPListener); ok {
				_ = tl.SetDeadline(farFuture)
			}
		}
		e.mu.Unlock()
		if closing {
			return
		}

		e.trace("trying to accept")
		conn, err := ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			e.mu.Lock()
			closing = e.closing
			e.mu.Unlock()
			if closing {
				return
			}
			e.diag.Publish(diagnostics.LevelWarning, printer.Sprintf("msg.accept_failed", err))
			continue
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetLinger(0)
		}

		local := conn.LocalAddr().(*net.TCPAddr)
		remote := conn.RemoteAddr().(*net.TCPAddr)
		accepted := netconn.NewFromAcceptedSocket(conn,
			netio.FromIPv4(local.IP), uint16(local.Port),
			netio.FromIPv4(remote.IP), uint16(remote.Port))

		e.mu.Lock()
		handler := e.onNewConnection
		e.mu.Unlock()
		if handler != nil {
			handler(accepted)
		}
	}
}

func (e *Endpoint) runDatagramLoop() {
	buf := make([]byte, netio.MaxReadSize)

	for {
		e.flushOutbound()

		e.mu.Lock()
		closing := e.closing
		conn := e.conn
		queued := len(e.outbound)
		if !closing && queued == 0 && conn != nil {
			_ = conn.SetReadDeadline(farFuture)
		}
		e.mu.Unlock()
		if closing {
			return
		}
		if queued > 0 {
			// A SendPacket raced in after the flush; flush again before
			// blocking on the network.
			continue
		}

		e.trace("trying to read")
		n, peer, err := conn.ReadFrom(buf)
		if n > 0 {
			udp := peer.(*net.UDPAddr)
			e.mu.Lock()
			handler := e.onPacket
			e.mu.Unlock()
			if handler != nil {
				handler(netio.FromIPv4(udp.IP), uint16(udp.Port), append([]byte(nil), buf[:n]...))
			}
		}
		if err == nil {
			continue
		}

		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			continue
		}

		e.mu.Lock()
		closing = e.closing
		e.mu.Unlock()
		if closing {
			return
		}

		e.diag.Publish(diagnostics.LevelError, printer.Sprintf("msg.recv_failed", err))
		e.mu.Lock()
		e.closing = true
		e.mu.Unlock()
		return
	}
}

// flushOutbound sends every currently queued datagram, in enqueue
// order, and sends nothing once Close has been requested. An
// unrecoverable send error publishes ERROR and closes the Endpoint,
// matching the worker's recv failure handling.
func (e *Endpoint) flushOutbound() {
	for {
		e.mu.Lock()
		if len(e.outbound) == 0 || e.closing {
			e.mu.Unlock()
			return
		}
		pkt := e.outbound[0]
		conn := e.conn
		e.mu.Unlock()

		if conn == nil {
			return
		}

		e.trace("trying to write")
		dst := &net.UDPAddr{IP: netio.ToIPv4(pkt.addr), Port: int(pkt.port)}
		_, err := conn.WriteTo(pkt.body, dst)

		e.mu.Lock()
		if len(e.outbound) > 0 {
			e.outbound = e.outbound[1:]
		}
		e.mu.Unlock()

		if err != nil {
			e.diag.Publish(diagnostics.LevelError, printer.Sprintf("msg.send_failed", err))
			e.mu.Lock()
			e.closing = true
			e.mu.Unlock()
			return
		}
	}
}
