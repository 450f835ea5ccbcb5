package netconn

import (
	"context"
	"net"
	"sync"

	"github.com/HANABLI/SystemUtils/byteq"
	"github.com/HANABLI/SystemUtils/diagnostics"
	"github.com/HANABLI/SystemUtils/netio"
)

// MessageHandler is called from the worker goroutine, once per inbound
// read, with the bytes that read returned, in the order the peer sent
// them. Separate writes by the peer may arrive coalesced or split.
type MessageHandler func(data []byte)

// BrokenHandler is called exactly once per Connection, when the session
// ends for any reason. graceful is true when the peer performed an
// orderly shutdown or Close(true) fully drained the outbound queue
// before closing; it is false for abrupt closes and I/O errors.
type BrokenHandler func(graceful bool)

// session holds everything specific to one connected socket. Connect
// replaces it wholesale when recycling a Connection: the old session's
// worker (if any) tears itself down and fires its own broken delegate
// entirely independently of whatever session Connection.cur points to
// by the time it gets there, so a worker still unwinding a prior
// session can never corrupt the one that replaced it.
type session struct {
	conn net.Conn

	boundAddr uint32
	boundPort uint16
	peerAddr  uint32
	peerPort  uint16

	onMessage MessageHandler
	onBroken  BrokenHandler

	outbound byteq.Queue

	processing   bool
	peerClosed   bool
	closing      bool
	cleanClose   bool
	shutdownSent bool
	brokenFired  bool

	workerID   int64
	workerDone chan struct{}

	// wakeCh wakes the worker once the peer has half-closed its write
	// side: at that point conn.Read no longer blocks (it returns EOF
	// immediately), so the worker can no longer use SetReadDeadline to
	// wait for "Send was called" or "Close was called". wakeCh takes
	// over as the wait primitive for that phase only.
	wakeCh chan struct{}
}

// Connection is a full-duplex byte-stream session with one dedicated
// I/O worker goroutine. A zero Connection is not ready for use; build
// one with New or NewFromAcceptedSocket.
type Connection struct {
	mu   sync.Mutex
	diag *diagnostics.Bus

	// cur is the current session, or nil when the Connection is
	// detached (never connected, or its last session has fully torn
	// down). Connect and NewFromAcceptedSocket are the only writers
	// that install a new session.
	cur *session
}

// New returns a Connection ready to Connect as a client.
func New() *Connection {
	return &Connection{diag: diagnostics.New("NetworkConnection")}
}

// NewFromAcceptedSocket wraps an already-connected socket, as produced
// by accepting a TCP listener. The returned Connection publishes on its
// own bus named "NetworkConnection"; the caller must call Process to
// start the worker.
func NewFromAcceptedSocket(conn net.Conn, boundAddr uint32, boundPort uint16, peerAddr uint32, peerPort uint16) *Connection {
	return &Connection{
		diag: diagnostics.New("NetworkConnection"),
		cur: &session{
			conn:      conn,
			boundAddr: boundAddr,
			boundPort: boundPort,
			peerAddr:  peerAddr,
			peerPort:  peerPort,
			wakeCh:    make(chan struct{}, 1),
		},
	}
}

// SubscribeDiagnostics registers delegate for diagnostics this
// Connection publishes, filtered to messages at or above minLevel.
func (c *Connection) SubscribeDiagnostics(delegate diagnostics.MessageDelegate, minLevel diagnostics.Level) diagnostics.Unsubscribe {
	return c.diag.Subscribe(delegate, minLevel)
}

// ResolveHost resolves hostName to a host-order IPv4 address, or 0 on
// failure. It is a thin wrapper over netio.ResolveHost kept here so
// callers building a Connection need not import netio themselves.
func ResolveHost(hostName string) uint32 {
	return netio.ResolveHost(hostName)
}

// Connect tears down any prior session -- firing its broken delegate
// exactly once -- then opens a fresh TCP session to peerAddr:peerPort.
// It blocks until the connection succeeds or fails and does not start
// the worker goroutine; call Process afterward to begin exchanging
// data. A second Connect on an already-connected or already-processing
// Connection is equivalent to Close(false) followed by a fresh
// connect.
func (c *Connection) Connect(peerAddr uint32, peerPort uint16) bool {
	c.mu.Lock()
	old := c.cur
	c.mu.Unlock()

	if old != nil {
		c.closeSession(old, false)
	}

	pop := c.diag.PushContext(netio.JoinHostPort(peerAddr, peerPort))
	defer pop()

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(context.Background(), "tcp4", netio.JoinHostPort(peerAddr, peerPort))
	if err != nil {
		c.diag.Publish(diagnostics.LevelError, printer.Sprintf("msg.connect_failed", err))
		return false
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		// SO_LINGER{enabled, 0} on every stream socket; an explicit
		// CloseWrite still performs an orderly shutdown for the clean
		// close path, this only forces an abortive close (RST) when
		// Close(false) closes the socket without one.
		_ = tcp.SetLinger(0)
	}

	local := conn.LocalAddr().(*net.TCPAddr)

	sess := &session{
		conn:      conn,
		peerAddr:  peerAddr,
		peerPort:  peerPort,
		boundAddr: netio.FromIPv4(local.IP),
		boundPort: uint16(local.Port),
		wakeCh:    make(chan struct{}, 1),
	}

	c.mu.Lock()
	c.cur = sess
	c.mu.Unlock()

	return true
}

// Process installs the message and broken delegates and starts the
// worker goroutine. It returns false if the Connection has no
// underlying socket yet. Calling Process on a Connection that is
// already processing publishes a warning and returns true without
// disturbing the running worker.
func (c *Connection) Process(onMessage MessageHandler, onBroken BrokenHandler) bool {
	c.mu.Lock()
	sess := c.cur
	if sess == nil {
		c.mu.Unlock()
		c.diag.Publish(diagnostics.LevelError, printer.Sprintf("msg.not_connected"))
		return false
	}
	if sess.processing {
		c.mu.Unlock()
		c.diag.Publish(diagnostics.LevelWarning, printer.Sprintf("msg.already_processing"))
		return true
	}

	sess.onMessage = onMessage
	sess.onBroken = onBroken
	sess.processing = true
	sess.workerDone = make(chan struct{})
	c.mu.Unlock()

	go c.runWorker(sess)

	return true
}

// Send enqueues data for delivery. Data is appended to the outbound
// queue and picked up by the worker on its next wake; it never blocks
// the caller and never partially enqueues.
func (c *Connection) Send(data []byte) {
	if len(data) == 0 {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	c.mu.Lock()
	sess := c.cur
	if sess == nil || sess.conn == nil || sess.closing {
		c.mu.Unlock()
		return
	}
	sess.outbound.EnqueueMove(buf)
	c.mu.Unlock()

	c.wakeSession(sess)
}

// Close ends the session. When clean is true, Close waits for the
// outbound queue to drain and performs an orderly half-close before
// the socket is released; when false, the socket is closed immediately
// and any queued but unsent data is discarded.
//
// Close may be called from within a MessageHandler or BrokenHandler
// invoked by this Connection's own worker goroutine. In that case it
// cannot join the worker without deadlocking against itself, so it
// requests the close and returns without waiting for the worker to
// exit; the worker finishes tearing itself down after the callback
// returns.
func (c *Connection) Close(clean bool) {
	c.mu.Lock()
	sess := c.cur
	if sess == nil || sess.closing {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.closeSession(sess, clean)
}

// closeSession requests an end to sess's life, regardless of whether
// it is still Connection.cur by the time it finishes -- Connect uses
// this to recycle a prior session without waiting on (or racing) the
// session that is about to replace it.
func (c *Connection) closeSession(sess *session, clean bool) {
	c.mu.Lock()
	sess.closing = true
	sess.cleanClose = clean
	processing := sess.processing
	selfClose := processing && onWorkerGoroutine(sess.workerID)
	done := sess.workerDone
	c.mu.Unlock()

	if !processing {
		c.teardownSession(sess, clean)
		c.fireBrokenSession(sess, false)
		return
	}

	c.wakeSession(sess)

	if selfClose {
		return
	}

	if done != nil {
		<-done
	}
}

// IsConnected reports whether the Connection currently has a live
// socket and has not begun closing. A peer-initiated close does not
// make a Connection "not connected" -- the local side may still send
// until it closes its own end.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur != nil && c.cur.conn != nil && !c.cur.closing
}

// PeerAddress returns the remote host-order IPv4 address and port.
func (c *Connection) PeerAddress() (addr uint32, port uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return 0, 0
	}
	return c.cur.peerAddr, c.cur.peerPort
}

// BoundAddress returns the local host-order IPv4 address and port.
func (c *Connection) BoundAddress() (addr uint32, port uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return 0, 0
	}
	return c.cur.boundAddr, c.cur.boundPort
}

// wakeSession interrupts a worker blocked on sess, so it re-evaluates
// state (a pending Send, a pending Close) without waiting for the peer
// to send something first.
func (c *Connection) wakeSession(sess *session) {
	// The deadline is forced while holding the lock so it serializes
	// with the worker's observe-and-arm section; see runWorker.
	c.mu.Lock()
	wakeConn(sess.conn)
	wakeCh := sess.wakeCh
	c.mu.Unlock()
	select {
	case wakeCh <- struct{}{}:
	default:
	}
}

// teardownSession releases sess's socket and, if Connection.cur still
// points at sess (it may not, if a newer Connect already replaced it),
// clears that pointer too.
func (c *Connection) teardownSession(sess *session, clean bool) {
	c.mu.Lock()
	conn := sess.conn
	sess.conn = nil
	if !clean {
		sess.outbound = byteq.Queue{}
	}
	if c.cur == sess {
		c.cur = nil
	}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// fireBrokenSession invokes sess's broken delegate exactly once,
// regardless of which of the several call sites reaches the end of
// that session's life first.
func (c *Connection) fireBrokenSession(sess *session, graceful bool) {
	c.mu.Lock()
	if sess.brokenFired {
		c.mu.Unlock()
		return
	}
	sess.brokenFired = true
	onBroken := sess.onBroken
	c.mu.Unlock()

	if onBroken != nil {
		onBroken(graceful)
	}
}
