package netendpoint

import (
	"context"
	"net"
	"sync"

	"github.com/HANABLI/SystemUtils/diagnostics"
	"github.com/HANABLI/SystemUtils/netconn"
	"github.com/HANABLI/SystemUtils/netio"
)

// Mode selects what an Endpoint's socket is used for.
type Mode int

const (
	// Datagram is a bound UDP socket that may both send and receive
	// unicast packets.
	Datagram Mode = iota
	// Connection is a bound, listening TCP socket that accepts
	// inbound sessions.
	Connection
	// MulticastSend is a UDP socket configured to send through a
	// chosen local interface; send-only.
	MulticastSend
	// MulticastReceive is a UDP socket that joins a multicast group
	// on every active local interface; receive-only.
	MulticastReceive
)

// NewConnectionHandler is called from the worker goroutine, once per
// accepted TCP connection, with a Connection whose worker has not yet
// been started. The owner must call Process on it to begin exchanging
// data; until then, bytes the peer sends sit in the kernel's socket
// buffer.
type NewConnectionHandler func(conn *netconn.Connection)

// PacketHandler is called from the worker goroutine, once per received
// datagram, with the sender's host-order IPv4 address, port, and body.
type PacketHandler func(peerAddr uint32, peerPort uint16, body []byte)

type outboundPacket struct {
	addr uint32
	port uint16
	body []byte
}

// Endpoint is a single bound socket operated in one of the Modes
// above. A zero Endpoint is not ready for use; construct one with New.
type Endpoint struct {
	mu   sync.Mutex
	diag *diagnostics.Bus

	mode Mode

	conn      net.PacketConn // Datagram, MulticastSend, MulticastReceive
	ln        net.Listener   // Connection
	groupAddr uint32

	boundAddr uint32
	boundPort uint16

	onNewConnection NewConnectionHandler
	onPacket        PacketHandler

	outbound []outboundPacket

	processing bool
	closing    bool

	workerID   int64
	workerDone chan struct{}
}

// New returns an Endpoint ready to Open.
func New() *Endpoint {
	return &Endpoint{diag: diagnostics.New("NetworkEndPoint")}
}

// SubscribeDiagnostics registers delegate for diagnostics this Endpoint
// publishes, filtered to messages at or above minLevel.
func (e *Endpoint) SubscribeDiagnostics(delegate diagnostics.MessageDelegate, minLevel diagnostics.Level) diagnostics.Unsubscribe {
	return e.diag.Subscribe(delegate, minLevel)
}

// BoundPort returns the locally bound port. For MulticastReceive this
// is the multicast group's port, not an ephemeral port read back from
// the socket -- the stored field is never overwritten in that mode.
func (e *Endpoint) BoundPort() uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.boundPort
}

// BoundAddress returns the locally bound host-order IPv4 address.
func (e *Endpoint) BoundAddress() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.boundAddr
}

// Open closes any prior session and binds a new socket for mode.
// localAddr/localPort select the bind address (0 means ANY / ephemeral
// respectively); groupAddr is the multicast group for MulticastSend
// and MulticastReceive and is ignored otherwise. It returns false, with
// a preceding ERROR diagnostic, on any failure.
func (e *Endpoint) Open(mode Mode, localAddr uint32, localPort uint16, groupAddr uint32) bool {
	e.Close(false)

	e.mu.Lock()
	e.closing = false
	e.processing = false
	e.outbound = nil
	e.workerDone = nil
	e.mu.Unlock()

	pop := e.diag.PushContext(netio.JoinHostPort(localAddr, localPort))
	defer pop()

	switch mode {
	case Connection:
		return e.openConnection(localAddr, localPort)
	case Datagram:
		return e.openDatagram(localAddr, localPort)
	case MulticastSend:
		return e.openMulticastSend(localAddr, localPort, groupAddr)
	case MulticastReceive:
		return e.openMulticastReceive(localAddr, localPort, groupAddr)
	default:
		e.diag.Publish(diagnostics.LevelError, "unknown endpoint mode")
		return false
	}
}

func (e *Endpoint) openConnection(localAddr uint32, localPort uint16) bool {
	ln, err := net.Listen("tcp4", netio.JoinHostPort(localAddr, localPort))
	if err != nil {
		e.diag.Publish(diagnostics.LevelError, printer.Sprintf("msg.listen_failed", err))
		return false
	}
	local := ln.Addr().(*net.TCPAddr)

	e.mu.Lock()
	e.mode = Connection
	e.ln = ln
	e.boundAddr = netio.FromIPv4(local.IP)
	e.boundPort = uint16(local.Port)
	e.mu.Unlock()

	return true
}

func (e *Endpoint) openDatagram(localAddr uint32, localPort uint16) bool {
	conn, err := net.ListenPacket("udp4", netio.JoinHostPort(localAddr, localPort))
	if err != nil {
		e.diag.Publish(diagnostics.LevelError, printer.Sprintf("msg.bind_failed", err))
		return false
	}
	local := conn.LocalAddr().(*net.UDPAddr)

	e.mu.Lock()
	e.mode = Datagram
	e.conn = conn
	e.boundAddr = netio.FromIPv4(local.IP)
	e.boundPort = uint16(local.Port)
	e.mu.Unlock()

	return true
}

func (e *Endpoint) openMulticastSend(localAddr uint32, localPort uint16, groupAddr uint32) bool {
	conn, err := net.ListenPacket("udp4", netio.JoinHostPort(localAddr, localPort))
	if err != nil {
		e.diag.Publish(diagnostics.LevelError, printer.Sprintf("msg.bind_failed", err))
		return false
	}

	ifaces := netio.ActiveInterfaces()
	if len(ifaces) > 0 {
		pc := ipv4PacketConn(conn)
		if err := pc.SetMulticastInterface(&ifaces[0]); err != nil {
			// REDESIGN: the original closed the socket and returned
			// false even when this call succeeded. Only fail here on
			// an actual error; a successful call leaves the socket
			// open, which is the corrected behavior.
			e.diag.Publish(diagnostics.LevelError, printer.Sprintf("msg.multicast_if_failed", err))
			conn.Close()
			return false
		}
	}

	local := conn.LocalAddr().(*net.UDPAddr)

	e.mu.Lock()
	e.mode = MulticastSend
	e.conn = conn
	e.groupAddr = groupAddr
	e.boundAddr = netio.FromIPv4(local.IP)
	e.boundPort = uint16(local.Port)
	e.mu.Unlock()

	return true
}

func (e *Endpoint) openMulticastReceive(localAddr uint32, localPort uint16, groupAddr uint32) bool {
	lc := net.ListenConfig{Control: netio.ReuseAddrControl}
	pconn, err := lc.ListenPacket(context.Background(), "udp4", netio.JoinHostPort(localAddr, localPort))
	if err != nil {
		e.diag.Publish(diagnostics.LevelError, printer.Sprintf("msg.bind_failed", err))
		return false
	}

	pc := ipv4PacketConn(pconn)
	group := &net.UDPAddr{IP: netio.ToIPv4(groupAddr)}
	ifaces := netio.ActiveInterfaces()
	for i := range ifaces {
		if err := pc.JoinGroup(&ifaces[i], group); err != nil {
			e.diag.Publish(diagnostics.LevelWarning, printer.Sprintf("msg.join_group_failed", ifaces[i].Name, err))
		}
	}

	e.mu.Lock()
	e.mode = MulticastReceive
	e.conn = pconn
	e.groupAddr = groupAddr
	e.boundAddr = localAddr
	// Per design: the bound-port field reflects the multicast port
	// passed in, never an ephemeral read-back, for this mode.
	e.boundPort = localPort
	e.mu.Unlock()

	return true
}

// Process installs the delegates and starts the worker goroutine. For
// Connection mode, packetHandler is ignored; for the datagram modes,
// connHandler is ignored. Returns false if Open has not succeeded yet
// or the Endpoint is already processing.
func (e *Endpoint) Process(connHandler NewConnectionHandler, packetHandler PacketHandler) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ln == nil && e.conn == nil {
		e.diag.Publish(diagnostics.LevelError, printer.Sprintf("msg.not_open"))
		return false
	}
	if e.processing {
		e.diag.Publish(diagnostics.LevelError, printer.Sprintf("msg.already_processing"))
		return false
	}

	e.onNewConnection = connHandler
	e.onPacket = packetHandler
	e.processing = true
	e.workerDone = make(chan struct{})

	go e.runWorker()

	return true
}

// SendPacket enqueues a UDP datagram for delivery to addr:port. Valid
// only for Datagram and MulticastSend modes; a no-op otherwise.
func (e *Endpoint) SendPacket(addr uint32, port uint16, body []byte) {
	if len(body) == 0 {
		return
	}
	buf := make([]byte, len(body))
	copy(buf, body)

	e.mu.Lock()
	if e.conn == nil || e.closing || (e.mode != Datagram && e.mode != MulticastSend) {
		e.mu.Unlock()
		return
	}
	e.outbound = append(e.outbound, outboundPacket{addr: addr, port: port, body: buf})
	e.mu.Unlock()

	e.wake()
}

// Close ends the session. Queued but unsent datagrams are discarded;
// Endpoint has no drain-then-close mode of its own since datagrams
// have no ordering guarantee across a close boundary.
//
// Close may be called from within a NewConnectionHandler or
// PacketHandler invoked by this Endpoint's own worker goroutine; in
// that case it requests the close and returns without waiting for the
// worker to exit, which finishes tearing down after the callback
// returns.
func (e *Endpoint) Close(_ bool) {
	e.mu.Lock()
	if (e.ln == nil && e.conn == nil) || e.closing {
		e.mu.Unlock()
		return
	}
	e.closing = true
	processing := e.processing
	selfClose := processing && e.workerID >= 0 && netio.GoroutineID() == e.workerID
	done := e.workerDone
	e.mu.Unlock()

	if !processing {
		e.teardown()
		return
	}

	e.wake()

	if selfClose {
		return
	}

	if done != nil {
		<-done
	}
}

func (e *Endpoint) teardown() {
	e.mu.Lock()
	ln := e.ln
	conn := e.conn
	e.ln = nil
	e.conn = nil
	e.outbound = nil
	e.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
}
