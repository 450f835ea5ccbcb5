package netconn

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/HANABLI/SystemUtils/netio"
	"github.com/stretchr/testify/require"
)

func dialPair(t *testing.T) (client, server *Connection, cleanup func()) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint16(ln.Addr().(*net.TCPAddr).Port)

	serverCh := make(chan *Connection, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverCh <- nil
			return
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetLinger(0)
		}
		local := conn.LocalAddr().(*net.TCPAddr)
		remote := conn.RemoteAddr().(*net.TCPAddr)
		serverCh <- NewFromAcceptedSocket(conn,
			netio.FromIPv4(local.IP), uint16(local.Port),
			netio.FromIPv4(remote.IP), uint16(remote.Port))
	}()

	client = New()
	require.True(t, client.Connect(netio.FromIPv4(net.ParseIP("127.0.0.1")), port))

	server = <-serverCh
	require.NotNil(t, server)

	return client, server, func() { ln.Close() }
}

func TestLoopbackEcho(t *testing.T) {
	client, server, cleanup := dialPair(t)
	defer cleanup()

	received := make(chan []byte, 1)
	require.True(t, server.Process(func(data []byte) {
		server.Send(data)
	}, func(graceful bool) {}))
	require.True(t, client.Process(func(data []byte) {
		received <- data
	}, func(graceful bool) {}))

	client.Send([]byte("hello, world"))

	select {
	case got := <-received:
		require.Equal(t, "hello, world", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}

	client.Close(false)
	server.Close(false)
}

func TestMessageOrderIsPreserved(t *testing.T) {
	client, server, cleanup := dialPair(t)
	defer cleanup()

	var mu sync.Mutex
	// The three sends may arrive coalesced into fewer reads (or split
	// into more), so the bytes are accumulated and checked as one stream.
	var got []byte
	allReceived := make(chan struct{})

	require.True(t, server.Process(func(data []byte) {}, func(graceful bool) {}))
	require.True(t, client.Process(func(data []byte) {
		mu.Lock()
		got = append(got, data...)
		if len(got) == len("onetwothree") {
			close(allReceived)
		}
		mu.Unlock()
	}, func(graceful bool) {}))

	server.Send([]byte("one"))
	server.Send([]byte("two"))
	server.Send([]byte("three"))

	select {
	case <-allReceived:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for messages")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "onetwothree", string(got))

	client.Close(false)
	server.Close(false)
}

func TestCleanCloseDrainsQueueBeforeBroken(t *testing.T) {
	client, server, cleanup := dialPair(t)
	defer cleanup()

	received := make(chan []byte, 1)
	serverBroken := make(chan bool, 1)

	require.True(t, server.Process(func(data []byte) {}, func(graceful bool) {
		serverBroken <- graceful
	}))
	require.True(t, client.Process(func(data []byte) {
		received <- data
	}, func(graceful bool) {}))

	server.Send([]byte("last message"))
	server.Close(true)

	select {
	case got := <-received:
		require.Equal(t, "last message", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pre-close message")
	}

	select {
	case graceful := <-serverBroken:
		require.True(t, graceful)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broken callback")
	}

	client.Close(false)
}

func TestPeerDataDuringCleanCloseDrainIsDelivered(t *testing.T) {
	client, server, cleanup := dialPair(t)
	defer cleanup()

	received := make(chan []byte, 1)
	require.True(t, server.Process(func(data []byte) {
		received <- data
	}, func(graceful bool) {}))

	clientBroken := make(chan bool, 1)
	require.True(t, client.Process(func(data []byte) {}, func(graceful bool) {
		clientBroken <- graceful
	}))

	closeDone := make(chan struct{})
	go func() {
		server.Close(true)
		close(closeDone)
	}()

	// The client observing graceful broken means the server's
	// half-close arrived, so the server is now waiting for the client
	// to close its own end. Send into that window.
	select {
	case graceful := <-clientBroken:
		require.True(t, graceful)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the half-close to reach the client")
	}
	client.Send([]byte("late data"))

	select {
	case got := <-received:
		require.Equal(t, "late data", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for data sent during the drain window")
	}

	client.Close(false)
	<-closeDone
}

func TestAbruptCloseFiresBrokenUngracefully(t *testing.T) {
	client, server, cleanup := dialPair(t)
	defer cleanup()

	clientBroken := make(chan bool, 1)
	require.True(t, server.Process(func(data []byte) {}, func(graceful bool) {}))
	require.True(t, client.Process(func(data []byte) {}, func(graceful bool) {
		clientBroken <- graceful
	}))

	server.Close(false)

	select {
	case graceful := <-clientBroken:
		require.False(t, graceful)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broken callback")
	}
}

func TestBrokenFiresExactlyOnce(t *testing.T) {
	client, server, cleanup := dialPair(t)
	defer cleanup()

	var fired int
	var mu sync.Mutex
	done := make(chan struct{})

	require.True(t, server.Process(func(data []byte) {}, func(graceful bool) {}))
	require.True(t, client.Process(func(data []byte) {}, func(graceful bool) {
		mu.Lock()
		fired++
		mu.Unlock()
		close(done)
	}))

	client.Close(false)
	client.Close(false) // second call must be a no-op, not a second broken

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broken callback")
	}

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, fired)
}

func TestReconnectTearsDownPriorSession(t *testing.T) {
	client, server, cleanup := dialPair(t)
	defer cleanup()

	broken := make(chan bool, 2)
	require.True(t, server.Process(func([]byte) {}, func(bool) {}))
	require.True(t, client.Process(func([]byte) {}, func(graceful bool) {
		broken <- graceful
	}))

	ln2, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln2.Close()
	go func() {
		conn, err := ln2.Accept()
		if err == nil {
			time.Sleep(500 * time.Millisecond)
			conn.Close()
		}
	}()

	port2 := uint16(ln2.Addr().(*net.TCPAddr).Port)
	require.True(t, client.Connect(netio.FromIPv4(net.ParseIP("127.0.0.1")), port2))

	select {
	case <-broken:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the prior session's broken callback")
	}
	require.True(t, client.IsConnected())

	client.Close(false)
	server.Close(false)
}

func TestIsConnectedReflectsLifecycle(t *testing.T) {
	client, server, cleanup := dialPair(t)
	defer cleanup()

	require.True(t, client.IsConnected())
	require.True(t, server.Process(func(data []byte) {}, func(graceful bool) {}))
	require.True(t, client.Process(func(data []byte) {}, func(graceful bool) {}))

	client.Close(false)
	time.Sleep(100 * time.Millisecond)
	require.False(t, client.IsConnected())
}
