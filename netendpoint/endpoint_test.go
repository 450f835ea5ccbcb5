package netendpoint

import (
	"net"
	"testing"
	"time"

	"github.com/HANABLI/SystemUtils/netconn"
	"github.com/HANABLI/SystemUtils/netio"
	"github.com/stretchr/testify/require"
)

func TestLoopbackEchoThroughEndpoint(t *testing.T) {
	ep := New()
	require.True(t, ep.Open(Connection, 0, 0, 0))
	defer ep.Close(false)

	accepted := make(chan *netconn.Connection, 1)
	require.True(t, ep.Process(func(conn *netconn.Connection) {
		accepted <- conn
	}, nil))

	client := netconn.New()
	require.True(t, client.Connect(netio.FromIPv4(net.ParseIP("127.0.0.1")), ep.BoundPort()))

	received := make(chan []byte, 1)
	require.True(t, client.Process(func(data []byte) {
		received <- data
	}, func(graceful bool) {}))

	var server *netconn.Connection
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
	require.True(t, server.Process(func(data []byte) {
		server.Send(data)
	}, func(graceful bool) {}))

	client.Send([]byte("Hello, World!"))

	select {
	case got := <-received:
		require.Equal(t, "Hello, World!", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}

	client.Close(false)
	server.Close(false)
}

func TestServerPushToClient(t *testing.T) {
	ep := New()
	require.True(t, ep.Open(Connection, 0, 0, 0))
	defer ep.Close(false)

	accepted := make(chan *netconn.Connection, 1)
	require.True(t, ep.Process(func(conn *netconn.Connection) {
		accepted <- conn
	}, nil))

	client := netconn.New()
	require.True(t, client.Connect(netio.FromIPv4(net.ParseIP("127.0.0.1")), ep.BoundPort()))

	received := make(chan []byte, 1)
	require.True(t, client.Process(func(data []byte) {
		received <- data
	}, func(graceful bool) {}))

	server := <-accepted
	require.True(t, server.Process(func(data []byte) {}, func(graceful bool) {}))

	server.Send([]byte("Hello, World"))

	select {
	case got := <-received:
		require.Equal(t, "Hello, World", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push")
	}

	client.Close(false)
	server.Close(false)
}

func TestDatagramLoopback(t *testing.T) {
	ep := New()
	require.True(t, ep.Open(Datagram, 0, 0, 0))
	defer ep.Close(false)

	received := make(chan struct {
		addr uint32
		port uint16
		body []byte
	}, 1)
	require.True(t, ep.Process(nil, func(peerAddr uint32, peerPort uint16, body []byte) {
		received <- struct {
			addr uint32
			port uint16
			body []byte
		}{peerAddr, peerPort, body}
	}))

	foreign, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer foreign.Close()

	dst := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(ep.BoundPort())}
	_, err = foreign.WriteTo([]byte{0x12, 0x34, 0x56, 0x78}, dst)
	require.NoError(t, err)

	select {
	case got := <-received:
		require.Equal(t, []byte{0x12, 0x34, 0x56, 0x78}, got.body)
		require.Equal(t, uint32(0x7F000001), got.addr)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}

func TestDatagramSendCarriesBoundPortAsSource(t *testing.T) {
	ep := New()
	require.True(t, ep.Open(Datagram, 0, 0, 0))
	defer ep.Close(false)
	require.True(t, ep.Process(nil, func(uint32, uint16, []byte) {}))

	foreign, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer foreign.Close()
	foreignPort := uint16(foreign.LocalAddr().(*net.UDPAddr).Port)

	ep.SendPacket(netio.FromIPv4(net.ParseIP("127.0.0.1")), foreignPort, []byte("ping"))

	buf := make([]byte, 64)
	foreign.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, from, err := foreign.ReadFrom(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))
	require.Equal(t, int(ep.BoundPort()), from.(*net.UDPAddr).Port)
}

func TestReopenAfterClose(t *testing.T) {
	ep := New()
	require.True(t, ep.Open(Datagram, 0, 0, 0))
	ep.Close(false)

	require.True(t, ep.Open(Datagram, 0, 0, 0))
	defer ep.Close(false)

	received := make(chan []byte, 1)
	require.True(t, ep.Process(nil, func(_ uint32, _ uint16, body []byte) {
		received <- body
	}))

	foreign, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer foreign.Close()

	dst := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(ep.BoundPort())}
	_, err = foreign.WriteTo([]byte("again"), dst)
	require.NoError(t, err)

	select {
	case got := <-received:
		require.Equal(t, "again", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram after reopen")
	}
}

func TestMulticastReceiveOpenKeepsRequestedPort(t *testing.T) {
	ep := New()
	ok := ep.Open(MulticastReceive, 0, 30001, netio.FromIPv4(net.ParseIP("239.1.2.3")))
	if !ok {
		t.Skip("multicast receive socket could not be bound in this environment")
	}
	defer ep.Close(false)
	require.Equal(t, uint16(30001), ep.BoundPort())
}
