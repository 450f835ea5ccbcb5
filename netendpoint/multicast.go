package netendpoint

import (
	"net"

	"golang.org/x/net/ipv4"
)

// ipv4PacketConn adapts a generic net.PacketConn to the
// golang.org/x/net/ipv4 control-message API, which is what exposes
// JoinGroup and SetMulticastInterface -- operations the standard
// library's net package does not surface directly on UDPConn.
func ipv4PacketConn(conn net.PacketConn) *ipv4.PacketConn {
	return ipv4.NewPacketConn(conn)
}
