package netio

import (
	"context"
	"encoding/binary"
	"net"
	"strconv"
	"time"
)

// MaxReadSize is the maximum number of bytes a single Connection read
// or Endpoint recvfrom will request from the OS.
const MaxReadSize = 65536

// MaxWriteSize is the maximum number of bytes a single Connection
// write or Endpoint sendto will attempt to hand to the OS.
const MaxWriteSize = 65536

// resolveTimeout bounds the best-effort synchronous host lookup so a
// misbehaving resolver cannot hang ResolveHost forever.
const resolveTimeout = 10 * time.Second

// ToIPv4 converts a host-order 32-bit IPv4 address, as exchanged at
// every Connection/Endpoint API boundary, into a net.IP.
func ToIPv4(addr uint32) net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, addr)
	return ip
}

// FromIPv4 converts a net.IP (v4 or v4-in-v6) into a host-order 32-bit
// address. It returns 0 if ip does not carry a usable IPv4 form.
func FromIPv4(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}

// JoinHostPort formats a host-order address/port pair as the
// "host:port" string the net package expects for Dial/Listen.
func JoinHostPort(addr uint32, port uint16) string {
	return net.JoinHostPort(ToIPv4(addr).String(), strconv.Itoa(int(port)))
}

// ResolveHost performs a best-effort synchronous "host name -> IPv4
// address" lookup, returning the first IPv4 result, or 0 on any
// failure including timeout.
func ResolveHost(hostName string) uint32 {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", hostName)
	if err != nil || len(ips) == 0 {
		return 0
	}
	return FromIPv4(ips[0])
}
