// Package netio holds the small platform-facing helpers that Connection
// and Endpoint both need: IPv4 <-> net.IP conversion at the host/network
// byte-order boundary, best-effort DNS resolution, active-interface
// enumeration, and the per-OS socket-option control callbacks that
// net.ListenConfig/net.Dialer don't expose directly (SO_REUSEADDR ahead
// of a multicast-receive bind).
package netio
