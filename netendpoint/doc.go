// Package netendpoint implements Endpoint: a single bound socket that,
// depending on its Mode, either listens for and accepts inbound stream
// connections (handing each off as a *netconn.Connection) or sends and
// receives UDP datagrams, including multicast group membership.
//
// Like netconn.Connection, an Endpoint runs one dedicated worker
// goroutine and publishes diagnostics through a diagnostics.Bus named
// "NetworkEndPoint".
//
//	ep := netendpoint.New()
//	ep.Open(netendpoint.Connection, 0, 0, 0)
//	ep.Process(func(conn *netconn.Connection) {
//	    conn.Process(onMessage, onBroken)
//	}, nil)
//
// The zero value of Endpoint is not ready for use; always construct
// with New.
package netendpoint
