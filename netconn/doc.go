// Package netconn implements Connection: a full-duplex, reliable
// byte-stream session with a dedicated I/O worker goroutine, a
// back-pressured outbound queue (byteq.Queue), graceful and abrupt
// shutdown semantics, and diagnostics published through a
// diagnostics.Bus named "NetworkConnection".
//
// # Client role
//
//	conn := netconn.New()
//	if !conn.Connect(netio.FromIPv4(net.ParseIP("127.0.0.1")), 4059) {
//	    // a diagnostics subscriber already saw an ERROR-level message
//	    // describing the failing syscall
//	}
//	conn.Process(func(data []byte) {
//	    // handle bytes, in the exact order the peer sent them
//	}, func(graceful bool) {
//	    // fires exactly once per session
//	})
//	conn.Send([]byte("hello"))
//	conn.Close(true) // drain then close
//
// # Accepted role
//
// netendpoint constructs a Connection around an already-connected
// socket via NewFromAcceptedSocket; its owner still calls Process to
// choose delegates and start the worker.
//
// The zero value of Connection is not ready for use; always construct
// with New or NewFromAcceptedSocket.
package netconn
