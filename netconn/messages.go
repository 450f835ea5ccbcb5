package netconn

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer formats the diagnostic messages this package publishes.
// Connection itself has no per-instance language setting -- the spec's
// diagnostics are meant for operators and tests, not end users -- but
// the teacher's pattern of routing every diagnostic string through a
// message.Printer survives so the same translation table can grow
// without touching call sites.
var printer = message.NewPrinter(language.AmericanEnglish)

func init() {
	message.SetString(language.AmericanEnglish, "msg.socket_create_failed", "error creating socket (%v)")
	message.SetString(language.AmericanEnglish, "msg.bind_failed", "error in bind (%v)")
	message.SetString(language.AmericanEnglish, "msg.connect_failed", "error in connect (%v)")
	message.SetString(language.AmericanEnglish, "msg.not_connected", "not connected")
	message.SetString(language.AmericanEnglish, "msg.already_processing", "already connected")
	message.SetString(language.AmericanEnglish, "msg.peer_closed_abruptly", "connection closed abruptly by the peer")
	message.SetString(language.AmericanEnglish, "msg.peer_closed_gracefully", "connection closed gracefully by peer")
	message.SetString(language.AmericanEnglish, "msg.send_failed", "error sending data (%v)")
	message.SetString(language.AmericanEnglish, "msg.send_returned_zero", "send returned 0 bytes; treating as unrecoverable")
	message.SetString(language.AmericanEnglish, "msg.closing", "closing connection")
	message.SetString(language.AmericanEnglish, "msg.closed", "closed connection")

	message.SetString(language.German, "msg.socket_create_failed", "Fehler beim Erstellen des Sockets (%v)")
	message.SetString(language.German, "msg.bind_failed", "Fehler bei bind (%v)")
	message.SetString(language.German, "msg.connect_failed", "Fehler bei connect (%v)")
	message.SetString(language.German, "msg.not_connected", "nicht verbunden")
	message.SetString(language.German, "msg.peer_closed_abruptly", "Verbindung wurde vom Peer abrupt geschlossen")
	message.SetString(language.German, "msg.peer_closed_gracefully", "Verbindung wurde vom Peer ordentlich geschlossen")
}
