package netendpoint

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

func init() {
	message.SetString(language.AmericanEnglish, "msg.listen_failed", "error listening (%v)")
	message.SetString(language.AmericanEnglish, "msg.bind_failed", "error in bind (%v)")
	message.SetString(language.AmericanEnglish, "msg.multicast_if_failed", "error setting multicast interface (%v)")
	message.SetString(language.AmericanEnglish, "msg.join_group_failed", "error joining multicast group on %s (%v)")
	message.SetString(language.AmericanEnglish, "msg.not_open", "endpoint is not open")
	message.SetString(language.AmericanEnglish, "msg.already_processing", "endpoint is already processing")
	message.SetString(language.AmericanEnglish, "msg.accept_failed", "error accepting connection (%v)")
	message.SetString(language.AmericanEnglish, "msg.recv_failed", "error receiving datagram (%v)")
	message.SetString(language.AmericanEnglish, "msg.send_failed", "error sending datagram (%v)")

	message.SetString(language.German, "msg.listen_failed", "Fehler beim Horchen (%v)")
	message.SetString(language.German, "msg.bind_failed", "Fehler bei bind (%v)")
	message.SetString(language.German, "msg.not_open", "Endpunkt ist nicht geoeffnet")
}
