package diagnostics

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// NewStreamReporter adapts a subscription delegate into a printer that
// writes composed diagnostic lines to one of two sinks: messages with
// level >= LevelWarning go to errOut, prefixed "warning: " (or
// "error: " once level >= LevelError); everything else goes to out.
//
// Each line is formatted as:
//
//	[<elapsed-seconds-since-construction.6f> <sender>:<level>] <prefix><message>\n
//
// The returned delegate is safe to call from multiple goroutines; a
// bus may dispatch to it concurrently with another subscriber's work.
func NewStreamReporter(out, errOut io.Writer) MessageDelegate {
	start := time.Now()
	var mu sync.Mutex
	return func(senderName string, level Level, message string) {
		mu.Lock()
		defer mu.Unlock()
		destination := out
		var prefix string
		switch {
		case level >= LevelError:
			destination = errOut
			prefix = "error: "
		case level >= LevelWarning:
			destination = errOut
			prefix = "warning: "
		}
		fmt.Fprintf(destination, "[%.6f %s:%d] %s%s\n",
			time.Since(start).Seconds(), senderName, level, prefix, message)
	}
}
