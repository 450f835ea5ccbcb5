package netio

import (
	"runtime"
	"strconv"
)

// GoroutineID extracts the numeric id Go's runtime assigns the calling
// goroutine, by parsing the header line of runtime.Stack output
// ("goroutine 123 [running]:"). There is no supported API for this; it
// exists purely so Connection and Endpoint can detect that Close is
// being called from within their own worker's callback stack and avoid
// joining themselves. It returns -1 if the header cannot be parsed.
func GoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := buf[:n]
	const prefix = "goroutine "
	if len(header) <= len(prefix) {
		return -1
	}
	header = header[len(prefix):]
	i := 0
	for i < len(header) && header[i] >= '0' && header[i] <= '9' {
		i++
	}
	id, err := strconv.ParseInt(string(header[:i]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
