// Package diagnostics provides a named publish/subscribe bus for
// low-ceremony diagnostic messages: warnings, errors, and informal
// trace breadcrumbs. It is the one logging surface the rest of this
// module uses -- Connection and Endpoint never call fmt.Println or a
// global logger directly, they publish through a Bus.
//
// # Construction
//
//	bus := diagnostics.New("NetworkConnection")
//	unsubscribe := bus.Subscribe(func(sender string, level diagnostics.Level, message string) {
//	    log.Printf("[%s:%d] %s", sender, level, message)
//	}, diagnostics.LevelWarning)
//	defer unsubscribe()
//
// # Context
//
// PushContext, and the pop function it returns, let a producer tag
// every message published during a scope with a prefix, joined by ": ":
//
//	pop := bus.PushContext(peerDescription)
//	defer pop()
//	bus.Publish(diagnostics.LevelError, "connect failed")
//	// delivered message: "<peerDescription>: connect failed"
//
// # Chaining
//
// Chain returns a delegate that republishes anything it receives onto
// this bus, letting a higher-level sender subscribe to a lower-level
// one without losing the original sender name.
package diagnostics
