package safego

import (
	"log"
	"runtime/debug"
)

// Go runs fn in a new goroutine. The terminal UI owns stdout, so a panic's
// stack trace would be lost; log it before re-panicking.
func Go(logger *log.Logger, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Printf("PANIC: %v\n%s", r, debug.Stack())
				panic(r)
			}
		}()
		fn()
	}()
}
