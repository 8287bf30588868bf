package pipeline

import "log"

// niceIncrement is how far the watermark thread is pushed down.
const niceIncrement = 10

// runAtLowPriority runs fn on a fresh goroutine whose OS thread has had its
// scheduling priority lowered, and restores it before returning.
func runAtLowPriority(logger *log.Logger, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		var err error
		defer func() { done <- err }()

		release := lowerPriority(logger)
		defer release()
		err = fn()
	}()
	return <-done
}
