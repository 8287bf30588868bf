//go:build linux

package pipeline

import (
	"log"
	"runtime"

	"golang.org/x/sys/unix"
)

// lowerPriority locks the calling goroutine to its thread and raises the
// thread's nice value. The returned func restores it. Failures are logged
// and leave the priority untouched.
func lowerPriority(logger *log.Logger) func() {
	runtime.LockOSThread()
	tid := unix.Gettid()

	// The raw syscall reports 20 - nice.
	prio, err := unix.Getpriority(unix.PRIO_PROCESS, tid)
	if err != nil {
		runtime.UnlockOSThread()
		logger.Printf("read thread priority failed tid=%d err=%v", tid, err)
		return func() {}
	}
	nice := 20 - prio

	if err := unix.Setpriority(unix.PRIO_PROCESS, tid, nice+niceIncrement); err != nil {
		runtime.UnlockOSThread()
		logger.Printf("lower thread priority failed tid=%d nice=%d err=%v", tid, nice, err)
		return func() {}
	}

	return func() {
		if err := unix.Setpriority(unix.PRIO_PROCESS, tid, nice); err != nil {
			// The thread stays locked; the runtime discards it with the goroutine.
			logger.Printf("restore thread priority failed tid=%d nice=%d err=%v", tid, nice, err)
			return
		}
		runtime.UnlockOSThread()
	}
}
