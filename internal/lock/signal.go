package lock

import "syscall"

// syscallSignalZero returns the no-op signal used purely to probe whether a
// PID is still alive (os.Process.Signal(0) performs existence/permission
// checks without actually delivering a signal on POSIX systems).
func syscallSignalZero() syscall.Signal {
	return syscall.Signal(0)
}
