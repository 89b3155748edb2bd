package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
)

// Failure describes a process that could not be read. Vanished is set when
// the process exited or became inaccessible between enumeration and read.
type Failure struct {
	PID      int32
	Op       string
	Err      error
	Vanished bool
}

func (f Failure) Error() string {
	return fmt.Sprintf("process %d: %s: %v", f.PID, f.Op, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

func classify(pid int32, op string, err error) Failure {
	return Failure{
		PID:      pid,
		Op:       op,
		Err:      err,
		Vanished: isVanished(err),
	}
}

func isVanished(err error) bool {
	return errors.Is(err, process.ErrorProcessNotRunning) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.ESRCH)
}
