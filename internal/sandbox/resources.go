package sandbox

import (
	"os/exec"
	"runtime"
	"syscall"
)

// peakRSSMB reports the exited child's peak resident set size in megabytes,
// taken from the wait rusage rather than sampled while running.
func peakRSSMB(cmd *exec.Cmd) (float64, bool) {
	if cmd.ProcessState == nil {
		return 0, false
	}
	rusage, ok := cmd.ProcessState.SysUsage().(*syscall.Rusage)
	if !ok || rusage == nil {
		return 0, false
	}
	return maxRSSToMB(rusage.Maxrss), true
}

// maxRSSToMB converts max RSS to megabytes. On macOS Maxrss is in bytes; on
// Linux it is in kilobytes.
func maxRSSToMB(maxrss int64) float64 {
	if runtime.GOOS == "darwin" {
		return float64(maxrss) / (1024 * 1024)
	}
	return float64(maxrss) / 1024
}
