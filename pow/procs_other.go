//go:build !linux

package pow

import "runtime"

func defaultNumProcesses() int {
	return runtime.NumCPU()
}
