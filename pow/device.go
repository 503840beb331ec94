package pow

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Device selects where a registration puzzle is solved.
type Device struct {
	gpu bool
	ids []int
}

// CPU solves on the host using worker goroutines.
func CPU() Device {
	return Device{}
}

// GPU solves on the given accelerator devices (device 0 when none are given).
func GPU(ids ...int) Device {
	if len(ids) == 0 {
		ids = []int{0}
	}
	return Device{gpu: true, ids: slices.Clone(ids)}
}

func (d Device) IsGPU() bool {
	return d.gpu
}

func (d Device) IDs() []int {
	return slices.Clone(d.ids)
}

func (d Device) String() string {
	if !d.gpu {
		return "cpu"
	}
	ids := make([]string, len(d.ids))
	for i, id := range d.ids {
		ids[i] = fmt.Sprint(id)
	}
	return "gpu(" + strings.Join(ids, ",") + ")"
}
