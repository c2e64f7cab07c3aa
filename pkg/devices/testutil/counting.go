package testutil

import (
	"github.com/tarndt/blockio/pkg/blockio"
)

//CountingDevice wraps a BlockDevice and counts the physical operations
// issued against it, letting tests pin down exactly how many device requests
// a byte-granular request costs
type CountingDevice struct {
	blockio.BlockDevice
	Reads, Writes uint
}

var _ blockio.BlockDevice = (*CountingDevice)(nil)

//ReadBlocks fulfills part of blockio.BlockDevice
func (cdsk *CountingDevice) ReadBlocks(blocks []byte, start blockio.BlockIndex) error {
	cdsk.Reads++
	return cdsk.BlockDevice.ReadBlocks(blocks, start)
}

//WriteBlocks fulfills part of blockio.BlockDevice
func (cdsk *CountingDevice) WriteBlocks(blocks []byte, start blockio.BlockIndex) error {
	cdsk.Writes++
	return cdsk.BlockDevice.WriteBlocks(blocks, start)
}

//Ops is the total count of physical operations of both kinds
func (cdsk *CountingDevice) Ops() uint {
	return cdsk.Reads + cdsk.Writes
}

//Reset zeros both counters between test scenarios
func (cdsk *CountingDevice) Reset() {
	cdsk.Reads, cdsk.Writes = 0, 0
}
