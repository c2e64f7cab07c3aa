package ramdisk

import (
	"io"
	"sync/atomic"

	"github.com/tarndt/blockio/pkg/blockio"
	"github.com/tarndt/blockio/pkg/util/consterr"
)

const errClosed = consterr.ConstErr("Device is shutdown")

//RAMDisk is a simple memory (heap) backed block device. Beyond being useful
// on its own for scratch volumes it is the reference BlockDevice
// implementation and the workhorse of this project's tests, which is why it
// reports whatever geometry it was constructed with rather than assuming one.
type RAMDisk struct {
	geo  blockio.Geometry
	disk []byte

	atomicOnline uint64
}

var _ blockio.BlockDevice = (*RAMDisk)(nil)
var _ io.Closer = (*RAMDisk)(nil)

//NewRAMDisk constructs a memory backed block device holding count blocks of
// the provided geometry
func NewRAMDisk(geo blockio.Geometry, count blockio.BlockCount) (*RAMDisk, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	return &RAMDisk{
		geo:          geo,
		disk:         make([]byte, count.Bytes(geo.BlockSize)),
		atomicOnline: 1,
	}, nil
}

//Geometry fulfills part of blockio.BlockDevice
func (rdsk *RAMDisk) Geometry() blockio.Geometry {
	return rdsk.geo
}

//ReadBlocks fulfills part of blockio.BlockDevice
func (rdsk *RAMDisk) ReadBlocks(blocks []byte, start blockio.BlockIndex) error {
	count, err := rdsk.geo.BlockSpan(blocks)
	if err == nil && atomic.LoadUint64(&rdsk.atomicOnline) != 1 {
		err = errClosed
	}
	if err != nil {
		return &blockio.DeviceError{Op: blockio.OpRead, Start: start, Blocks: count, Cause: err}
	}

	off := start.Offset(rdsk.geo.BlockSize)
	if end := off + int64(len(blocks)); end > int64(len(rdsk.disk)) {
		return &blockio.DeviceError{Op: blockio.OpRead, Start: start, Blocks: count, Cause: io.EOF}
	}
	copy(blocks, rdsk.disk[off:])
	return nil
}

//WriteBlocks fulfills part of blockio.BlockDevice
func (rdsk *RAMDisk) WriteBlocks(blocks []byte, start blockio.BlockIndex) error {
	count, err := rdsk.geo.BlockSpan(blocks)
	if err == nil && atomic.LoadUint64(&rdsk.atomicOnline) != 1 {
		err = errClosed
	}
	if err != nil {
		return &blockio.DeviceError{Op: blockio.OpWrite, Start: start, Blocks: count, Cause: err}
	}

	off := start.Offset(rdsk.geo.BlockSize)
	if end := off + int64(len(blocks)); end > int64(len(rdsk.disk)) {
		return &blockio.DeviceError{Op: blockio.OpWrite, Start: start, Blocks: count, Cause: io.ErrUnexpectedEOF}
	}
	copy(rdsk.disk[off:], blocks)
	return nil
}

//BlockCount fulfills part of blockio.BlockDevice
func (rdsk *RAMDisk) BlockCount() (blockio.BlockCount, error) {
	if atomic.LoadUint64(&rdsk.atomicOnline) != 1 {
		return 0, errClosed
	}
	return blockio.BlockCount(int64(len(rdsk.disk)) / rdsk.geo.BlockSize), nil
}

//Flush is a no-op beyond confirming the device is still online
func (rdsk *RAMDisk) Flush() error {
	if atomic.LoadUint64(&rdsk.atomicOnline) != 1 {
		return errClosed
	}
	return nil
}

//Close fulfills io.Closer; all operations fail once a RAMDisk is closed
func (rdsk *RAMDisk) Close() error {
	atomic.StoreUint64(&rdsk.atomicOnline, 0)
	return nil
}
