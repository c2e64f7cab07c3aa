package testutil

import (
	"fmt"

	"github.com/tarndt/blockio/pkg/blockio"
)

//OffsetDisk is a content addressed debug block device: reads fill every byte
// of a block with its offset within that block mod 256, and writes verify the
// same pattern rather than storing anything. Because the expected contents of
// any byte position are computable, tests can check that unaligned requests
// land exactly where they should. If the geometry declares Align > 1 any
// buffer delivered misaligned is rejected, which is how tests prove the
// adapter never leaks a misaligned caller buffer through to the device.
type OffsetDisk struct {
	Geo    blockio.Geometry
	Blocks blockio.BlockCount
}

var _ blockio.BlockDevice = (*OffsetDisk)(nil)

//Geometry fulfills part of blockio.BlockDevice
func (odsk *OffsetDisk) Geometry() blockio.Geometry {
	return odsk.Geo
}

//ReadBlocks fulfills part of blockio.BlockDevice
func (odsk *OffsetDisk) ReadBlocks(blocks []byte, start blockio.BlockIndex) error {
	count, err := odsk.checkDelivery(blocks)
	if err != nil {
		return &blockio.DeviceError{Op: blockio.OpRead, Start: start, Blocks: count, Cause: err}
	}
	for i := range blocks {
		blocks[i] = byte(int64(i) % odsk.Geo.BlockSize)
	}
	return nil
}

//WriteBlocks fulfills part of blockio.BlockDevice
func (odsk *OffsetDisk) WriteBlocks(blocks []byte, start blockio.BlockIndex) error {
	count, err := odsk.checkDelivery(blocks)
	if err == nil {
		for i := range blocks {
			if blocks[i] != byte(int64(i)%odsk.Geo.BlockSize) {
				err = fmt.Errorf("Byte %d of the delivered buffer was 0x%02x rather than the expected pattern value 0x%02x", i, blocks[i], byte(int64(i)%odsk.Geo.BlockSize))
				break
			}
		}
	}
	if err != nil {
		return &blockio.DeviceError{Op: blockio.OpWrite, Start: start, Blocks: count, Cause: err}
	}
	return nil
}

//BlockCount fulfills part of blockio.BlockDevice
func (odsk *OffsetDisk) BlockCount() (blockio.BlockCount, error) {
	return odsk.Blocks, nil
}

func (odsk *OffsetDisk) checkDelivery(blocks []byte) (blockio.BlockCount, error) {
	count, err := odsk.Geo.BlockSpan(blocks)
	if err != nil {
		return count, err
	}
	if mis := blockio.Misalignment(blocks, odsk.Geo.Align); mis != 0 {
		return count, fmt.Errorf("Delivered buffer was %d bytes past the required %d byte alignment", mis, odsk.Geo.Align)
	}
	return count, nil
}

//IndexDisk is the second content addressed debug block device: every byte of
// block i reads as i mod 256 and writes verify the same, which catches any
// request routed to the wrong block even when in-block offsets are right.
type IndexDisk struct {
	Geo    blockio.Geometry
	Blocks blockio.BlockCount
}

var _ blockio.BlockDevice = (*IndexDisk)(nil)

//Geometry fulfills part of blockio.BlockDevice
func (idsk *IndexDisk) Geometry() blockio.Geometry {
	return idsk.Geo
}

//ReadBlocks fulfills part of blockio.BlockDevice
func (idsk *IndexDisk) ReadBlocks(blocks []byte, start blockio.BlockIndex) error {
	count, err := idsk.Geo.BlockSpan(blocks)
	if err == nil {
		if mis := blockio.Misalignment(blocks, idsk.Geo.Align); mis != 0 {
			err = fmt.Errorf("Delivered buffer was %d bytes past the required %d byte alignment", mis, idsk.Geo.Align)
		}
	}
	if err != nil {
		return &blockio.DeviceError{Op: blockio.OpRead, Start: start, Blocks: count, Cause: err}
	}

	for i := range blocks {
		blocks[i] = byte(uint64(start) + uint64(int64(i)/idsk.Geo.BlockSize))
	}
	return nil
}

//WriteBlocks fulfills part of blockio.BlockDevice
func (idsk *IndexDisk) WriteBlocks(blocks []byte, start blockio.BlockIndex) error {
	count, err := idsk.Geo.BlockSpan(blocks)
	if err == nil {
		for i := range blocks {
			if expect := byte(uint64(start) + uint64(int64(i)/idsk.Geo.BlockSize)); blocks[i] != expect {
				err = fmt.Errorf("Byte %d of the delivered buffer was 0x%02x rather than the expected pattern value 0x%02x", i, blocks[i], expect)
				break
			}
		}
	}
	if err != nil {
		return &blockio.DeviceError{Op: blockio.OpWrite, Start: start, Blocks: count, Cause: err}
	}
	return nil
}

//BlockCount fulfills part of blockio.BlockDevice
func (idsk *IndexDisk) BlockCount() (blockio.BlockCount, error) {
	return idsk.Blocks, nil
}
