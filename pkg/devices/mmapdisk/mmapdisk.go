package mmapdisk

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/tarndt/blockio/pkg/blockio"
	"github.com/tarndt/blockio/pkg/util/strms"

	"launchpad.net/gommap"
)

//MmapDisk is a block device backed by a memory mapped file: block transfers
// are plain memory copies and flushing is an msync. Since the mapping is page
// backed it naturally satisfies any reasonable buffer alignment a caller
// declares in the geometry.
type MmapDisk struct {
	file     *os.File
	rawBytes gommap.MMap
	geo      blockio.Geometry
}

var _ blockio.BlockDevice = (*MmapDisk)(nil)
var _ io.Closer = (*MmapDisk)(nil)

//NewMmapDisk constructs a memory mapped file backed block device. If the
// backing file does not exist or is empty it is created and zero filled to
// ifCreateSize, which must be a whole multiple of the geometry's block size.
func NewMmapDisk(filename string, geo blockio.Geometry, ifCreateSize int64) (*MmapDisk, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	if ifCreateSize%geo.BlockSize != 0 {
		return nil, fmt.Errorf("Creation size %d is not a whole multiple of the %d byte block size", ifCreateSize, geo.BlockSize)
	}

	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, fmt.Errorf("Could not open backing file %q: %w", filename, err)
	}
	if info, err := file.Stat(); err != nil {
		return nil, fmt.Errorf("Could not stat backing file %q: %w", filename, err)
	} else if size := info.Size(); size < 1 { //Create disk file
		strm := bufio.NewWriter(file)
		if _, err = io.CopyN(strm, strms.DevZero, ifCreateSize); err != nil {
			return nil, fmt.Errorf("Could not zero fill backing file %q, write failed: %w", filename, err)
		}
		if err = strm.Flush(); err != nil {
			return nil, fmt.Errorf("Could not zero fill backing file %q, flush failed: %w", filename, err)
		}
		if err = file.Sync(); err != nil {
			return nil, fmt.Errorf("Could not zero fill backing file %q, sync failed: %w", filename, err)
		}
	} else if size%geo.BlockSize != 0 {
		return nil, fmt.Errorf("Existing backing file %q is %d bytes which is not a whole multiple of the %d byte block size", filename, size, geo.BlockSize)
	}

	mmap, err := gommap.Map(file.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("Could not mmap backing file %q (fd %d): %w", filename, file.Fd(), err)
	}
	return &MmapDisk{file: file, rawBytes: mmap, geo: geo}, nil
}

//Geometry fulfills part of blockio.BlockDevice
func (mdsk *MmapDisk) Geometry() blockio.Geometry {
	return mdsk.geo
}

//ReadBlocks fulfills part of blockio.BlockDevice
func (mdsk *MmapDisk) ReadBlocks(blocks []byte, start blockio.BlockIndex) error {
	count, err := mdsk.geo.BlockSpan(blocks)
	if err != nil {
		return &blockio.DeviceError{Op: blockio.OpRead, Start: start, Blocks: count, Cause: err}
	}

	off := start.Offset(mdsk.geo.BlockSize)
	if end := off + int64(len(blocks)); end > int64(len(mdsk.rawBytes)) {
		return &blockio.DeviceError{Op: blockio.OpRead, Start: start, Blocks: count, Cause: io.EOF}
	}
	copy(blocks, mdsk.rawBytes[off:])
	return nil
}

//WriteBlocks fulfills part of blockio.BlockDevice
func (mdsk *MmapDisk) WriteBlocks(blocks []byte, start blockio.BlockIndex) error {
	count, err := mdsk.geo.BlockSpan(blocks)
	if err != nil {
		return &blockio.DeviceError{Op: blockio.OpWrite, Start: start, Blocks: count, Cause: err}
	}

	off := start.Offset(mdsk.geo.BlockSize)
	if end := off + int64(len(blocks)); end > int64(len(mdsk.rawBytes)) {
		return &blockio.DeviceError{Op: blockio.OpWrite, Start: start, Blocks: count, Cause: io.ErrUnexpectedEOF}
	}
	copy(mdsk.rawBytes[off:], blocks)
	return nil
}

//BlockCount fulfills part of blockio.BlockDevice
func (mdsk *MmapDisk) BlockCount() (blockio.BlockCount, error) {
	return blockio.BlockCount(int64(len(mdsk.rawBytes)) / mdsk.geo.BlockSize), nil
}

//Flush synchronously commits the mapping back to the backing file
func (mdsk *MmapDisk) Flush() error {
	if err := mdsk.rawBytes.Sync(gommap.MS_SYNC); err != nil {
		return fmt.Errorf("Could not msync mapping of %q: %w", mdsk.file.Name(), err)
	}
	return nil
}

//Close fulfills io.Closer, flushing the mapping before closing the file
func (mdsk *MmapDisk) Close() error {
	flushErr := mdsk.Flush()
	err := mdsk.file.Close()
	if err == nil && flushErr != nil {
		err = flushErr
	}
	if err != nil {
		return fmt.Errorf("Could not close backing file: %w", err)
	}
	return nil
}
