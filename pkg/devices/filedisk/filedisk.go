package filedisk

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/tarndt/blockio/pkg/blockio"
	"github.com/tarndt/blockio/pkg/util/strms"
)

//FileDisk is a simple file backed device. A file is natively byte
// addressable, so FileDisk implements the byte-granular StorageDevice
// contract as a plain pass-through with no request splitting, and the
// BlockDevice contract by addressing the same file at block granularity.
// Because faults originate at byte granularity its IOErrors carry no nested
// DeviceError.
type FileDisk struct {
	*os.File
	sizeBytes int64
	geo       blockio.Geometry
}

var _ blockio.StorageDevice = (*FileDisk)(nil)
var _ blockio.BlockDevice = (*FileDisk)(nil)

//NewFileDisk is the constructor for simple file backed devices. If the
// backing file does not exist or is empty it is created and zero filled to
// ifCreateSize, which must be a whole multiple of the geometry's block size.
func NewFileDisk(filename string, geo blockio.Geometry, ifCreateSize int64) (*FileDisk, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	if ifCreateSize%geo.BlockSize != 0 {
		return nil, fmt.Errorf("Creation size %d is not a whole multiple of the %d byte block size", ifCreateSize, geo.BlockSize)
	}

	fdsk := &FileDisk{geo: geo}
	var err error
	if fdsk.File, err = os.OpenFile(filename, os.O_RDWR|os.O_CREATE, 0666); err != nil {
		return nil, fmt.Errorf("Could not open backing file %q: %w", filename, err)
	}
	if info, err := fdsk.Stat(); err != nil {
		return nil, fmt.Errorf("Could not stat backing file %q: %w", filename, err)
	} else if size := info.Size(); size < 1 { //Create disk file
		strm := bufio.NewWriter(fdsk)
		if _, err = io.CopyN(strm, strms.DevZero, ifCreateSize); err != nil {
			return nil, fmt.Errorf("Could not zero fill backing file %q, write failed: %w", filename, err)
		}
		if err = strm.Flush(); err != nil {
			return nil, fmt.Errorf("Could not zero fill backing file %q, flush failed: %w", filename, err)
		}
		if err = fdsk.Sync(); err != nil {
			return nil, fmt.Errorf("Could not zero fill backing file %q, sync failed: %w", filename, err)
		}
		fdsk.sizeBytes = ifCreateSize
	} else { //disk file exists
		if size%geo.BlockSize != 0 {
			return nil, fmt.Errorf("Existing backing file %q is %d bytes which is not a whole multiple of the %d byte block size", filename, size, geo.BlockSize)
		}
		fdsk.sizeBytes = size
	}
	return fdsk, nil
}

//Size fulfills part of blockio.StorageDevice
func (fdsk *FileDisk) Size() (int64, error) {
	return fdsk.sizeBytes, nil
}

//ReadAt fulfills io.ReaderAt and in turn part of blockio.StorageDevice;
// it seeks and reads directly with no block math
func (fdsk *FileDisk) ReadAt(buf []byte, off int64) (int, error) {
	n, err := fdsk.File.ReadAt(buf, off)
	if err != nil {
		return n, &blockio.IOError{Op: blockio.OpRead, Off: off, Len: len(buf), Cause: err}
	}
	return n, nil
}

//WriteAt fulfills io.WriterAt and in turn part of blockio.StorageDevice. The
// device is fixed size, so unlike a bare file a write past the end fails
// rather than growing the backing file.
func (fdsk *FileDisk) WriteAt(buf []byte, off int64) (int, error) {
	if off+int64(len(buf)) > fdsk.sizeBytes {
		return 0, &blockio.IOError{Op: blockio.OpWrite, Off: off, Len: len(buf), Cause: io.ErrUnexpectedEOF}
	}
	n, err := fdsk.File.WriteAt(buf, off)
	if err != nil {
		return n, &blockio.IOError{Op: blockio.OpWrite, Off: off, Len: len(buf), Cause: err}
	}
	return n, nil
}

//Geometry fulfills part of blockio.BlockDevice
func (fdsk *FileDisk) Geometry() blockio.Geometry {
	return fdsk.geo
}

//ReadBlocks fulfills part of blockio.BlockDevice
func (fdsk *FileDisk) ReadBlocks(blocks []byte, start blockio.BlockIndex) error {
	count, err := fdsk.geo.BlockSpan(blocks)
	if err == nil {
		if off := start.Offset(fdsk.geo.BlockSize); off+int64(len(blocks)) > fdsk.sizeBytes {
			err = io.EOF
		} else {
			_, err = fdsk.File.ReadAt(blocks, off)
		}
	}
	if err != nil {
		return &blockio.DeviceError{Op: blockio.OpRead, Start: start, Blocks: count, Cause: err}
	}
	return nil
}

//WriteBlocks fulfills part of blockio.BlockDevice
func (fdsk *FileDisk) WriteBlocks(blocks []byte, start blockio.BlockIndex) error {
	count, err := fdsk.geo.BlockSpan(blocks)
	if err == nil {
		if off := start.Offset(fdsk.geo.BlockSize); off+int64(len(blocks)) > fdsk.sizeBytes {
			err = io.ErrUnexpectedEOF
		} else {
			_, err = fdsk.File.WriteAt(blocks, off)
		}
	}
	if err != nil {
		return &blockio.DeviceError{Op: blockio.OpWrite, Start: start, Blocks: count, Cause: err}
	}
	return nil
}

//BlockCount fulfills part of blockio.BlockDevice
func (fdsk *FileDisk) BlockCount() (blockio.BlockCount, error) {
	return blockio.BlockCount(fdsk.sizeBytes / fdsk.geo.BlockSize), nil
}

//Flush commits outstanding writes to stable storage
func (fdsk *FileDisk) Flush() error {
	return fdsk.Sync()
}
