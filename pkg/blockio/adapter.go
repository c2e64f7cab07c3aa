package blockio

import (
	"fmt"
)

//StorageBlockDevice turns any BlockDevice into a StorageDevice by
// implementing the logic to read and write at block-size unaligned offsets
// and lengths.
//
//The heap is not touched while servicing a request: transfers happen in-place
// in the caller's buffer where possible and the first and last incomplete
// blocks of a request are staged through a single scratch block allocated
// once at construction. A request is split into at most three block-aligned
// sub-operations: the leading partial block, the run of whole blocks in the
// middle, and the trailing partial block. Any empty region is skipped without
// touching the device, so a block-aligned, block-sized read costs exactly one
// device operation. Partial blocks on the write path cost a read-modify-write
// since the rest of the on-device block must be preserved, which is why a
// fully general write can cost up to five device operations where the
// matching read costs at most three.
//
//The middle run is handed to the device as a sub-slice of the caller's buffer
// when that slice satisfies the device's declared alignment. When it does
// not, the run is staged one block at a time through the scratch block; that
// path stays correct but issues one device operation per block, so callers
// chasing throughput should provide aligned buffers (see AlignedBuffer).
//
//A StorageBlockDevice exclusively owns the wrapped device and its scratch
// block and is not safe for concurrent use; callers sharing one across
// goroutines must serialize access themselves.
type StorageBlockDevice struct {
	dev     BlockDevice
	geo     Geometry
	scratch []byte
}

var _ StorageDevice = (*StorageBlockDevice)(nil)

//NewStorageBlockDevice is the constructor for StorageBlockDevice; it takes
// ownership of the provided device and rejects devices reporting a geometry
// that cannot be staged (see Geometry.Validate)
func NewStorageBlockDevice(dev BlockDevice) (*StorageBlockDevice, error) {
	geo := dev.Geometry()
	if err := geo.Validate(); err != nil {
		return nil, fmt.Errorf("Could not adapt block device with unusable geometry %+v: %w", geo, err)
	}
	return &StorageBlockDevice{
		dev:     dev,
		geo:     geo,
		scratch: AlignedBuffer(geo.BlockSize, geo.Align),
	}, nil
}

//ReadAt fulfills io.ReaderAt and in turn part of StorageDevice. It fills buf
// with len(buf) bytes starting at byte offset off, or fails with an *IOError
// carrying the operation, offset and length plus the underlying device error.
// After an error the contents of buf are undefined.
func (sbd *StorageBlockDevice) ReadAt(buf []byte, off int64) (int, error) {
	if off < 0 {
		return 0, &IOError{Op: OpRead, Off: off, Len: len(buf), Cause: ErrNegativeOffset}
	}
	if err := sbd.readInternal(off, buf); err != nil {
		return 0, &IOError{Op: OpRead, Off: off, Len: len(buf), Cause: err}
	}
	return len(buf), nil
}

//WriteAt fulfills io.WriterAt and in turn part of StorageDevice. It writes
// the bytes of buf to the device starting at byte offset off, or fails with
// an *IOError as ReadAt does. After an error the contents of the addressed
// range on the device are undefined.
func (sbd *StorageBlockDevice) WriteAt(buf []byte, off int64) (int, error) {
	if off < 0 {
		return 0, &IOError{Op: OpWrite, Off: off, Len: len(buf), Cause: ErrNegativeOffset}
	}
	if err := sbd.writeInternal(off, buf); err != nil {
		return 0, &IOError{Op: OpWrite, Off: off, Len: len(buf), Cause: err}
	}
	return len(buf), nil
}

//Size fulfills part of StorageDevice by reporting the wrapped device's block
// count as a byte length
func (sbd *StorageBlockDevice) Size() (int64, error) {
	count, err := sbd.dev.BlockCount()
	if err != nil {
		return 0, fmt.Errorf("Could not count blocks on underlying device: %w", err)
	}
	return count.Bytes(sbd.geo.BlockSize), nil
}

//split computes the three-way partition of a request against block
// boundaries: the byte length of the leading partial block region (0 when off
// is block aligned or the request is empty), the byte length of the run of
// whole blocks, and the byte length of the trailing partial block region.
// A request contained entirely inside one block is all leading region.
func (sbd *StorageBlockDevice) split(off, length int64) (firstLen, middleLen, endLen int64) {
	if partialOff := off % sbd.geo.BlockSize; partialOff != 0 {
		if firstLen = sbd.geo.BlockSize - partialOff; firstLen > length {
			firstLen = length
		}
	}
	middleLen = ((length - firstLen) / sbd.geo.BlockSize) * sbd.geo.BlockSize
	endLen = length - firstLen - middleLen
	return firstLen, middleLen, endLen
}

func (sbd *StorageBlockDevice) readInternal(off int64, buf []byte) error {
	size := sbd.geo.BlockSize
	firstLen, middleLen, endLen := sbd.split(off, int64(len(buf)))

	firstBlock := BlockIndex(off / size)
	if firstLen > 0 { //Leading partial block: stage through the scratch block
		if err := sbd.dev.ReadBlocks(sbd.scratch, firstBlock); err != nil {
			return err
		}
		partialOff := off % size
		copy(buf[:firstLen], sbd.scratch[partialOff:partialOff+firstLen])
		firstBlock++
	}

	if middleLen > 0 { //Whole blocks only from here on
		mid := buf[firstLen : firstLen+middleLen]
		if Misalignment(mid, sbd.geo.Align) == 0 {
			//Fast path: hand the caller's buffer to the device in one request
			if err := sbd.dev.ReadBlocks(mid, firstBlock); err != nil {
				return err
			}
		} else {
			//Caller's buffer defeats the device's alignment requirement; stage
			// one block at a time and pay one device request per block
			for i := int64(0); i < middleLen/size; i++ {
				if err := sbd.dev.ReadBlocks(sbd.scratch, firstBlock+BlockIndex(i)); err != nil {
					return err
				}
				copy(mid[i*size:(i+1)*size], sbd.scratch)
			}
		}
	}

	if endLen > 0 { //Trailing partial block: stage through the scratch block
		endBlock := firstBlock + BlockIndex(middleLen/size)
		if err := sbd.dev.ReadBlocks(sbd.scratch, endBlock); err != nil {
			return err
		}
		copy(buf[firstLen+middleLen:], sbd.scratch[:endLen])
	}

	return nil
}

func (sbd *StorageBlockDevice) writeInternal(off int64, buf []byte) error {
	size := sbd.geo.BlockSize
	firstLen, middleLen, endLen := sbd.split(off, int64(len(buf)))

	firstBlock := BlockIndex(off / size)
	if firstLen > 0 {
		//Leading partial block is a read-modify-write: the bytes of the block
		// outside the request must survive, so they must be current
		if err := sbd.dev.ReadBlocks(sbd.scratch, firstBlock); err != nil {
			return err
		}
		partialOff := off % size
		copy(sbd.scratch[partialOff:partialOff+firstLen], buf[:firstLen])
		if err := sbd.dev.WriteBlocks(sbd.scratch, firstBlock); err != nil {
			return err
		}
		firstBlock++
	}

	if middleLen > 0 {
		mid := buf[firstLen : firstLen+middleLen]
		if Misalignment(mid, sbd.geo.Align) == 0 {
			//Fast path: hand the caller's buffer to the device in one request
			if err := sbd.dev.WriteBlocks(mid, firstBlock); err != nil {
				return err
			}
		} else {
			//Misaligned caller buffer; stage one block at a time
			for i := int64(0); i < middleLen/size; i++ {
				copy(sbd.scratch, mid[i*size:(i+1)*size])
				if err := sbd.dev.WriteBlocks(sbd.scratch, firstBlock+BlockIndex(i)); err != nil {
					return err
				}
			}
		}
	}

	if endLen > 0 { //Trailing partial block, read-modify-write again
		endBlock := firstBlock + BlockIndex(middleLen/size)
		if err := sbd.dev.ReadBlocks(sbd.scratch, endBlock); err != nil {
			return err
		}
		copy(sbd.scratch[:endLen], buf[firstLen+middleLen:])
		if err := sbd.dev.WriteBlocks(sbd.scratch, endBlock); err != nil {
			return err
		}
	}

	return nil
}
