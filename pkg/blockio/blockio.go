package blockio

import "io"

//BlockIndex is the ordinal position of a block on a block device, counted
// from zero. It is only ever an address, never a size.
type BlockIndex uint64

//Offset converts this block index into a byte offset on a device with the
// provided block size
func (idx BlockIndex) Offset(blockSize int64) int64 {
	return int64(idx) * blockSize
}

//BlockCount is a count of whole blocks held or transferred by a block device
type BlockCount uint64

//Bytes converts this block count into a byte size on a device with the
// provided block size
func (cnt BlockCount) Bytes(blockSize int64) int64 {
	return int64(cnt) * blockSize
}

//DefaultBlockSizeBytes is 512, the block size of a classic disk sector
const DefaultBlockSizeBytes = 512

//Geometry declares the layout of the blocks a BlockDevice transfers: how
// large each block is and the strictest memory alignment the device requires
// of buffers it transfers directly (1 meaning none, as for purely software
// backed devices; hardware devices may need DMA friendly alignments).
type Geometry struct {
	BlockSize int64
	Align     int64
}

//Validate returns an error unless this geometry describes blocks that can
// actually be addressed and staged: a positive block size and a positive
// power-of-two alignment that evenly divides the block size
func (geo Geometry) Validate() error {
	switch {
	case geo.BlockSize < 1:
		return errBadBlockSize
	case geo.Align < 1, geo.Align&(geo.Align-1) != 0:
		return errBadAlign
	case geo.BlockSize%geo.Align != 0:
		return errBadAlign
	}
	return nil
}

//BlockSpan validates that the provided buffer holds a whole number of blocks
// of this geometry and returns how many; device implementations use it to
// enforce the block-multiple precondition of the BlockDevice contract
func (geo Geometry) BlockSpan(blocks []byte) (BlockCount, error) {
	if int64(len(blocks))%geo.BlockSize != 0 {
		return 0, ErrPartialBlock
	}
	return BlockCount(int64(len(blocks)) / geo.BlockSize), nil
}

//DefaultGeometry is meant to be embedded in BlockDevice implementations to
// easily provide a Geometry method reporting 512 byte blocks with no
// alignment requirement
type DefaultGeometry struct{}

//Geometry always reports DefaultBlockSizeBytes blocks and no alignment need
func (DefaultGeometry) Geometry() Geometry {
	return Geometry{BlockSize: DefaultBlockSizeBytes, Align: 1}
}

//BlockDevice is a device that transfers whole, fixed-size blocks at block
// granularity; it has no notion of bytes beyond the contents of a block.
//
//Blocks travel as byte slices whose length MUST be a whole multiple of the
// device's block size; implementations reject other lengths with
// ErrPartialBlock (wrapped in a DeviceError). A device whose Geometry
// declares Align > 1 may additionally require the first byte of the slice to
// sit at an address satisfying that alignment; StorageBlockDevice honors the
// declaration by staging misaligned buffers through its own aligned scratch
// block rather than handing them down.
//
//Every call is expected to reach the backing medium, no internal buffering is
// implied. When a call fails the contents of the caller's buffer (for reads)
// and of the addressed blocks (for writes) are undefined; retry policy
// belongs to the implementation or to a layer above, never to this contract.
type BlockDevice interface {
	//Geometry reports the block size and buffer alignment this device requires
	Geometry() Geometry

	//ReadBlocks fills blocks with the contents of len(blocks)/BlockSize
	// consecutive blocks starting at start
	ReadBlocks(blocks []byte, start BlockIndex) error

	//WriteBlocks writes blocks out as len(blocks)/BlockSize consecutive
	// blocks starting at start
	WriteBlocks(blocks []byte, start BlockIndex) error

	//BlockCount reports the total number of blocks this device holds
	BlockCount() (BlockCount, error)
}

//StorageDevice is a device that transfers arbitrary byte ranges at arbitrary
// offsets; it has no notion of blocks. ReadAt and WriteAt follow io.ReaderAt
// and io.WriterAt semantics with one simplification: a request either
// completes in full or fails with an *IOError describing the operation, so
// short counts are never returned alongside a nil error. Bytes written must
// be visible to an immediately following read (no write-back caching).
//
//Callers must not request ranges past Size; this layer does not validate
// bounds and such requests surface as errors from the backing medium.
type StorageDevice interface {
	io.ReaderAt
	io.WriterAt

	//Size reports the total addressable length of the device in bytes
	Size() (int64, error)
}
