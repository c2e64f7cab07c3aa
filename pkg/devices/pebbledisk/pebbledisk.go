package pebbledisk

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/tarndt/blockio/pkg/blockio"
	"github.com/tarndt/blockio/pkg/util"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
)

const blockKeyBytes = 8

//PebbleDisk is a sparse block device persisted in a pebble LSM database.
// Each non-zero block is one KV entry keyed by its big-endian block index; a
// block with no entry reads back as zeros and writing an all-zero block
// deletes its entry, so space is only consumed by blocks that hold data.
// The device's capacity is fixed at construction.
type PebbleDisk struct {
	dbPath    string
	db        *pebble.DB
	geo       blockio.Geometry
	count     blockio.BlockCount
	writeOpts *pebble.WriteOptions
	closeOnce sync.Once
}

var _ blockio.BlockDevice = (*PebbleDisk)(nil)
var _ io.Closer = (*PebbleDisk)(nil)

//NewPebbleDisk constructs a pebble backed block device of count blocks at
// dbPath. cacheBytes sizes pebble's block cache and bloomBitsPerEntry > 0
// enables a bloom filter policy to spare reads of absent (all zero) blocks.
func NewPebbleDisk(dbPath string, geo blockio.Geometry, count blockio.BlockCount, cacheBytes, bloomBitsPerEntry int) (*PebbleDisk, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}

	opts := &pebble.Options{Cache: pebble.NewCache(int64(cacheBytes))}
	if bloomBitsPerEntry > 0 {
		levelOpts := new(pebble.LevelOptions).EnsureDefaults()
		levelOpts.FilterPolicy = bloom.FilterPolicy(bloomBitsPerEntry)
		opts.Levels = append(opts.Levels, *levelOpts)
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("Could not open database %q: %w", dbPath, err)
	}

	return &PebbleDisk{
		dbPath:    dbPath,
		db:        db,
		geo:       geo,
		count:     count,
		writeOpts: &pebble.WriteOptions{Sync: false},
	}, nil
}

//Geometry fulfills part of blockio.BlockDevice
func (pdsk *PebbleDisk) Geometry() blockio.Geometry {
	return pdsk.geo
}

//ReadBlocks fulfills part of blockio.BlockDevice
func (pdsk *PebbleDisk) ReadBlocks(blocks []byte, start blockio.BlockIndex) error {
	count, err := pdsk.geo.BlockSpan(blocks)
	if err == nil && blockio.BlockCount(start)+count > pdsk.count {
		err = io.EOF
	}
	if err != nil {
		return &blockio.DeviceError{Op: blockio.OpRead, Start: start, Blocks: count, Cause: err}
	}

	size := pdsk.geo.BlockSize
	var key [blockKeyBytes]byte
	for i := int64(0); i < int64(count); i++ {
		dst := blocks[i*size : (i+1)*size]
		binary.BigEndian.PutUint64(key[:], uint64(start)+uint64(i))

		rawVal, closeVal, err := pdsk.db.Get(key[:])
		switch err {
		case pebble.ErrNotFound: //absent blocks read as zeros
			util.ZeroFill(dst)

		case nil:
			if int64(len(rawVal)) != size {
				closeVal.Close()
				return &blockio.DeviceError{
					Op: blockio.OpRead, Start: start, Blocks: count,
					Cause: fmt.Errorf("Database entry for block %d held %d bytes rather than %d", uint64(start)+uint64(i), len(rawVal), size),
				}
			}
			copy(dst, rawVal)
			closeVal.Close()

		default:
			return &blockio.DeviceError{
				Op: blockio.OpRead, Start: start, Blocks: count,
				Cause: fmt.Errorf("Database get of block %d failed: %w", uint64(start)+uint64(i), err),
			}
		}
	}
	return nil
}

//WriteBlocks fulfills part of blockio.BlockDevice; the blocks of a single
// call are applied as one atomic batch
func (pdsk *PebbleDisk) WriteBlocks(blocks []byte, start blockio.BlockIndex) error {
	count, err := pdsk.geo.BlockSpan(blocks)
	if err == nil && blockio.BlockCount(start)+count > pdsk.count {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return &blockio.DeviceError{Op: blockio.OpWrite, Start: start, Blocks: count, Cause: err}
	}

	size := pdsk.geo.BlockSize
	batch := pdsk.db.NewBatch()
	defer batch.Close()

	var key [blockKeyBytes]byte
	for i := int64(0); i < int64(count); i++ {
		src := blocks[i*size : (i+1)*size]
		binary.BigEndian.PutUint64(key[:], uint64(start)+uint64(i))

		if util.IsZeros(src) { //keep the device sparse
			err = batch.Delete(key[:], nil)
		} else {
			err = batch.Set(key[:], src, nil)
		}
		if err != nil {
			return &blockio.DeviceError{
				Op: blockio.OpWrite, Start: start, Blocks: count,
				Cause: fmt.Errorf("Could not stage block %d into batch: %w", uint64(start)+uint64(i), err),
			}
		}
	}

	if err = pdsk.db.Apply(batch, pdsk.writeOpts); err != nil {
		return &blockio.DeviceError{
			Op: blockio.OpWrite, Start: start, Blocks: count,
			Cause: fmt.Errorf("Database batch apply failed: %w", err),
		}
	}
	return nil
}

//BlockCount fulfills part of blockio.BlockDevice
func (pdsk *PebbleDisk) BlockCount() (blockio.BlockCount, error) {
	return pdsk.count, nil
}

//Flush commits outstanding writes to stable storage
func (pdsk *PebbleDisk) Flush() error {
	if err := pdsk.db.Flush(); err != nil {
		return fmt.Errorf("Could not flush database %q: %w", pdsk.dbPath, err)
	}
	return nil
}

//Close fulfills io.Closer
func (pdsk *PebbleDisk) Close() (err error) {
	pdsk.closeOnce.Do(func() {
		err = pdsk.db.Close()
	})
	return err
}
