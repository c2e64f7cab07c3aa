package objdisk

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/tarndt/blockio/pkg/blockio"
	"github.com/tarndt/blockio/pkg/util"

	"github.com/dustin/go-humanize"
	"github.com/graymeta/stow"
	"github.com/hashicorp/go-multierror"
	"github.com/tarndt/sema"
)

const defConcurFlush = 4

//Device is a block device persisted in an object store: its capacity is
// carved into fixed-size segments of whole blocks and each non-zero segment
// is stored as one object in a stow.Container. Segments are fetched lazily
// on first touch and mutated in memory; Flush uploads dirty segments back,
// several at a time. Segments that have only ever held zeros exist neither
// in memory nor remotely.
//
//Like every BlockDevice a Device assumes a single caller; Flush's internal
// upload fan-out does not change that.
type Device struct {
	geo       blockio.Geometry
	container stow.Container

	totalBytes, segmentBytes int64
	segments                 []segment

	//options
	concurFlush  uint
	compressMode Mode
}

var _ blockio.BlockDevice = (*Device)(nil)
var _ io.Closer = (*Device)(nil)

//NewDevice is the constructor for object store backed devices. totalBytes
// must be a whole multiple of segmentBytes, and segmentBytes of the
// geometry's block size. Objects already present in the container are
// adopted, so a device reopens where it left off.
func NewDevice(container stow.Container, geo blockio.Geometry, totalBytes, segmentBytes int64, options ...Option) (*Device, error) {
	if container == nil {
		return nil, fmt.Errorf("Provided container was nil")
	}
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	switch {
	case segmentBytes < geo.BlockSize, segmentBytes%geo.BlockSize != 0:
		return nil, fmt.Errorf("Provided segment size (%s) must be a whole multiple of the block size (%s)", humanize.IBytes(uint64(segmentBytes)), humanize.IBytes(uint64(geo.BlockSize)))
	case segmentBytes > totalBytes:
		return nil, fmt.Errorf("Provided segment size (%s) must not exceed provided total size (%s)", humanize.IBytes(uint64(segmentBytes)), humanize.IBytes(uint64(totalBytes)))
	case totalBytes%segmentBytes != 0:
		return nil, fmt.Errorf("Provided total size (%s) must be a whole multiple of the segment size (%s)", humanize.IBytes(uint64(totalBytes)), humanize.IBytes(uint64(segmentBytes)))
	}

	dev := &Device{
		geo:          geo,
		container:    container,
		totalBytes:   totalBytes,
		segmentBytes: segmentBytes,
		concurFlush:  defConcurFlush,
	}
	for _, opt := range options {
		opt.apply(dev)
	}
	if dev.concurFlush < 1 {
		dev.concurFlush = 1
	}
	if dev.compressMode == ModeUnknown {
		return nil, fmt.Errorf("Provided compression mode is not usable")
	}

	var err error
	if dev.segments, err = loadSegments(container, totalBytes, segmentBytes); err != nil {
		return nil, fmt.Errorf("Could not create device using %s: %w", describeContainer(container), err)
	}
	return dev, nil
}

//Geometry fulfills part of blockio.BlockDevice
func (dev *Device) Geometry() blockio.Geometry {
	return dev.geo
}

//ReadBlocks fulfills part of blockio.BlockDevice
func (dev *Device) ReadBlocks(blocks []byte, start blockio.BlockIndex) error {
	count, err := dev.geo.BlockSpan(blocks)
	if err == nil && start.Offset(dev.geo.BlockSize)+int64(len(blocks)) > dev.totalBytes {
		err = io.EOF
	}
	if err != nil {
		return &blockio.DeviceError{Op: blockio.OpRead, Start: start, Blocks: count, Cause: err}
	}

	off := start.Offset(dev.geo.BlockSize)
	for len(blocks) > 0 {
		seg := &dev.segments[off/dev.segmentBytes]
		segOff := off % dev.segmentBytes
		n := dev.segmentBytes - segOff
		if n > int64(len(blocks)) {
			n = int64(len(blocks))
		}

		data, err := seg.load(dev.segmentBytes)
		if err != nil {
			return &blockio.DeviceError{Op: blockio.OpRead, Start: start, Blocks: count, Cause: err}
		}
		if data == nil { //sparse segments read as zeros
			util.ZeroFill(blocks[:n])
		} else {
			copy(blocks[:n], data[segOff:])
		}

		blocks, off = blocks[n:], off+n
	}
	return nil
}

//WriteBlocks fulfills part of blockio.BlockDevice
func (dev *Device) WriteBlocks(blocks []byte, start blockio.BlockIndex) error {
	count, err := dev.geo.BlockSpan(blocks)
	if err == nil && start.Offset(dev.geo.BlockSize)+int64(len(blocks)) > dev.totalBytes {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return &blockio.DeviceError{Op: blockio.OpWrite, Start: start, Blocks: count, Cause: err}
	}

	off := start.Offset(dev.geo.BlockSize)
	for len(blocks) > 0 {
		seg := &dev.segments[off/dev.segmentBytes]
		segOff := off % dev.segmentBytes
		n := dev.segmentBytes - segOff
		if n > int64(len(blocks)) {
			n = int64(len(blocks))
		}

		//An all-zero write to a segment that has never held data is a noop;
		// the segment stays sparse
		if seg.data == nil && seg.remoteItem == nil && util.IsZeros(blocks[:n]) {
			blocks, off = blocks[n:], off+n
			continue
		}

		data, err := seg.load(dev.segmentBytes)
		if err != nil {
			return &blockio.DeviceError{Op: blockio.OpWrite, Start: start, Blocks: count, Cause: err}
		}
		if data == nil {
			data = make([]byte, dev.segmentBytes)
			seg.data = data
		}
		copy(data[segOff:], blocks[:n])
		seg.dirty = true

		blocks, off = blocks[n:], off+n
	}
	return nil
}

//BlockCount fulfills part of blockio.BlockDevice
func (dev *Device) BlockCount() (blockio.BlockCount, error) {
	return blockio.BlockCount(dev.totalBytes / dev.geo.BlockSize), nil
}

//Flush uploads every dirty segment back to the object store, several at a
// time; every segment that fails is reported, not just the first
func (dev *Device) Flush() error {
	var (
		flushErrs *multierror.Error
		errMtx    sync.Mutex
	)
	flushSema := sema.NewChanSemaCount(dev.concurFlush)
	var pending sync.WaitGroup

	for i := range dev.segments {
		seg := &dev.segments[i]
		if !seg.dirty {
			continue
		}
		flushSema.P()
		pending.Add(1)

		go func(seg *segment) {
			defer func() {
				flushSema.V()
				pending.Done()
			}()

			if err := dev.flushSegment(seg); err != nil {
				errMtx.Lock()
				flushErrs = multierror.Append(flushErrs, err)
				errMtx.Unlock()
			}
		}(seg)
	}
	pending.Wait()

	if err := flushErrs.ErrorOrNil(); err != nil {
		return fmt.Errorf("One or more segments failed to flush: %w", err)
	}
	return nil
}

//flushSegment uploads one dirty segment, returning all-zero segments to the
// sparse state rather than storing objects full of zeros
func (dev *Device) flushSegment(seg *segment) error {
	if util.IsZeros(seg.data) {
		if seg.remoteItem != nil {
			if err := dev.container.RemoveItem(seg.remoteItem.ID()); err != nil {
				return fmt.Errorf("Could not remove zeroed %s: %w", describeItem(seg.remoteItem), err)
			}
			seg.remoteItem = nil
		}
		seg.data, seg.dirty = nil, false
		return nil
	}

	var payload bytes.Buffer
	wtr, err := dev.compressMode.NewWriter(&payload)
	if err != nil {
		return fmt.Errorf("Could not create %s stream compressor: %w", dev.compressMode, err)
	}
	if _, err = wtr.Write(seg.data); err != nil {
		return fmt.Errorf("Could not %s compress segment %d: %w", dev.compressMode, seg.id, err)
	}
	if err = wtr.Close(); err != nil {
		return fmt.Errorf("Could not finish %s compressing segment %d: %w", dev.compressMode, seg.id, err)
	}

	name := seg.objName(dev.compressMode)
	item, err := dev.container.Put(name, bytes.NewReader(payload.Bytes()), int64(payload.Len()), nil)
	if err != nil {
		return fmt.Errorf("Could not store segment %d as object %q in %s: %w", seg.id, name, describeContainer(dev.container), err)
	}

	//If the segment was previously stored under a different compression its
	// old object is now stale
	if prev := seg.remoteItem; prev != nil && prev.Name() != name {
		if err = dev.container.RemoveItem(prev.ID()); err != nil {
			return fmt.Errorf("Could not remove superseded %s: %w", describeItem(prev), err)
		}
	}

	seg.remoteItem, seg.remoteMode, seg.dirty = item, dev.compressMode, false
	return nil
}

//Close fulfills io.Closer by flushing any dirty segments
func (dev *Device) Close() error {
	if err := dev.Flush(); err != nil {
		return fmt.Errorf("Failed to write segments back to the object store during shutdown: %w", err)
	}
	return nil
}
