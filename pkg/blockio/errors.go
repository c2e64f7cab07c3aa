package blockio

import (
	"errors"
	"fmt"

	"github.com/tarndt/blockio/pkg/util/consterr"
)

//ErrPartialBlock is reported by block devices handed a buffer whose length is
// not a whole multiple of their block size
const ErrPartialBlock = consterr.ConstErr("Buffer length is not a whole multiple of the device block size")

//ErrNegativeOffset is reported by storage devices asked to address bytes
// before the start of the device
const ErrNegativeOffset = consterr.ConstErr("Byte offset must not be negative")

const (
	errBadBlockSize = consterr.ConstErr("Block size must be positive")
	errBadAlign     = consterr.ConstErr("Block alignment must be a positive power of two that divides the block size")
)

//Op is the kind of transfer an error-reporting device was performing
type Op uint8

//The operations a device can fail at
const (
	OpRead Op = iota + 1
	OpWrite
)

//String returns the human readable name of this operation
func (op Op) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	}
	return "unknown-op"
}

//DeviceError reports the failure of a block-granular transfer; it carries the
// operation kind and the block range that was being addressed so callers know
// exactly what the medium could not do
type DeviceError struct {
	Op     Op
	Start  BlockIndex
	Blocks BlockCount
	Cause  error
}

var _ error = (*DeviceError)(nil)

//Error fulfills error
func (devErr *DeviceError) Error() string {
	if devErr.Cause == nil {
		return fmt.Sprintf("Could not %s %d block(s) starting at block %d", devErr.Op, devErr.Blocks, devErr.Start)
	}
	return fmt.Sprintf("Could not %s %d block(s) starting at block %d: %s", devErr.Op, devErr.Blocks, devErr.Start, devErr.Cause)
}

//Unwrap exposes the underlying cause, if any, to errors.Is and errors.As
func (devErr *DeviceError) Unwrap() error {
	return devErr.Cause
}

//IOError reports the failure of a byte-granular transfer; it carries the
// operation kind and the byte range that was being addressed. When the fault
// originated on an underlying block device the nested *DeviceError is
// reachable via DeviceErr (or errors.As); when the device is natively byte
// addressable, such as a plain file, no DeviceError is present.
type IOError struct {
	Op    Op
	Off   int64
	Len   int
	Cause error
}

var _ error = (*IOError)(nil)

//Error fulfills error
func (ioErr *IOError) Error() string {
	if ioErr.Cause == nil {
		return fmt.Sprintf("Could not %s %d bytes at offset %d", ioErr.Op, ioErr.Len, ioErr.Off)
	}
	return fmt.Sprintf("Could not %s %d bytes at offset %d: %s", ioErr.Op, ioErr.Len, ioErr.Off, ioErr.Cause)
}

//Unwrap exposes the underlying cause, if any, to errors.Is and errors.As
func (ioErr *IOError) Unwrap() error {
	return ioErr.Cause
}

//DeviceErr returns the block-level failure behind this byte-level failure, or
// nil if the fault originated at byte granularity
func (ioErr *IOError) DeviceErr() *DeviceError {
	var devErr *DeviceError
	if errors.As(ioErr.Cause, &devErr) {
		return devErr
	}
	return nil
}
