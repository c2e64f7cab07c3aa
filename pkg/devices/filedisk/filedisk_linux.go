package filedisk

import (
	"fmt"

	"golang.org/x/sys/unix"
)

//Discard punches a hole in the backing file over the given byte range,
// returning the underlying pages to the filesystem while leaving the range
// reading back as zeros. The logical size of the device is unchanged.
func (fdsk *FileDisk) Discard(off, length int64) error {
	err := unix.Fallocate(int(fdsk.Fd()), unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE, off, length)
	if err != nil {
		return fmt.Errorf("Could not punch hole of %d bytes at offset %d in backing file: %w", length, off, err)
	}
	return nil
}
