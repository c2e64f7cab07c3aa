package testutil

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/tarndt/blockio/pkg/blockio"
	"github.com/tarndt/blockio/pkg/util/strms"
)

//TestBlockDevice runs every real block device implementation through the same
// raw block-level checks: geometry sanity, pattern round-trips at the start,
// middle and end of the device, multi-block transfers, rejection of partial
// block buffers and the sentinel errors for out of range requests
func TestBlockDevice(t *testing.T, dev blockio.BlockDevice) {
	geo := dev.Geometry()
	if err := geo.Validate(); err != nil {
		t.Fatalf("Device reported unusable geometry %+v: %s", geo, err)
	}

	count, err := dev.BlockCount()
	if err != nil {
		t.Fatalf("Could not get device block count: %s", err)
	} else if count < 4 {
		t.Fatalf("Devices under test must have at least 4 blocks, not %d", count)
	}

	rnd := rand.New(rand.NewSource(42))
	readBuf := blockio.AlignedBuffer(geo.BlockSize*2, geo.Align)
	writeBuf := blockio.AlignedBuffer(geo.BlockSize*2, geo.Align)

	t.Run("single-block-roundtrip", func(t *testing.T) {
		for _, idx := range []blockio.BlockIndex{0, blockio.BlockIndex(count / 2), blockio.BlockIndex(count - 1)} {
			block := writeBuf[:geo.BlockSize]
			rnd.Read(block)
			if err := dev.WriteBlocks(block, idx); err != nil {
				t.Fatalf("Could not write block %d: %s", idx, err)
			}
			if err := dev.ReadBlocks(readBuf[:geo.BlockSize], idx); err != nil {
				t.Fatalf("Could not read block %d back: %s", idx, err)
			}
			if !bytes.Equal(readBuf[:geo.BlockSize], block) {
				t.Fatalf("Block %d did not read back what was written", idx)
			}
		}
	})

	t.Run("multi-block-roundtrip", func(t *testing.T) {
		rnd.Read(writeBuf)
		if err := dev.WriteBlocks(writeBuf, 1); err != nil {
			t.Fatalf("Could not write 2 blocks at block 1: %s", err)
		}
		if err := dev.ReadBlocks(readBuf, 1); err != nil {
			t.Fatalf("Could not read 2 blocks at block 1 back: %s", err)
		}
		if !bytes.Equal(readBuf, writeBuf) {
			t.Fatal("Blocks 1-2 did not read back what was written")
		}
	})

	t.Run("partial-block-rejected", func(t *testing.T) {
		short := make([]byte, geo.BlockSize-1)
		if err := dev.ReadBlocks(short, 0); !errors.Is(err, blockio.ErrPartialBlock) {
			t.Fatalf("Expected partial block read to fail with ErrPartialBlock, not: %v", err)
		}
		if err := dev.WriteBlocks(short, 0); !errors.Is(err, blockio.ErrPartialBlock) {
			t.Fatalf("Expected partial block write to fail with ErrPartialBlock, not: %v", err)
		}
	})

	t.Run("out-of-range", func(t *testing.T) {
		var devErr *blockio.DeviceError
		if err := dev.ReadBlocks(readBuf[:geo.BlockSize], blockio.BlockIndex(count)); !errors.Is(err, io.EOF) {
			t.Fatalf("Expected out of range read to fail with io.EOF, not: %v", err)
		} else if !errors.As(err, &devErr) {
			t.Fatalf("Expected out of range read failure to be a *DeviceError, not: %v", err)
		}
		if err := dev.WriteBlocks(writeBuf[:geo.BlockSize], blockio.BlockIndex(count)); !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Fatalf("Expected out of range write to fail with io.ErrUnexpectedEOF, not: %v", err)
		}
		if err := dev.ReadBlocks(readBuf, blockio.BlockIndex(count-1)); !errors.Is(err, io.EOF) {
			t.Fatalf("Expected read straddling the device end to fail with io.EOF, not: %v", err)
		}
	})
}

//TestStorage runs a byte granular storage device through round-trips at
// deliberately awkward offsets and lengths, plus a streaming pass to prove it
// composes with io.Reader/io.Writer plumbing
func TestStorage(t *testing.T, stg blockio.StorageDevice) {
	size, err := stg.Size()
	if err != nil {
		t.Fatalf("Could not get storage size: %s", err)
	} else if size < 4096 {
		t.Fatalf("Storage under test must be at least 4 KiB, not %d bytes", size)
	}

	rnd := rand.New(rand.NewSource(7))

	t.Run("byte-granular-roundtrip", func(t *testing.T) {
		for _, tc := range []struct {
			name        string
			off, length int64
		}{
			{"unaligned-within-block", 7, 3},
			{"unaligned-spanning", 13, 1000},
			{"aligned-off-odd-len", 512, 700},
			{"single-byte", 511, 1},
			{"tail", size - 100, 100},
		} {
			t.Run(tc.name, func(t *testing.T) {
				writeBuf := make([]byte, tc.length)
				rnd.Read(writeBuf)
				if _, err := stg.WriteAt(writeBuf, tc.off); err != nil {
					t.Fatalf("Could not write %d bytes at offset %d: %s", tc.length, tc.off, err)
				}

				readBuf := make([]byte, tc.length)
				if _, err := stg.ReadAt(readBuf, tc.off); err != nil {
					t.Fatalf("Could not read %d bytes at offset %d back: %s", tc.length, tc.off, err)
				}
				if !bytes.Equal(readBuf, writeBuf) {
					t.Fatalf("Offset %d, length %d did not read back what was written", tc.off, tc.length)
				}
			})
		}
	})

	t.Run("neighbors-preserved", func(t *testing.T) {
		frame := make([]byte, 2048)
		rnd.Read(frame)
		if _, err := stg.WriteAt(frame, 0); err != nil {
			t.Fatalf("Could not write frame: %s", err)
		}

		patch := make([]byte, 100)
		rnd.Read(patch)
		if _, err := stg.WriteAt(patch, 700); err != nil {
			t.Fatalf("Could not write patch: %s", err)
		}
		copy(frame[700:], patch)

		check := make([]byte, len(frame))
		if _, err := stg.ReadAt(check, 0); err != nil {
			t.Fatalf("Could not read frame back: %s", err)
		}
		if !bytes.Equal(check, frame) {
			t.Fatal("Bytes neighboring an unaligned write were disturbed")
		}
	})

	t.Run("streaming", func(t *testing.T) {
		const start, length = 200, 3000
		writeBuf := make([]byte, length)
		rnd.Read(writeBuf)

		if _, err := io.Copy(strms.NewWriteAtWriter(stg, start), bytes.NewReader(writeBuf)); err != nil {
			t.Fatalf("Could not stream %d bytes in at offset %d: %s", length, start, err)
		}

		readBuf := make([]byte, length)
		if _, err := io.ReadFull(strms.NewReadAtReader(stg, start), readBuf); err != nil {
			t.Fatalf("Could not stream %d bytes out at offset %d: %s", length, start, err)
		}
		if !bytes.Equal(readBuf, writeBuf) {
			t.Fatal("Streamed bytes did not read back what was written")
		}
	})
}
