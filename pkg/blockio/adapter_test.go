package blockio_test

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/tarndt/blockio/pkg/blockio"
	"github.com/tarndt/blockio/pkg/devices/ramdisk"
	"github.com/tarndt/blockio/pkg/devices/testutil"
)

const (
	testBlockSize  = 512
	testBlockCount = 64
)

func newTestStorage(t *testing.T) (*blockio.StorageBlockDevice, *testutil.CountingDevice) {
	t.Helper()

	rdsk, err := ramdisk.NewRAMDisk(blockio.Geometry{BlockSize: testBlockSize, Align: 1}, testBlockCount)
	if err != nil {
		t.Fatalf("Could not create backing RAM disk: %s", err)
	}
	counter := &testutil.CountingDevice{BlockDevice: rdsk}

	stg, err := blockio.NewStorageBlockDevice(counter)
	if err != nil {
		t.Fatalf("Could not adapt RAM disk to a storage device: %s", err)
	}
	return stg, counter
}

func TestStorageBlockDevice(t *testing.T) {
	stg, _ := newTestStorage(t)
	testutil.TestStorage(t, stg)
}

func TestStorageBlockDeviceSize(t *testing.T) {
	stg, _ := newTestStorage(t)
	if size, err := stg.Size(); err != nil {
		t.Fatalf("Could not get storage size: %s", err)
	} else if size != testBlockSize*testBlockCount {
		t.Fatalf("Expected a size of %d bytes, not %d", testBlockSize*testBlockCount, size)
	}
}

func TestStorageBlockDeviceRejectsBadGeometry(t *testing.T) {
	if _, err := blockio.NewStorageBlockDevice(&testutil.OffsetDisk{
		Geo:    blockio.Geometry{BlockSize: testBlockSize, Align: 3},
		Blocks: testBlockCount,
	}); err == nil {
		t.Fatal("Expected a device with an impossible alignment to be rejected")
	}
}

//TestStorageBlockDeviceOpCounts pins down exactly how many device operations
// each shape of byte granular request costs: block aligned requests transfer
// in one operation and arbitrary ones in at most three reads, or five
// operations for writes whose partial edge blocks must be read-modify-written
func TestStorageBlockDeviceOpCounts(t *testing.T) {
	stg, counter := newTestStorage(t)

	for _, tc := range []struct {
		name                 string
		off, length          int64
		readOps, writeRMWOps uint //device ops for ReadAt, and for WriteAt
	}{
		{"empty", 0, 0, 0, 0},
		{"whole-block", 0, testBlockSize, 1, 1},
		{"whole-blocks-offset", testBlockSize, 4 * testBlockSize, 1, 1},
		{"inside-one-block", 7, 3, 1, 2},
		{"single-leading-byte", testBlockSize - 1, 1, 1, 2},
		{"single-trailing-byte", 0, 1, 1, 2},
		{"unaligned-block-length", 7, testBlockSize, 2, 4},
		{"both-edges-and-middle", 3, 2*testBlockSize + 10, 3, 5},
	} {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, tc.length)

			counter.Reset()
			if _, err := stg.ReadAt(buf, tc.off); err != nil {
				t.Fatalf("Could not read %d bytes at offset %d: %s", tc.length, tc.off, err)
			}
			if counter.Writes != 0 {
				t.Fatalf("Expected a read to issue no device writes, not %d", counter.Writes)
			}
			if counter.Reads != tc.readOps {
				t.Fatalf("Expected a read of %d bytes at offset %d to cost %d device operations, not %d", tc.length, tc.off, tc.readOps, counter.Reads)
			}

			counter.Reset()
			if _, err := stg.WriteAt(buf, tc.off); err != nil {
				t.Fatalf("Could not write %d bytes at offset %d: %s", tc.length, tc.off, err)
			}
			if counter.Ops() != tc.writeRMWOps {
				t.Fatalf("Expected a write of %d bytes at offset %d to cost %d device operations, not %d", tc.length, tc.off, tc.writeRMWOps, counter.Ops())
			}
		})
	}
}

//TestStorageBlockDeviceContentAddressing drives the adapter against the
// content addressed debug devices, which compute rather than store their
// blocks, proving every byte of an unaligned request is routed to exactly the
// right position on the device
func TestStorageBlockDeviceContentAddressing(t *testing.T) {
	for _, tc := range []struct {
		name   string
		dev    blockio.BlockDevice
		expect func(absOff int64) byte
	}{
		{
			"offset-within-block",
			&testutil.OffsetDisk{Geo: blockio.Geometry{BlockSize: testBlockSize, Align: 1}, Blocks: testBlockCount},
			func(absOff int64) byte { return byte(absOff % testBlockSize) },
		},
		{
			"block-index",
			&testutil.IndexDisk{Geo: blockio.Geometry{BlockSize: testBlockSize, Align: 1}, Blocks: testBlockCount},
			func(absOff int64) byte { return byte(absOff / testBlockSize) },
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			stg, err := blockio.NewStorageBlockDevice(tc.dev)
			if err != nil {
				t.Fatalf("Could not adapt debug device to a storage device: %s", err)
			}

			for _, req := range []struct{ off, length int64 }{
				{0, testBlockSize}, {7, 3}, {7, testBlockSize}, {511, 1}, {3, 2*testBlockSize + 10},
			} {
				buf := make([]byte, req.length)
				if _, err := stg.ReadAt(buf, req.off); err != nil {
					t.Fatalf("Could not read %d bytes at offset %d: %s", req.length, req.off, err)
				}
				for i, got := range buf {
					if want := tc.expect(req.off + int64(i)); got != want {
						t.Fatalf("Byte at offset %d read as 0x%02x rather than 0x%02x", req.off+int64(i), got, want)
					}
				}

				//The debug devices verify written blocks against the same
				// pattern, so echoing the read back proves unaligned writes
				// place every byte correctly too
				if _, err := stg.WriteAt(buf, req.off); err != nil {
					t.Fatalf("Device rejected write of %d bytes at offset %d as misplaced: %s", req.length, req.off, err)
				}
			}
		})
	}
}

//TestStorageBlockDeviceAlignment proves the adapter honors a device's declared
// buffer alignment: aligned caller buffers ride the zero-copy fast path while
// misaligned ones are staged block by block through the adapter's own aligned
// scratch block instead of reaching the device
func TestStorageBlockDeviceAlignment(t *testing.T) {
	const align = 64
	counter := &testutil.CountingDevice{BlockDevice: &testutil.OffsetDisk{
		Geo:    blockio.Geometry{BlockSize: testBlockSize, Align: align},
		Blocks: testBlockCount,
	}}
	stg, err := blockio.NewStorageBlockDevice(counter)
	if err != nil {
		t.Fatalf("Could not adapt strictly aligned device to a storage device: %s", err)
	}

	const blocks = 4
	aligned := blockio.AlignedBuffer(blocks*testBlockSize, align)
	if _, err = stg.ReadAt(aligned, 0); err != nil {
		t.Fatalf("Could not read using an aligned buffer: %s", err)
	}
	if counter.Reads != 1 {
		t.Fatalf("Expected an aligned read of %d blocks to cost 1 device operation, not %d", blocks, counter.Reads)
	}

	counter.Reset()
	misaligned := blockio.AlignedBuffer(blocks*testBlockSize+1, align)[1:]
	if _, err = stg.ReadAt(misaligned, 0); err != nil {
		t.Fatalf("Could not read using a misaligned buffer: %s", err)
	}
	if counter.Reads != blocks {
		t.Fatalf("Expected a misaligned read of %d blocks to be staged in %d device operations, not %d", blocks, blocks, counter.Reads)
	}
	if !bytes.Equal(misaligned, aligned) {
		t.Fatal("Misaligned buffer did not receive the same contents as the aligned one")
	}

	counter.Reset()
	if _, err = stg.WriteAt(misaligned, 0); err != nil {
		t.Fatalf("Device rejected a staged write from a misaligned buffer: %s", err)
	}
	if counter.Writes != blocks {
		t.Fatalf("Expected a misaligned write of %d blocks to be staged in %d device operations, not %d", blocks, blocks, counter.Writes)
	}
}

func TestStorageBlockDeviceErrors(t *testing.T) {
	stg, _ := newTestStorage(t)
	buf := make([]byte, testBlockSize)

	var ioErr *blockio.IOError
	_, err := stg.ReadAt(buf, testBlockSize*testBlockCount)
	switch {
	case err == nil:
		t.Fatal("Expected an out of range read to fail")
	case !errors.As(err, &ioErr):
		t.Fatalf("Expected an out of range read to fail with an *IOError, not: %v", err)
	case ioErr.Op != blockio.OpRead, ioErr.Off != testBlockSize*testBlockCount, ioErr.Len != len(buf):
		t.Fatalf("IOError misdescribes the failed request: %+v", ioErr)
	case ioErr.DeviceErr() == nil:
		t.Fatal("Expected the block device failure to be reachable via DeviceErr")
	case !errors.Is(err, io.EOF):
		t.Fatalf("Expected the root cause to be io.EOF, not: %v", err)
	}

	if _, err = stg.WriteAt(buf, testBlockSize*testBlockCount); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Expected an out of range write to fail with io.ErrUnexpectedEOF, not: %v", err)
	}
}

func TestStorageBlockDeviceNegativeOffset(t *testing.T) {
	stg, counter := newTestStorage(t)
	buf := make([]byte, 4)

	var ioErr *blockio.IOError
	if _, err := stg.ReadAt(buf, -7); !errors.Is(err, blockio.ErrNegativeOffset) {
		t.Fatalf("Expected a negative offset read to fail with ErrNegativeOffset, not: %v", err)
	} else if !errors.As(err, &ioErr) {
		t.Fatalf("Expected a negative offset read to fail with an *IOError, not: %v", err)
	} else if ioErr.Off != -7 || ioErr.Len != len(buf) {
		t.Fatalf("IOError misdescribes the failed request: %+v", ioErr)
	}

	if _, err := stg.WriteAt(buf, -7); !errors.Is(err, blockio.ErrNegativeOffset) {
		t.Fatalf("Expected a negative offset write to fail with ErrNegativeOffset, not: %v", err)
	}
	if counter.Ops() != 0 {
		t.Fatalf("Expected negative offset requests to never reach the device, but %d operations did", counter.Ops())
	}
}

func BenchmarkAlignedRead(b *testing.B) {
	benchmarkRead(b, 0, 32*testBlockSize)
}

func BenchmarkUnalignedRead(b *testing.B) {
	benchmarkRead(b, 7, 32*testBlockSize)
}

func benchmarkRead(b *testing.B, off, length int64) {
	rdsk, err := ramdisk.NewRAMDisk(blockio.Geometry{BlockSize: testBlockSize, Align: 1}, testBlockCount)
	if err != nil {
		b.Fatalf("Could not create backing RAM disk: %s", err)
	}
	stg, err := blockio.NewStorageBlockDevice(rdsk)
	if err != nil {
		b.Fatalf("Could not adapt RAM disk to a storage device: %s", err)
	}

	buf := make([]byte, length)
	rand.New(rand.NewSource(1)).Read(buf)
	if _, err = stg.WriteAt(buf, off); err != nil {
		b.Fatalf("Could not populate device: %s", err)
	}

	b.SetBytes(length)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err = stg.ReadAt(buf, off); err != nil {
			b.Fatalf("Could not read: %s", err)
		}
	}
}
