package mmapdisk_test

import (
	"path/filepath"
	"testing"

	"github.com/tarndt/blockio/pkg/blockio"
	"github.com/tarndt/blockio/pkg/devices/mmapdisk"
	"github.com/tarndt/blockio/pkg/devices/testutil"
)

const (
	testBlockSize = 512
	testSizeBytes = 64 * testBlockSize
)

func TestMmapDisk(t *testing.T) {
	mdsk, err := mmapdisk.NewMmapDisk(filepath.Join(t.TempDir(), "disk.img"), blockio.Geometry{BlockSize: testBlockSize, Align: 1}, testSizeBytes)
	if err != nil {
		t.Fatalf("Could not create mmap disk: %s", err)
	}
	defer mdsk.Close()

	testutil.TestBlockDevice(t, mdsk)

	if err = mdsk.Flush(); err != nil {
		t.Fatalf("Could not flush mmap disk: %s", err)
	}
}

func TestMmapDiskStorage(t *testing.T) {
	mdsk, err := mmapdisk.NewMmapDisk(filepath.Join(t.TempDir(), "disk.img"), blockio.Geometry{BlockSize: testBlockSize, Align: 1}, testSizeBytes)
	if err != nil {
		t.Fatalf("Could not create mmap disk: %s", err)
	}
	defer mdsk.Close()

	stg, err := blockio.NewStorageBlockDevice(mdsk)
	if err != nil {
		t.Fatalf("Could not adapt mmap disk to a storage device: %s", err)
	}
	testutil.TestStorage(t, stg)
}

func TestMmapDiskPersists(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "disk.img")
	geo := blockio.Geometry{BlockSize: testBlockSize, Align: 1}

	mdsk, err := mmapdisk.NewMmapDisk(filename, geo, testSizeBytes)
	if err != nil {
		t.Fatalf("Could not create mmap disk: %s", err)
	}

	block := make([]byte, testBlockSize)
	for i := range block {
		block[i] = 0x5A
	}
	if err = mdsk.WriteBlocks(block, 7); err != nil {
		t.Fatalf("Could not write block 7: %s", err)
	}
	if err = mdsk.Close(); err != nil {
		t.Fatalf("Could not close mmap disk: %s", err)
	}

	if mdsk, err = mmapdisk.NewMmapDisk(filename, geo, 0); err != nil {
		t.Fatalf("Could not reopen mmap disk: %s", err)
	}
	defer mdsk.Close()

	check := make([]byte, testBlockSize)
	if err = mdsk.ReadBlocks(check, 7); err != nil {
		t.Fatalf("Could not read block 7 back: %s", err)
	}
	for i, val := range check {
		if val != 0x5A {
			t.Fatalf("Byte %d of block 7 did not survive reopen: 0x%02x", i, val)
		}
	}
}
