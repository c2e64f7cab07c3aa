package blockio

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestDeviceError(t *testing.T) {
	devErr := &DeviceError{Op: OpRead, Start: 4, Blocks: 2, Cause: io.EOF}
	if !errors.Is(devErr, io.EOF) {
		t.Fatal("Expected the cause to be reachable via errors.Is")
	}
	if msg := devErr.Error(); !strings.Contains(msg, "read") || !strings.Contains(msg, "block 4") {
		t.Fatalf("Expected the message to name the operation and block range, not: %q", msg)
	}

	bare := &DeviceError{Op: OpWrite, Start: 0, Blocks: 1}
	if msg := bare.Error(); !strings.Contains(msg, "write") {
		t.Fatalf("Expected a causeless message to still name the operation, not: %q", msg)
	}
}

func TestIOError(t *testing.T) {
	devErr := &DeviceError{Op: OpRead, Start: 4, Blocks: 2, Cause: io.EOF}
	ioErr := &IOError{Op: OpRead, Off: 2048, Len: 100, Cause: devErr}

	if !errors.Is(ioErr, io.EOF) {
		t.Fatal("Expected the device cause to be reachable via errors.Is")
	}
	if got := ioErr.DeviceErr(); got != devErr {
		t.Fatalf("Expected DeviceErr to surface the nested device failure, not: %v", got)
	}
	if msg := ioErr.Error(); !strings.Contains(msg, "100 bytes at offset 2048") {
		t.Fatalf("Expected the message to name the byte range, not: %q", msg)
	}

	fileErr := &IOError{Op: OpWrite, Off: 0, Len: 10, Cause: io.ErrShortWrite}
	if got := fileErr.DeviceErr(); got != nil {
		t.Fatalf("Expected no device failure behind a byte granular fault, not: %v", got)
	}
}

func TestOpString(t *testing.T) {
	for op, want := range map[Op]string{OpRead: "read", OpWrite: "write", Op(0): "unknown-op"} {
		if got := op.String(); got != want {
			t.Fatalf("Expected op %d to present as %q, not %q", op, want, got)
		}
	}
}
