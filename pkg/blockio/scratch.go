package blockio

import ( //Dark magic to let us see where the runtime put our buffers...
	"unsafe"
)

//AlignedBuffer returns a zeroed byte slice of the requested size whose first
// byte sits at an address satisfying the requested power-of-two alignment.
// It over-allocates by up to align-1 bytes and shifts the slice start, so the
// result must not be append()ed to or re-sliced below index zero.
func AlignedBuffer(size, align int64) []byte {
	if align <= 1 {
		return make([]byte, size)
	}
	raw := make([]byte, size+align-1)
	var shift int64
	if mis := Misalignment(raw, align); mis != 0 {
		shift = align - mis
	}
	return raw[shift : shift+size : shift+size]
}

//Misalignment reports how many bytes past the last aligned address the first
// byte of buf sits, or 0 if buf is empty, aligned, or no alignment is
// required. Devices with strict geometries use it to reject buffers they
// cannot transfer directly.
func Misalignment(buf []byte, align int64) int64 {
	if align <= 1 || len(buf) == 0 {
		return 0
	}
	return int64(uintptr(unsafe.Pointer(&buf[0])) % uintptr(align))
}
