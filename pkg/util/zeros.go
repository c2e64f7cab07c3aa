package util

import ( //Dark magic to make simple things fast...
	"unsafe"
)

const wordBytes = 8

//IsZeros confirms the provided byte slice contains only zeros by returning
// true. The bulk of the slice is scanned a 64-bit word at a time.
func IsZeros(block []byte) bool {
	wordCount := len(block) / wordBytes

	if wordCount > 0 {
		words := unsafe.Slice((*uint64)(unsafe.Pointer(&block[0])), wordCount)
		for _, word := range words {
			if word != 0 {
				return false
			}
		}
		block = block[wordCount*wordBytes:]
	}

	for _, char := range block {
		if char != 0 {
			return false
		}
	}
	return true
}

//ZeroFill ensures the provided byte slice contains only zeros. Rather than a
// byte at a time loop, the already zeroed prefix is doubled with copy until
// it covers the whole slice.
func ZeroFill(block []byte) {
	if len(block) < 1 {
		return
	}

	block[0] = 0
	for i := 1; i < len(block); i <<= 1 {
		copy(block[i:], block[:i])
	}
}
