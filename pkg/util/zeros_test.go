package util

import (
	"fmt"
	"testing"
)

//Sizes chosen to hit the word-at-a-time path, the byte tail, and both
var testSizes = []int{0, 1, 2, 7, 8, 9, 63, 64, 65, 256, 257, 4096}

func TestIsZeros(t *testing.T) {
	for _, size := range testSizes {
		t.Run(fmt.Sprintf("all-zero-%d", size), func(t *testing.T) {
			if !IsZeros(make([]byte, size)) {
				t.Fatalf("IsZeros reported a %d byte zeroed block as dirty", size)
			}
		})

		if size < 1 {
			continue
		}

		//A single non-zero byte anywhere must be caught, including at word
		// boundaries and in the unaligned tail
		for _, pos := range []int{0, size / 2, size - 1} {
			t.Run(fmt.Sprintf("one-at-%d-of-%d", pos, size), func(t *testing.T) {
				block := make([]byte, size)
				block[pos] = 1
				if IsZeros(block) {
					t.Fatalf("IsZeros missed a non-zero byte at position %d of %d", pos, size)
				}
			})
		}
	}

	t.Run("nil", func(t *testing.T) {
		if !IsZeros(nil) {
			t.Fatal("IsZeros reported a nil block as dirty")
		}
	})
}

func TestZeroFill(t *testing.T) {
	ZeroFill(nil) //must not panic

	for _, size := range testSizes {
		t.Run(fmt.Sprintf("count-%d", size), func(t *testing.T) {
			block := make([]byte, size)
			for i := range block {
				block[i] = 0xA5
			}
			if ZeroFill(block); !IsZeros(block) {
				t.Fatalf("Block of %d bytes was not correctly zero-filled", size)
			}
		})
	}
}

func BenchmarkIsZeros(b *testing.B) {
	block := make([]byte, b.N)
	b.ReportAllocs()
	b.ResetTimer()

	IsZeros(block)
}

func BenchmarkZerofill(b *testing.B) {
	block := make([]byte, b.N)
	b.ReportAllocs()
	b.ResetTimer()

	ZeroFill(block)
}
