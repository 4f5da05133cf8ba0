// SPDX-License-Identifier: MIT

/*
Package bitint provides the power-of-two helpers used when sizing
callback buffers. Device drivers and the Oto mixer both prefer buffer
lengths that are powers of two, so configured frame counts are
validated with IsPowerOfTwo and derived ones rounded with
NextPowerOfTwo.

	frames := bitint.NextPowerOfTwo(latencyFrames) // 1000 -> 1024
	ok := bitint.IsPowerOfTwo(cfg.Audio.FramesPerBuffer)

NextPowerOfTwo subtracts one before taking the bit length so exact
powers of two are preserved: for 8, bits.Len(7) is 3 and 1<<3 is 8.
Without the subtraction, 8 would become 16.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size.
// Non-positive sizes return 1.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
// A power of two has one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
