package bufferpool

import "unsafe"

// uintptrOf returns the address of the first byte of b. Used only to
// compute sector-alignment padding within an mmap'd region; the resulting
// integer is never dereferenced as a pointer itself.
func uintptrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
