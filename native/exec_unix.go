//go:build amd64 && (linux || darwin || freebsd)

package native

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Supported reports whether Prepare can produce executable regions.
const Supported = true

// callNative is implemented in call_amd64.s.
//
//go:noescape
func callNative(entry uintptr, frame *int64) int64

func pageAlign(n int) int {
	page := unix.Getpagesize()
	return (n + page - 1) &^ (page - 1)
}

func mapWritable(n int) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, pageAlign(n), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("native: mmap %d bytes: %w", n, err)
	}
	return mem, nil
}

func protectExec(mem []byte) error {
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("native: mprotect: %w", err)
	}
	return nil
}

func unmap(mem []byte) error {
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("native: munmap: %w", err)
	}
	return nil
}

func call(mem []byte, entry int, frame []int64) int64 {
	v := callNative(uintptr(unsafe.Pointer(&mem[entry])), &frame[0])
	runtime.KeepAlive(frame)
	runtime.KeepAlive(mem)
	return v
}
