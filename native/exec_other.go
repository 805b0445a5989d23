//go:build !(amd64 && (linux || darwin || freebsd))

package native

// Supported reports whether Prepare can produce executable regions.
const Supported = false

func mapWritable(int) ([]byte, error) {
	return nil, ErrUnsupported
}

func protectExec([]byte) error {
	return ErrUnsupported
}

func unmap([]byte) error {
	return nil
}

func call([]byte, int, []int64) int64 {
	panic(ErrUnsupported)
}
