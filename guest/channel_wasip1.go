//go:build wasip1

package guest

import (
	"runtime"
	"unsafe"
)

//go:wasmimport bencher print_error
//go:noescape
func printError(ptr unsafe.Pointer, size uint32)

type hostChannel struct{}

// OpenChannel returns the channel backed by the host's print_error import.
func OpenChannel() Channel {
	return hostChannel{}
}

func (hostChannel) Send(msg []byte) error {
	if len(msg) == 0 {
		return nil
	}

	printError(unsafe.Pointer(&msg[0]), uint32(len(msg)))
	runtime.KeepAlive(msg)

	return nil
}
