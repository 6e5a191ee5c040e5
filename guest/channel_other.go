//go:build !wasip1

package guest

import (
	"os"
	"strconv"

	"github.com/weiihann/guestbench/bencher"
)

type fileChannel struct {
	f *os.File
}

// OpenChannel returns the channel on the file descriptor the host passed in
// GUESTBENCH_GUEST_PANIC_FD, or stderr when the guest runs standalone.
func OpenChannel() Channel {
	fd, err := strconv.Atoi(os.Getenv(bencher.EnvGuestPanicFD))
	if err != nil || fd <= 2 {
		return fileChannel{f: os.Stderr}
	}

	return fileChannel{f: os.NewFile(uintptr(fd), "guestbench-diagnostics")}
}

func (c fileChannel) Send(msg []byte) error {
	_, err := c.f.Write(msg)

	return err
}
