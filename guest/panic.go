package guest

import (
	"fmt"
	"os"
	"strings"
)

// abort hands msg to the host and returns the failure exit code. When the
// channel itself is broken the message still reaches stderr. Invalid UTF-8
// in msg is replaced so the host always receives text.
func abort(ch Channel, msg string) int {
	msg = strings.ToValidUTF8(msg, "\uFFFD")

	if err := ch.Send([]byte(msg)); err != nil {
		fmt.Fprintf(os.Stderr, "guest: %s\nguest: send diagnostic: %v\n", msg, err)
	}

	return ExitFailure
}
