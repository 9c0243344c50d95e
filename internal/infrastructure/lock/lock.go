package lock

import (
	"fmt"
	"os"
)

// holderIdentity identifies the process holding a lock, recorded for
// operators chasing a stuck record.
func holderIdentity() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
