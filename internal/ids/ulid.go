// Package ids issues AMQP message ids. A failed event keeps its id in the failure
// ledger, and replay publishes it again under the same id.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// NewMessageID returns a ULID that sorts by publish time within the process.
func NewMessageID() string {
	mu.Lock()
	defer mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
