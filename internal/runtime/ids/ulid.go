// Package ids generates exchange identifiers.
package ids

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewExchangeID returns a time-sortable ULID encoded as a 26-character string.
// Ids created by one process are strictly increasing.
func NewExchangeID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// CreatedAt extracts the millisecond timestamp embedded in an exchange id.
func CreatedAt(id string) (time.Time, error) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse exchange id %q: %w", id, err)
	}
	return ulid.Time(parsed.Time()), nil
}
