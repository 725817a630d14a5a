// Package ulid generates prefixed, lexicographically sortable identifiers
// on top of github.com/oklog/ulid/v2.
//
// Identifiers render as "<prefix>-<ULID>", e.g. "rev-01HZX3K9V6Q2M1T8B4N7C5D0EF".
// Generation uses monotonic entropy, so ids created in the same millisecond
// still sort in creation order.
package ulid

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	PrefixReview    = "rev"
	PrefixSession   = "chat"
	PrefixMessage   = "msg"
	PrefixRun       = "run"
	PrefixRequest   = "req"
	PrefixSeparator = "-"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// ID is a ULID with an optional type prefix
type ID struct {
	ulid.ULID
	prefix string
}

// NewWithTime creates an id for t with the given prefix
func NewWithTime(t time.Time, prefix string) ID {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	entropyMu.Unlock()
	return ID{ULID: id, prefix: prefix}
}

// GenerateWithPrefix creates an id for the current time
func GenerateWithPrefix(prefix string) ID {
	return NewWithTime(time.Now(), prefix)
}

// Generate creates an unprefixed id for the current time
func Generate() ID {
	return NewWithTime(time.Now(), "")
}

// Parse accepts both "PREFIX-ULID" and bare ULID strings
func Parse(s string) (ID, error) {
	prefix, raw := "", s
	if i := strings.LastIndex(s, PrefixSeparator); i >= 0 {
		prefix, raw = s[:i], s[i+1:]
	}
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return ID{}, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID{ULID: id, prefix: prefix}, nil
}

// Validate reports whether s parses as an id
func Validate(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Prefix returns the type prefix
func (id ID) Prefix() string { return id.prefix }

// Time returns the timestamp encoded in the id
func (id ID) Time() time.Time { return ulid.Time(id.ULID.Time()) }

// IsZero reports whether id is the zero value
func (id ID) IsZero() bool { return id.ULID == ulid.ULID{} }

func (id ID) String() string {
	if id.prefix == "" {
		return id.ULID.String()
	}
	return id.prefix + PrefixSeparator + id.ULID.String()
}

// ReviewID returns a new review result id
func ReviewID() string { return GenerateWithPrefix(PrefixReview).String() }

// SessionID returns a new chat session id
func SessionID() string { return GenerateWithPrefix(PrefixSession).String() }

// MessageID returns a new chat message id
func MessageID() string { return GenerateWithPrefix(PrefixMessage).String() }

// RunID returns a new workflow run id
func RunID() string { return GenerateWithPrefix(PrefixRun).String() }

// RequestID returns a new request id used for log correlation
func RequestID() string { return GenerateWithPrefix(PrefixRequest).String() }
