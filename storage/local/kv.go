package local

import "github.com/pkg/errors"

// AnyRevision makes Put unconditional.
const AnyRevision int64 = -1

var (
	ErrRevisionMismatch = errors.New("kv: revision mismatch")
	ErrClosed           = errors.New("kv: closed")
)

// Item is a stored value and the revision it was written at.
type Item struct {
	Value    string
	Revision int64
}

// KV is a durable string key-value store. Every Put bumps the key's revision; a Put
// with expectRev other than AnyRevision fails with ErrRevisionMismatch when another
// writer got there first (0 expects the key to be absent).
type KV interface {
	Get(key string) (Item, bool, error)
	Put(key, value string, expectRev int64) (int64, error)
	Delete(key string) error
	Close() error
}
