package consent

import (
	"context"
	"errors"
)

// ErrInvalidSelector means Load was called with no selector field set.
// That is a programmer error, not a "not found": an empty selector would
// otherwise match an arbitrary row.
var ErrInvalidSelector = errors.New("consent: load requires at least one selector field")

// Selector identifies a consent record by any one of the three keys.
// Matching is first-match OR semantics, not AND.
type Selector struct {
	ID     int64
	UUID   string
	UserID int64
}

func (s Selector) isEmpty() bool {
	return s.ID == 0 && s.UUID == "" && s.UserID == 0
}

// Store is the persistence contract for consent records.
//
// All operations are read-after-write consistent: a Load immediately
// following a write observes the write. Records are never deleted here;
// retention and erasure are an external concern.
type Store interface {
	// Load returns the first record matching any selector field, with the
	// staleness reset already applied. The boolean is false when no record
	// matches; that is not an error.
	Load(ctx context.Context, sel Selector) (Record, bool, error)

	// Insert stores a new record, assigning a fresh uuid when none is
	// supplied and setting dateExpires to one year out. The returned
	// record carries the assigned row id and uuid.
	Insert(ctx context.Context, rec Record) (Record, error)

	// Update replaces the record's preference, audit and context fields
	// wholesale and always refreshes dateExpires.
	Update(ctx context.Context, uuid string, rec Record) error

	// LookupUserIDByEmail maps an account email to its numeric id.
	LookupUserIDByEmail(ctx context.Context, email string) (int64, bool, error)

	// BindUserID attaches a user id to an anonymous record. One-way: an
	// existing non-null userId is never overwritten.
	BindUserID(ctx context.Context, uuid string, userID int64) error

	// ExtendExpiry unconditionally pushes dateExpires to one year out.
	ExtendExpiry(ctx context.Context, uuid string) error
}
