package consent

import (
	"slices"
	"time"
)

// Category is one of the four data-processing preference categories a
// visitor can consent to.
type Category string

const (
	CategoryFunctional  Category = "functional"
	CategoryPreferences Category = "preferences"
	CategoryAnalytics   Category = "analytics"
	CategoryMarketing   Category = "marketing"
)

// Change method provenance tags.
const (
	// MethodPost marks an explicit user submission.
	MethodPost = "POST"
	// MethodGPCHeader marks a signal-driven opt-out honored from the
	// Sec-GPC request header.
	MethodGPCHeader = "header:sec-gpc"
)

// Preferences are the visitor's current per-category flags. Functional is
// always true once any record exists.
type Preferences struct {
	Functional  bool `json:"functional"`
	Preferences bool `json:"preferences"`
	Analytics   bool `json:"analytics"`
	Marketing   bool `json:"marketing"`
}

type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusPartial  Status = "partial"
)

// DeriveStatus computes the summary status from the preference flags.
// It is the only source of a record's status; status is never stored
// independently of preferences.
func DeriveStatus(p Preferences) Status {
	if p.Functional && p.Preferences && p.Analytics && p.Marketing {
		return StatusAccepted
	}
	if !p.Functional && !p.Preferences && !p.Analytics && !p.Marketing {
		return StatusRejected
	}
	return StatusPartial
}

// Change is one immutable audit-trail entry describing a single
// consent-affecting action. Entries are never edited, removed or reordered.
type Change struct {
	Accepted  []Category `json:"accepted"`
	Rejected  []Category `json:"rejected"`
	URL       string     `json:"url"`
	Timestamp time.Time  `json:"timestamp"`
	Method    string     `json:"method"`
}

// Record is the durable per-visitor consent state.
//
// JSON field names follow the external contract consumers of the read
// endpoints already depend on.
type Record struct {
	// ID is the internal row id; not part of the external contract.
	ID int64 `json:"-"`
	// UUID is the externally shared handle, immutable once assigned.
	UUID      string `json:"uuid"`
	UserID    *int64 `json:"userId"`
	URL       string `json:"url"`
	IPAddress string `json:"ipAddress"`
	Ack       bool   `json:"ack"`

	Preferences Preferences `json:"preferences"`
	// GPC records that a global-privacy-control signal has been honored.
	// Monotonic: the engine never resets it to false.
	GPC     bool     `json:"gpc"`
	Changes []Change `json:"changes"`
	Status  Status   `json:"status"`

	DateCreated time.Time `json:"dateCreated"`
	DateUpdated time.Time `json:"dateUpdated"`
	DateExpires time.Time `json:"dateExpires"`
}

// ackStaleAfter is how long a record may sit untouched before the visitor
// must re-acknowledge their preferences.
const ackStaleAfterMonths = 6

// applyStaleness clears the ack flag on records that have not been updated
// for six months or more, forcing a re-prompt. The reset applies to the
// loaded value only; nothing is written back.
func applyStaleness(r Record, now time.Time) Record {
	if !r.DateUpdated.IsZero() && !r.DateUpdated.After(now.AddDate(0, -ackStaleAfterMonths, 0)) {
		r.Ack = false
	}
	return r
}

func hasCategory(set []Category, c Category) bool {
	return slices.Contains(set, c)
}

// clone returns a deep copy so callers can never alias the stored audit
// trail.
func (r Record) clone() Record {
	out := r
	if r.UserID != nil {
		id := *r.UserID
		out.UserID = &id
	}
	out.Changes = make([]Change, len(r.Changes))
	copy(out.Changes, r.Changes)
	for i, ch := range out.Changes {
		out.Changes[i].Accepted = slices.Clone(ch.Accepted)
		out.Changes[i].Rejected = slices.Clone(ch.Rejected)
	}
	return out
}
