package consent

import (
	"context"
	"errors"
	"time"
)

// Service is the consent reconciliation engine: it merges incoming consent
// decisions into the durable record, appends to the audit trail and derives
// the summary status.
//
// Invariants:
// - The changes list is append-only; prior entries are never edited,
//   removed or reordered.
// - status is always DeriveStatus(preferences) after every write.
// - uuid and userId from an existing record take precedence over
//   caller-supplied values: an identified record never regresses to
//   anonymous and an existing visitor never gets a new uuid.
// - gpc is never silently cleared.
//
// Concurrent reconciliations for the same uuid are not mutually excluded;
// a last-write-wins race on the audit trail is accepted (per-visitor write
// concurrency is negligible). Store failures propagate unchanged; there is
// no retry here.
type Service struct {
	store Store
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, clock: time.Now}
}

// Action is a single consent decision: which categories it turned on and
// off, the page it happened on, and its provenance.
type Action struct {
	Accepted []Category `json:"accepted"`
	Rejected []Category `json:"rejected"`
	URL      string     `json:"url,omitempty"`
	Method   string     `json:"method"`
}

// SaveInput carries an explicit consent action plus its request context.
type SaveInput struct {
	UUID      string
	UserID    *int64
	URL       string
	IPAddress string
	Ack       bool
	// GPC overrides the stored flag when set; when nil the previous
	// record's value is kept (false for a new record).
	GPC    *bool
	Action Action
}

// OptOutInput carries the context of a global-privacy-control signal.
type OptOutInput struct {
	UUID      string
	URL       string
	IPAddress string
}

var errStoreRequired = errors.New("consent: store is not configured")

// Load is a read-side passthrough to the store.
func (s *Service) Load(ctx context.Context, sel Selector) (Record, bool, error) {
	if s.store == nil {
		return Record{}, false, errStoreRequired
	}
	return s.store.Load(ctx, sel)
}

// SaveConsent merges an explicit consent action into the visitor's record
// and returns the freshly reloaded result, so callers observe exactly what
// is durable, including server-computed timestamps.
func (s *Service) SaveConsent(ctx context.Context, in SaveInput) (Record, error) {
	if s.store == nil {
		return Record{}, errStoreRequired
	}
	now := s.clock().UTC()

	var prior *Record
	if in.UUID != "" || in.UserID != nil {
		sel := Selector{UUID: in.UUID}
		if in.UserID != nil {
			sel.UserID = *in.UserID
		}
		rec, ok, err := s.store.Load(ctx, sel)
		if err != nil {
			return Record{}, err
		}
		if ok {
			prior = &rec
		}
	}

	// Preferences derive purely from the accepted set; functional is
	// always on once a record exists.
	prefs := Preferences{
		Functional:  true,
		Preferences: hasCategory(in.Action.Accepted, CategoryPreferences),
		Analytics:   hasCategory(in.Action.Accepted, CategoryAnalytics),
		Marketing:   hasCategory(in.Action.Accepted, CategoryMarketing),
	}

	change := Change{
		Accepted:  in.Action.Accepted,
		Rejected:  in.Action.Rejected,
		URL:       in.Action.URL,
		Timestamp: now,
		Method:    in.Action.Method,
	}
	if change.URL == "" {
		change.URL = in.URL
	}

	var changes []Change
	if prior != nil {
		changes = append(changes, prior.Changes...)
	}
	changes = append(changes, change)

	rec := Record{
		URL:         in.URL,
		IPAddress:   in.IPAddress,
		Ack:         in.Ack,
		Preferences: prefs,
		Changes:     changes,
		Status:      DeriveStatus(prefs),
	}

	switch {
	case in.GPC != nil:
		rec.GPC = *in.GPC
	case prior != nil:
		rec.GPC = prior.GPC
	}

	rec.UserID = in.UserID
	if prior != nil {
		rec.UUID = prior.UUID
		if prior.UserID != nil {
			rec.UserID = prior.UserID
		}
	}

	if prior != nil {
		if err := s.store.Update(ctx, prior.UUID, rec); err != nil {
			return Record{}, err
		}
		return s.reload(ctx, Selector{UUID: prior.UUID})
	}

	inserted, err := s.store.Insert(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	return s.reload(ctx, Selector{ID: inserted.ID})
}

// SaveGPCOptOut honors a global-privacy-control signal.
//
// Idempotent: a visitor whose record already has gpc set is returned as-is,
// so repeated signals never grow the audit trail. A fresh visitor gets a
// privacy-protective default record; an existing non-gpc record keeps its
// current preferences except that analytics and marketing are forced off.
func (s *Service) SaveGPCOptOut(ctx context.Context, in OptOutInput) (Record, error) {
	if s.store == nil {
		return Record{}, errStoreRequired
	}

	var prior *Record
	if in.UUID != "" {
		rec, ok, err := s.store.Load(ctx, Selector{UUID: in.UUID})
		if err != nil {
			return Record{}, err
		}
		if ok {
			prior = &rec
		}
	}

	if prior != nil && prior.GPC {
		return *prior, nil
	}

	if prior == nil {
		gpc := true
		return s.SaveConsent(ctx, SaveInput{
			UUID:      in.UUID,
			URL:       in.URL,
			IPAddress: in.IPAddress,
			Ack:       false,
			GPC:       &gpc,
			Action: Action{
				Accepted: []Category{CategoryFunctional, CategoryPreferences},
				Rejected: []Category{CategoryMarketing, CategoryAnalytics},
				URL:      in.URL,
				Method:   MethodGPCHeader,
			},
		})
	}

	// Narrow update: existing preferences survive except the two tracking
	// categories, which the signal forces off.
	accepted := []Category{CategoryFunctional}
	if prior.Preferences.Preferences {
		accepted = append(accepted, CategoryPreferences)
	}
	change := Change{
		Accepted:  accepted,
		Rejected:  []Category{CategoryMarketing, CategoryAnalytics},
		URL:       in.URL,
		Timestamp: s.clock().UTC(),
		Method:    MethodGPCHeader,
	}

	next := prior.clone()
	next.Preferences.Analytics = false
	next.Preferences.Marketing = false
	next.GPC = true
	next.Changes = append(next.Changes, change)
	next.Status = DeriveStatus(next.Preferences)

	if err := s.store.Update(ctx, prior.UUID, next); err != nil {
		return Record{}, err
	}
	return s.reload(ctx, Selector{UUID: prior.UUID})
}

// ShouldExtend reports whether the record qualifies for proactive renewal:
// true while more than 30 whole days remain until expiry. Renewal happens
// on almost every visit except right after a previous renewal.
func (s *Service) ShouldExtend(rec Record) bool {
	days := int(rec.DateExpires.Sub(s.clock()).Hours() / 24)
	return days > 30
}

// ExtendExpiry pushes the record's expiry a year out, independent of its
// preference values, and returns the reloaded record. Purely an
// audit/availability mechanism; it never gates on consent status.
func (s *Service) ExtendExpiry(ctx context.Context, uid string) (Record, error) {
	if s.store == nil {
		return Record{}, errStoreRequired
	}
	if err := s.store.ExtendExpiry(ctx, uid); err != nil {
		return Record{}, err
	}
	return s.reload(ctx, Selector{UUID: uid})
}

// BindUserID attaches an identity to an anonymous record (one-way) and
// returns the reloaded record.
func (s *Service) BindUserID(ctx context.Context, uid string, userID int64) (Record, error) {
	if s.store == nil {
		return Record{}, errStoreRequired
	}
	if err := s.store.BindUserID(ctx, uid, userID); err != nil {
		return Record{}, err
	}
	return s.reload(ctx, Selector{UUID: uid})
}

func (s *Service) reload(ctx context.Context, sel Selector) (Record, error) {
	rec, ok, err := s.store.Load(ctx, sel)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, errors.New("consent: record vanished after write")
	}
	return rec, nil
}
