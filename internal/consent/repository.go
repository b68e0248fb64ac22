package consent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repo is the Postgres-backed Store.
//
// Conceptual schema:
//
//	CREATE TABLE cookie_consent_log (
//	    id           bigserial PRIMARY KEY,
//	    uuid         text NOT NULL UNIQUE,
//	    user_id      bigint,
//	    url          text NOT NULL DEFAULT '',
//	    ip_address   text NOT NULL DEFAULT '',
//	    ack          boolean NOT NULL DEFAULT false,
//	    preferences  jsonb NOT NULL,
//	    gpc          boolean NOT NULL DEFAULT false,
//	    changes      jsonb,
//	    status       text NOT NULL,
//	    date_created timestamptz NOT NULL DEFAULT now(),
//	    date_updated timestamptz NOT NULL DEFAULT now(),
//	    date_expires timestamptz NOT NULL
//	);
//
//	CREATE TABLE users (
//	    id    bigserial PRIMARY KEY,
//	    email text NOT NULL UNIQUE
//	);
//
// Preferences and changes are JSONB at rest; (de)serialization lives here
// and nowhere else. The reconciliation engine only ever sees structured
// values.
type Repo struct {
	db *sql.DB
	// clock is injectable for deterministic tests of the staleness reset.
	clock func() time.Time
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db, clock: time.Now}
}

const recordColumns = `id, uuid, user_id, url, ip_address, ack, preferences, gpc, COALESCE(changes, '[]'::jsonb), status, date_created, date_updated, date_expires`

func (r *Repo) Load(ctx context.Context, sel Selector) (Record, bool, error) {
	if sel.isEmpty() {
		return Record{}, false, ErrInvalidSelector
	}

	// NULL selector fields never match: NULL = x is not true in SQL, which
	// gives the first-match OR semantics without dynamic query building.
	q := `
SELECT ` + recordColumns + `
FROM cookie_consent_log
WHERE id = $1 OR uuid = $2 OR user_id = $3
LIMIT 1
`
	row := r.db.QueryRowContext(ctx, q,
		nullInt64(sel.ID),
		nullString(sel.UUID),
		nullInt64(sel.UserID),
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("consent: load: %w", err)
	}
	return applyStaleness(rec, r.clock()), true, nil
}

func (r *Repo) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.UUID == "" {
		rec.UUID = uuid.NewString()
	}
	prefs, changes, err := marshalColumns(rec)
	if err != nil {
		return Record{}, err
	}

	const q = `
INSERT INTO cookie_consent_log (uuid, user_id, url, ip_address, ack, preferences, gpc, changes, status, date_expires)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now() + interval '1 year')
RETURNING id
`
	if err := r.db.QueryRowContext(ctx, q,
		rec.UUID,
		nullInt64Ptr(rec.UserID),
		rec.URL,
		rec.IPAddress,
		rec.Ack,
		prefs,
		rec.GPC,
		changes,
		string(rec.Status),
	).Scan(&rec.ID); err != nil {
		return Record{}, fmt.Errorf("consent: insert: %w", err)
	}
	return rec, nil
}

func (r *Repo) Update(ctx context.Context, uid string, rec Record) error {
	prefs, changes, err := marshalColumns(rec)
	if err != nil {
		return err
	}

	const q = `
UPDATE cookie_consent_log
SET user_id      = $2,
    url          = $3,
    ip_address   = $4,
    ack          = $5,
    preferences  = $6,
    gpc          = $7,
    changes      = $8,
    status       = $9,
    date_updated = now(),
    date_expires = now() + interval '1 year'
WHERE uuid = $1
`
	if _, err := r.db.ExecContext(ctx, q,
		uid,
		nullInt64Ptr(rec.UserID),
		rec.URL,
		rec.IPAddress,
		rec.Ack,
		prefs,
		rec.GPC,
		changes,
		string(rec.Status),
	); err != nil {
		return fmt.Errorf("consent: update: %w", err)
	}
	return nil
}

func (r *Repo) LookupUserIDByEmail(ctx context.Context, email string) (int64, bool, error) {
	const q = `SELECT id FROM users WHERE email = $1 LIMIT 1`
	var id int64
	if err := r.db.QueryRowContext(ctx, q, email).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("consent: email lookup: %w", err)
	}
	return id, true, nil
}

func (r *Repo) BindUserID(ctx context.Context, uid string, userID int64) error {
	// The user_id IS NULL guard makes the attach one-way at the store
	// level; an identified record keeps its identity.
	const q = `
UPDATE cookie_consent_log
SET user_id = $2
WHERE uuid = $1 AND user_id IS NULL
`
	if _, err := r.db.ExecContext(ctx, q, uid, userID); err != nil {
		return fmt.Errorf("consent: bind user id: %w", err)
	}
	return nil
}

func (r *Repo) ExtendExpiry(ctx context.Context, uid string) error {
	const q = `
UPDATE cookie_consent_log
SET date_expires = now() + interval '1 year'
WHERE uuid = $1
`
	if _, err := r.db.ExecContext(ctx, q, uid); err != nil {
		return fmt.Errorf("consent: extend expiry: %w", err)
	}
	return nil
}

func marshalColumns(rec Record) ([]byte, []byte, error) {
	prefs, err := json.Marshal(rec.Preferences)
	if err != nil {
		return nil, nil, fmt.Errorf("consent: marshal preferences: %w", err)
	}
	if rec.Changes == nil {
		rec.Changes = []Change{}
	}
	changes, err := json.Marshal(rec.Changes)
	if err != nil {
		return nil, nil, fmt.Errorf("consent: marshal changes: %w", err)
	}
	return prefs, changes, nil
}

func scanRecord(row *sql.Row) (Record, error) {
	var (
		rec     Record
		userID  sql.NullInt64
		prefs   []byte
		changes []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.UUID,
		&userID,
		&rec.URL,
		&rec.IPAddress,
		&rec.Ack,
		&prefs,
		&rec.GPC,
		&changes,
		&rec.Status,
		&rec.DateCreated,
		&rec.DateUpdated,
		&rec.DateExpires,
	); err != nil {
		return Record{}, err
	}
	if userID.Valid {
		rec.UserID = &userID.Int64
	}
	if err := json.Unmarshal(prefs, &rec.Preferences); err != nil {
		return Record{}, fmt.Errorf("unmarshal preferences: %w", err)
	}
	if err := json.Unmarshal(changes, &rec.Changes); err != nil {
		return Record{}, fmt.Errorf("unmarshal changes: %w", err)
	}
	return rec, nil
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullInt64Ptr(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
