package models

import (
	"database/sql"
	"time"
)

type Tenant struct {
	ID            string
	Code          string
	Name          string
	Domain        sql.NullString
	Status        string
	FailureReason sql.NullString
	DatabaseName  sql.NullString
	DatabaseHost  sql.NullString
	// ConnStringEncrypted is the sealed credential. ConnString is the legacy
	// plaintext column kept readable until every row has been rewritten.
	ConnStringEncrypted []byte
	ConnString          sql.NullString
	ConnRotateAfter     sql.NullTime
	APIKeyHash          sql.NullString
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
