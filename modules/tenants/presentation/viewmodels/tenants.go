package viewmodels

import "time"

// Tenant deliberately has no credential fields. Connection strings never leave
// the persistence and router layers.
type Tenant struct {
	ID            string     `json:"id"`
	Code          string     `json:"code"`
	Name          string     `json:"name"`
	Domain        string     `json:"domain,omitempty"`
	Status        string     `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	DatabaseName  string     `json:"database_name,omitempty"`
	DatabaseHost  string     `json:"database_host,omitempty"`
	RotateAfter   *time.Time `json:"credentials_rotate_after,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Descriptor struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Domain       string `json:"domain,omitempty"`
	Status       string `json:"status"`
	DatabaseName string `json:"database_name,omitempty"`
	DatabaseHost string `json:"database_host,omitempty"`
}
