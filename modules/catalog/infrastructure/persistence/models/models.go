package models

import (
	"database/sql"
	"time"
)

type Plan struct {
	ID               string
	Code             string
	Name             string
	Description      sql.NullString
	MonthlyPrice     string
	YearlyPrice      string
	ModuleCodes      []string
	MaxUsers         int64
	MaxStorageGB     int64
	MaxProjects      int64
	MaxAPICallsMonth int64
	TrialDays        int
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Module struct {
	ID           string
	Code         string
	Name         string
	IsCore       bool
	MonthlyPrice string
	YearlyPrice  string
	DependsOn    []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AddOn struct {
	ID             string
	Code           string
	Name           string
	Kind           string
	Unit           sql.NullString
	Quantity       int64
	RequiresModule sql.NullString
	MonthlyPrice   string
	YearlyPrice    string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type UserTier struct {
	ID           string
	MinUsers     int64
	MaxUsers     int64
	PricePerUser string
}

type StoragePlan struct {
	ID        string
	StorageGB int64
	Price     string
}

type Subscription struct {
	ID                 string
	TenantID           string
	PlanID             string
	PlanCode           string
	Status             string
	BillingCycle       string
	Price              string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	TrialEndsAt        sql.NullTime
	SupersededByID     sql.NullString
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type SubscriptionModule struct {
	SubscriptionID string
	ModuleCode     string
	MaxEntities    sql.NullInt64
	Removed        bool
	ActivatedAt    time.Time
	ExpiresAt      sql.NullTime
}

type SubscriptionAddOn struct {
	SubscriptionID string
	AddOnCode      string
	Quantity       int64
	ActivatedAt    time.Time
	ExpiresAt      sql.NullTime
}
