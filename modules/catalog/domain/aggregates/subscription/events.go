package subscription

import "github.com/google/uuid"

type CreatedEvent struct {
	Result *Subscription
}

func NewCreatedEvent(result *Subscription) *CreatedEvent {
	return &CreatedEvent{Result: result}
}

type RenewedEvent struct {
	Result *Subscription
}

func NewRenewedEvent(result *Subscription) *RenewedEvent {
	return &RenewedEvent{Result: result}
}

type PlanChangedEvent struct {
	TenantID uuid.UUID
	OldID    uuid.UUID
	Result   *Subscription
}

func NewPlanChangedEvent(tenantID, oldID uuid.UUID, result *Subscription) *PlanChangedEvent {
	return &PlanChangedEvent{TenantID: tenantID, OldID: oldID, Result: result}
}

type StatusChangedEvent struct {
	Result *Subscription
	From   Status
	To     Status
}

func NewStatusChangedEvent(result *Subscription, from, to Status) *StatusChangedEvent {
	return &StatusChangedEvent{Result: result, From: from, To: to}
}
