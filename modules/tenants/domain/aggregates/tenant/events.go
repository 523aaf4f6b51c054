package tenant

type RegisteredEvent struct {
	Result *Tenant
}

func NewRegisteredEvent(result *Tenant) *RegisteredEvent {
	return &RegisteredEvent{Result: result}
}

type StatusChangedEvent struct {
	Result *Tenant
	From   Status
	To     Status
}

func NewStatusChangedEvent(result *Tenant, from, to Status) *StatusChangedEvent {
	return &StatusChangedEvent{Result: result, From: from, To: to}
}

type ProvisioningFailedEvent struct {
	Result *Tenant
	Reason string
}

func NewProvisioningFailedEvent(result *Tenant, reason string) *ProvisioningFailedEvent {
	return &ProvisioningFailedEvent{Result: result, Reason: reason}
}

type DeletedEvent struct {
	Result *Tenant
}

func NewDeletedEvent(result *Tenant) *DeletedEvent {
	return &DeletedEvent{Result: result}
}

type CredentialsRotatedEvent struct {
	Result *Tenant
}

func NewCredentialsRotatedEvent(result *Tenant) *CredentialsRotatedEvent {
	return &CredentialsRotatedEvent{Result: result}
}
