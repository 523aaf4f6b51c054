package entitlement

import (
	"errors"
	"fmt"
)

var (
	ErrExpiredSubscription   = errors.New("subscription is expired")
	ErrAsOfBeforePeriodStart = errors.New("asOf precedes the subscription period start")
)

// MissingDependencyError means the resolved module set contains a module whose
// declared dependency did not resolve. Resolution never guesses: the caller
// fixes the catalog data, identified by code.
type MissingDependencyError struct {
	Module   string
	Requires string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("module %q requires missing dependency %q", e.Module, e.Requires)
}

// ConflictingOverrideError means two non-expired subscription module lines
// target the same module code.
type ConflictingOverrideError struct {
	ModuleCode string
}

func (e *ConflictingOverrideError) Error() string {
	return fmt.Sprintf("conflicting subscription overrides for module %q", e.ModuleCode)
}

type UnknownModuleError struct {
	Code string
}

func (e *UnknownModuleError) Error() string {
	return fmt.Sprintf("unknown module code %q", e.Code)
}

type UnknownAddOnError struct {
	Code string
}

func (e *UnknownAddOnError) Error() string {
	return fmt.Sprintf("unknown add-on code %q", e.Code)
}

// AddOnRequirementError means an active add-on requires a module that is not
// part of the resolved set.
type AddOnRequirementError struct {
	AddOnCode string
	Requires  string
}

func (e *AddOnRequirementError) Error() string {
	return fmt.Sprintf("add-on %q requires module %q which is not entitled", e.AddOnCode, e.Requires)
}
