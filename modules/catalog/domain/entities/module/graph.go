package module

import "fmt"

// CycleError reports a dependency cycle found while validating the catalog.
type CycleError struct {
	Code string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("module dependency cycle through %q", e.Code)
}

// UnknownDependencyError reports a dependency on a code absent from the catalog.
type UnknownDependencyError struct {
	Module   string
	Requires string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("module %q depends on unknown module %q", e.Module, e.Requires)
}

// ValidateGraph checks that the dependency adjacency over the given modules is
// closed and acyclic. Called on every catalog write that touches dependencies.
func ValidateGraph(modules []*Module) error {
	adjacency := make(map[string][]string, len(modules))
	for _, m := range modules {
		adjacency[m.Code()] = m.DependsOn()
	}

	for code, deps := range adjacency {
		for _, dep := range deps {
			if _, ok := adjacency[dep]; !ok {
				return &UnknownDependencyError{Module: code, Requires: dep}
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(adjacency))

	var visit func(code string) error
	visit = func(code string) error {
		switch color[code] {
		case gray:
			return &CycleError{Code: code}
		case black:
			return nil
		}
		color[code] = gray
		for _, dep := range adjacency[code] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[code] = black
		return nil
	}

	for code := range adjacency {
		if err := visit(code); err != nil {
			return err
		}
	}
	return nil
}
