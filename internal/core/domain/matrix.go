package domain

import (
	"iter"

	"go.trai.ch/zerr"
)

// Matrix is the set of environments selected for one run, closed over
// their depends declarations. It validates the barrier graph and yields a
// deterministic topological order.
type Matrix struct {
	specs map[string]*EnvSpec
	order []string
}

// NewMatrix creates an empty matrix.
func NewMatrix() *Matrix {
	return &Matrix{specs: make(map[string]*EnvSpec)}
}

// Add inserts a spec. Adding the same environment twice is an error.
func (m *Matrix) Add(spec *EnvSpec) error {
	name := spec.Name.String()
	if _, exists := m.specs[name]; exists {
		err := zerr.With(ErrUnknownEnvironment, "env", name)
		return zerr.With(err, "reason", "environment added twice")
	}
	m.specs[name] = spec
	return nil
}

// Get returns the spec for name.
func (m *Matrix) Get(name string) (*EnvSpec, bool) {
	spec, ok := m.specs[name]
	return spec, ok
}

// Len returns the number of environments in the matrix.
func (m *Matrix) Len() int { return len(m.specs) }

// Names returns the environment names in sorted order.
func (m *Matrix) Names() []string { return sortedKeys(m.specs) }

// Validate checks that every depends target is present and that the
// barrier graph is acyclic, via a depth-first topological sort. It
// populates the order Walk yields.
func (m *Matrix) Validate() error {
	m.order = make([]string, 0, len(m.specs))
	// 0: unvisited, 1: visiting, 2: visited
	visited := make(map[string]int, len(m.specs))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		visited[name] = 1
		path = append(path, name)

		spec, exists := m.specs[name]
		if !exists {
			err := zerr.With(ErrUnknownEnvironment, "env", name)
			return zerr.With(err, "reason", "depends target not in matrix")
		}

		for _, dep := range spec.Depends {
			depName := dep.String()
			if visited[depName] == 1 {
				return buildDependsCycleError(path, depName)
			}
			if visited[depName] == 0 {
				if err := visit(depName); err != nil {
					return err
				}
			}
		}

		visited[name] = 2
		path = path[:len(path)-1]
		m.order = append(m.order, name)
		return nil
	}

	// Sorted roots keep the topological order stable across runs.
	for _, name := range sortedKeys(m.specs) {
		if visited[name] == 0 {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildDependsCycleError(path []string, dep string) error {
	cycle := ""
	start := 0
	for i, node := range path {
		if node == dep {
			start = i
			break
		}
	}
	for i := start; i < len(path); i++ {
		cycle += path[i] + " -> "
	}
	cycle += dep
	return zerr.With(ErrDependencyCycle, "cycle", cycle)
}

// Walk yields specs in dependency order: every environment appears after
// all of its depends targets. Valid only after Validate returns nil.
func (m *Matrix) Walk() iter.Seq[*EnvSpec] {
	return func(yield func(*EnvSpec) bool) {
		for _, name := range m.order {
			if !yield(m.specs[name]) {
				return
			}
		}
	}
}
