package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrOperatorExists   = errors.New("operator already registered")
	ErrOperatorNotFound = errors.New("operator not found")
)

// SelectorFactory builds a selector from the GA configuration.
type SelectorFactory func(cfg Config) Selector

var operatorRegistry = struct {
	mu         sync.RWMutex
	selectors  map[string]SelectorFactory
	crossovers map[string]Crossover
}{
	selectors:  make(map[string]SelectorFactory),
	crossovers: make(map[string]Crossover),
}

func init() {
	mustRegister(RegisterSelector("tournament", func(cfg Config) Selector {
		return TournamentSelector{TournamentSize: cfg.TournamentSize}
	}))
	mustRegister(RegisterSelector("elite", func(cfg Config) Selector {
		return EliteSelector{Count: cfg.EliteCount}
	}))
	mustRegister(RegisterCrossover(BlendCrossover{}))
	mustRegister(RegisterCrossover(UniformCrossover{}))
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

func RegisterSelector(name string, factory SelectorFactory) error {
	if name == "" {
		return errors.New("selector name is required")
	}
	if factory == nil {
		return errors.New("selector factory is required")
	}
	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()
	if _, exists := operatorRegistry.selectors[name]; exists {
		return fmt.Errorf("%w: selector %s", ErrOperatorExists, name)
	}
	operatorRegistry.selectors[name] = factory
	return nil
}

func RegisterCrossover(op Crossover) error {
	if op == nil {
		return errors.New("crossover is required")
	}
	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()
	if _, exists := operatorRegistry.crossovers[op.Name()]; exists {
		return fmt.Errorf("%w: crossover %s", ErrOperatorExists, op.Name())
	}
	operatorRegistry.crossovers[op.Name()] = op
	return nil
}

// ResolveSelector builds the named selector. An empty name means tournament.
func ResolveSelector(name string, cfg Config) (Selector, error) {
	if name == "" {
		name = "tournament"
	}
	operatorRegistry.mu.RLock()
	factory, ok := operatorRegistry.selectors[name]
	operatorRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: selector %s", ErrOperatorNotFound, name)
	}
	return factory(cfg), nil
}

// ResolveCrossover returns the named crossover. An empty name means blend.
func ResolveCrossover(name string) (Crossover, error) {
	if name == "" {
		name = "blend"
	}
	operatorRegistry.mu.RLock()
	op, ok := operatorRegistry.crossovers[name]
	operatorRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: crossover %s", ErrOperatorNotFound, name)
	}
	return op, nil
}

func ListSelectors() []string {
	operatorRegistry.mu.RLock()
	defer operatorRegistry.mu.RUnlock()
	names := make([]string, 0, len(operatorRegistry.selectors))
	for name := range operatorRegistry.selectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListCrossovers() []string {
	operatorRegistry.mu.RLock()
	defer operatorRegistry.mu.RUnlock()
	names := make([]string, 0, len(operatorRegistry.crossovers))
	for name := range operatorRegistry.crossovers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
