package policy

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Store holds the active policy set behind a version number. Every
// administrative edit bumps the version; evaluations work on an
// explicit Snapshot so edits never reach in-flight work.
type Store struct {
	mu       sync.RWMutex
	version  int64
	order    []string
	policies map[string]*domain.PolicyDefinition
	programs map[string]cel.Program
	defaults map[string]*domain.PolicyDefinition
	compiler *RuleCompiler
}

// Snapshot is an immutable view of the policy set at one version.
type Snapshot struct {
	Version int64
	Order   []string
	// LGD carries the loss-given-default ratios frozen alongside the
	// policies, so pricing inside a batch never sees later table
	// edits. Nil means price against the live table.
	LGD      map[domain.ProductType]float64
	policies map[string]*domain.PolicyDefinition
	programs map[string]cel.Program
}

// Get returns the named policy from the snapshot, or nil.
func (s *Snapshot) Get(name string) *domain.PolicyDefinition {
	return s.policies[name]
}

// Program returns the compiled custom rule for a policy, or nil.
func (s *Snapshot) Program(name string) cel.Program {
	return s.programs[name]
}

// Policies returns the snapshot's policies in waterfall order.
func (s *Snapshot) Policies() []*domain.PolicyDefinition {
	out := make([]*domain.PolicyDefinition, 0, len(s.Order))
	for _, name := range s.Order {
		if p, ok := s.policies[name]; ok {
			out = append(out, p)
		}
	}
	return out
}

// NewStore creates a store from a policy set, compiling any custom
// rules. The initial version is 1.
func NewStore(set *domain.PolicySet) (*Store, error) {
	compiler, err := NewRuleCompiler()
	if err != nil {
		return nil, err
	}

	s := &Store{
		version:  1,
		order:    append([]string(nil), set.Order...),
		policies: make(map[string]*domain.PolicyDefinition, len(set.Policies)),
		programs: make(map[string]cel.Program),
		defaults: make(map[string]*domain.PolicyDefinition),
		compiler: compiler,
	}

	for _, p := range set.Policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if p.CustomRule != "" {
			program, err := compiler.Compile(p.Name, p.CustomRule)
			if err != nil {
				return nil, err
			}
			s.programs[p.Name] = program
		}
		s.policies[p.Name] = p.Clone()
	}
	for _, p := range DefaultPolicies() {
		s.defaults[p.Name] = p
	}

	for _, name := range s.order {
		if _, ok := s.policies[name]; !ok {
			return nil, domain.NewConfigurationError("policy order references unknown policy %q", name)
		}
	}
	return s, nil
}

// Version returns the current configuration version.
func (s *Store) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Bump increments the version without touching policies. Used when a
// related configuration surface (the LGD table) changes, so cached
// decisions keyed by version are invalidated.
func (s *Store) Bump() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	return s.version
}

// Snapshot returns an immutable copy of the current policy set.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Version:  s.version,
		Order:    append([]string(nil), s.order...),
		policies: make(map[string]*domain.PolicyDefinition, len(s.policies)),
		programs: make(map[string]cel.Program, len(s.programs)),
	}
	for name, p := range s.policies {
		snap.policies[name] = p.Clone()
	}
	for name, prog := range s.programs {
		// Compiled programs are immutable and safe to share.
		snap.programs[name] = prog
	}
	return snap
}

// Get returns a copy of one policy.
func (s *Store) Get(name string) (*domain.PolicyDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[name]
	if !ok {
		return nil, domain.NewConfigurationError("unknown policy %q", name)
	}
	return p.Clone(), nil
}

// List returns copies of all policies in waterfall order.
func (s *Store) List() []*domain.PolicyDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.PolicyDefinition, 0, len(s.order))
	for _, name := range s.order {
		if p, ok := s.policies[name]; ok {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Update validates and installs a policy, bumping the version. A name
// not in the waterfall is appended at the end of the order.
func (s *Store) Update(p *domain.PolicyDefinition) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	var program cel.Program
	if p.CustomRule != "" {
		var err error
		program, err = s.compiler.Compile(p.Name, p.CustomRule)
		if err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := p.Clone()
	cp.UpdatedAt = time.Now().UTC()
	if _, exists := s.policies[cp.Name]; !exists {
		s.order = append(s.order, cp.Name)
	}
	s.policies[cp.Name] = cp
	if program != nil {
		s.programs[cp.Name] = program
	} else {
		delete(s.programs, cp.Name)
	}
	s.version++
	return s.version, nil
}

// Reset restores a policy to its compiled-in default and bumps the
// version.
func (s *Store) Reset(name string) (*domain.PolicyDefinition, int64, error) {
	def, ok := s.defaults[name]
	if !ok {
		return nil, 0, domain.NewConfigurationError("no default for policy %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := def.Clone()
	cp.UpdatedAt = time.Now().UTC()
	if _, exists := s.policies[name]; !exists {
		s.order = append(s.order, name)
	}
	s.policies[name] = cp
	delete(s.programs, name)
	s.version++
	return cp.Clone(), s.version, nil
}

// LoadPolicySet reads a policy document from path, or returns the
// compiled-in defaults when path is empty.
func LoadPolicySet(path string) (*domain.PolicySet, error) {
	if path == "" {
		return &domain.PolicySet{
			Order:    DefaultOrder(),
			Policies: DefaultPolicies(),
		}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewConfigurationError("policies: read %s: %v", path, err)
	}
	var set domain.PolicySet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, domain.NewConfigurationError("policies: parse %s: %v", path, err)
	}
	if len(set.Policies) == 0 {
		return nil, domain.NewConfigurationError("policies: document %s has no policies", path)
	}
	if len(set.Order) == 0 {
		for _, p := range set.Policies {
			set.Order = append(set.Order, p.Name)
		}
	}
	for _, p := range set.Policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return &set, nil
}
