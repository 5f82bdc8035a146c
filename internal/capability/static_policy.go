package capability

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pitabwire/workdesk/model"
)

//go:embed default_policy.yaml
var defaultPolicy []byte

type policyFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// StaticPolicyEvaluator resolves capabilities from a YAML document mapping
// roles to capability strings. An empty path uses the built-in policy.
type StaticPolicyEvaluator struct {
	path   string
	mu     sync.RWMutex
	policy map[model.Role][]string
}

// NewStaticPolicyEvaluator creates an evaluator and loads its policy.
func NewStaticPolicyEvaluator(path string) (*StaticPolicyEvaluator, error) {
	e := &StaticPolicyEvaluator{path: path}
	if err := e.Sync(); err != nil {
		return nil, err
	}
	return e, nil
}

// ResolveCapabilities returns the capabilities granted to the session's
// role. Unknown roles get an empty set.
func (e *StaticPolicyEvaluator) ResolveCapabilities(s *model.Session) (model.CapabilitySet, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	caps := make(model.CapabilitySet)
	for _, c := range e.policy[s.Role] {
		caps[c] = true
	}
	return caps, nil
}

// Roles returns the roles the policy defines.
func (e *StaticPolicyEvaluator) Roles() []model.Role {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.Role, 0, len(e.policy))
	for r := range e.policy {
		out = append(out, r)
	}
	return out
}

// Sync reloads the policy. A failed reload keeps the previous policy.
func (e *StaticPolicyEvaluator) Sync() error {
	data := defaultPolicy
	source := "built-in policy"
	if e.path != "" {
		b, err := os.ReadFile(e.path)
		if err != nil {
			return fmt.Errorf("capability: reading policy file %s: %w", e.path, err)
		}
		data, source = b, e.path
	}

	policy, err := parsePolicy(data)
	if err != nil {
		return fmt.Errorf("capability: parsing %s: %w", source, err)
	}

	e.mu.Lock()
	e.policy = policy
	e.mu.Unlock()
	return nil
}

func parsePolicy(data []byte) (map[model.Role][]string, error) {
	var p policyFile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if len(p.Roles) == 0 {
		return nil, fmt.Errorf("no roles defined")
	}
	out := make(map[model.Role][]string, len(p.Roles))
	for role, caps := range p.Roles {
		for _, c := range caps {
			if strings.TrimSpace(c) == "" {
				return nil, fmt.Errorf("role %s: empty capability", role)
			}
		}
		out[model.Role(strings.ToUpper(role))] = caps
	}
	return out, nil
}
