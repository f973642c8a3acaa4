// Package policy loads the versioned policy documents the rule engine is
// written against and caches them for the life of the process.
package policy

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/a3tai/reportshield/internal/audit"
	"github.com/a3tai/reportshield/internal/config"
)

// ErrVersionMismatch is returned when a policy document does not carry the
// version the engine requires.
var ErrVersionMismatch = eris.New("policy document version mismatch")

// Bundle is one successfully loaded, immutable policy set.
type Bundle struct {
	Rules     string
	Schematic string
	Policy    audit.Policy
}

// Store loads the policy bundle on first use and serves it from memory
// afterwards. Failed loads are never cached.
type Store struct {
	cfg     config.PolicyConfig
	missing audit.MissingFieldPolicy

	mu     sync.Mutex
	bundle *Bundle
}

// NewStore creates a store over the documents named in cfg.
func NewStore(cfg config.PolicyConfig, missing audit.MissingFieldPolicy) *Store {
	return &Store{cfg: cfg, missing: missing}
}

// Load returns the cached bundle, reading it from disk if needed.
func (s *Store) Load() (*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bundle != nil {
		return s.bundle, nil
	}

	b, err := s.read()
	if err != nil {
		return nil, err
	}
	s.bundle = b
	zap.L().Info("policy loaded",
		zap.String("rules_version", b.Policy.RulesVersion),
		zap.String("schematic_version", b.Policy.SchematicVersion),
		zap.Int("state_hook_states", len(b.Policy.StateHooks)),
	)
	return b, nil
}

// Invalidate drops the cached bundle so the next Load rereads disk.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.bundle = nil
	s.mu.Unlock()
}

// Versions reports the versions the store requires.
func (s *Store) Versions() (rules, schematic string) {
	return s.cfg.RulesVersion, s.cfg.SchematicVersion
}

func (s *Store) read() (*Bundle, error) {
	rules, err := readVersioned(s.cfg.RulesPath, s.cfg.RulesVersion)
	if err != nil {
		return nil, eris.Wrap(err, "policy: rules")
	}
	schematic, err := readVersioned(s.cfg.SchematicPath, s.cfg.SchematicVersion)
	if err != nil {
		return nil, eris.Wrap(err, "policy: schematic")
	}

	var hooks map[string][]audit.StateHook
	if s.cfg.StateHooksPath != "" {
		data, err := os.ReadFile(s.cfg.StateHooksPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			zap.L().Debug("no state hooks document", zap.String("path", s.cfg.StateHooksPath))
		case err != nil:
			return nil, eris.Wrapf(err, "policy: read state hooks %s", s.cfg.StateHooksPath)
		default:
			hooks, err = ParseStateHooks(data)
			if err != nil {
				return nil, eris.Wrap(err, "policy: state hooks")
			}
		}
	}

	return &Bundle{
		Rules:     rules,
		Schematic: schematic,
		Policy: audit.Policy{
			RulesVersion:     s.cfg.RulesVersion,
			SchematicVersion: s.cfg.SchematicVersion,
			StateHooks:       hooks,
			MissingFields:    s.missing,
		},
	}, nil
}

func readVersioned(path, version string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "read %s", path)
	}
	text := string(data)
	if version != "" && !strings.Contains(text, version) {
		return "", eris.Wrapf(ErrVersionMismatch, "%s does not declare %s", path, version)
	}
	return text, nil
}
