// Package settings loads the user's grouping and deduplication rules from a
// YAML file, merged over built-in defaults.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/types"
	"gopkg.in/yaml.v3"
)

// Source provides the settings in effect right now.
type Source interface {
	Current() types.Settings
}

// Static is a Source that never changes.
type Static types.Settings

// Current implements Source.
func (s Static) Current() types.Settings {
	return types.Settings(s)
}

// Defaults returns the settings used when no file exists.
func Defaults() types.Settings {
	return types.Settings{
		GlobalGroupingEnabled:      true,
		GlobalDeduplicationEnabled: false,
		ShowNotifications:          true,
	}
}

// DefaultRule returns the values a rule gets for fields the file leaves out.
func DefaultRule() types.DomainRule {
	return types.DomainRule{
		Enabled:                true,
		GroupingEnabled:        true,
		DeduplicationEnabled:   false,
		DeduplicationMatchMode: types.MatchExact,
		GroupNameSource:        types.NameFromLabel,
	}
}

// DefaultPath returns ~/.config/tabgruppen/settings.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "settings.yaml"
	}
	return filepath.Join(home, ".config", "tabgruppen", "settings.yaml")
}

// fileSettings mirrors types.Settings but keeps rules raw so each one can be
// decoded over DefaultRule.
type fileSettings struct {
	GlobalGroupingEnabled      *bool                `yaml:"globalGroupingEnabled"`
	GlobalDeduplicationEnabled *bool                `yaml:"globalDeduplicationEnabled"`
	ShowNotifications          *bool                `yaml:"showNotifications"`
	DomainRules                []yaml.Node          `yaml:"domainRules"`
	LogicalGroups              []types.LogicalGroup `yaml:"logicalGroups"`
}

// Parse decodes YAML settings and merges them over Defaults.
func Parse(data []byte) (types.Settings, error) {
	s := Defaults()
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}

	var f fileSettings
	if err := yaml.Unmarshal(data, &f); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}
	if f.GlobalGroupingEnabled != nil {
		s.GlobalGroupingEnabled = *f.GlobalGroupingEnabled
	}
	if f.GlobalDeduplicationEnabled != nil {
		s.GlobalDeduplicationEnabled = *f.GlobalDeduplicationEnabled
	}
	if f.ShowNotifications != nil {
		s.ShowNotifications = *f.ShowNotifications
	}

	for i := range f.DomainRules {
		r := DefaultRule()
		if err := f.DomainRules[i].Decode(&r); err != nil {
			return s, fmt.Errorf("parse rule %d: %w", i+1, err)
		}
		s.DomainRules = append(s.DomainRules, normalizeRule(r))
	}

	for _, g := range f.LogicalGroups {
		g.Color = strings.ToLower(strings.TrimSpace(g.Color))
		if g.Color != "" && !types.ValidColor(g.Color) {
			applog.Warn("settings.color.invalid", "group", g.ID, "color", g.Color)
			g.Color = ""
		}
		s.LogicalGroups = append(s.LogicalGroups, g)
	}
	return s, nil
}

func normalizeRule(r types.DomainRule) types.DomainRule {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.DomainFilter = strings.ToLower(strings.TrimSpace(r.DomainFilter))
	r.DeduplicationMatchMode = r.DeduplicationMatchMode.Normalize()
	r.GroupNameSource = r.GroupNameSource.Normalize()
	return r
}

// Load reads settings from path. A missing file yields Defaults.
func Load(path string) (types.Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Defaults(), fmt.Errorf("read settings %s: %w", path, err)
	}
	return Parse(data)
}

// Save writes settings to path as YAML, creating parent directories.
func Save(path string, s types.Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Store holds the current settings and swaps them atomically on reload.
type Store struct {
	path    string
	current atomic.Pointer[types.Settings]
}

// Open loads the settings file into a new Store.
func Open(path string) (*Store, error) {
	st := &Store{path: path}
	if err := st.Reload(); err != nil {
		return nil, err
	}
	return st, nil
}

// Path returns the settings file path.
func (st *Store) Path() string {
	return st.path
}

// Current implements Source.
func (st *Store) Current() types.Settings {
	if s := st.current.Load(); s != nil {
		return *s
	}
	return Defaults()
}

// Reload re-reads the file. On error the previous settings stay in effect.
func (st *Store) Reload() error {
	s, err := Load(st.path)
	if err != nil {
		return err
	}
	st.current.Store(&s)
	applog.Info("settings.loaded", "path", st.path, "rules", len(s.DomainRules), "groups", len(s.LogicalGroups))
	return nil
}

// Save writes the current settings back to the file, filling in generated rule ids.
func (st *Store) Save() error {
	return Save(st.path, st.Current())
}
