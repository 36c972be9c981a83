package strategy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"bhavlab/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Definition is one named strategy configuration from the registry file:
// a kind (which builder to use), its parameters, and an optional JSON
// schema the parameters are validated against.
type Definition struct {
	ID          string         `mapstructure:"id" yaml:"id"`
	Description string         `mapstructure:"description" yaml:"description"`
	Kind        string         `mapstructure:"kind" yaml:"kind"`
	Version     int            `mapstructure:"version" yaml:"version"`
	Params      map[string]any `mapstructure:"params" yaml:"params"`
	Schema      map[string]any `mapstructure:"schema" yaml:"schema"`

	schemaCompiled *jsonschema.Schema
}

// FileConfig maps the strategies: block of the registry file.
type FileConfig struct {
	Strategies map[string]Definition `mapstructure:"strategies" yaml:"strategies"`
}

// Snapshot is an immutable view of the loaded definitions.
type Snapshot struct {
	Version     int64
	LoadedAt    time.Time
	Definitions map[string]Definition
}

// ChangeListener fires after a successful reload.
type ChangeListener func(Snapshot)

// Registry loads strategy definitions from a YAML file and hot-reloads them
// when the file changes on disk.
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry reads the registry file and starts watching it.
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("strategy registry requires a path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read strategy registry failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("strategy registry reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot returns the current definition set.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Definition returns the definition with the given ID.
func (r *Registry) Definition(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.snapshot.Definitions[strings.TrimSpace(id)]
	return def, ok
}

// Subscribe registers a listener for reload events.
func (r *Registry) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Build validates the definition's parameters against its schema and
// constructs the strategy. Extra parameters passed in override the file's.
func (r *Registry) Build(id string, overrides map[string]any) (Strategy, error) {
	def, ok := r.Definition(id)
	if !ok {
		return nil, fmt.Errorf("unknown strategy: %s", id)
	}
	params := make(map[string]any, len(def.Params)+len(overrides))
	for k, v := range def.Params {
		params[k] = v
	}
	for k, v := range overrides {
		params[k] = v
	}
	sanitized, _ := sanitizeParams(params).(map[string]any)
	if err := def.Validate(sanitized); err != nil {
		return nil, fmt.Errorf("strategy %s params: %w", id, err)
	}
	return Build(def.Kind, sanitized)
}

// Validate checks params against the definition's compiled schema.
func (d Definition) Validate(params map[string]any) error {
	if d.schemaCompiled == nil {
		return nil
	}
	return d.schemaCompiled.Validate(sanitizeParams(params))
}

func (r *Registry) reload() error {
	cfg, err := readRegistryFile(r.path)
	if err != nil {
		return err
	}
	defs := make(map[string]Definition)
	for name, def := range cfg.Strategies {
		norm := normalizeDefinition(name, def)
		defs[norm.ID] = norm
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:     r.snapshot.Version + 1,
		LoadedAt:    time.Now(),
		Definitions: defs,
	}
	r.mu.Unlock()
	logger.Infof("strategy registry loaded %d definitions from %s", len(defs), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("strategy registry listener panic: %v", rec)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func normalizeDefinition(name string, def Definition) Definition {
	def.ID = strings.TrimSpace(def.ID)
	if def.ID == "" {
		def.ID = strings.TrimSpace(name)
	}
	if def.Version <= 0 {
		def.Version = 1
	}
	def.Kind = strings.ToLower(strings.TrimSpace(def.Kind))
	def.Description = strings.TrimSpace(def.Description)
	if len(def.Schema) > 0 {
		if compiled, err := compileSchema(def.Schema); err != nil {
			logger.Errorf("strategy schema compile failed id=%s: %v", def.ID, err)
		} else {
			def.schemaCompiled = compiled
		}
	}
	return def
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:     src.Version,
		LoadedAt:    src.LoadedAt,
		Definitions: make(map[string]Definition, len(src.Definitions)),
	}
	for id, def := range src.Definitions {
		dst.Definitions[id] = def
	}
	return dst
}

func compileSchema(data map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

func readRegistryFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read strategy registry failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse strategy registry failed: %w", err)
	}
	return cfg, nil
}

// sanitizeParams coerces numeric strings into float64 so YAML values like
// "14" validate against schemas that expect numbers.
func sanitizeParams(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = sanitizeParams(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = sanitizeParams(child)
		}
		return out
	case int:
		return float64(val)
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return val
		}
		if num, err := strconv.ParseFloat(s, 64); err == nil {
			return num
		}
		return val
	default:
		return val
	}
}
