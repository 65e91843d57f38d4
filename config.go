package appicon

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetData []byte

// Config is a named set of recipes plus the one to run by default.
type Config struct {
	Default string            `yaml:"default"`
	Recipes map[string]Recipe `yaml:"recipes"`
}

var presets struct {
	once sync.Once
	cfg  Config
	err  error
}

func loadPresets() (Config, error) {
	presets.once.Do(func() {
		if err := yaml.Unmarshal(presetData, &presets.cfg); err != nil {
			presets.err = fmt.Errorf("parse presets: %w", err)
		}
	})
	return presets.cfg, presets.err
}

// DefaultConfig returns the built-in recipes.
func DefaultConfig() *Config {
	base, err := loadPresets()
	if err != nil {
		// The presets are embedded at build time.
		panic(err)
	}

	cfg := &Config{Default: base.Default, Recipes: make(map[string]Recipe, len(base.Recipes))}
	for name, r := range base.Recipes {
		cfg.Recipes[name] = r
	}
	return cfg
}

// LoadConfig reads a YAML recipe file. Its recipes replace built-in recipes
// of the same name and add new ones; the remaining presets stay available.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := DefaultConfig()
	if file.Default != "" {
		cfg.Default = file.Default
	}
	for name, r := range file.Recipes {
		cfg.Recipes[name] = r
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks every recipe and the default name.
func (c *Config) Validate() error {
	if _, ok := c.Recipes[c.Default]; !ok {
		return fmt.Errorf("%w: default %q", ErrUnknownRecipe, c.Default)
	}
	for _, name := range c.Names() {
		if err := c.Recipes[name].WithDefaults().Validate(); err != nil {
			return fmt.Errorf("recipe %s: %w", name, err)
		}
	}
	return nil
}

// Recipe looks up a recipe by name with defaults applied. An empty name
// selects the default recipe.
func (c *Config) Recipe(name string) (Recipe, error) {
	if name == "" {
		name = c.Default
	}
	r, ok := c.Recipes[name]
	if !ok {
		return Recipe{}, fmt.Errorf("%w: %q", ErrUnknownRecipe, name)
	}
	r.Name = name
	return r.WithDefaults(), nil
}

// Names lists the configured recipe names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Recipes))
	for name := range c.Recipes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
