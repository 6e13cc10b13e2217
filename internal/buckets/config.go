package buckets

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/transform"
	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML structure for bucket definitions. Starting
// allocations are keyed by bucket ID and anchor each bucket's running
// balance at an opening amount, optionally from a given date.
type Config struct {
	Buckets     []domain.Bucket                      `yaml:"buckets"`
	Allocations map[string]domain.StartingAllocation `yaml:"allocations"`
}

// NewConfig parses and validates bucket YAML. Buckets without an explicit
// ID get one derived from their name; buckets without keywords are seeded
// with their own name so they match something out of the box.
func NewConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse bucket YAML (check syntax, indentation, and field names): %w", err)
	}

	seen := make(map[string]int, len(cfg.Buckets))
	for i := range cfg.Buckets {
		b := &cfg.Buckets[i]

		if strings.TrimSpace(b.Name) == "" {
			return nil, fmt.Errorf("bucket %d: name cannot be empty", i)
		}

		if b.ID == "" {
			id, err := transform.SlugifyName(b.Name)
			if err != nil {
				return nil, fmt.Errorf("bucket %d (%s): %w", i, b.Name, err)
			}
			b.ID = id
		}

		if prev, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("bucket %d (%s): ID %q already used by bucket %d", i, b.Name, b.ID, prev)
		}
		seen[b.ID] = i

		if len(b.Keywords) == 0 {
			b.Keywords = []string{b.Name}
		}
	}

	for id, alloc := range cfg.Allocations {
		if _, ok := seen[id]; !ok {
			return nil, fmt.Errorf("allocation %q: no bucket with that ID", id)
		}
		if alloc.Date != "" {
			if _, ok := domain.ParseDate(alloc.Date); !ok {
				return nil, fmt.Errorf("allocation %q: invalid date %q", id, alloc.Date)
			}
		}
	}

	return &cfg, nil
}

// LoadConfig loads bucket definitions from a filesystem path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read buckets file: %w", err)
	}
	cfg, err := NewConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load buckets from %q: %w", path, err)
	}
	return cfg, nil
}

// Find returns the bucket with the given ID, or nil.
func (c *Config) Find(id string) *domain.Bucket {
	for i := range c.Buckets {
		if c.Buckets[i].ID == id {
			return &c.Buckets[i]
		}
	}
	return nil
}

// Allocation returns the starting allocation for a bucket ID, if any.
func (c *Config) Allocation(id string) (domain.StartingAllocation, bool) {
	a, ok := c.Allocations[id]
	return a, ok
}

// NewRuntimeID mints an ID for a bucket created at runtime (for example
// when a suggestion is accepted), guaranteed not to collide with any
// slug-derived ID.
func NewRuntimeID() string {
	return "bucket_" + uuid.NewString()
}
