package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the set of roles and levels an assessment can be taken for.
type Catalog struct {
	Roles  []string `yaml:"roles"`
	Levels []string `yaml:"levels"`
}

// DefaultCatalog is used when no catalog file is configured.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Roles: []string{
			"Backend Developer",
			"Python Developer",
			"Flutter Developer",
			"Mern Developer",
			"Full Stack Developer",
			"Data Analytics",
		},
		Levels: []string{"Beginner", "Intermediate", "Advanced"},
	}
}

// LoadCatalog decodes a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := &Catalog{}
	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	if len(c.Roles) == 0 || len(c.Levels) == 0 {
		return nil, fmt.Errorf("catalog %s: roles and levels must not be empty", path)
	}
	return c, nil
}

// CanonicalRole returns the catalog spelling of role, matched case-insensitively.
func (c *Catalog) CanonicalRole(role string) (string, bool) {
	return lookupFold(c.Roles, role)
}

// CanonicalLevel returns the catalog spelling of level, matched case-insensitively.
func (c *Catalog) CanonicalLevel(level string) (string, bool) {
	return lookupFold(c.Levels, level)
}

func lookupFold(values []string, v string) (string, bool) {
	v = strings.TrimSpace(v)
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return candidate, true
		}
	}
	return "", false
}
