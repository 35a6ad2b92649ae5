package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk shape of an operator policy bundle.
type Document struct {
	Subnet   string    `yaml:"subnet"`
	Policies []*Policy `yaml:"policies"`
}

// LoadFile parses a YAML policy bundle and validates every policy in it.
func LoadFile(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read bundle %s: %w", path, err)
	}
	return parseDocument(raw)
}

func parseDocument(raw []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("policy: parse bundle: %w", err)
	}
	if doc.Subnet == "" {
		return nil, fmt.Errorf("policy: bundle missing subnet")
	}
	for _, p := range doc.Policies {
		if err := validatePolicy(p); err != nil {
			return nil, err
		}
	}
	return &doc, nil
}

// RegisterBundle loads a policy bundle and registers its policies in order.
func RegisterBundle(e *Engine, path string) error {
	doc, err := LoadFile(path)
	if err != nil {
		return err
	}
	for _, p := range doc.Policies {
		if err := e.Register(doc.Subnet, p); err != nil {
			return err
		}
	}
	return nil
}
