package workflow

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseChain reads a chain definition in YAML form. Unknown fields are
// rejected so typos in hand-written definitions fail loudly.
func ParseChain(r io.Reader) (*Chain, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var chain Chain
	if err := dec.Decode(&chain); err != nil {
		return nil, fmt.Errorf("failed to parse chain definition: %w", err)
	}

	chain.ApplyDefaults()
	if err := chain.Validate(); err != nil {
		return nil, err
	}
	return &chain, nil
}

// LoadChain reads and parses a chain definition file.
func LoadChain(path string) (*Chain, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open chain definition: %w", err)
	}
	defer f.Close()
	return ParseChain(f)
}
