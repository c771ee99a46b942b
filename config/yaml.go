package config

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// decodeStrict decodes yaml rejecting unknown fields, so a typo in a
// config file fails fast instead of silently falling back to defaults.
func decodeStrict(blob []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(blob))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("can't parse yaml: %w", err)
	}
	return nil
}
