// Package model holds the domain types of the sheetflow core: leases, batches,
// processing steps and versioned records.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a new random identifier for batches and steps.
func NewID() string {
	return uuid.New().String()
}

// Metadata is a free-form string map attached to a batch and stored as JSON text.
type Metadata map[string]string

// MetadataExternalRunRef is the metadata key copied into Batch.ExternalRunRef.
const MetadataExternalRunRef = "external_run_ref"

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(value interface{}) error {
	b, err := scanBytes(value, "Metadata")
	if err != nil {
		return err
	}
	*m = make(Metadata)
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, m); err != nil {
		return fmt.Errorf("failed to unmarshal Metadata JSON: %w", err)
	}
	return nil
}

// Attributes are the typed fields of a transformed entity, stored as JSON text.
type Attributes map[string]interface{}

// Value implements driver.Valuer.
func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (a *Attributes) Scan(value interface{}) error {
	b, err := scanBytes(value, "Attributes")
	if err != nil {
		return err
	}
	*a = make(Attributes)
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, a); err != nil {
		return fmt.Errorf("failed to unmarshal Attributes JSON: %w", err)
	}
	return nil
}

// GetString returns the attribute as a string when it is one.
func (a Attributes) GetString(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func scanBytes(value interface{}, typeName string) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported Scan type for %s: %T", typeName, value)
	}
}
