// Package item defines the per-clip input record and the readers that
// ingest batches of records from CSV and TOML files.
package item

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTextEmpty indicates a record without text to speak.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrFilenameEmpty indicates a record without an output filename.
	ErrFilenameEmpty = errors.New("filename cannot be empty")
)

// Record is one input row. Every field except Text and Filename may be unset.
type Record struct {
	Text     string
	Filename string
	Subtitle Optional[string]
	Voice    Optional[string]
	HighPass Optional[int]
	LowPass  Optional[int]
	NFilter  Optional[int]
	Volume   Optional[int]
	Noise    Optional[int]
	Emphasis Optional[string]
	Rate     Optional[string]
	Pitch    Optional[string]
	ClickIn  Optional[bool]
	ClickOut Optional[bool]
}

// Validate checks the two fields every record needs.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("%w (filename %q)", ErrTextEmpty, r.Filename)
	}

	if strings.TrimSpace(r.Filename) == "" {
		return ErrFilenameEmpty
	}

	return nil
}
