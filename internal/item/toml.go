package item

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type tomlItems struct {
	Items []Fields `toml:"items"`
}

// ReadTOML parses [[items]] tables. Absent keys are unset. Items without
// text are skipped the way ReadCSV skips spacer rows.
func ReadTOML(data []byte, opts ...ReadOption) ([]Record, error) {
	options := readOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	var doc tomlItems

	err := toml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse items toml: %w", err)
	}

	records := make([]Record, 0, len(doc.Items))

	for index, raw := range doc.Items {
		record := raw.Record()

		if strings.TrimSpace(record.Text) == "" {
			if options.warner != nil {
				options.warner.Warn(logSkippedEmptyItem, index+1, record.Filename)
			}

			continue
		}

		records = append(records, record)
	}

	return records, nil
}
