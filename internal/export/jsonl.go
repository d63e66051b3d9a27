// Package export appends reconciled transaction records to a JSONL file,
// one record per line, for offline analysis.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"curveScope/internal/model"
)

// JsonlExporter writes transaction records to a JSONL file.
type JsonlExporter struct {
	path string
	mu   sync.Mutex
}

func NewJsonlExporter(path string) *JsonlExporter {
	return &JsonlExporter{path: path}
}

// Append writes a batch of records as JSON lines.
func (e *JsonlExporter) Append(records []model.TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(e.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	file, err := os.OpenFile(e.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
