package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteJSONReport writes the cycle report as JSON to the given path.
// The file is replaced atomically so readers never see a partial report.
func WriteJSONReport(report *CycleReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}
