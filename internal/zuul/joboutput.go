package zuul

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// JobOutputFile is the compressed Ansible job output relative to a job directory.
const JobOutputFile = "job-output.json.gz"

// record is one playbook entry of job-output.json.
// Pointers distinguish an absent field from a zero value.
type record struct {
	Stats *struct {
		Container *struct {
			Failures *float64 `json:"failures"`
		} `json:"container"`
	} `json:"stats"`
}

// failures returns stats.container.failures, defaulting to 1 when absent.
func (r record) failures() float64 {
	if r.Stats == nil || r.Stats.Container == nil || r.Stats.Container.Failures == nil {
		return 1
	}
	return *r.Stats.Container.Failures
}

var errNotArray = errors.New("job output is not a JSON array")

// JobSucceeded reports whether the job recorded zero failures in every playbook.
// Anything uncertain (missing file, bad gzip, bad JSON, wrong shape) is a failure.
func JobSucceeded(jobDir string) bool {
	ok, err := readJobOutput(filepath.Join(jobDir, JobOutputFile))
	return err == nil && ok
}

func readJobOutput(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return false, fmt.Errorf("open gzip %s: %w", path, err)
	}
	defer func() { _ = zr.Close() }()

	return allZeroFailures(zr)
}

// allZeroFailures streams a JSON array of records and stops at the first failure.
func allZeroFailures(r io.Reader) (bool, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return false, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return false, errNotArray
	}

	for dec.More() {
		var rec record
		if err := dec.Decode(&rec); err != nil {
			return false, err
		}
		if rec.failures() != 0 {
			return false, nil
		}
	}

	// consume the closing bracket so truncated documents are rejected
	if _, err := dec.Token(); err != nil {
		return false, err
	}
	return true, nil
}
