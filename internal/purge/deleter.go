package purge

import "os"

// Deleter removes a job directory.
type Deleter interface {
	Delete(path string) error
}

// FSDeleter removes directories from the local filesystem.
type FSDeleter struct {
	DryRun bool
}

// Delete removes path and everything below it. A path that is already gone
// is not an error. In dry-run mode nothing is touched.
func (d FSDeleter) Delete(path string) error {
	if d.DryRun {
		return nil
	}
	return os.RemoveAll(path)
}
