package sync

import (
	"errors"
	"fmt"

	"github.com/sdejongh/treesync/pkg/models"
)

// ErrChanged is returned when a file no longer matches the state the plan
// was built from, either before an action (guard) or after it (verify)
var ErrChanged = errors.New("file changed since it was scanned")

// ScanError aborts a run before anything is mutated
type ScanError struct {
	Side models.Side
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan of side %s (%s) failed: %v", e.Side.Label(), e.Root, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// ActionError reports a single action that could not be applied. The path
// is skipped and its baseline entry left as it was.
type ActionError struct {
	Path string
	Kind models.Action
	Err  error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
