package fsutil

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/modelpull/modelpull/pkg/errors"
)

// partialInfix separates a target path from the unique suffix of its
// staging file. Anything matching PartialPattern is transient state that
// never survives a successful operation.
const partialInfix = ".partial."

// StagingPath returns a unique staging path in the same directory as target.
// Keeping the staging file next to the target guarantees the final rename
// never crosses a filesystem boundary.
func StagingPath(target string) string {
	return target + partialInfix + uuid.NewString()
}

// PartialPattern returns a glob matching every staging file for target,
// including ones left behind by crashed runs.
func PartialPattern(target string) string {
	return target + partialInfix + "*"
}

// WriteAtomic stages content in a sibling of target and renames it into
// place once write returns successfully. Readers of target never observe a
// partially written file. On any failure the staging file is removed and
// target is left untouched.
func WriteAtomic(target string, write func(stagingPath string) error) error {
	if err := EnsureFileDir(target); err != nil {
		return errors.WrapFS(err, fmt.Sprintf("create parent directory for %s", target))
	}
	staging := StagingPath(target)
	if err := write(staging); err != nil {
		_ = os.Remove(staging)
		return err
	}
	if err := os.Rename(staging, target); err != nil {
		_ = os.Remove(staging)
		return errors.WrapFS(err, fmt.Sprintf("replace %s", target))
	}
	return nil
}
