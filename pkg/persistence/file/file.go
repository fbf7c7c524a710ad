// Package file provides file-based persistence for goals and run results.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/goalforge/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
// Each record is one JSON file under the root directory.
type Persistence struct {
	root     string
	goalRepo *GoalRepository
	runRepo  *RunResultRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" prefix is stripped so database URLs work directly.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:     cleanRoot,
		goalRepo: NewGoalRepository(cleanRoot),
		runRepo:  NewRunResultRepository(cleanRoot),
	}
}

func (fp *Persistence) Goals() persistence.GoalRepository {
	return fp.goalRepo
}

func (fp *Persistence) RunResults() persistence.RunResultRepository {
	return fp.runRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. Nothing to do for files.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
