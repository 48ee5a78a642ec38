package installer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/oshokin/jscript-net/internal/logger"
)

const (
	// stagingSuffix names the temporary sibling that receives the extracted payload.
	stagingSuffix = ".staging-"

	// defaultMapCapacity is the default initial capacity for maps and slices.
	defaultMapCapacity = 8
)

// ensureNotInUse fails when one of the locking processes is running.
// The current process is never considered.
func (g *Gate) ensureNotInUse(ctx context.Context) error {
	if len(g.lockingProcesses) == 0 {
		return nil
	}

	processList, err := g.listProcesses()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		processName := process.Executable()
		if _, found := g.lockingProcesses[strings.ToLower(processName)]; !found {
			continue
		}

		logger.WarnKV(ctx, "Installed project system is held by a running process",
			"process", processName, "pid", process.Pid())

		return fmt.Errorf("%s (pid %d): %w", processName, process.Pid(), ErrInstallationInUse)
	}

	return nil
}

// lowerAll returns a lower-cased, trimmed copy of names.
func lowerAll(names []string) []string {
	result := make([]string, 0, len(names))
	for _, name := range names {
		result = append(result, strings.ToLower(strings.TrimSpace(name)))
	}

	return result
}

// sliceToSet converts a slice to a set for quick lookups.
func sliceToSet[T comparable](elements []T) map[T]struct{} {
	result := make(map[T]struct{}, len(elements))
	for _, value := range elements {
		result[value] = struct{}{}
	}

	return result
}
