package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const outputDirPrefix = "_imgLab-"

// createRunDir makes a fresh _imgLab-YYYYMMDDTHHMMSSZ directory under parent,
// adding a numeric suffix when a run in the same second already exists.
func createRunDir(parent string, now time.Time) (string, error) {
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("create output parent %s: %w", parent, err)
	}

	base := outputDirPrefix + now.UTC().Format("20060102T150405Z")
	for attempt := 1; attempt <= 100; attempt++ {
		name := base
		if attempt > 1 {
			name = fmt.Sprintf("%s-%d", base, attempt)
		}
		dir := filepath.Join(parent, name)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	return "", fmt.Errorf("no free output directory name for %s under %s", base, parent)
}
