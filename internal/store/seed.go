package store

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// writableMode is forced onto catalog files both right after a seed copy and
// defensively on every open: asset copies can arrive read-only, and a
// read-only catalog file breaks the first sync in a way that looks like data
// corruption.
const writableMode = os.FileMode(0644)

// ensureCatalogFile makes sure the catalog database file at path exists and
// is writable. A missing file is first populated from the seed asset when
// one is available; with no seed, the store starts empty and the schema is
// created on open.
func ensureCatalogFile(path, seedPath string, logger *logrus.Logger) error {
	if _, err := os.Stat(path); err == nil {
		// Defensive chmod: the file may have been copied read-only by an
		// earlier version.
		if err := os.Chmod(path, writableMode); err != nil {
			return fmt.Errorf("failed to make catalog file writable: %w", err)
		}
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat catalog file: %w", err)
	}

	if seedPath == "" {
		return nil
	}
	if _, err := os.Stat(seedPath); os.IsNotExist(err) {
		logger.WithField("seed", seedPath).Debug("No seed database for source, starting empty")
		return nil
	}

	if err := copyFile(seedPath, path); err != nil {
		return fmt.Errorf("failed to copy seed database: %w", err)
	}
	if err := os.Chmod(path, writableMode); err != nil {
		return fmt.Errorf("failed to make seed copy writable: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"seed": seedPath,
		"path": path,
	}).Info("Seed database copied")
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, writableMode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
