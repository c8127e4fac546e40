package server

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// RunMigrations executes all SQL files under dir in lexicographic order.
// Each file may contain multiple statements separated by ';'.
func (s *AppServer) RunMigrations(ctx context.Context, dir string) error {
	if s.db == nil {
		return errors.New("run migrations: no database configured")
	}
	var entries []string
	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			entries = append(entries, path)
		}
		return nil
	}
	if err := filepath.WalkDir(dir, walkFn); err != nil {
		return errors.Wrapf(err, "walk migrations %s", dir)
	}
	sort.Strings(entries)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for _, p := range entries {
		b, err := os.ReadFile(p)
		if err != nil {
			return errors.Wrapf(err, "read migration %s", p)
		}
		applied := 0
		for _, chunk := range strings.Split(string(b), ";") {
			stmt := strings.TrimSpace(chunk)
			if stmt == "" {
				continue
			}
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return errors.Wrapf(err, "exec migration %s", p)
			}
			applied++
		}
		s.log.WithField("file", filepath.Base(p)).WithField("statements", applied).Info("migration applied")
	}
	return nil
}
