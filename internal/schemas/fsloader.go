package schemas

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/PhucNguyen204/scenefilter/pkg/schema"
)

func isYAML(p string) bool {
	l := strings.ToLower(p)
	return strings.HasSuffix(l, ".yml") || strings.HasSuffix(l, ".yaml")
}

// LoadDirRecursive parses every YAML schema under root in path order.
func LoadDirRecursive(root string) ([]*schema.Schema, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(p) {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", root)
	}
	sort.Strings(paths)

	out := make([]*schema.Schema, 0, len(paths))
	for _, p := range paths {
		s, err := schema.Load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// LoadCombined loads root and merges the result into a single schema.
func LoadCombined(root string) (*schema.Schema, error) {
	all, err := LoadDirRecursive(root)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, errors.Errorf("no schema files under %s", root)
	}
	return schema.Combine(all...)
}
