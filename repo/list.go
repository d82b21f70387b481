package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/minios-linux/stringlate/settings"
)

// List opens every project under dataDir, sorted by project name. A missing
// dataDir yields no projects.
func List(dataDir string) ([]*Handler, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", dataDir, err)
	}

	var roots []string
	for _, e := range entries {
		root := filepath.Join(dataDir, e.Name())
		if e.IsDir() && settings.ProjectExists(root) {
			roots = append(roots, root)
		}
	}

	handlers := make([]*Handler, len(roots))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, root := range roots {
		i, root := i, root
		g.Go(func() error {
			h, err := OpenRoot(root)
			if err != nil {
				return err
			}
			handlers[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(handlers, func(i, j int) bool {
		return strings.ToLower(handlers[i].ProjectName()) < strings.ToLower(handlers[j].ProjectName())
	})
	return handlers, nil
}
