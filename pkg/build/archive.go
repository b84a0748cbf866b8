package build

import (
	"os"
	"path/filepath"

	"github.com/mholt/archiver"

	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/types"
)

// writeArchive writes a tar.gz of root's entries to dst. Entries appear at
// the top level of the archive, so extracting it in a release directory
// reproduces root's layout.
func writeArchive(fsys types.FS, root, dst string) error {
	entries, err := fsys.ReadDir(root)
	if err != nil {
		return errors.Wrapf(err, errors.ErrBuild, "unable to read %s", root)
	}
	if len(entries) == 0 {
		return errors.Newf(errors.ErrBuild, "nothing to archive in %s", root)
	}

	sources := make([]string, 0, len(entries))
	for _, e := range entries {
		sources = append(sources, filepath.Join(root, e.Name()))
	}

	out, err := fsys.Create(dst)
	if err != nil {
		return errors.Wrapf(err, errors.ErrResource, "unable to create %s", dst)
	}
	if err := archiver.TarGz.Write(out, sources); err != nil {
		_ = out.Close()
		_ = fsys.Remove(dst)
		return errors.Wrapf(err, errors.ErrBuild, "unable to write %s", dst)
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrResource, "unable to write %s", dst)
	}
	return nil
}

// pruneExcluded deletes everything under root matching a pattern, either
// by its path relative to root or by its base name.
func pruneExcluded(fsys types.FS, root string, patterns []string) error {
	if len(patterns) == 0 {
		return nil
	}

	var doomed []string
	err := fsys.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if excluded(rel, patterns) {
			doomed = append(doomed, p)
			if info.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, errors.ErrBuild, "unable to scan %s", root)
	}

	for _, p := range doomed {
		if err := fsys.RemoveAll(p); err != nil {
			return errors.Wrapf(err, errors.ErrResource, "unable to remove excluded %s", p)
		}
	}
	return nil
}

func excluded(rel string, patterns []string) bool {
	base := filepath.Base(rel)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
