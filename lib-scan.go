package main

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrSourceRootMissing is returned when the raw dataset root does not exist.
var ErrSourceRootMissing = errors.New("source directory not found")

// imageExtensions are the recognized source image extensions, lower case.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// ArtifactFolder is one raw_root/{category}/{artifact} directory with its
// source images, in directory listing order.
type ArtifactFolder struct {
	Category string
	Name     string
	Path     string
	Images   []string // source file paths, joined onto the scan root
}

// CheckSourceRoot fails with ErrSourceRootMissing unless root is a directory.
func CheckSourceRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errors.WithMessagef(ErrSourceRootMissing, "%s", root)
		}
		return errors.Wrapf(err, "checking source directory %s", root)
	}
	if !info.IsDir() {
		return errors.WithMessagef(ErrSourceRootMissing, "%s is not a directory", root)
	}
	return nil
}

// WalkCorpus calls fn for every artifact folder under root, categories and
// artifacts in name order. Folders without any recognized image are skipped.
// Unreadable category or artifact folders are logged and skipped; an error
// from fn stops the walk and is returned.
func WalkCorpus(root string, fn func(ArtifactFolder) error) error {
	if err := CheckSourceRoot(root); err != nil {
		return err
	}
	categories, err := listDirs(root)
	if err != nil {
		return errors.Wrapf(err, "listing categories in %s", root)
	}
	log.Info().Int("categories", len(categories)).Str("src", root).Msg("scanning")

	for _, category := range categories {
		catPath := filepath.Join(root, category)
		artifacts, err := listDirs(catPath)
		if err != nil {
			log.Warn().Err(err).Str("category", category).Msg("skipping unreadable category")
			continue
		}

		for _, artifact := range artifacts {
			artPath := filepath.Join(catPath, artifact)
			images, err := listImages(artPath)
			if err != nil {
				log.Warn().Err(err).Str("artifact", artifact).Msg("skipping unreadable artifact folder")
				continue
			}
			if len(images) == 0 {
				log.Debug().Str("artifact", artifact).Msg("no images, skipping")
				continue
			}

			folder := ArtifactFolder{Category: category, Name: artifact, Path: artPath, Images: images}
			if err := fn(folder); err != nil {
				return err
			}
		}
	}
	return nil
}

// listDirs returns the names of the immediate subdirectories of dir,
// following symlinks.
func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if isDir(filepath.Join(dir, e.Name()), e) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// listImages returns the paths of the regular files in dir whose extension is
// a recognized image extension, compared case-insensitively.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if isRegular(p, e) {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func isDir(path string, e fs.DirEntry) bool {
	if e.Type()&fs.ModeSymlink == 0 {
		return e.IsDir()
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isRegular(path string, e fs.DirEntry) bool {
	if e.Type()&fs.ModeSymlink == 0 {
		return e.Type().IsRegular()
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
