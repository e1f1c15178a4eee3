package daemon

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func canonicalPath(path string) string {
	if path == "~" {
		return os.Getenv("HOME")
	}
	if strings.HasPrefix(path, "~/") {
		return strings.Replace(path, "~", os.Getenv("HOME"), 1)
	}
	return path
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

func isImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// listImages resolves a policy path to wallpaper candidates. A file path is
// its own single candidate; a directory yields its image files, descending
// into subdirectories only when recursive is set.
func listImages(path string, recursive bool) ([]string, error) {
	path = canonicalPath(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	if recursive {
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isImage(d.Name()) {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() || !isImage(entry.Name()) {
				continue
			}
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}

	sort.Strings(files)
	return files, nil
}
