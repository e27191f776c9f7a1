package fs

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// FileSystem wraps the Afero Fs interface
type FileSystem struct {
	Fs afero.Fs
}

// NewMemoryFileSystem creates a new in-memory file system
func NewMemoryFileSystem() *FileSystem {
	return &FileSystem{
		Fs: afero.NewMemMapFs(),
	}
}

// NewOsFileSystem creates a new OS-based file system
func NewOsFileSystem() *FileSystem {
	return &FileSystem{
		Fs: afero.NewOsFs(),
	}
}

// NewBasePathFileSystem creates an OS-based file system rooted at dir.
// All paths passed to the returned FileSystem are relative to dir. A relative
// dir is resolved against the working directory first, since BasePathFs
// rejects paths that do not share its literal prefix.
func NewBasePathFileSystem(dir string) *FileSystem {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &FileSystem{
		Fs: afero.NewBasePathFs(afero.NewOsFs(), dir),
	}
}

// WriteFile creates a new file with the given content or overwrites an existing file with the content.
// Missing parent directories are created first.
func (fs *FileSystem) WriteFile(path string, content string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := fs.Fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(fs.Fs, path, []byte(content), 0644); err != nil {
		return fmt.Errorf("error writing file %s: %w", path, err)
	}
	return nil
}

// ReadFile returns the content of path, or an empty string if it does not exist.
func (fs *FileSystem) ReadFile(path string) (string, error) {
	data, err := afero.ReadFile(fs.Fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("error reading file %s: %w", path, err)
	}
	return string(data), nil
}

// EnsureDir ensures that the specified directory exists
func (fs *FileSystem) EnsureDir(dir string) error {
	if err := fs.Fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory %s: %w", dir, err)
	}
	return nil
}

// EnsureDirs ensures that every listed directory exists
func (fs *FileSystem) EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := fs.EnsureDir(dir); err != nil {
			return err
		}
	}
	return nil
}

// FileExists checks if a file exists
func (fs *FileSystem) FileExists(path string) bool {
	_, err := fs.Fs.Stat(path)
	return err == nil
}

// IsDir checks if a path is a directory
func (fs *FileSystem) IsDir(path string) bool {
	info, err := fs.Fs.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// WriteToZip archives the files under srcDir into zipPath. Entry names are relative to srcDir.
func (fs *FileSystem) WriteToZip(srcDir, zipPath string) (int, error) {
	if !fs.IsDir(srcDir) {
		return 0, fmt.Errorf("source %s is not a directory", srcDir)
	}

	if dir := filepath.Dir(zipPath); dir != "." && dir != "" {
		if err := fs.EnsureDir(dir); err != nil {
			return 0, err
		}
	}

	zipFile, err := fs.Fs.Create(zipPath)
	if err != nil {
		return 0, fmt.Errorf("error creating zip file: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)

	absZip := filepath.Clean(zipPath)
	fileCount := 0
	err = afero.Walk(fs.Fs, srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Clean(path) == absZip {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return fmt.Errorf("error resolving %s: %w", path, err)
		}

		writer, err := zipWriter.Create(filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("error creating zip entry for file %s: %w", rel, err)
		}

		file, err := fs.Fs.Open(path)
		if err != nil {
			return fmt.Errorf("error opening file %s: %w", path, err)
		}
		defer file.Close()

		if _, err := io.Copy(writer, file); err != nil {
			return fmt.Errorf("error writing file %s to zip: %w", path, err)
		}

		fileCount++
		return nil
	})
	if err != nil {
		zipWriter.Close()
		return 0, fmt.Errorf("error walking file system: %w", err)
	}

	if fileCount == 0 {
		zipWriter.Close()
		return 0, fmt.Errorf("no files to zip")
	}

	if err := zipWriter.Close(); err != nil {
		return 0, fmt.Errorf("error closing zip writer: %w", err)
	}

	return fileCount, nil
}

// ListFiles lists all files under root and returns a map representing the directory structure.
// Directories whose base name is in skip are left out entirely.
func (fs *FileSystem) ListFiles(root string, skip ...string) (map[string]interface{}, error) {
	structure := make(map[string]interface{})

	err := afero.Walk(fs.Fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		// Skip root directory
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			for _, name := range skip {
				if info.Name() == name {
					return filepath.SkipDir
				}
			}
		}

		parts := strings.Split(rel, string(os.PathSeparator))
		current := structure
		for i, part := range parts {
			if i == len(parts)-1 {
				if info.IsDir() {
					if _, exists := current[part]; !exists {
						current[part] = make(map[string]interface{})
					}
				} else {
					current[part] = nil // Use nil to represent files
				}
			} else {
				if _, exists := current[part]; !exists {
					current[part] = make(map[string]interface{})
				}
				current = current[part].(map[string]interface{})
			}
		}
		return nil
	})

	return structure, err
}
