// =============================================================================
// sepacetamol - File Manager Utility
// =============================================================================
//
// This module holds the file plumbing of the batch converter:
//   - Input discovery (workbooks and exports dropped into input_dir)
//   - Atomic output writes (temp file + rename)
//   - Archival of converted inputs and written outputs
//   - Output file naming
//
// ARCHIVAL STRATEGY:
//   - A converted input is moved to input_archive
//   - Every SEPA or DATEV file written is copied to output_archive
//   - Rejected inputs stay in input_dir so they can be fixed and retried
//
// Error logs and run summaries live in reports.go.
//
// =============================================================================

package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager owns the directories of a processing run.
type FileManager struct {
	// InputDir receives workbooks and payroll exports to convert.
	InputDir string

	// OutputDir receives the pain.001 and EXTF files.
	OutputDir string

	// InputArchiveDir keeps converted inputs.
	InputArchiveDir string

	// OutputArchiveDir keeps a copy of every written output.
	OutputArchiveDir string

	// UseTimestampSubdirs files archived copies under YYYY/MM/DD.
	// Example: input_archive/2024/01/15/Gehalt_Maerz.xlsx
	UseTimestampSubdirs bool

	// ArchiveOnSuccess turns archival on. When it is off, the archive
	// methods return the path unchanged.
	ArchiveOnSuccess bool

	// Now is the clock used for archive subdirectories.
	Now func() time.Time
}

// NewFileManager returns a FileManager with archival enabled.
func NewFileManager(inputDir, outputDir, inputArchiveDir, outputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:         inputDir,
		OutputDir:        outputDir,
		InputArchiveDir:  inputArchiveDir,
		OutputArchiveDir: outputArchiveDir,
		ArchiveOnSuccess: true,
		Now:              time.Now,
	}
}

func (fm *FileManager) now() time.Time {
	if fm.Now == nil {
		return time.Now()
	}
	return fm.Now()
}

// EnsureDirectories creates the configured directories. Empty paths are
// ignored.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.InputDir, fm.OutputDir, fm.InputArchiveDir, fm.OutputArchiveDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// INPUT DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the files directly in InputDir whose name matches
// pattern.
//
// PARAMETERS:
//   - pattern: A glob pattern such as "Gehalt_*.xlsx". Empty matches every
//              file.
//
// RETURNS:
//   - The matching paths in name order. Directories, dot files and office
//     lock files ("~$Gehalt.xlsx") are never returned.
//   - An error if the directory cannot be read or the pattern is malformed.
func (fm *FileManager) DiscoverInputFiles(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || isHidden(entry.Name()) {
			continue
		}
		if ok, _ := filepath.Match(pattern, entry.Name()); ok {
			files = append(files, filepath.Join(fm.InputDir, entry.Name()))
		}
	}
	return files, nil
}

// DiscoverInputFilesRecursive walks InputDir and lists every file whose
// extension is one of extensions, compared case-insensitively. No extensions
// lists all files.
func (fm *FileManager) DiscoverInputFilesRecursive(extensions ...string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(fm.InputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || isHidden(d.Name()) {
			return nil
		}
		if hasExtension(d.Name(), extensions) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk input directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

func hasExtension(name string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := filepath.Ext(name)
	for _, want := range extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// isHidden reports dot files and the lock files Excel and LibreOffice leave
// next to open workbooks.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".~lock.")
}

// =============================================================================
// OUTPUT WRITING
// =============================================================================

// WriteOutput writes content to OutputDir/name.
//
// RETURNS:
//   - The path of the written file.
//   - An error if the file cannot be written. No partial file is left.
func (fm *FileManager) WriteOutput(name string, content []byte) (string, error) {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return WriteFileAtomic(filepath.Join(fm.OutputDir, name), content)
}

// WriteFileAtomic writes content to a hidden sibling of path and renames it
// into place, so readers see either the old file or the complete new one.
func WriteFileAtomic(path string, content []byte) (written string, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Chmod(0644); err != nil {
		return "", fmt.Errorf("failed to set mode of %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", filepath.Base(path), err)
	}

	return path, nil
}

// =============================================================================
// ARCHIVAL
// =============================================================================

// ArchiveInputFile moves a converted input into InputArchiveDir.
//
// RETURNS:
//   - The archived path.
//   - An error if the file could not be archived. The input is then still
//     in place.
func (fm *FileManager) ArchiveInputFile(path string) (string, error) {
	return fm.archive(fm.InputArchiveDir, path, true)
}

// ArchiveOutputFile copies a written output into OutputArchiveDir. The
// output itself stays in OutputDir.
func (fm *FileManager) ArchiveOutputFile(path string) (string, error) {
	return fm.archive(fm.OutputArchiveDir, path, false)
}

func (fm *FileManager) archive(archiveDir, path string, move bool) (string, error) {
	if !fm.ArchiveOnSuccess {
		return path, nil
	}

	target := fm.archivePath(archiveDir, path)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if move {
		if err := os.Rename(path, target); err == nil {
			return target, nil
		}
		// Rename fails across devices; copy and remove instead.
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s for archiving: %w", filepath.Base(path), err)
	}
	if _, err := WriteFileAtomic(target, data); err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", filepath.Base(path), err)
	}
	if move {
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("failed to remove archived input: %w", err)
		}
	}

	return target, nil
}

func (fm *FileManager) archivePath(archiveDir, path string) string {
	name := filepath.Base(path)
	if !fm.UseTimestampSubdirs {
		return filepath.Join(archiveDir, name)
	}
	return filepath.Join(archiveDir, fm.now().Format("2006/01/02"), name)
}

// CleanOldArchives removes files below archiveDir last modified before
// now - maxAge.
//
// RETURNS:
//   - The number of files removed, also when an error stopped the walk.
func CleanOldArchives(archiveDir string, maxAge time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-maxAge)
	removed := 0

	err := filepath.WalkDir(archiveDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to clean archive %s: %w", archiveDir, err)
	}

	return removed, nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName expands a naming format.
//
// PARAMETERS:
//   - format: The name with placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - now as YYYYMMDD_HHMMSS
//               {date}      - now as YYYYMMDD
//               {time}      - now as HHMMSS
//               any key of params, e.g. {profile} or {name}
//   - params: Placeholder values. Path separators are replaced.
//   - ext:    The extension to ensure, e.g. ".xml" or ".csv".
//
// EXAMPLE:
//   format: "{profile}_{name}_{timestamp}"
//   params: {"profile": "payroll", "name": "EXTF_Personio-2023-06"}
//   output: "payroll_EXTF_Personio-2023-06_20240115_143022.csv"
func GenerateOutputFileName(format string, params map[string]string, ext string, now time.Time) string {
	pairs := []string{
		"{uuid}", uuid.New().String(),
		"{timestamp}", now.Format("20060102_150405"),
		"{date}", now.Format("20060102"),
		"{time}", now.Format("150405"),
	}
	for key, value := range params {
		pairs = append(pairs, "{"+key+"}", sanitizeFileName(value))
	}

	name := strings.NewReplacer(pairs...).Replace(format)
	if ext != "" && !strings.EqualFold(filepath.Ext(name), ext) {
		name += ext
	}
	return name
}

// sanitizeFileName keeps placeholder values from introducing directories.
func sanitizeFileName(s string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
