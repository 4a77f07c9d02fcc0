package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *FileManager {
	t.Helper()
	root := t.TempDir()
	fm := NewFileManager(
		filepath.Join(root, "input"),
		filepath.Join(root, "output"),
		filepath.Join(root, "input_archive"),
		filepath.Join(root, "output_archive"),
	)
	require.NoError(t, fm.EnsureDirectories())
	return fm
}

func TestDiscoverInputFiles(t *testing.T) {
	fm := newTestManager(t)
	for _, name := range []string{"b.xlsx", "a.xlsx", "notes.txt", ".hidden.xlsx", "~$a.xlsx", ".~lock.a.xlsx#"} {
		require.NoError(t, os.WriteFile(filepath.Join(fm.InputDir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(fm.InputDir, "dir.xlsx"), 0755))

	files, err := fm.DiscoverInputFiles("*.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(fm.InputDir, "a.xlsx"),
		filepath.Join(fm.InputDir, "b.xlsx"),
	}, files)

	all, err := fm.DiscoverInputFiles("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = fm.DiscoverInputFiles("[")
	assert.Error(t, err)
}

func TestDiscoverInputFilesRecursive(t *testing.T) {
	fm := newTestManager(t)
	nested := filepath.Join(fm.InputDir, "2024", "03")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "export.CSV"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(fm.InputDir, "list.xlsx"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(fm.InputDir, "readme.md"), []byte("x"), 0644))

	files, err := fm.DiscoverInputFilesRecursive(".csv", ".xlsx")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(nested, "export.CSV"),
		filepath.Join(fm.InputDir, "list.xlsx"),
	}, files)
}

func TestWriteOutput(t *testing.T) {
	fm := newTestManager(t)

	path, err := fm.WriteOutput("out.xml", []byte("<a/>"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.OutputDir, "out.xml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<a/>", string(data))

	// Overwrites in place and leaves no temporary files behind.
	_, err = fm.WriteOutput("out.xml", []byte("<b/>"))
	require.NoError(t, err)
	entries, err := os.ReadDir(fm.OutputDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<b/>", string(data))
}

func TestArchive(t *testing.T) {
	fm := newTestManager(t)
	fm.UseTimestampSubdirs = true
	fm.Now = func() time.Time { return time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC) }

	input := filepath.Join(fm.InputDir, "Gehalt.xlsx")
	require.NoError(t, os.WriteFile(input, []byte("in"), 0644))
	output, err := fm.WriteOutput("Gehalt.xml", []byte("out"))
	require.NoError(t, err)

	archived, err := fm.ArchiveInputFile(input)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.InputArchiveDir, "2024", "01", "15", "Gehalt.xlsx"), archived)
	assert.False(t, FileExists(input))
	assert.True(t, FileExists(archived))

	copied, err := fm.ArchiveOutputFile(output)
	require.NoError(t, err)
	assert.True(t, FileExists(output))
	assert.True(t, FileExists(copied))
}

func TestArchiveDisabled(t *testing.T) {
	fm := newTestManager(t)
	fm.ArchiveOnSuccess = false

	input := filepath.Join(fm.InputDir, "x.csv")
	require.NoError(t, os.WriteFile(input, []byte("in"), 0644))

	got, err := fm.ArchiveInputFile(input)
	require.NoError(t, err)
	assert.Equal(t, input, got)
	assert.True(t, FileExists(input))
}

func TestGenerateOutputFileName(t *testing.T) {
	now := time.Date(2024, 1, 15, 14, 30, 22, 0, time.UTC)

	got := GenerateOutputFileName("{profile}_{name}_{timestamp}",
		map[string]string{"profile": "payroll", "name": "EXTF_Personio-2023-06"}, ".csv", now)
	assert.Equal(t, "payroll_EXTF_Personio-2023-06_20240115_143022.csv", got)

	got = GenerateOutputFileName("{name}.xml", map[string]string{"name": "Gehalt"}, ".xml", now)
	assert.Equal(t, "Gehalt.xml", got)

	got = GenerateOutputFileName("{date}_{uuid}", nil, ".xml", now)
	assert.Regexp(t, regexp.MustCompile(`^20240115_[0-9a-f-]{36}\.xml$`), got)

	got = GenerateOutputFileName("{name}", map[string]string{"name": "../etc/passwd"}, ".xml", now)
	assert.NotContains(t, got, "/")
}

func TestCleanOldArchives(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.xml")
	fresh := filepath.Join(dir, "fresh.xml")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0644))

	now := time.Now()
	require.NoError(t, os.Chtimes(old, now.Add(-48*time.Hour), now.Add(-48*time.Hour)))

	removed, err := CleanOldArchives(dir, 24*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, FileExists(old))
	assert.True(t, FileExists(fresh))
}

func TestArchiveOutputFileKeepsOutput(t *testing.T) {
	fm := newTestManager(t)

	output, err := fm.WriteOutput("EXTF_Personio-2023-06.csv", []byte("EXTF"))
	require.NoError(t, err)

	copied, err := fm.ArchiveOutputFile(output)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.OutputArchiveDir, "EXTF_Personio-2023-06.csv"), copied)

	data, err := os.ReadFile(copied)
	require.NoError(t, err)
	assert.Equal(t, "EXTF", string(data))
	assert.True(t, FileExists(output))
}

func TestArchiveMissingInput(t *testing.T) {
	fm := newTestManager(t)

	_, err := fm.ArchiveInputFile(filepath.Join(fm.InputDir, "absent.xlsx"))
	assert.Error(t, err)
}
