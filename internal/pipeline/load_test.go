package pipeline

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const classACSV = `class_id,student_id,prompt,response,lrn_type,lrn_question_reference,lrn_option_0,lrn_option_1
c-a,s1,Pick one,"[""0""]",mcq,q1,Yes,No
c-a,s2,Pick one,"[""1""]",mcq,q1,Yes,No
`

const classBCSV = `class_id,student_id,prompt,response,lrn_type,lrn_question_reference,lrn_option_0,lrn_option_1
c-b,s3,Pick one,"[""0"",""1""]",mcq,q1,Yes,No
`

func writeClassTree(t *testing.T, root string) {
	t.Helper()
	writeFixture(t, filepath.Join(root, "class-a", "responses.csv"), classACSV)
	writeFixture(t, filepath.Join(root, "class-b", "responses.csv"), classBCSV)
}

func TestLoadTableCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responses.csv")
	writeFixture(t, path, classACSV)

	got, err := LoadTable(path)
	require.NoError(t, err)
	require.Equal(t, 2, got.NumRows())
	require.Equal(t, []string{"class_id", "student_id", "prompt", "response", "lrn_type", "lrn_question_reference", "lrn_option_0", "lrn_option_1"}, got.ColumnNames())
	require.Equal(t, []any{`["0"]`, `["1"]`}, got.Column("response").Cells)
}

func TestLoadTableTSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responses.tsv")
	writeFixture(t, path, "class_id\tstudent_id\tprompt\nc-a\ts1\tPick one\n")

	got, err := LoadTable(path)
	require.NoError(t, err)
	require.Equal(t, []any{"s1"}, got.Column("student_id").Cells)
}

func TestLoadTableXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responses.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]string{
		{"class_id", "student_id", "prompt", "response"},
		{"c-a", "s1", "Pick one", `["0"]`},
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	require.NoError(t, f.SaveAs(path))

	got, err := LoadTable(path)
	require.NoError(t, err)
	require.Equal(t, 1, got.NumRows())
	require.Equal(t, []any{`["0"]`}, got.Column("response").Cells)
}

func TestLoadTableRejectsOverwideRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responses.csv")
	writeFixture(t, path, "class_id,student_id,prompt\nc-a,s1,p\nc-a,s2,p,stray\n")

	_, err := LoadTable(path)
	require.ErrorContains(t, err, "row 3")
	require.ErrorContains(t, err, "has 4 fields, header has 3")
}

func TestLoadDirConcatenatesClassesInOrder(t *testing.T) {
	root := t.TempDir()
	writeClassTree(t, root)

	got, err := LoadDir(root, nil)
	require.NoError(t, err)
	require.Equal(t, 3, got.NumRows())
	require.Equal(t, []any{"c-a", "c-a", "c-b"}, got.Column("class_id").Cells)
}

func TestLoadDirClassFilter(t *testing.T) {
	root := t.TempDir()
	writeClassTree(t, root)

	got, err := LoadDir(root, []string{"class-b"})
	require.NoError(t, err)
	require.Equal(t, []any{"c-b"}, got.Column("class_id").Cells)

	_, err = LoadDir(root, []string{"class-x"})
	require.Error(t, err)
}

func TestLoadDirColumnUnion(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, filepath.Join(root, "class-a", "responses.csv"),
		"class_id,student_id,prompt,extra\nc-a,s1,p,x\n")
	writeFixture(t, filepath.Join(root, "class-b", "responses.csv"),
		"class_id,student_id,prompt,lrn_type\nc-b,s2,p,mcq\n")

	got, err := LoadDir(root, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"class_id", "student_id", "prompt", "extra", "lrn_type"}, got.ColumnNames())
	require.Equal(t, []any{"x", nil}, got.Column("extra").Cells)
	require.Equal(t, []any{nil, "mcq"}, got.Column("lrn_type").Cells)
}

func TestLoadDirRequiresSingleResponsesFile(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, filepath.Join(root, "class-a", "responses.csv"), classACSV)
	writeFixture(t, filepath.Join(root, "class-a", "duplicate.csv"), classACSV)

	_, err := LoadDir(root, nil)
	require.ErrorContains(t, err, "expected exactly one responses file")
}

func zipClassTree(t *testing.T, path string) {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	zw := zip.NewWriter(buf)
	for name, content := range map[string]string{
		"class-a/responses.csv": classACSV,
		"class-b/responses.csv": classBCSV,
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func tarGzClassTree(t *testing.T, path string) {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	gz := gzip.NewWriter(buf)
	tw := tar.NewWriter(gz)
	for name, content := range map[string]string{
		"class-a/responses.csv": classACSV,
		"class-b/responses.csv": classBCSV,
	} {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestLoadArchiveMatchesDirectory(t *testing.T) {
	base := t.TempDir()
	scratch := filepath.Join(base, "scratch")
	require.NoError(t, os.MkdirAll(scratch, 0o755))
	t.Setenv("TMPDIR", scratch)

	root := filepath.Join(base, "root")
	writeClassTree(t, root)
	fromDir, err := LoadDir(root, nil)
	require.NoError(t, err)

	zipPath := filepath.Join(base, "export.zip")
	zipClassTree(t, zipPath)
	fromZip, err := LoadArchive(zipPath, nil)
	require.NoError(t, err)
	require.Equal(t, fromDir, fromZip)

	tgzPath := filepath.Join(base, "export.tar.gz")
	tarGzClassTree(t, tgzPath)
	fromTgz, err := LoadArchive(tgzPath, nil)
	require.NoError(t, err)
	require.Equal(t, fromDir, fromTgz)

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	require.Empty(t, entries, "archive expansion left temporary files behind")
}

func TestLoadArchiveClassFilter(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "export.zip")
	zipClassTree(t, zipPath)

	got, err := LoadArchive(zipPath, []string{"class-a"})
	require.NoError(t, err)
	require.Equal(t, []any{"c-a", "c-a"}, got.Column("class_id").Cells)
}

func TestLoadArchiveCleansUpOnFailure(t *testing.T) {
	base := t.TempDir()
	scratch := filepath.Join(base, "scratch")
	require.NoError(t, os.MkdirAll(scratch, 0o755))
	t.Setenv("TMPDIR", scratch)

	// Two responses files in one class directory makes the read fail after
	// extraction succeeded.
	buf := bytes.NewBuffer(nil)
	zw := zip.NewWriter(buf)
	for _, name := range []string{"class-a/responses.csv", "class-a/again.csv"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(classACSV))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	zipPath := filepath.Join(base, "broken.zip")
	require.NoError(t, os.WriteFile(zipPath, buf.Bytes(), 0o644))

	_, err := LoadArchive(zipPath, nil)
	require.Error(t, err)

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	require.Empty(t, entries, "failed load must not leak the extraction dir")
}

func TestLoadArchiveRejectsEscapingEntries(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	zw := zip.NewWriter(buf)
	w, err := zw.Create("../escape.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte(classACSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	zipPath := filepath.Join(t.TempDir(), "evil.zip")
	require.NoError(t, os.WriteFile(zipPath, buf.Bytes(), 0o644))

	_, err = LoadArchive(zipPath, nil)
	require.ErrorContains(t, err, "escapes extraction root")
}

func TestLoadSourceDispatch(t *testing.T) {
	root := t.TempDir()
	writeClassTree(t, root)

	fromDir, err := LoadSource(root, nil)
	require.NoError(t, err)
	require.Equal(t, 3, fromDir.NumRows())

	file := filepath.Join(root, "class-a", "responses.csv")
	fromFile, err := LoadSource(file, nil)
	require.NoError(t, err)
	require.Equal(t, 2, fromFile.NumRows())

	_, err = LoadSource(filepath.Join(root, "missing.csv"), nil)
	require.Error(t, err)
}
