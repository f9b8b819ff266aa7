package pipeline

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"respnorm/internal"
)

// LoadSource resolves a user-supplied path into one combined raw table: a
// single responses file, a directory of per-class subdirectories, or an
// archive of that same tree. classes, when non-empty, restricts directory
// traversal to the named class subdirectories.
func LoadSource(path string, classes []string) (internal.Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return internal.Table{}, err
	}
	if info.IsDir() {
		return LoadDir(path, classes)
	}
	if isArchivePath(path) {
		return LoadArchive(path, classes)
	}
	if isTablePath(path) {
		return LoadTable(path)
	}
	return internal.Table{}, fmt.Errorf("unsupported source: %s", path)
}

// LoadTable reads one responses file. The first row supplies column names;
// every cell loads as text.
func LoadTable(path string) (internal.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadDelimited(path, ',')
	case ".tsv":
		return loadDelimited(path, '\t')
	case ".xlsx":
		return loadXLSX(path)
	}
	return internal.Table{}, fmt.Errorf("unsupported responses file: %s", path)
}

// LoadDir reads the responses file of every immediate class subdirectory of
// root and row-stacks them in lexicographic class order. Column sets may
// differ per class; the concatenation takes the union, filling absent cells
// with nil.
func LoadDir(root string, classes []string) (internal.Table, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return internal.Table{}, err
	}
	tables := []internal.Table{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if len(classes) > 0 && !slices.Contains(classes, entry.Name()) {
			continue
		}
		file, err := responsesFile(filepath.Join(root, entry.Name()))
		if err != nil {
			return internal.Table{}, err
		}
		t, err := LoadTable(file)
		if err != nil {
			return internal.Table{}, err
		}
		tables = append(tables, t)
	}
	if len(tables) == 0 {
		return internal.Table{}, fmt.Errorf("no class directories found in %s", root)
	}
	return concatTables(tables), nil
}

// LoadArchive expands a .zip, .tar.gz or .tgz snapshot of the class tree
// into a temporary directory and reads it like LoadDir. The expansion is
// removed on every exit path.
func LoadArchive(path string, classes []string) (internal.Table, error) {
	tmp, err := os.MkdirTemp("", "respnorm-*")
	if err != nil {
		return internal.Table{}, err
	}
	defer os.RemoveAll(tmp)

	if err := extractArchive(path, tmp); err != nil {
		return internal.Table{}, err
	}
	return LoadDir(tmp, classes)
}

func isTablePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".xlsx":
		return true
	}
	return false
}

func isArchivePath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".zip") || strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz")
}

// responsesFile returns the single responses file inside one class
// directory.
func responsesFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	found := []string{}
	for _, entry := range entries {
		if !entry.IsDir() && isTablePath(entry.Name()) {
			found = append(found, filepath.Join(dir, entry.Name()))
		}
	}
	if len(found) != 1 {
		return "", fmt.Errorf("expected exactly one responses file in %s, found %d", dir, len(found))
	}
	return found[0], nil
}

func loadDelimited(path string, comma rune) (internal.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return internal.Table{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = comma
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return internal.Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	return tableFromRecords(records, path)
}

func loadXLSX(path string) (internal.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return internal.Table{}, err
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return internal.Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	return tableFromRecords(rows, path)
}

func tableFromRecords(records [][]string, path string) (internal.Table, error) {
	if len(records) == 0 {
		return internal.Table{}, fmt.Errorf("no header row in %s", path)
	}
	headers := records[0]
	cols := make([]internal.Column, len(headers))
	for i, h := range headers {
		cols[i] = internal.Column{Name: strings.TrimSpace(h), Type: internal.TypeText, Cells: make([]any, 0, len(records)-1)}
	}
	for rowIdx, rec := range records[1:] {
		if len(rec) > len(cols) {
			return internal.Table{}, fmt.Errorf("row %d in %s has %d fields, header has %d", rowIdx+2, path, len(rec), len(cols))
		}
		for i := range cols {
			if i < len(rec) {
				cols[i].Cells = append(cols[i].Cells, rec[i])
			} else {
				cols[i].Cells = append(cols[i].Cells, "")
			}
		}
	}
	return internal.Table{Columns: cols}, nil
}

// concatTables row-stacks tables by column name in first-seen order.
func concatTables(tables []internal.Table) internal.Table {
	cols := []internal.Column{}
	index := map[string]int{}
	total := 0
	for _, t := range tables {
		for _, c := range t.Columns {
			if _, ok := index[c.Name]; !ok {
				index[c.Name] = len(cols)
				cols = append(cols, internal.Column{Name: c.Name, Type: c.Type, Cells: make([]any, total)})
			}
		}
		rows := t.NumRows()
		for i := range cols {
			src := t.Column(cols[i].Name)
			for r := 0; r < rows; r++ {
				if src != nil {
					cols[i].Cells = append(cols[i].Cells, src.Cells[r])
				} else {
					cols[i].Cells = append(cols[i].Cells, nil)
				}
			}
		}
		total += rows
	}
	return internal.Table{Columns: cols}
}

func extractArchive(path, dest string) error {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".zip") {
		return extractZip(path, dest)
	}
	return extractTarGz(path, dest)
}

func extractZip(path, dest string) error {
	r, err := zip.OpenReader(path)
	// Traversal entries are rejected per-entry by securePath below.
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := securePath(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		src, err := f.Open()
		if err != nil {
			return err
		}
		if err := writeFile(target, src); err != nil {
			src.Close()
			return err
		}
		src.Close()
	}
	return nil
}

func extractTarGz(path, dest string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target, err := securePath(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := writeFile(target, tr); err != nil {
				return err
			}
		}
	}
}

// securePath rejects archive entries that would escape the extraction root.
func securePath(root, name string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(name))
	if target != filepath.Clean(root) && !strings.HasPrefix(target, filepath.Clean(root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry escapes extraction root: %s", name)
	}
	return target, nil
}

func writeFile(path string, src io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
