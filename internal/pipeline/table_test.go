package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"respnorm/internal"
)

func textCol(name string, cells ...any) internal.Column {
	return internal.Column{Name: name, Type: internal.TypeText, Cells: cells}
}

func mkTable(cols ...internal.Column) internal.Table {
	return internal.Table{Columns: cols}
}

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
