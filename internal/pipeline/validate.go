package pipeline

import (
	"fmt"
	"strings"

	"respnorm/internal"
	"respnorm/internal/util"
)

// requiredColumns are the identifying fields every response row must carry,
// in the order they are reported.
var requiredColumns = []string{"class_id", "student_id", "prompt"}

// Validate drops rows whose class_id, student_id or prompt cell is missing
// (nil or empty string) and reports all removals in one aggregate warning.
// A required column absent from the schema entirely is a hard error.
func Validate(t internal.Table) (internal.Table, []string, error) {
	absent := make([]string, 0, len(requiredColumns))
	for _, name := range requiredColumns {
		if !t.HasColumn(name) {
			absent = append(absent, name)
		}
	}
	if len(absent) == 1 {
		return internal.Table{}, nil, fmt.Errorf("Response table missing required column: %s", absent[0])
	}
	if len(absent) > 1 {
		return internal.Table{}, nil, fmt.Errorf("Response table missing required columns: %s", strings.Join(absent, ", "))
	}

	rows := t.NumRows()
	drop := make([]bool, rows)
	missingAt := map[string][]int{}
	for _, name := range requiredColumns {
		col := t.Column(name)
		for r := 0; r < rows; r++ {
			if cellMissing(col.Cells[r]) {
				missingAt[name] = append(missingAt[name], r+1)
				drop[r] = true
			}
		}
	}

	dropped := 0
	for _, d := range drop {
		if d {
			dropped++
		}
	}
	out := filterRows(t, drop)
	if dropped == 0 {
		return out, nil, nil
	}
	return out, []string{dropWarning(dropped, missingAt)}, nil
}

// cellMissing treats empty strings as missing regardless of whether the
// column was already type-coerced.
func cellMissing(cell any) bool {
	if cell == nil {
		return true
	}
	s, ok := cell.(string)
	return ok && s == ""
}

func filterRows(t internal.Table, drop []bool) internal.Table {
	out := t.Clone()
	for i := range out.Columns {
		col := &out.Columns[i]
		kept := make([]any, 0, len(col.Cells))
		for r, cell := range col.Cells {
			if !drop[r] {
				kept = append(kept, cell)
			}
		}
		col.Cells = kept
	}
	return out
}

func dropWarning(dropped int, missingAt map[string][]int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dropped %d %s:", dropped, util.Plural(dropped, "row", "rows"))
	for _, name := range requiredColumns {
		at := missingAt[name]
		if len(at) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n - missing %s at %s %s", name, util.Plural(len(at), "row", "rows"), util.JoinInts(at))
	}
	return b.String()
}
