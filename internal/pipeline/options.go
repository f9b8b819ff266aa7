package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"respnorm/internal"
)

const optionJoin = "; "

// ResolveOptions decodes multiple-choice responses from positional-index
// arrays (`["0","1"]`) into the option display text recorded on the rows
// themselves. The derived lookup table is attached to the returned table as
// out-of-band metadata. Tables lacking the columns needed to build the
// lookup pass through unchanged with a warning.
func ResolveOptions(t internal.Table) (internal.Table, []string, error) {
	if len(t.Columns) == 0 {
		return internal.Table{}, nil, errors.New("cannot resolve options: response table has no columns")
	}
	absent := make([]string, 0, 2)
	for _, name := range []string{"lrn_type", "lrn_question_reference"} {
		if !t.HasColumn(name) {
			absent = append(absent, name)
		}
	}
	if len(absent) == 1 {
		return t.Clone(), []string{fmt.Sprintf("missing required column: %s", absent[0])}, nil
	}
	if len(absent) == 2 {
		return t.Clone(), []string{fmt.Sprintf("missing required columns: %s", strings.Join(absent, ", "))}, nil
	}

	lookup, refRow := buildOptionLookup(t)
	out := t.Clone()
	out.Lookup = lookup

	respCol := out.Column("response")
	if respCol == nil {
		return out, nil, nil
	}
	typeCol := out.Column("lrn_type")
	refCol := out.Column("lrn_question_reference")
	for r := range respCol.Cells {
		indices, ok := parseResponseIndices(respCol.Cells[r])
		if !ok {
			continue
		}
		if len(indices) == 0 {
			// Empty selection is a missing value for every question type.
			respCol.Cells[r] = nil
			continue
		}
		if questionType(typeCol.Cells[r]) != "mcq" {
			continue
		}
		row, found := refRow[refKey(refCol.Cells[r])]
		if !found {
			continue
		}
		if resolved, ok := resolveIndices(lookup, row, indices); ok {
			respCol.Cells[r] = resolved
		}
	}
	return out, nil, nil
}

// buildOptionLookup scans mcq rows and keeps one row per distinct question
// reference, first occurrence winning. The second return value indexes the
// lookup rows by reference key. Cells are stored in their text rendering so
// the lookup is identical whether or not type coercion already ran.
func buildOptionLookup(t internal.Table) (*internal.Table, map[string]int) {
	maxIdx := -1
	for _, col := range t.Columns {
		if i, ok := optionColumnIndex(col.Name); ok && i > maxIdx {
			maxIdx = i
		}
	}

	typeCol := t.Column("lrn_type")
	refCol := t.Column("lrn_question_reference")
	refs := []any{}
	optCells := make([][]any, maxIdx+1)
	refRow := map[string]int{}
	for r := 0; r < t.NumRows(); r++ {
		if questionType(typeCol.Cells[r]) != "mcq" {
			continue
		}
		key := refKey(refCol.Cells[r])
		if key == "" {
			continue
		}
		if _, dup := refRow[key]; dup {
			continue
		}
		refRow[key] = len(refs)
		refs = append(refs, key)
		for i := 0; i <= maxIdx; i++ {
			var v any
			// Empty option text counts as absent, matching how the file
			// loaders deliver blank cells.
			if col := t.Column(optionColumnName(i)); col != nil && col.Cells[r] != nil {
				if text := cellText(col.Cells[r]); text != "" {
					v = text
				}
			}
			optCells[i] = append(optCells[i], v)
		}
	}

	cols := []internal.Column{{Name: "lrn_question_reference", Type: internal.TypeText, Cells: refs}}
	for i := 0; i <= maxIdx; i++ {
		cols = append(cols, internal.Column{Name: optionColumnName(i), Type: internal.TypeText, Cells: optCells[i]})
	}
	return &internal.Table{Columns: cols}, refRow
}

// resolveIndices maps each selected index to its option text, preserving the
// order the indices appear in the response array. Any index without a
// recorded option text leaves the whole response unresolved.
func resolveIndices(lookup *internal.Table, row int, indices []string) (string, bool) {
	resolved := make([]string, 0, len(indices))
	for _, raw := range indices {
		i, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || i < 0 {
			return "", false
		}
		col := lookup.Column(optionColumnName(i))
		if col == nil || col.Cells[row] == nil {
			return "", false
		}
		text, ok := col.Cells[row].(string)
		if !ok {
			return "", false
		}
		resolved = append(resolved, text)
	}
	return strings.Join(resolved, optionJoin), true
}

// parseResponseIndices reports whether the cell holds a JSON array of index
// strings and returns it when it does.
func parseResponseIndices(cell any) ([]string, bool) {
	s, ok := cell.(string)
	if !ok {
		return nil, false
	}
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}
	var indices []string
	if err := json.Unmarshal([]byte(trimmed), &indices); err != nil {
		return nil, false
	}
	return indices, true
}

func questionType(cell any) string {
	if cell == nil {
		return ""
	}
	return cellText(cell)
}

func refKey(cell any) string {
	if cell == nil {
		return ""
	}
	return cellText(cell)
}

func optionColumnName(i int) string {
	return fmt.Sprintf("lrn_option_%d", i)
}

func optionColumnIndex(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "lrn_option_")
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}
