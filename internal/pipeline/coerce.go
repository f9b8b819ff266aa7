package pipeline

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"respnorm/internal"
)

// columnTypes maps recognized response-table column names to their target
// types. Every other column coerces to text.
var columnTypes = map[string]internal.ColType{
	"attempt":               internal.TypeInt,
	"lrn_question_position": internal.TypeInt,
	"points_possible":       internal.TypeFloat,
	"points_earned":         internal.TypeFloat,
	"dt_submitted":          internal.TypeTime,
	"lrn_dt_started":        internal.TypeTime,
	"lrn_dt_saved":          internal.TypeTime,
	"lrn_response_json":     internal.TypeJSON,
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CoerceTypes retypes every column of the table by recognized name. Datetime
// columns parse in loc (UTC when nil). Unparsable cells become nil rather
// than failing. The attached lookup, if any, is already text and is carried
// through untouched.
func CoerceTypes(t internal.Table, loc *time.Location) internal.Table {
	if loc == nil {
		loc = time.UTC
	}
	out := t.Clone()
	for i := range out.Columns {
		col := &out.Columns[i]
		target, ok := columnTypes[col.Name]
		if !ok {
			target = internal.TypeText
		}
		col.Type = target
		for j, cell := range col.Cells {
			col.Cells[j] = coerceCell(cell, target, loc)
		}
	}
	return out
}

func coerceCell(cell any, target internal.ColType, loc *time.Location) any {
	if cell == nil {
		return nil
	}
	if target == internal.TypeText {
		return cellText(cell)
	}
	raw, ok := cell.(string)
	if !ok {
		// Already carries a typed value.
		return cell
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	switch target {
	case internal.TypeInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil
		}
		return v
	case internal.TypeFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil
		}
		return v
	case internal.TypeTime:
		for _, layout := range timeLayouts {
			if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
				return ts
			}
		}
		return nil
	case internal.TypeJSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil
		}
		return v
	}
	return cell
}

// cellText renders a cell as its text-column representation. It is shared
// with the option resolver so lookup values come out identical no matter
// whether coercion has already run.
func cellText(cell any) string {
	switch v := cell.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	}
	if b, err := json.Marshal(cell); err == nil {
		return string(b)
	}
	return ""
}
