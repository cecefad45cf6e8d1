package format

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
)

// writeText writes a tab-aligned rendering for people. The {"data": ...}
// envelope is unwrapped; objects become "key value" rows and arrays of objects
// become a table with a header row.
//
// Values go through JSON first so json tags decide the field names.
func writeText(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var x any
	if err := json.Unmarshal(b, &x); err != nil {
		return err
	}
	if m, ok := x.(map[string]any); ok {
		if d, ok := m["data"]; ok {
			x = d
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	switch t := x.(type) {
	case []any:
		writeTable(tw, t)
	case map[string]any:
		writeFields(tw, t)
	default:
		fmt.Fprintln(tw, textScalar(t))
	}
	return tw.Flush()
}

func writeFields(w io.Writer, m map[string]any) {
	for _, k := range columns([]any{m}) {
		fmt.Fprintf(w, "%s\t%s\n", k, textScalar(m[k]))
	}
}

func writeTable(w io.Writer, rows []any) {
	cols := columns(rows)
	if len(cols) == 0 {
		for _, r := range rows {
			fmt.Fprintln(w, textScalar(r))
		}
		return
	}
	fmt.Fprintln(w, strings.ToUpper(strings.Join(cols, "\t")))
	for _, r := range rows {
		m, _ := r.(map[string]any)
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = textScalar(m[c])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
}

// columns is the sorted union of object keys, with "name" first.
func columns(rows []any) []string {
	seen := map[string]bool{}
	var cols []string
	for _, r := range rows {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		for k := range m {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Slice(cols, func(i, j int) bool {
		if (cols[i] == "name") != (cols[j] == "name") {
			return cols[i] == "name"
		}
		return cols[i] < cols[j]
	})
	return cols
}

func textScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case string:
		if t == "" {
			return "-"
		}
		return strings.NewReplacer("\t", " ", "\n", " ").Replace(t)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if float64(int64(t)) == t {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
