package output

import (
	"strings"
	"unicode/utf8"
)

// Alignment of a table column.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// TableColumn is a column header and its alignment.
type TableColumn struct {
	Header string
	Align  Alignment
}

// TableData is a table to print. Cells beyond the last column are dropped.
type TableData struct {
	Columns []TableColumn
	Rows    [][]string
}

// Table prints data with columns sized to their widest cell, ignoring ANSI
// escapes so colored cells line up.
func (f *Formatter) Table(data TableData) error {
	if len(data.Columns) == 0 {
		return nil
	}

	widths := make([]int, len(data.Columns))
	headers := make([]string, len(data.Columns))
	rules := make([]string, len(data.Columns))
	for i, col := range data.Columns {
		headers[i] = col.Header
		widths[i] = displayWidth(col.Header)
	}
	for _, row := range data.Rows {
		for i, cell := range row[:min(len(row), len(widths))] {
			widths[i] = max(widths[i], displayWidth(cell))
		}
	}
	for i, w := range widths {
		rules[i] = strings.Repeat("-", w)
	}

	if err := f.Println("%s", f.Colorize(f.tableRow(data.Columns, widths, headers), ColorBold)); err != nil {
		return err
	}
	if err := f.Println("%s", f.tableRow(data.Columns, widths, rules)); err != nil {
		return err
	}
	for _, row := range data.Rows {
		if err := f.Println("%s", f.tableRow(data.Columns, widths, row)); err != nil {
			return err
		}
	}
	return nil
}

func (f *Formatter) tableRow(cols []TableColumn, widths []int, cells []string) string {
	parts := make([]string, 0, len(cols))
	for i, cell := range cells[:min(len(cells), len(cols))] {
		pad := strings.Repeat(" ", max(widths[i]-displayWidth(cell), 0))
		if cols[i].Align == AlignRight {
			parts = append(parts, pad+cell)
		} else {
			parts = append(parts, cell+pad)
		}
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

// displayWidth counts runes outside ANSI escape sequences.
func displayWidth(s string) int {
	n := 0
	for i := 0; i < len(s); {
		if s[i] == '\033' {
			end := strings.IndexByte(s[i:], 'm')
			if end < 0 {
				break
			}
			i += end + 1
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		n++
	}
	return n
}
