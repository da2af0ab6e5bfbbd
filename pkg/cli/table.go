package cli

import (
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
)

// colGap separates adjacent columns.
const colGap = 2

var ansiEscape = regexp.MustCompile("\033\\[[0-9;]*m")

// Table collects rows and writes them column-aligned on Flush, under the
// headers and a dash divider. A table with no rows writes nothing.
// Empty or missing cells print as "-", and colour codes from Status do not
// count toward a column's width.
type Table struct {
	out     io.Writer
	headers []string
	rows    [][]string
}

// NewTable creates a table on stdout with the given column headers.
func NewTable(headers ...string) *Table {
	return NewTableTo(os.Stdout, headers...)
}

// NewTableTo creates a table writing to out.
func NewTableTo(out io.Writer, headers ...string) *Table {
	return &Table{out: out, headers: headers}
}

// Row buffers one row. Rows shorter than the header are padded.
func (t *Table) Row(values ...string) {
	row := make([]string, max(len(values), len(t.headers)))
	for i := range row {
		row[i] = "-"
		if i < len(values) && values[i] != "" {
			row[i] = values[i]
		}
	}
	t.rows = append(t.rows, row)
}

// Len returns the number of buffered rows.
func (t *Table) Len() int { return len(t.rows) }

// Flush writes the buffered rows and resets the table.
func (t *Table) Flush() error {
	if len(t.rows) == 0 {
		return nil
	}
	divider := make([]string, len(t.headers))
	for i, h := range t.headers {
		divider[i] = strings.Repeat("-", cellWidth(h))
	}
	lines := append([][]string{t.headers, divider}, t.rows...)
	t.rows = nil

	var widths []int
	for _, cells := range lines {
		for i, c := range cells {
			if i == len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], cellWidth(c))
		}
	}

	var b strings.Builder
	for _, cells := range lines {
		for i, c := range cells {
			b.WriteString(c)
			if i < len(cells)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-cellWidth(c)+colGap))
			}
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(t.out, b.String())
	return err
}

// cellWidth is the printed width of s.
func cellWidth(s string) int {
	return utf8.RuneCountInString(ansiEscape.ReplaceAllString(s, ""))
}
