package format

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/askdb/askdb/internal/pipeline"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
)

// maxCellWidth bounds table cells so one long value cannot wreck the
// terminal layout.
const maxCellWidth = 48

// Formatter renders query responses for the CLI.
type Formatter struct{}

// NewFormatter creates a new formatter instance
func NewFormatter() *Formatter {
	return &Formatter{}
}

// FormatResponse renders a successful pipeline response.
func (f *Formatter) FormatResponse(resp *pipeline.Response, format OutputFormat) string {
	switch format {
	case FormatJSON:
		return f.formatJSON(resp)
	case FormatCSV:
		return f.formatCSV(resp)
	default:
		return f.formatTable(resp)
	}
}

func (f *Formatter) formatJSON(resp *pipeline.Response) string {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Sprintf("failed to encode response: %v", err)
	}

	return string(data)
}

func (f *Formatter) formatCSV(resp *pipeline.Response) string {
	var sb strings.Builder

	sb.WriteString(strings.Join(resp.Columns, ","))
	sb.WriteString("\n")

	for _, row := range resp.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = csvEscape(cellString(v))
		}

		sb.WriteString(strings.Join(cells, ","))
		sb.WriteString("\n")
	}

	return sb.String()
}

func (f *Formatter) formatTable(resp *pipeline.Response) string {
	var lines []string

	lines = append(lines, "SQL: "+resp.SQL, "")

	widths := make([]int, len(resp.Columns))
	for i, col := range resp.Columns {
		widths[i] = len(col)
	}

	cells := make([][]string, len(resp.Rows))

	for ri, row := range resp.Rows {
		cells[ri] = make([]string, len(resp.Columns))

		for ci := range resp.Columns {
			var text string
			if ci < len(row) {
				text = truncateCell(cellString(row[ci]))
			}

			cells[ri][ci] = text

			if len(text) > widths[ci] {
				widths[ci] = len(text)
			}
		}
	}

	lines = append(lines, padRow(resp.Columns, widths), separatorRow(widths))

	for _, row := range cells {
		lines = append(lines, padRow(row, widths))
	}

	summary := fmt.Sprintf("%d row(s)", resp.RowCount)
	if resp.Truncated {
		summary += " (truncated)"
	}

	lines = append(lines, "", summary)

	return strings.Join(lines, "\n")
}

func padRow(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for i, cell := range cells {
		padded[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	return strings.TrimRight(strings.Join(padded, "  "), " ")
}

func separatorRow(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("-", w)
	}

	return strings.Join(parts, "  ")
}

func cellString(v interface{}) string {
	if v == nil {
		return "NULL"
	}

	return fmt.Sprintf("%v", v)
}

func truncateCell(s string) string {
	if len(s) <= maxCellWidth {
		return s
	}

	return s[:maxCellWidth-3] + "..."
}

func csvEscape(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}

	return s
}
