package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// tableProvider is implemented by summaries that render as a table.
type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

// PrintResult writes a command summary to stdout in the --output format.
// Without a CLIContext it falls back to JSON.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := "json"
	if c, err := GetCLIContext(cmd); err == nil {
		format = strings.ToLower(c.OutputFormat)
	}
	return writeResult(cmd.OutOrStdout(), format, data)
}

// writeResult renders data as json, as a table when data is a
// tableProvider, or as text.
func writeResult(out io.Writer, format string, data interface{}) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	if tp, ok := data.(tableProvider); ok && format == "table" {
		_, err := io.WriteString(out, FormatTable(tp.TableHeaders(), tp.TableRows()))
		return err
	}
	var err error
	switch v := data.(type) {
	case string:
		_, err = fmt.Fprintln(out, v)
	case fmt.Stringer:
		_, err = fmt.Fprintln(out, v.String())
	default:
		_, err = fmt.Fprintf(out, "%+v\n", v)
	}
	return err
}

// PrintError reports err on stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
}

// PrintSuccess reports msg on stderr so stdout only carries results.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintln(cmd.ErrOrStderr(), "OK:", msg)
}

// FormatTable lays out rows under headers in space-separated columns with
// a dashed rule below the header. Every cell is padded to its column
// width and missing trailing cells print as blanks.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	width := make([]int, len(headers))
	cell := func(row []string, i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	rule := make([]string, len(headers))
	for i := range headers {
		width[i] = len(headers[i])
		for _, r := range rows {
			width[i] = max(width[i], len(cell(r, i)))
		}
		rule[i] = strings.Repeat("-", width[i])
	}

	var sb strings.Builder
	for _, r := range append([][]string{headers, rule}, rows...) {
		for i := range headers {
			if i > 0 {
				sb.WriteString("  ")
			}
			fmt.Fprintf(&sb, "%-*s", width[i], cell(r, i))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
