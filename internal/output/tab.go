// Package output provides tab-delimited writers for scan results.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/omicsbio/hgtscan/internal/score"
)

// undefValue marks fields with no defined value, matching the lineage
// convention for unobserved ranks.
const undefValue = "undef"

// ResultColumns is the schema shared by the results and candidates tables.
var ResultColumns = []string{
	"#QUERY",
	"INGROUP_NAME",
	"hU",
	"BIT_OUT",
	"BIT_IN",
	"AI",
	"EVAL_OUT",
	"EVAL_IN",
	"WINNING_CATEGORY",
	"SUPPORT",
	"LINEAGE",
}

// ResultWriter writes per-query score rows in tab-delimited format.
type ResultWriter struct {
	w           *bufio.Writer
	ingroupName string
}

// NewResultWriter creates a result writer. ingroupName is the scientific
// name of the threshold clade, repeated on every row.
func NewResultWriter(w io.Writer, ingroupName string) *ResultWriter {
	if ingroupName == "" {
		ingroupName = undefValue
	}
	return &ResultWriter{w: bufio.NewWriter(w), ingroupName: ingroupName}
}

// WriteHeader writes the header line.
func (rw *ResultWriter) WriteHeader() error {
	_, err := rw.w.WriteString(strings.Join(ResultColumns, "\t") + "\n")
	return err
}

// Write writes one query's scores.
func (rw *ResultWriter) Write(r *score.Result) error {
	support := undefValue
	if r.SupportDefined {
		support = strconv.FormatFloat(r.Support, 'f', 2, 64)
	}

	values := []string{
		r.QueryID,
		rw.ingroupName,
		strconv.FormatFloat(r.HU, 'f', 1, 64),
		strconv.FormatFloat(r.BitOut, 'f', 1, 64),
		strconv.FormatFloat(r.BitIn, 'f', 1, 64),
		strconv.FormatFloat(r.AI, 'f', 2, 64),
		strconv.FormatFloat(r.EvalOut, 'g', -1, 64),
		strconv.FormatFloat(r.EvalIn, 'g', -1, 64),
		r.WinningCategory.String(),
		support,
		r.Lineage,
	}

	_, err := rw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (rw *ResultWriter) Flush() error {
	return rw.w.Flush()
}

// WarningWriter writes one row per rejected hit.
type WarningWriter struct {
	w *bufio.Writer
}

// NewWarningWriter creates a warnings writer.
func NewWarningWriter(w io.Writer) *WarningWriter {
	return &WarningWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line.
func (ww *WarningWriter) WriteHeader() error {
	_, err := ww.w.WriteString("#QUERY\tLINE\tTAXID\tREASON\n")
	return err
}

// Write records one rejected hit.
func (ww *WarningWriter) Write(queryID string, line int, taxid string, reason score.RejectReason) error {
	_, err := fmt.Fprintf(ww.w, "%s\t%d\t%s\t%s\n", queryID, line, taxid, reason)
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (ww *WarningWriter) Flush() error {
	return ww.w.Flush()
}
