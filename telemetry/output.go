package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gocarina/gocsv"
)

// OutputManager writes TickReport rows to a CSV file, grounded on
// telemetry/output.go's header-on-first-write pattern. A nil *OutputManager
// is valid and makes every method a no-op, matching the teacher's
// "output disabled" convention.
type OutputManager struct {
	dir            string
	reportFile     *os.File
	headerWritten  bool
	rowsWritten    int
}

// NewOutputManager creates dir and opens tick_report.csv inside it. Passing
// an empty dir disables output entirely.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("telemetry: creating output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "tick_report.csv"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating tick_report.csv: %w", err)
	}
	return &OutputManager{dir: dir, reportFile: f}, nil
}

// WriteReport appends one TickReport row, writing the CSV header on the
// first call.
func (om *OutputManager) WriteReport(r TickReport) error {
	if om == nil {
		return nil
	}
	records := []TickReport{r}
	var err error
	if !om.headerWritten {
		err = gocsv.Marshal(records, om.reportFile)
		om.headerWritten = true
	} else {
		err = gocsv.MarshalWithoutHeaders(records, om.reportFile)
	}
	if err != nil {
		return fmt.Errorf("telemetry: writing tick report: %w", err)
	}
	om.rowsWritten++
	return nil
}

// Summary returns a short human-readable line describing how much has been
// written so far, for end-of-run logging.
func (om *OutputManager) Summary() string {
	if om == nil {
		return "telemetry output disabled"
	}
	return fmt.Sprintf("wrote %s tick report rows to %s", humanize.Comma(int64(om.rowsWritten)), om.dir)
}

// Dir returns the output directory, or "" if output is disabled.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes the report file.
func (om *OutputManager) Close() error {
	if om == nil || om.reportFile == nil {
		return nil
	}
	return om.reportFile.Close()
}
