package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/packfang/pkg/audit"
)

// jsonRenderer emits the report as indented JSON. Field order is fixed by
// the struct definitions, so output is byte-stable for a given report.
type jsonRenderer struct{}

func (jsonRenderer) Render(w io.Writer, rep *audit.Report) error {
	rep.Sort()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	return nil
}
