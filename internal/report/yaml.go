package report

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/packfang/pkg/audit"
)

// yamlRenderer emits the report as YAML.
type yamlRenderer struct{}

func (yamlRenderer) Render(w io.Writer, rep *audit.Report) error {
	rep.Sort()

	data, err := yaml.Marshal(rep)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}
