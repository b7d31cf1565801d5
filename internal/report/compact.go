package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/Sumatoshi-tech/packfang/pkg/audit"
)

// compactRenderer prints one line per finding for grep pipelines. A clean
// report writes nothing.
type compactRenderer struct{}

func (compactRenderer) Render(w io.Writer, rep *audit.Report) error {
	rep.Sort()

	var b strings.Builder

	for i := range rep.Results {
		res := &rep.Results[i]

		for _, name := range res.Missing {
			fmt.Fprintf(&b, "%s missing %s\n", res.Target, name)
		}

		for _, name := range res.Unused {
			fmt.Fprintf(&b, "%s unused %s\n", res.Target, name)
		}

		for _, rd := range res.Redundant {
			fmt.Fprintf(&b, "%s redundant %s product=%s package=%s\n", res.Target, rd.Target, rd.Product, rd.Package)
		}

		for _, ps := range res.ProductSatisfied {
			fmt.Fprintf(&b, "%s satisfied %s product=%s package=%s\n", res.Target, ps.Import, ps.Product, ps.Package)
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}
