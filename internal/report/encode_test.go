package report_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/packfang/internal/report"
	"github.com/Sumatoshi-tech/packfang/pkg/audit"
)

func TestJSONRenderer_RoundTripsSorted(t *testing.T) {
	t.Parallel()

	renderer, err := report.New(report.FormatJSON, report.Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, renderer.Render(&buf, fixtureReport()))

	var decoded audit.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	expected := fixtureReport()
	expected.Sort()

	assert.Equal(t, *expected, decoded)
	assert.Equal(t, "App", decoded.Results[0].Target, "results sorted by target name")
}

func TestJSONRenderer_MatchesSchema(t *testing.T) {
	t.Parallel()

	renderer, err := report.New(report.FormatJSON, report.Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, renderer.Render(&buf, fixtureReport()))

	violations, err := report.ValidateJSON(buf.Bytes())
	require.NoError(t, err)

	assert.Empty(t, violations)
}

func TestValidateJSON_FlagsViolations(t *testing.T) {
	t.Parallel()

	violations, err := report.ValidateJSON([]byte(`{"package": 7}`))
	require.NoError(t, err)

	assert.NotEmpty(t, violations)
}

func TestYAMLRenderer_RoundTrips(t *testing.T) {
	t.Parallel()

	renderer, err := report.New(report.FormatYAML, report.Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, renderer.Render(&buf, fixtureReport()))

	var decoded audit.Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))

	expected := fixtureReport()
	expected.Sort()

	assert.Equal(t, *expected, decoded)
}
