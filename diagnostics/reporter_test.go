package diagnostics

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamReporterRoutesAndFormats(t *testing.T) {
	var out, errOut bytes.Buffer
	reporter := NewStreamReporter(&out, &errOut)

	reporter("Test", 3, "plain")
	reporter("Test", LevelWarning, "careful")
	reporter("Test", LevelError, "boom")

	require.Regexp(t, `^\[\d+\.\d{6} Test:3\] plain\n$`, out.String())
	require.Regexp(t, `\[\d+\.\d{6} Test:5\] warning: careful\n`, errOut.String())
	require.Regexp(t, `\[\d+\.\d{6} Test:10\] error: boom\n`, errOut.String())
}
