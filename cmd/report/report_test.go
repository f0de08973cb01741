package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const export = "Transaction,Type,Input Currency,Input Amount,Output Currency,Output Amount,USD Equivalent,Fee,Fee Currency,Details,Date / Time (UTC)\n" +
	"P1,Nexo Card Purchase,xUSD,-125,EUR,100,$125.00,-,-,approved / Shop,2025-01-10 10:00:00\n" +
	"CB1,Cashback,NEXO,2,NEXO,2,$2.50,-,-,approved / Shop,2025-01-10 10:00:01\n"

func TestReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(export), 0644))
	auditDir := filepath.Join(dir, "audit")
	var out, stderr bytes.Buffer
	cmd := CreateCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--year", "2025", "--color=false", "--audit-csv", auditDir, path, path})

	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Finnish crypto tax summary 2025")
	assert.Contains(t, out.String(), "Card cashback profitability 2025")
	assert.Contains(t, stderr.String(), "dropped duplicate transactions")
	for _, name := range []string{"acquisitions_2025.csv", "disposals_2025.csv", "card_analysis_2025.csv"} {
		assert.FileExists(t, filepath.Join(auditDir, name))
	}
}

func TestReportAllYears(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(export), 0644))
	var out bytes.Buffer
	cmd := CreateCmd()
	cmd.SetOut(&out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--color=false", path})

	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Finnish crypto tax summary 2025")
}

func TestReadFiles(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.csv", "b.csv"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(export), 0644))
		paths = append(paths, p)
	}
	r := runner{progress: true}
	cmd := CreateCmd()
	cmd.SetErr(new(bytes.Buffer))

	rows, err := r.readFiles(cmd, paths)

	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, paths[0], rows[0].Source)
	assert.Equal(t, paths[1], rows[3].Source)

	_, err = r.readFiles(cmd, []string{filepath.Join(dir, "missing.csv")})
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("Transaction,Type\n"), 0644))
	_, err = r.readFiles(cmd, []string{bad})
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(err.Error(), bad), err.Error())
}
