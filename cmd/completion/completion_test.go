package completion

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletion(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish"} {
		t.Run(shell, func(t *testing.T) {
			root := &cobra.Command{Use: "nexotax"}
			root.AddCommand(&cobra.Command{Use: "report", Run: func(*cobra.Command, []string) {}})
			root.AddCommand(CreateCmd(root))
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetArgs([]string{"completion", shell})

			require.NoError(t, root.Execute())

			assert.Contains(t, out.String(), "nexotax")
		})
	}
}

func TestCompletionRejectsUnknownShell(t *testing.T) {
	root := &cobra.Command{Use: "nexotax"}
	root.AddCommand(CreateCmd(root))
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"completion", "tcsh"})

	assert.Error(t, root.Execute())
}
