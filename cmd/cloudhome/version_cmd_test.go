package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cloudhome/cloudhome/internal/version"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestVersionCommand_PrintsDetailedVersion(t *testing.T) {
	cmd := &cobra.Command{Use: "cloudhome"}
	cmd.AddCommand(newVersionCmd())

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())

	got := strings.TrimSpace(out.String())
	require.Equal(t, version.Detailed(), got)
}

func TestVersionCommand_YAML(t *testing.T) {
	cmd := &cobra.Command{Use: "cloudhome"}
	cmd.AddCommand(newVersionCmd())

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--yaml"})

	require.NoError(t, cmd.Execute())

	var info version.Info
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &info))
	require.Equal(t, version.Current(), info)
}
