package main

import (
	"fmt"

	"github.com/cloudhome/cloudhome/internal/version"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print cloudhome version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			asYAML, _ := cmd.Flags().GetBool("yaml")
			if asYAML {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				if err := enc.Encode(version.Current()); err != nil {
					return err
				}
				return enc.Close()
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Detailed())
			return err
		},
	}
	cmd.Flags().Bool("yaml", false, "Print build information as YAML")
	return cmd
}
