package main

import (
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "vaultkeep",
		Short:   "Unofficial password-manager synchronization server",
		Version: version,
	}
	root.SetVersionTemplate("vaultkeep {{.Version}} (built " + buildDate + ")\n")
	root.AddCommand(newServeCmd())
	root.AddCommand(newHashCmd())
	return root
}
