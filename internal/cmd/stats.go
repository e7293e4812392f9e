package cmd

import (
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Folder statistics snapshot operations",
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
