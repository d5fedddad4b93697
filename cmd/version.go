package cmd

import (
	"fmt"

	"github.com/0xsend/distributor/internal/version"
	"github.com/spf13/cobra"
)

var runVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and commit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("distributor %s (%s)\n", version.GetVersion(), version.GetCommit())
	},
}
