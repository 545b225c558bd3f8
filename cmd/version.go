package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/teemow/crmgate/internal/dispatch"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of crmgate",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "crmgate version %s\n", version)
			fmt.Fprintf(out, "protocol %s, %s %s/%s\n", dispatch.ProtocolVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
