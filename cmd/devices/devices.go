// Package devices implements the devices command.
package devices

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/navpreview/internal/capture"
)

// Command creates the devices command
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List local capture devices",
		Long:  "List the video4linux capture nodes usable with the v4l2 camera driver.",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := capture.Enumerate()
			if err != nil {
				return fmt.Errorf("error listing capture devices: %w", err)
			}
			if len(devices) == 0 {
				cmd.Println("No capture devices found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NODE\tNAME")
			for _, d := range devices {
				_, _ = fmt.Fprintf(w, "%s\t%s\n", d.Node, d.Name)
			}
			return w.Flush()
		},
	}
}
