package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"seatrush/internal/site"
)

func newSitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List the supported ticketing sites",
		Run: func(cmd *cobra.Command, args []string) {
			profiles := site.All()
			sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
			for _, p := range profiles {
				fmt.Fprintf(os.Stdout, "%-14s %s\n", p.ID, p.Name)
			}
		},
	}
}
