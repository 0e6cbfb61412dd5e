package main

import (
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"bbsgate/internal/app"
)

var (
	connectionsLimit   int
	connectionsVerbose bool
	connectionsSummary bool
)

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "List recent connections",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := app.Boot(cfgFile, !connectionsVerbose); err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		if connectionsSummary {
			printTerminalSummary()
			return
		}

		records, err := app.Store.RecentConnections(connectionsLimit)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		if len(records) == 0 {
			fmt.Println("No connections recorded yet.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tVIA\tNODE\tADDRESS\tTERMINAL\tSIZE\tONLINE\tIN/OUT")
		for _, r := range records {
			size := "-"
			if r.Width > 0 || r.Height > 0 {
				size = fmt.Sprintf("%dx%d", r.Width, r.Height)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s/%s\n",
				humanize.Time(r.ConnectedAt),
				r.Transport,
				r.Node,
				r.RemoteAddr,
				r.TerminalType,
				size,
				r.Duration.Round(time.Second),
				humanize.Bytes(uint64(r.BytesRead)),
				humanize.Bytes(uint64(r.BytesWritten)),
			)
		}
		w.Flush()
	},
}

func init() {
	connectionsCmd.Flags().IntVarP(&connectionsLimit, "limit", "n", 20, "number of connections to show (0 for all)")
	connectionsCmd.Flags().BoolVarP(&connectionsVerbose, "verbose", "v", false, "enable verbose logging")
	connectionsCmd.Flags().BoolVar(&connectionsSummary, "terminals", false, "summarise by terminal type instead")
}

func printTerminalSummary() {
	counts, err := app.Store.CountByTerminalType()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return counts[types[i]] > counts[types[j]] })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TERMINAL\tCALLS")
	for _, t := range types {
		fmt.Fprintf(w, "%s\t%s\n", t, humanize.Comma(counts[t]))
	}
	w.Flush()
}
