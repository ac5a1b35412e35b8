package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/saverx/saverx/internal/engine/types"
	"github.com/saverx/saverx/internal/utils"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List downloads",
	Long:  `List the jobs of the running instance, newest first.`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		watch, _ := cmd.Flags().GetBool("watch")
		portFlag, _ := cmd.Flags().GetInt("port")

		port, err := resolvePort(portFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		for {
			var jobs []types.Job
			if err := getJSON(port, "/jobs", &jobs); err != nil {
				fmt.Fprintf(os.Stderr, "Error listing downloads: %v\n", err)
				os.Exit(1)
			}
			printJobs(os.Stdout, jobs, jsonOutput)
			if !watch {
				return
			}
			time.Sleep(2 * time.Second)
			fmt.Print("\033[H\033[2J")
		}
	},
}

func printJobs(out io.Writer, jobs []types.Job, jsonOutput bool) {
	if jsonOutput {
		if jobs == nil {
			jobs = []types.Job{}
		}
		data, _ := json.MarshalIndent(jobs, "", "  ")
		fmt.Fprintln(out, string(data))
		return
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No downloads found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPROGRESS\tSIZE\tSPEED\tETA")
	fmt.Fprintln(w, "--\t-----\t------\t--------\t----\t-----\t---")

	for _, j := range jobs {
		title := j.DisplayTitle()
		if len(title) > 40 {
			title = title[:37] + "..."
		}

		size := "-"
		if j.Total > 0 {
			size = utils.FormatBytes(j.Total)
		}
		speed := j.Speed
		if speed == "" {
			speed = "-"
		}
		eta := "-"
		if j.State.IsActive() {
			eta = j.ETAString()
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%d%%\t%s\t%s\t%s\n", j.ID, title, j.State, j.Percent, size, speed, eta)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().Bool("json", false, "Output in JSON format")
	lsCmd.Flags().Bool("watch", false, "Watch mode: refresh every 2 seconds")
	lsCmd.Flags().IntP("port", "p", 0, "port of the running SaverX server")
}
