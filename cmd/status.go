package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/saverx/saverx/internal/engine/types"
	"github.com/saverx/saverx/internal/utils"
)

var statusCmd = &cobra.Command{
	Use:   "status <ID>",
	Short: "Show one download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		portFlag, _ := cmd.Flags().GetInt("port")

		id, err := parseIDArg(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		port, err := resolvePort(portFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var job types.Job
		if err := getJSON(port, fmt.Sprintf("/download?id=%d", id), &job); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printStatus(os.Stdout, job)
	},
}

func printStatus(out io.Writer, j types.Job) {
	fmt.Fprintf(out, "ID:        %d\n", j.ID)
	fmt.Fprintf(out, "URL:       %s\n", j.URL)
	fmt.Fprintf(out, "Title:     %s\n", j.DisplayTitle())
	fmt.Fprintf(out, "Status:    %s\n", j.State)
	fmt.Fprintf(out, "Progress:  %d%%\n", j.Percent)
	if j.Total > 0 {
		fmt.Fprintf(out, "Size:      %s / %s\n", utils.FormatBytes(j.Downloaded), utils.FormatBytes(j.Total))
	}
	if j.State.IsActive() {
		if j.Speed != "" {
			fmt.Fprintf(out, "Speed:     %s\n", j.Speed)
		}
		fmt.Fprintf(out, "ETA:       %s\n", j.ETAString())
	}
	if j.ResultPath != "" {
		fmt.Fprintf(out, "File:      %s\n", j.ResultPath)
	}
	if j.Error != "" {
		fmt.Fprintf(out, "Error:     %s\n", j.Error)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().IntP("port", "p", 0, "port of the running SaverX server")
}
