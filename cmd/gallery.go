package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/saverx/saverx/internal/gallery"
	"github.com/saverx/saverx/internal/utils"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "List downloaded files",
	Long:  `List the files in the download directory, newest first.`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		dir, _ := cmd.Flags().GetString("dir")

		if dir == "" {
			dir = initializeGlobalState().DownloadDir()
		}

		items, err := gallery.NewLister(dir).List()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printGallery(os.Stdout, dir, items, jsonOutput)
	},
}

func printGallery(out io.Writer, dir string, items []gallery.Item, jsonOutput bool) {
	if jsonOutput {
		if items == nil {
			items = []gallery.Item{}
		}
		data, _ := json.MarshalIndent(items, "", "  ")
		fmt.Fprintln(out, string(data))
		return
	}
	if len(items) == 0 {
		fmt.Fprintf(out, "No files in %s\n", dir)
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tSIZE\tMODIFIED")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.Name, it.Kind, utils.FormatBytes(it.Size), humanize.Time(it.ModTime))
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d files in %s\n", len(items), dir)
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.Flags().Bool("json", false, "Output in JSON format")
	galleryCmd.Flags().String("dir", "", "directory to list (default: download dir from settings)")
}
