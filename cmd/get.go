package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/saverx/saverx/internal/download"
	"github.com/saverx/saverx/internal/engine/events"
)

var getCmd = &cobra.Command{
	Use:   "get [url]",
	Short: "Download a URL, or hand it to the running instance",
	Long: `Download a URL without the dashboard.

When SaverX is already running the URL is queued there.
Otherwise the download runs in this process and the command waits for it.
Use --batch to download multiple URLs from a file (one URL per line).`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		outPath, _ := cmd.Flags().GetString("output")
		portFlag, _ := cmd.Flags().GetInt("port")
		batchFile, _ := cmd.Flags().GetString("batch")

		var urls []string
		switch {
		case batchFile != "":
			var err error
			urls, err = readURLsFromFile(batchFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		case len(args) == 1:
			urls = []string{args[0]}
		default:
			fmt.Fprintln(os.Stderr, "Error: requires either a URL argument or --batch flag")
			os.Exit(1)
		}

		settings := initializeGlobalState()
		if outPath != "" {
			settings.General.DownloadDir = outPath
		}

		if portFlag > 0 || isInstanceRunning() {
			port, err := resolvePort(portFlag)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if failed := queueRemote(urls, port, os.Stdout, os.Stderr); failed > 0 {
				os.Exit(1)
			}
			return
		}

		isMaster, err := AcquireLock()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking lock: %v\n", err)
			os.Exit(1)
		}
		if isMaster {
			defer ReleaseLock()
		}

		orch, err := buildOrchestrator(settings)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		failed := runLocal(ctx, orch, urls, os.Stdout)
		ReleaseLock()
		if failed > 0 {
			os.Exit(1)
		}
	},
}

// queueRemote sends each URL to the instance on port and returns how many
// were rejected.
func queueRemote(urls []string, port int, out, errOut io.Writer) int {
	var failed int
	for i, url := range urls {
		if len(urls) > 1 {
			fmt.Fprintf(errOut, "[%d/%d] %s\n", i+1, len(urls), url)
		}
		id, err := sendToServer(url, port)
		if err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			failed++
			continue
		}
		fmt.Fprintf(out, "Download queued. ID: %d\n", id)
	}
	return failed
}

// runLocal downloads urls in this process and blocks until every job has
// reached a terminal state. Cancelling ctx cancels the jobs that are still
// running. It returns how many jobs did not finish.
func runLocal(ctx context.Context, orch *download.Orchestrator, urls []string, out io.Writer) int {
	q := orch.Subscribe()
	defer orch.Unsubscribe(q)

	pending := make(map[int64]bool)
	var failed int
	for _, url := range urls {
		id, err := orch.Submit(url)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			failed++
			continue
		}
		pending[id] = true
	}

	done := ctx.Done()
	for len(pending) > 0 {
		select {
		case <-done:
			fmt.Fprintln(out, "\nStopping...")
			for id := range pending {
				orch.Cancel(id)
			}
			done = nil
		case <-q.Notify():
			for _, e := range q.Drain() {
				if !pending[e.ID()] {
					continue
				}
				if line, ok := formatEvent(e); ok {
					if _, started := e.(events.JobAddedMsg); !started {
						fmt.Fprintln(out, line)
					}
				}
				if events.IsTerminal(e) {
					delete(pending, e.ID())
					if _, ok := e.(events.JobCompletedMsg); !ok {
						failed++
					}
				}
			}
		}
	}
	return failed
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringP("output", "o", "", "output directory")
	getCmd.Flags().IntP("port", "p", 0, "send to running SaverX server on this port")
	getCmd.Flags().StringP("batch", "b", "", "file containing URLs to download (one per line)")
}
