package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/saverx/saverx/internal/config"
	"github.com/saverx/saverx/internal/download"
	"github.com/saverx/saverx/internal/engine/events"
	"github.com/saverx/saverx/internal/fetcher"
	"github.com/saverx/saverx/internal/fetcher/direct"
	"github.com/saverx/saverx/internal/fetcher/ytdlp"
	"github.com/saverx/saverx/internal/gallery"
	"github.com/saverx/saverx/internal/tui"
	"github.com/saverx/saverx/internal/utils"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	shutdownTimeout = 10 * time.Second
	keepLogs        = 5
)

var rootCmd = &cobra.Command{
	Use:     "saverx",
	Short:   "Download videos and files from a terminal dashboard",
	Long:    `SaverX downloads media pages through yt-dlp and plain files over HTTP, with a terminal dashboard and a local control API.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		isHeadless, _ := cmd.Flags().GetBool("headless")
		portFlag, _ := cmd.Flags().GetInt("port")
		outputDir, _ := cmd.Flags().GetString("output")

		if err := runServe(isHeadless, portFlag, outputDir); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func runServe(headless bool, portFlag int, outputDir string) error {
	settings := initializeGlobalState()
	if outputDir != "" {
		settings.General.DownloadDir = outputDir
	}

	isMaster, err := AcquireLock()
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	if !isMaster {
		fmt.Fprintln(os.Stderr, "Use 'saverx get <url>' to add a download to the active instance.")
		return fmt.Errorf("SaverX is already running")
	}
	defer ReleaseLock()

	if portFlag == 0 {
		portFlag = settings.Server.Port
	}
	port, ln, err := listen(portFlag)
	if err != nil {
		return err
	}

	orch, err := buildOrchestrator(settings)
	if err != nil {
		ln.Close()
		return err
	}

	saveActivePort(port)
	defer removeActivePort()

	lister := gallery.NewLister(orch.DestDir())
	server := startHTTPServer(ln, NewServer(orch, lister, port).Router())

	if headless {
		fmt.Printf("SaverX %s running in headless mode.\n", Version)
		fmt.Printf("HTTP server listening on port %d, saving to %s\n", port, orch.DestDir())
		fmt.Println("Press Ctrl+C to exit.")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		StartHeadlessConsumer(ctx, orch, os.Stdout)
		<-ctx.Done()
		stop()
		fmt.Println("\nShutting down...")
	} else if err := startTUI(orch, lister, settings); err != nil {
		shutdown(orch, server)
		return err
	}

	shutdown(orch, server)
	return nil
}

// buildOrchestrator wires both fetchers behind a Selector.
func buildOrchestrator(settings *config.Settings) (*download.Orchestrator, error) {
	destDir := settings.DownloadDir()
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating download dir: %w", err)
	}

	yt := ytdlp.New(ytdlp.Options{
		Binary:         settings.YtDlp.Binary,
		Format:         settings.YtDlp.Format,
		OutputTemplate: settings.YtDlp.OutputTemplate,
		NoPlaylist:     settings.YtDlp.NoPlaylist,
	})
	dr := direct.New(direct.Options{
		UserAgent:        settings.Direct.UserAgent,
		ProgressInterval: settings.Direct.ProgressInterval,
	})

	haveYtDlp := ytdlp.Available(settings.YtDlp.Binary)
	if !haveYtDlp {
		utils.Debug("yt-dlp binary %q not found, media pages will fail", settings.YtDlp.Binary)
	}
	sel, err := fetcher.NewSelector(settings.General.Fetcher, yt, dr, haveYtDlp)
	if err != nil {
		return nil, err
	}
	sel.WithProbe(dr.ContentType)

	return download.New(sel, destDir, download.WithURLPolicy(settings.Policy.Check)), nil
}

func startTUI(orch *download.Orchestrator, lister *gallery.Lister, settings *config.Settings) error {
	var changes <-chan struct{}
	w, err := gallery.Watch(orch.DestDir())
	if err != nil {
		utils.Debug("Gallery watcher disabled: %v", err)
	} else {
		defer w.Close()
		changes = w.Changes()
	}

	m := tui.NewRootModel(orch, tui.Options{
		DestDir:        orch.DestDir(),
		Gallery:        lister,
		GalleryChanges: changes,
		AutoPaste:      settings.General.AutoPaste,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}

// eventSource is what the headless consumer reads from.
type eventSource interface {
	Subscribe() *events.Queue
	Unsubscribe(q *events.Queue)
}

// StartHeadlessConsumer prints lifecycle events to out until ctx ends.
func StartHeadlessConsumer(ctx context.Context, src eventSource, out io.Writer) {
	q := src.Subscribe()
	go func() {
		defer src.Unsubscribe(q)
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.Notify():
				for _, e := range q.Drain() {
					if line, ok := formatEvent(e); ok {
						fmt.Fprintln(out, line)
					}
				}
			}
		}
	}()
}

// formatEvent renders the events worth a line on stdout. Progress is skipped.
func formatEvent(e events.Event) (string, bool) {
	switch m := e.(type) {
	case events.JobAddedMsg:
		return fmt.Sprintf("Started #%d: %s", m.JobID, m.URL), true
	case events.StatusChangedMsg:
		return fmt.Sprintf("Status #%d: %s", m.JobID, m.Text), true
	case events.JobCompletedMsg:
		return fmt.Sprintf("Completed #%d: %s", m.JobID, m.Path), true
	case events.JobFailedMsg:
		return fmt.Sprintf("Failed #%d: %s", m.JobID, m.Reason), true
	case events.JobCancelledMsg:
		return fmt.Sprintf("Cancelled #%d", m.JobID), true
	}
	return "", false
}

func shutdown(orch *download.Orchestrator, server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		utils.Debug("HTTP server shutdown: %v", err)
	}
	if err := orch.Shutdown(ctx); err != nil {
		utils.Debug("Orchestrator shutdown: %v", err)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().Bool("headless", false, "Run in headless mode (no TUI)")
	rootCmd.Flags().IntP("port", "p", 0, "Port to listen on (default: 8080 or first available)")
	rootCmd.Flags().StringP("output", "o", "", "Download directory (overrides settings)")
	rootCmd.SetVersionTemplate("SaverX version {{.Version}} (built {{.Annotations.buildTime}})\n")
	rootCmd.Annotations = map[string]string{"buildTime": BuildTime}
}

// initializeGlobalState prepares directories and logging and loads settings.
// Broken settings fall back to the defaults.
func initializeGlobalState() *config.Settings {
	if err := config.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	utils.ConfigureDebug(config.GetLogsDir())
	utils.CleanupLogs(keepLogs)

	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using defaults\n", err)
		settings = config.DefaultSettings()
	}
	return settings
}
