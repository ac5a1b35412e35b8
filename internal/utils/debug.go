package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/saverx/saverx/internal/config"
)

var (
	debugMu     sync.Mutex
	debugDir    string
	debugFile   *os.File
	debugOpened bool
	logger      = zerolog.Nop()
)

// ConfigureDebug points the debug log at dir. The file itself is created
// lazily on the first Debug call.
func ConfigureDebug(dir string) {
	debugMu.Lock()
	defer debugMu.Unlock()

	if debugFile != nil {
		_ = debugFile.Close()
		debugFile = nil
	}
	debugDir = dir
	debugOpened = false
	logger = zerolog.Nop()
}

// Logger returns the process-wide structured logger. It discards output if
// the log file cannot be opened.
func Logger() zerolog.Logger {
	debugMu.Lock()
	defer debugMu.Unlock()

	if !debugOpened {
		debugOpened = true
		openDebugFile()
	}
	return logger
}

func openDebugFile() {
	dir := debugDir
	if dir == "" {
		dir = config.GetLogsDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	name := fmt.Sprintf("debug-%s.log", time.Now().Format("20060102-150405"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	debugFile = f
	logger = zerolog.New(f).With().Timestamp().Logger()
}

// Debug writes a formatted line to the debug log.
func Debug(format string, args ...any) {
	l := Logger()
	l.Debug().Msg(fmt.Sprintf(format, args...))
}

// CleanupLogs removes all but the newest keep debug logs.
func CleanupLogs(keep int) {
	debugMu.Lock()
	dir := debugDir
	debugMu.Unlock()
	if dir == "" {
		dir = config.GetLogsDir()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var logs []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, "debug-") && strings.HasSuffix(name, ".log") {
			logs = append(logs, name)
		}
	}
	if len(logs) <= keep {
		return
	}

	// Timestamped names sort chronologically.
	sort.Strings(logs)
	for _, name := range logs[:len(logs)-keep] {
		_ = os.Remove(filepath.Join(dir, name))
	}
}
