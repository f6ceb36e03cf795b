// Package logger owns structured logging for the qi toolchain. The
// compiler driver, watcher, and inspection service share one arbor
// instance built from the [logging] section of qi.toml; runtimes embedded
// in compiled programs carry their own logger inside pkg/qiruntime.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	arborcommon "github.com/ternarybob/arbor/common"
	"github.com/ternarybob/arbor/models"

	"github.com/qi-lang/qi/internal/config"
)

var (
	mu     sync.RWMutex
	active arbor.ILogger
)

// GetLogger returns the process logger. Until Setup runs it hands out a
// bare console logger so parse and lowering diagnostics emitted during
// startup are never dropped.
func GetLogger() arbor.ILogger {
	mu.RLock()
	lg := active
	mu.RUnlock()
	if lg != nil {
		return lg
	}

	mu.Lock()
	defer mu.Unlock()
	if active == nil {
		active = arbor.NewLogger().WithConsoleWriter(writerFor(nil, models.LogWriterTypeConsole, ""))
	}
	return active
}

// Setup builds the logger described by cfg and installs it as the process
// logger. Each entry in logging.output attaches one sink; a "file" sink
// that cannot create its directory degrades to a stderr note rather than
// failing the command, and when nothing attaches a console sink is added
// anyway: the toolchain never runs silent.
func Setup(cfg *config.Config) arbor.ILogger {
	lg := arbor.NewLogger()
	attached := 0

	for _, sink := range cfg.Logging.Output {
		switch sink {
		case "stdout", "console":
			lg = lg.WithConsoleWriter(writerFor(cfg, models.LogWriterTypeConsole, ""))
			attached++
		case "file":
			path, err := logFilePath(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "qi: file logging disabled: %v\n", err)
				continue
			}
			lg = lg.WithFileWriter(writerFor(cfg, models.LogWriterTypeFile, path))
			attached++
		default:
			fmt.Fprintf(os.Stderr, "qi: unknown log output %q ignored\n", sink)
		}
	}
	if attached == 0 {
		lg = lg.WithConsoleWriter(writerFor(cfg, models.LogWriterTypeConsole, ""))
	}
	lg = lg.WithLevelFromString(cfg.Logging.Level)

	mu.Lock()
	active = lg
	mu.Unlock()
	return lg
}

// logFilePath resolves and creates the directory the file sink writes to.
func logFilePath(cfg *config.Config) (string, error) {
	if cfg.Logging.Dir == "" {
		return "", fmt.Errorf("logging.dir is not set")
	}
	if err := os.MkdirAll(cfg.Logging.Dir, 0755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}
	return filepath.Join(cfg.Logging.Dir, "qi.log"), nil
}

// writerFor translates the [logging] section into one writer's settings.
// Text (logfmt) is the default rendering; JSON is opt-in, the reverse of a
// service-first logger, because the primary consumer is a developer
// terminal running qi build.
func writerFor(cfg *config.Config, kind models.LogWriterType, path string) models.WriterConfiguration {
	wc := models.WriterConfiguration{
		Type:       kind,
		FileName:   path,
		TimeFormat: "15:04:05.000",
		OutputType: models.OutputFormatLogfmt,
	}
	if cfg == nil {
		return wc
	}
	if cfg.Logging.TimeFormat != "" {
		wc.TimeFormat = cfg.Logging.TimeFormat
	}
	if cfg.Logging.Format == "json" {
		wc.OutputType = models.OutputFormatJSON
	}
	return wc
}

// Stop flushes arbor's writers; the CLI defers it around every subcommand.
// Safe to call more than once.
func Stop() {
	arborcommon.Stop()
}
