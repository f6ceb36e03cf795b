// Package main provides the CLI entry point for the qi toolchain.
//
// Usage:
//
//	qi build <file.qi>...        - Compile source files to textual IR (.ll)
//	qi watch [dir]               - Recompile on change
//	qi serve                     - Run the inspection HTTP service
//	qi init-config [path]        - Write an example qi.toml
//	qi version                   - Print the version
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qi-lang/qi/internal/api"
	"github.com/qi-lang/qi/internal/compiler"
	"github.com/qi-lang/qi/internal/config"
	"github.com/qi-lang/qi/internal/logger"
	"github.com/qi-lang/qi/internal/watch"
	"github.com/qi-lang/qi/pkg/qiruntime"
)

// version is stamped via -ldflags at release time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load("qi.toml")
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger.Setup(cfg)
	defer logger.Stop()
	api.SetVersion(version)

	switch os.Args[1] {
	case "build":
		os.Exit(runBuild(cfg, os.Args[2:]))
	case "watch":
		os.Exit(runWatch(cfg, os.Args[2:]))
	case "serve":
		os.Exit(runServe(cfg))
	case "init-config":
		path := "qi.toml"
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		if err := config.WriteExampleConfig(path); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		fmt.Println("wrote", path)
	case "version":
		fmt.Println("qi", version)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  qi build <file.qi>...
  qi watch [dir]
  qi serve
  qi init-config [path]
  qi version`)
}

func runBuild(cfg *config.Config, files []string) int {
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "error: no source files")
		return 2
	}
	comp := compiler.New(cfg, nil)
	code := 0
	for _, f := range files {
		out, res, err := comp.CompileFile(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", f, err)
			code = 1
			if res == nil {
				continue
			}
		}
		if out != "" {
			fmt.Printf("%s -> %s\n", f, out)
		}
	}
	return code
}

func runWatch(cfg *config.Config, args []string) int {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	comp := compiler.New(cfg, nil)
	w, err := watch.NewWatcher(root, comp, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	if err := w.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer w.Stop()
	fmt.Println("watching", root, "(ctrl-c to stop)")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return 0
}

func runServe(cfg *config.Config) int {
	log := logger.GetLogger()

	if rc := qiruntime.InitializeWith(qiruntime.Config{
		Pool: qiruntime.PoolConfig{
			WorkerCount:        cfg.Runtime.Workers,
			QueueCapacity:      cfg.Runtime.QueueCapacity,
			EnableWorkStealing: cfg.Runtime.WorkStealing,
		},
		LogLevel: cfg.Logging.Level,
	}); rc != 0 {
		fmt.Fprintln(os.Stderr, "error: runtime initialization failed")
		return 1
	}
	defer qiruntime.Shutdown()

	comp := compiler.New(cfg, nil)
	srv := &http.Server{
		Addr:    cfg.Address(),
		Handler: api.NewServer(cfg, comp).Handler(),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info().Str("addr", cfg.Address()).Msg("inspection service listening")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("server stopped")
		return 1
	case <-sig:
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Service.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
		return 1
	}
	return 0
}
