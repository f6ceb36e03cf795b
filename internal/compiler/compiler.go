// Package compiler ties the front end and the lowering engine into the
// pipeline the CLI, watcher, and inspection service drive: source text in,
// textual IR out.
package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/qi-lang/qi/internal/codegen"
	"github.com/qi-lang/qi/internal/config"
	"github.com/qi-lang/qi/internal/diag"
	"github.com/qi-lang/qi/internal/logger"
	"github.com/qi-lang/qi/internal/parser"
)

// Compiler compiles Qi source files to textual IR.
type Compiler struct {
	cfg      *config.Config
	registry *ModuleRegistry
}

// New builds a compiler over a configuration and an optional module
// registry for cross-module calls.
func New(cfg *config.Config, registry *ModuleRegistry) *Compiler {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if registry == nil {
		registry = NewModuleRegistry()
	}
	return &Compiler{cfg: cfg, registry: registry}
}

// Registry exposes the module registry.
func (c *Compiler) Registry() *ModuleRegistry { return c.registry }

// Result is the outcome of one compilation.
type Result struct {
	IR          string
	Diagnostics []*diag.LoweringError
	Elapsed     time.Duration
}

// Compile parses and lowers one source buffer. Lowering diagnostics do not
// abort emission: the result carries best-effort IR alongside them.
func (c *Compiler) Compile(src []byte, name string) (*Result, error) {
	log := logger.GetLogger()
	start := time.Now()

	prog, err := parser.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	b := codegen.New(codegen.Options{
		ModuleName: moduleNameFor(c.cfg, name),
		DataLayout: c.cfg.Build.DataLayout,
		Triple:     c.cfg.Build.Triple,
		External:   c.registry.Exports(),
	})
	ir, lowerErr := b.Lower(prog)

	res := &Result{
		IR:          ir,
		Diagnostics: b.Diagnostics().All(),
		Elapsed:     time.Since(start),
	}
	log.Info().
		Str("source", name).
		Int("diagnostics", len(res.Diagnostics)).
		Str("elapsed", res.Elapsed.String()).
		Msg("compiled")

	if lowerErr != nil {
		return res, fmt.Errorf("lower %s: %w", name, lowerErr)
	}
	return res, nil
}

// CompileFile compiles path and writes the IR next to it (or into the
// configured output directory) with the .ll extension. It returns the
// output path.
func (c *Compiler) CompileFile(path string) (string, *Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read source: %w", err)
	}
	res, cerr := c.Compile(src, filepath.Base(path))
	if res == nil {
		return "", nil, cerr
	}

	out := outputPath(c.cfg, path)
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return "", res, fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(out, []byte(res.IR), 0644); err != nil {
		return "", res, fmt.Errorf("write IR: %w", err)
	}
	return out, res, cerr
}

func moduleNameFor(cfg *config.Config, name string) string {
	if cfg.Build.ModuleName != "" && cfg.Build.ModuleName != "main" {
		return cfg.Build.ModuleName
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" {
		return "main"
	}
	return base
}

func outputPath(cfg *config.Config, srcPath string) string {
	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath)) + ".ll"
	dir := cfg.Build.OutputDir
	if dir == "" || dir == "." {
		dir = filepath.Dir(srcPath)
	}
	return filepath.Join(dir, base)
}
