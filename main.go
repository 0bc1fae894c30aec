// binder expands snippet include directives in shell scripts and other text
// files, in place or as a stdin to stdout filter.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/TortugaLabs/ashlib/internal/bind"
	"github.com/TortugaLabs/ashlib/internal/config"
	"github.com/TortugaLabs/ashlib/internal/diag"
	"github.com/TortugaLabs/ashlib/internal/filter"
	"github.com/TortugaLabs/ashlib/internal/gitmeta"
	"github.com/TortugaLabs/ashlib/internal/resolve"
	"github.com/TortugaLabs/ashlib/internal/walk"
)

var version = "dev"

// maxExit keeps the failure count from wrapping to a zero exit status.
const maxExit = 255

func main() {
	rc, err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(min(rc, maxExit))
}

// run returns the number of inputs that failed. A non-nil error means the
// run was aborted before any file was touched.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if len(args) > 0 && args[0] == "init" {
		return 0, runInit(args[1:], stdout, stderr)
	}

	fs := pflag.NewFlagSet("binder", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.Flags(fs)
	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: binder [flags] [file|dir ...]
       binder init [flags] [dir]

Expand ###$_include directives in the given files, in place. Directories are
processed with -R. With no files, binder filters stdin to stdout.

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0, nil
		}
		return 0, err
	}

	if showVersion, _ := fs.GetBool("version"); showVersion {
		_, _ = fmt.Fprintf(stdout, "binder %s\n", version)
		return 0, nil
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return 0, err
	}
	b, err := newBinder(cfg, stdout, stderr)
	if err != nil {
		return 0, err
	}

	if fs.NArg() == 0 {
		b.filterStdin(stdin)
	}
	for _, arg := range fs.Args() {
		b.process(arg)
	}
	return b.finish(), nil
}

// binder is one configured run.
type binder struct {
	cfg    *config.Config
	engine *bind.Engine
	walker *walk.Walker
	stdout io.Writer
	log    *log.Logger
}

func newBinder(cfg *config.Config, stdout, stderr io.Writer) (*binder, error) {
	tokens, err := cfg.Tokens()
	if err != nil {
		return nil, err
	}
	f, err := buildFilter(cfg)
	if err != nil {
		return nil, err
	}

	logger := diag.NewLogger(stderr, cfg.Verbose)
	printer := diag.NewPrinter(stderr)

	search := resolve.New(resolve.Options{
		Dirs:   cfg.Include,
		Env:    cfg.Path,
		StdDir: cfg.StdPath,
		NoStd:  cfg.NoStdPath,
	})
	logger.Debug("search path", "dirs", search.Dirs())

	engine := bind.New(search, gitmeta.NewRunner(), printer, bind.Options{
		Unbind:      cfg.Unbind,
		Doc:         cfg.Doc,
		Meta:        cfg.Meta,
		Tokens:      tokens,
		CheckSyntax: cfg.CheckSyntax,
		Logger:      logger,
	})
	walker := walk.New(f, printer, walk.Options{
		DirConfig:      cfg.DirConfig,
		FollowSymlinks: cfg.FollowSymlinks,
		PatternTest:    cfg.PatternTest,
		ReportBinary:   cfg.ReportBinary,
		DumpStack:      cfg.DumpStack,
		Gitignore:      cfg.Gitignore,
		Out:            stdout,
		Logger:         logger,
		Locate:         engine.Where,
	})

	return &binder{cfg: cfg, engine: engine, walker: walker, stdout: stdout, log: logger}, nil
}

// buildFilter assembles the baseline and CLI rule tables. Pattern files
// are read before --pattern rules.
func buildFilter(cfg *config.Config) (*filter.Filter, error) {
	var base filter.Rules
	if !cfg.ResetStdPatterns {
		base = filter.Defaults()
	}
	f := filter.New(nil, base)

	for _, path := range cfg.PatternFiles {
		rules, reset, err := filter.LoadRules(path)
		if err != nil {
			return nil, err
		}
		f.AppendCLI(rules, reset)
	}
	for _, spec := range cfg.Patterns {
		if spec == filter.ResetSentinel {
			f.AppendCLI(nil, true)
			continue
		}
		rule, err := filter.ParseRule(spec)
		if err != nil {
			return nil, fmt.Errorf("--pattern: %w", err)
		}
		f.AppendCLI(filter.Rules{rule}, false)
	}
	return f, nil
}

// process binds one command-line argument.
func (b *binder) process(arg string) {
	if info, err := os.Stat(arg); err == nil && info.IsDir() && b.cfg.Recursive {
		b.walker.Walk(arg, b.bindFile)
		return
	}
	b.walker.Visit(arg, b.bindFile)
}

// finish logs the failure summary and returns the number of failed inputs.
func (b *binder) finish() int {
	if err := b.walker.Errors(); err != nil {
		b.log.Error(err.Error())
	}
	return b.walker.Failures()
}

func (b *binder) bindFile(path string) error {
	_, err := b.engine.BindFile(path, bind.FileOptions{
		Force:  b.cfg.Force,
		DryRun: b.cfg.DryRun,
		Backup: b.cfg.Backup,
	})
	return err
}

// filterStdin binds stdin and writes the result to stdout. Nothing is
// written when the input needed no change, unless --force is given.
func (b *binder) filterStdin(stdin io.Reader) {
	b.walker.Visit(bind.StdinName, func(string) error {
		res, err := b.engine.BindStream(stdin, bind.StdinName, ".")
		if err != nil {
			return err
		}
		if !res.Changed() && !b.cfg.Force {
			b.log.Debug("stdin unchanged")
			return nil
		}
		_, err = io.WriteString(b.stdout, res.Output)
		return err
	})
}
