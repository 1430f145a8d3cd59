// Command novelsplit splits a monolithic web novel into one file per chapter.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"

	"github.com/dgallion1/novelsplit/internal/chunker"
	"github.com/dgallion1/novelsplit/internal/config"
	"github.com/dgallion1/novelsplit/internal/extract"
	"github.com/dgallion1/novelsplit/internal/logging"
	"github.com/dgallion1/novelsplit/internal/parser"
	"github.com/dgallion1/novelsplit/internal/pipeline"
	"github.com/dgallion1/novelsplit/internal/segment"
)

// cli is the command tree.
type cli struct {
	Verbose bool `short:"v" help:"Log progress to stderr."`

	Split    SplitCmd    `cmd:"" help:"Split a novel into chapter files."`
	Preview  PreviewCmd  `cmd:"" help:"Show detected chapters without writing anything."`
	Patterns PatternsCmd `cmd:"" help:"List boundary patterns."`
}

// CLI holds the parsed command line.
var CLI cli

// globals is what every command runs against.
type globals struct {
	ctx    context.Context
	fs     afero.Fs
	out    io.Writer
	errOut io.Writer
	log    *slog.Logger
	cfg    config.Config

	// newLLM is swapped in tests.
	newLLM func(config.Config) (extract.Client, error)
}

// SegmentFlags are shared by split and preview.
type SegmentFlags struct {
	Pattern             string `placeholder:"ID" help:"Use this boundary pattern instead of detecting one (see 'patterns')."`
	Selection           string `enum:"first,scored" default:"first" help:"Pattern selection: first match in priority order, or best scored."`
	KeepPrelude         bool   `help:"Keep text before the first chapter as ${prelude}."`
	KeepOriginalNumbers bool   `help:"Name files by the number in each chapter heading instead of 1..n."`
	Suffix              string `default:"${suffix}" help:"File name suffix after the zero-padded number."`
	LLM                 string `name:"llm" enum:"off,verify,propose" default:"off" help:"Let a language model verify or propose chapter titles."`
	MinBody             int    `default:"2000" help:"Warn about chapter bodies shorter than this many characters (0 disables)."`
	MaxBody             int    `default:"20000" help:"Warn about chapter bodies longer than this many characters (0 disables)."`
	Title               string `help:"Novel title (defaults to the file name)."`
}

func (f SegmentFlags) options() (pipeline.SplitOptions, error) {
	if f.Pattern != "" {
		if _, ok := segment.LookupPattern(segment.DefaultPatterns(), f.Pattern); !ok {
			return pipeline.SplitOptions{}, fmt.Errorf("unknown pattern %q, run 'novelsplit patterns'", f.Pattern)
		}
	}
	if strings.ContainsAny(f.Suffix, `/\`) {
		return pipeline.SplitOptions{}, fmt.Errorf("suffix must not contain a path separator")
	}
	mode, err := pipeline.ParseLLMMode(f.LLM)
	if err != nil {
		return pipeline.SplitOptions{}, err
	}

	opts := pipeline.SplitOptions{
		Segment: segment.Options{
			PatternID:    f.Pattern,
			Selection:    segment.SelectionMode(f.Selection),
			Prelude:      segment.PreludeDrop,
			MinBodyRunes: f.MinBody,
			MaxBodyRunes: f.MaxBody,
		},
		Numbering: segment.NumberSequential,
		Suffix:    f.Suffix,
		LLM:       mode,
	}
	if opts.Segment.Selection == "" {
		opts.Segment.Selection = segment.SelectFirstMatch
	}
	if f.KeepPrelude {
		opts.Segment.Prelude = segment.PreludeKeep
	}
	if f.KeepOriginalNumbers {
		opts.Numbering = segment.NumberOriginal
	}
	return opts, nil
}

// plan reads file and segments it.
func (f SegmentFlags) plan(g *globals, file string) (*pipeline.Plan, string, error) {
	opts, err := f.options()
	if err != nil {
		return nil, "", err
	}

	fh, err := g.fs.Open(file)
	if err != nil {
		return nil, "", fmt.Errorf("open input: %w", err)
	}
	defer fh.Close()

	text, tree, err := parser.ReadText(fh, baseName(file))
	if err != nil {
		return nil, "", err
	}
	title := f.Title
	if title == "" {
		title = tree.Title
	}

	var llm extract.Client
	if opts.LLM != pipeline.LLMOff {
		if !g.cfg.HasLLM() {
			return nil, "", fmt.Errorf("--llm=%s needs LLM_API_KEY (or ANTHROPIC_API_KEY / GEMINI_API_KEY)", opts.LLM)
		}
		llm, err = g.newLLM(g.cfg)
		if err != nil {
			return nil, "", err
		}
		defer llm.Close()
	}

	splitter := pipeline.NewSplitter(llm, g.log, chunker.Config{MaxRunes: g.cfg.ChunkMaxRunes}, g.cfg.MaxConcurrentLLM)
	progress := func(done, total int) {
		fmt.Fprintf(g.errOut, "\rllm %d/%d", done, total)
		if done == total {
			fmt.Fprintln(g.errOut)
		}
	}
	plan, err := splitter.Plan(g.ctx, title, text, opts, progress)
	if err != nil {
		return nil, tree.Encoding, explainSplitError(g.errOut, err)
	}
	return plan, tree.Encoding, nil
}

// explainSplitError prints the rejected candidates of a failed split so the
// user can pick a pattern by hand.
func explainSplitError(w io.Writer, err error) error {
	var nv *segment.NoValidBoundaryError
	if errors.As(err, &nv) {
		fmt.Fprintf(w, "pattern %s matched these lines but none is a chapter heading:\n", nv.PatternID)
		for i, c := range nv.Rejected {
			if i == 10 {
				fmt.Fprintf(w, "  ... and %d more\n", len(nv.Rejected)-10)
				break
			}
			fmt.Fprintf(w, "  %q\n", c.Line)
		}
	}
	if r := segment.Reason(err); r != "error" {
		return fmt.Errorf("%s: %w", r, err)
	}
	return err
}

func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

func defaultLLM(cfg config.Config) (extract.Client, error) {
	var opts []extract.Option
	if cfg.LLMBaseURL != "" {
		opts = append(opts, extract.WithBaseURL(cfg.LLMBaseURL))
	}
	return extract.NewClient(cfg.LLMProvider, cfg.LLMAPIKey, cfg.LLMModel, opts...)
}

func kongOptions() []kong.Option {
	return []kong.Option{
		kong.Name("novelsplit"),
		kong.Description("Split a web novel into one file per chapter."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{
			"suffix":  segment.DefaultSuffix,
			"prelude": pipeline.PreludeName,
		},
	}
}

func main() {
	kctx := kong.Parse(&CLI, kongOptions()...)

	cfg := config.Load()
	level := "warn"
	if CLI.Verbose {
		level = "debug"
	}
	log, closer, err := logging.New(os.Stderr, logging.Options{Level: level, Format: "text"})
	kctx.FatalIfErrorf(err)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g := &globals{
		ctx:    ctx,
		fs:     afero.NewOsFs(),
		out:    os.Stdout,
		errOut: os.Stderr,
		log:    log,
		cfg:    cfg,
		newLLM: defaultLLM,
	}
	start := time.Now()
	err = kctx.Run(g)
	log.Debug("done", "command", kctx.Command(), "elapsed", time.Since(start))
	kctx.FatalIfErrorf(err)
}
