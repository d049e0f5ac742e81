// Command posextract runs the pose extraction pipeline once for a single
// video URL and writes the result JSON to stdout.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fiapx/fiapx-pose-service/internal/app"
	"github.com/fiapx/fiapx-pose-service/internal/infra/config"
	"github.com/fiapx/fiapx-pose-service/pkg/logger"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "posextract",
		Usage:     "extract per-frame body pose landmarks from a video URL",
		UsageText: "posextract [options] VIDEO_URL",
		Version:   version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "decoder",
				Usage:   "frame decoder backend (opencv or ffmpeg)",
				EnvVars: []string{"DECODER"},
				Value:   config.DecoderOpenCV,
			},
			&cli.BoolFlag{
				Name:  "truncate",
				Usage: "drop trailing frames the decoder never produced instead of padding them",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "indent the JSON output",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "write the result to `FILE` instead of stdout",
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one VIDEO_URL argument is required")
	}
	videoURL := c.Args().First()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Decoder = c.String("decoder")
	cfg.LogLevel = c.String("log-level")
	if c.Bool("truncate") {
		cfg.PaddingMode = "truncate"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	uc, err := app.NewExtractPose(cfg, nil, log)
	if err != nil {
		return err
	}

	result, err := uc.Execute(ctx, videoURL)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	return writeResult(out, result, c.Bool("pretty"))
}

func writeResult(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// newLogger writes human-readable logs to a terminal and JSON otherwise.
func newLogger(level string) (*zap.Logger, error) {
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return logger.New(level)
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	cfg.DisableStacktrace = true
	return cfg.Build()
}
