package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hollyoak/flaircast/internal/artifact"
	"github.com/hollyoak/flaircast/internal/config"
	"github.com/hollyoak/flaircast/internal/engine/normalizer"
	"github.com/hollyoak/flaircast/internal/ingest"
	"github.com/hollyoak/flaircast/internal/logging"
	"github.com/hollyoak/flaircast/internal/output"
	"github.com/hollyoak/flaircast/internal/output/async"
	"github.com/hollyoak/flaircast/internal/output/file"
	"github.com/hollyoak/flaircast/internal/output/multi"
	"github.com/hollyoak/flaircast/internal/output/stdout"
	"github.com/hollyoak/flaircast/internal/output/webhook"
	"github.com/hollyoak/flaircast/internal/pipeline"
	"github.com/hollyoak/flaircast/internal/server"
	"github.com/hollyoak/flaircast/internal/service"
	"github.com/hollyoak/flaircast/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "ingest":
		err = runIngest(args)
	case "train":
		err = runTrain(args)
	case "predict":
		err = runPredict(args)
	case "serve":
		err = runServe(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "flaircast %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: flaircast <command> [flags]

commands:
  ingest    load zstd submission dumps into the corpus store
  train     train and select a flair model, write the artifact
  predict   predict flairs for ad-hoc text or unlabeled submissions
  serve     serve predictions over HTTP`)
}

// loadConfig parses the shared -config flag and initializes logging.
func loadConfig(fs *flag.FlagSet, args []string) (config.Config, error) {
	configPath := fs.String("config", "", "path to YAML config file")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return config.Config{}, err
	}
	logging.Init(logging.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver == "sqlite" {
		if err := st.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, err
		}
	}
	return st, nil
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	dir := fs.String("dir", "", "directory of .zst dump files (overrides config)")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	if *dir != "" {
		cfg.Ingest.Dir = *dir
	}
	if cfg.Ingest.Dir == "" {
		return fmt.Errorf("no dump directory configured")
	}
	if cfg.Ingest.Subreddit == "" {
		cfg.Ingest.Subreddit = cfg.Corpus.Subreddit
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := ingest.Run(ctx, st, cfg.Ingest)
	if err != nil {
		return err
	}
	slog.Info("ingest complete", "files", stats.Files,
		"read", stats.Read, "inserted", stats.Inserted, "skipped", stats.Skipped)
	return nil
}

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	out := fs.String("out", "", "artifact output path (overrides config)")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	outPath := cfg.Service.ArtifactPath
	if *out != "" {
		outPath = *out
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	filter, err := corpusFilter(cfg)
	if err != nil {
		return err
	}
	examples, err := st.Labeled(ctx, filter)
	if err != nil {
		return err
	}
	slog.Info("corpus loaded", "examples", len(examples))

	normCfg, err := normalizeConfig(cfg)
	if err != nil {
		return err
	}

	result, err := pipeline.Train(ctx, examples, pipeline.TrainConfig{
		Normalizer:   normCfg,
		Feature:      cfg.Feature,
		Imbalance:    cfg.Imbalance,
		Trainer:      cfg.Trainer,
		TestFraction: cfg.Corpus.TestFraction,
		Seed:         cfg.Corpus.Seed,
	})
	if err != nil {
		return err
	}

	if err := result.Artifact.Save(outPath); err != nil {
		return err
	}
	slog.Info("artifact written", "path", outPath, "version", result.Artifact.Version)
	fmt.Println(result.Report.Render())
	return nil
}

func runPredict(args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	title := fs.String("title", "", "submission title")
	body := fs.String("body", "", "submission body")
	unlabeled := fs.Int("unlabeled", 0, "predict the N newest unlabeled submissions from the store")
	outFile := fs.String("out", "", "also append NDJSON results to this file")
	pretty := fs.Bool("pretty", false, "pretty-print stdout results")
	webhookURL := fs.String("webhook", "", "also POST results to this URL in JSON batches")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	art, err := artifact.Load(cfg.Service.ArtifactPath)
	if err != nil {
		return err
	}
	svc := service.New(cfg.Service.ConfidenceThreshold)
	svc.Install(art)

	ctx, cancel := signalContext()
	defer cancel()

	sink, err := buildSink(*outFile, *pretty, *webhookURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			slog.Warn("closing result sink", "error", cerr)
		}
	}()

	if *unlabeled > 0 {
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		subs, err := st.Unlabeled(ctx, cfg.Corpus.Subreddit, *unlabeled)
		if err != nil {
			return err
		}
		for _, sub := range subs {
			pred, err := svc.PredictSubmission(sub)
			if err != nil {
				return err
			}
			res := output.Result{SubmissionID: sub.ID, Prediction: pred}
			if err := sink.Write(ctx, res); err != nil {
				return err
			}
		}
		return nil
	}

	pred, err := svc.Predict(*title, *body, *title != "", *body != "")
	if err != nil {
		return err
	}
	return sink.Write(ctx, output.Result{Prediction: pred})
}

// buildSink assembles the prediction result sink stack for the predict
// command. Stdout is always included; file and webhook sinks are added when
// their flags are set. The webhook sink is wrapped in an async writer so slow
// deliveries do not stall the prediction loop.
func buildSink(filePath string, pretty bool, webhookURL string) (output.Sink, error) {
	sinks := []output.Sink{stdout.New(pretty)}
	if filePath != "" {
		f, err := file.New(filePath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, f)
	}
	if webhookURL != "" {
		sinks = append(sinks, async.New(webhook.New(webhookURL)))
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return multi.New(sinks...), nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	svc := service.New(cfg.Service.ConfidenceThreshold)
	if err := svc.Reload(cfg.Service.ArtifactPath); err != nil {
		// Start unready; an artifact can be loaded later via the API.
		slog.Warn("starting without a model artifact", "error", err)
	} else {
		slog.Info("model loaded", "version", svc.ActiveVersion())
	}

	ctx, cancel := signalContext()
	defer cancel()

	srv := server.New(cfg.Server.Addr, svc)
	slog.Info("serving", "addr", cfg.Server.Addr, "state", svc.State().String())
	return srv.Run(ctx)
}

func corpusFilter(cfg config.Config) (store.Filter, error) {
	f := store.Filter{
		Subreddit: cfg.Corpus.Subreddit,
		Flairs:    cfg.Corpus.Flairs,
		Limit:     cfg.Corpus.Limit,
	}
	var err error
	if f.Start, err = parseDate(cfg.Corpus.Start); err != nil {
		return store.Filter{}, err
	}
	if f.End, err = parseDate(cfg.Corpus.End); err != nil {
		return store.Filter{}, err
	}
	return f, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q: %w", s, err)
	}
	return t, nil
}

func normalizeConfig(cfg config.Config) (normalizer.Config, error) {
	normCfg := normalizer.Default()
	if cfg.Normalize.MinTokenLen != nil {
		normCfg.MinTokenLen = *cfg.Normalize.MinTokenLen
	}
	if cfg.Normalize.Stem != nil {
		normCfg.Stem = *cfg.Normalize.Stem
	}
	if cfg.Normalize.StopwordFile != "" {
		words, err := normalizer.LoadStopwords(cfg.Normalize.StopwordFile)
		if err != nil {
			return normalizer.Config{}, fmt.Errorf("stopword file: %w", err)
		}
		normCfg.Stopwords = words
	}
	return normCfg, nil
}
