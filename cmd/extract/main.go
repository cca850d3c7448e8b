// Command extract runs the exam pipeline once and writes the result JSON.
//
//	extract -exam data/prova.pdf -answer-key data/gabarito.pdf -out output/exam.json
//
// Inputs may be local paths, file://, http(s):// or s3:// references.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/local/examparser/internal/ai"
	cfgpkg "github.com/local/examparser/internal/config"
	logpkg "github.com/local/examparser/internal/logger"
	"github.com/local/examparser/internal/pipeline"
	"github.com/local/examparser/internal/storage"
)

func main() {
	cfg := cfgpkg.Load()

	exam := flag.String("exam", "data/prova.pdf", "exam PDF (path or URL)")
	answerKey := flag.String("answer-key", "", "optional answer-key PDF (path or URL)")
	out := flag.String("out", filepath.Join(cfg.Paths.OutputDir, "exam.json"), "output JSON path")
	imagesDir := flag.String("images", filepath.Join(cfg.Paths.OutputDir, "images"), "directory for extracted images")
	publish := flag.Bool("publish", false, "upload the result to S3 (AWS_S3_BUCKET)")
	minWidth := flag.Int("min-width", cfg.ImageFilter.MinWidth, "minimum image width in pixels")
	minHeight := flag.Int("min-height", cfg.ImageFilter.MinHeight, "minimum image height in pixels")
	flag.Parse()

	if err := logpkg.Init(logpkg.OptionsFromConfig(cfg)); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
	}
	defer logpkg.Close()

	if err := run(cfg, *exam, *answerKey, *out, *imagesDir, *publish, *minWidth, *minHeight); err != nil {
		log.Error().Err(err).Msg("extraction failed")
		logpkg.Close()
		os.Exit(1)
	}
}

func run(cfg cfgpkg.Config, exam, answerKey, out, imagesDir string, publish bool, minWidth, minHeight int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var s3c *storage.S3Client
	if cfg.Storage.Bucket != "" || publish {
		var err error
		if s3c, err = storage.NewS3Client(ctx, cfg.Storage); err != nil {
			return err
		}
	}

	work, err := os.MkdirTemp("", "examparser_")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(work)

	var objects storage.ObjectGetter
	if s3c != nil {
		objects = s3c
	}
	examPath, err := storage.Fetch(ctx, exam, work, objects)
	if err != nil {
		return err
	}
	var keyPath string
	if answerKey != "" {
		if keyPath, err = storage.Fetch(ctx, answerKey, work, objects); err != nil {
			return err
		}
	}

	client, err := ai.New(ctx, cfg.LLM)
	if err != nil {
		return err
	}
	deps, err := pipeline.FromConfig(cfg, client, nil)
	if err != nil {
		return err
	}
	if publish {
		deps.Publisher = s3c
	}

	filter := cfg.ImageFilter
	filter.MinWidth, filter.MinHeight = minWidth, minHeight
	res, err := pipeline.New(deps).Run(ctx, examPath, keyPath, imagesDir, pipeline.Options{
		Filter:     &filter,
		OutputPath: out,
	})
	if err != nil {
		return err
	}

	images := len(pipeline.ImageFiles(res.Exam))
	fmt.Printf("%d questions, %d images -> %s\n", len(res.Exam.Questions), images, out)
	if res.Published != nil {
		fmt.Printf("published s3://%s/%s\n", s3c.Bucket(), res.Published.ResultKey)
	}
	return nil
}
