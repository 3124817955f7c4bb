// Command analyze runs one flood-risk analysis from the terminal and prints
// the result as JSON. Useful for checking clips without standing up the
// HTTP service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/adapter/classifier"
	"github.com/couchcryptid/flood-risk-service/internal/adapter/video"
	"github.com/couchcryptid/flood-risk-service/internal/flow"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
	"github.com/couchcryptid/flood-risk-service/internal/pipeline"
)

func main() {
	var (
		videoPath     = flag.String("video", "", "path to the video file to analyze")
		classifierURL = flag.String("classifier", "http://localhost:8501", "classifier sidecar base URL")
		timeout       = flag.Duration("timeout", 30*time.Second, "per-request classifier timeout")
		ffmpegPath    = flag.String("ffmpeg", "ffmpeg", "ffmpeg binary to invoke")
		verbose       = flag.Bool("v", false, "log progress to stderr")
	)
	flag.Parse()

	if *videoPath == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze -video <file> [-classifier <url>]")
		os.Exit(2)
	}

	logOut := io.Discard
	if *verbose {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logOut, nil))
	metrics := observability.NewMetrics()

	analyzer := pipeline.New(
		video.NewOpener(*ffmpegPath, logger),
		classifier.NewClient(*classifierURL, *timeout, logger, metrics),
		flow.NewEstimator(flow.DefaultConfig()),
		logger,
		metrics,
	)

	result, err := analyzer.Analyze(context.Background(), *videoPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "analysis failed:", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode result:", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
