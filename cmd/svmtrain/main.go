package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"svmcascade/internal/calib"
	"svmcascade/internal/cfg"
	"svmcascade/internal/engine"
	"svmcascade/internal/feature"
	"svmcascade/internal/metrics"
	"svmcascade/internal/store"
	"svmcascade/internal/train"
)

func main() {
	inputPath := flag.String("input", "", "TSV file of labelled examples (label, then feature values); when empty, examples replay from the store")
	flag.Parse()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	startMetricsServer(ctx, c, m)

	st := openStore(c)
	if st != nil {
		defer st.Close()
	}

	trainer := train.New(c, engine.NewLibSVM(), calib.NelderMead{}, st)
	trainer.SetMetrics(m)

	var loaded int
	if *inputPath != "" {
		loaded, err = loadTSV(trainer, *inputPath)
	} else {
		loaded, err = replayStore(trainer, st, c.Label)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("loading examples failed")
	}
	log.Info().Int("examples", loaded).Str("label", c.Label).Msg("examples loaded")

	start := time.Now()
	result, err := trainer.Train()
	if err != nil {
		log.Fatal().Err(err).Msg("training failed")
	}
	log.Info().
		Dur("elapsed", time.Since(start)).
		Int("subsetSize", len(result.FeatureSubset)).
		Int("cascadeStages", len(result.Cascade)).
		Float64("sign", result.SignCorrection).
		Msg("training complete")
	fmt.Print(result.Summary)
}

// openStore opens the example store when DATA_PATH is configured.
func openStore(c cfg.Settings) *store.Store {
	if c.DataPath == "" {
		return nil
	}
	s, err := store.Open(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Str("path", c.DataPath).Msg("example store unavailable, continuing without persistence")
		return nil
	}
	log.Info().Str("path", c.DataPath).Msg("example store opened")
	return s
}

// loadTSV reads labelled examples from a TSV file. The first column is the
// label (1/0 or true/false), the rest are feature values. Rows go through
// the trainer's example path, so they are recorded to the example store when
// one is configured.
func loadTSV(t *train.Trainer, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 2 {
			return n, fmt.Errorf("line %d: need a label and at least one feature", n+1)
		}
		positive, err := parseLabel(cols[0])
		if err != nil {
			return n, fmt.Errorf("line %d: %w", n+1, err)
		}
		vals := make([]float64, len(cols)-1)
		for i, col := range cols[1:] {
			vals[i], err = strconv.ParseFloat(col, 64)
			if err != nil {
				return n, fmt.Errorf("line %d column %d: %w", n+1, i+2, err)
			}
		}
		if err := t.AddExample(feature.Values(vals), positive); err != nil {
			return n, fmt.Errorf("line %d: %w", n+1, err)
		}
		n++
	}
	return n, scanner.Err()
}

func parseLabel(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "pos", "positive":
		return true, nil
	case "0", "-1", "false", "neg", "negative":
		return false, nil
	}
	return false, fmt.Errorf("unrecognised label %q", s)
}

// replayStore feeds every stored example for the model label back into the
// trainer.
func replayStore(t *train.Trainer, s *store.Store, label string) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("no input file and no example store configured")
	}
	n := 0
	err := s.Replay(label, func(ex store.Example) error {
		n++
		return t.AddValues(ex.Values, ex.Label)
	})
	return n, err
}

// startMetricsServer exposes /metrics when a port is configured.
func startMetricsServer(ctx context.Context, c cfg.Settings, m *metrics.Metrics) {
	if c.MetricsPort == 0 {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Int("port", c.MetricsPort).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}
