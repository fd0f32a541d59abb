package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"svmcascade/internal/cfg"
	"svmcascade/internal/classify"
	"svmcascade/internal/engine"
	"svmcascade/internal/feature"
	"svmcascade/internal/metrics"
)

func main() {
	inputPath := flag.String("input", "", "TSV file of feature vectors, one per line; reads stdin when empty")
	withProb := flag.Bool("prob", false, "also report the calibrated probability")
	flag.Parse()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	cls, err := classify.Load(c.OutputDir, c.Label, c.TargetPrecision, engine.LoadLibSVM)
	if err != nil {
		log.Fatal().Err(err).Str("label", c.Label).Msg("classifier load failed")
	}
	cls.SetMetrics(metrics.New())

	in := os.Stdin
	if *inputPath != "" {
		f, err := os.Open(*inputPath)
		if err != nil {
			log.Fatal().Err(err).Msg("open input failed")
		}
		defer f.Close()
		in = f
	}

	if err := run(cls, in, os.Stdout, *withProb); err != nil {
		log.Fatal().Err(err).Msg("classification failed")
	}
}

// run classifies one feature vector per input line and writes
// "score<TAB>class[<TAB>probability]" per line.
func run(cls *classify.Classifier, in io.Reader, out io.Writer, withProb bool) error {
	w := bufio.NewWriter(out)
	defer w.Flush()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		vals, err := parseVector(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if withProb {
			prob, score, err := cls.Probability(feature.Values(vals))
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			fmt.Fprintf(w, "%g\t%t\t%g\n", score, score > 0, prob)
			continue
		}
		score, err := cls.Classify(feature.Values(vals))
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		fmt.Fprintf(w, "%g\t%t\n", score, score > 0)
	}
	return scanner.Err()
}

func parseVector(line string) ([]float64, error) {
	cols := strings.Split(line, "\t")
	vals := make([]float64, len(cols))
	for i, col := range cols {
		v, err := strconv.ParseFloat(col, 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return vals, nil
}
