package main

import (
	"bufio"
	"context"
	"flag"
	"iter"
	"log/slog"
	"os"

	"github.com/poiesic/ronbun"
	"github.com/poiesic/ronbun/ingestion"
)

// Landmark ML papers, used when no seed file is given.
var arxivIDs = []string{
	"1706.03762", // attention is all you need
	"1810.04805", // BERT
	"1512.03385", // deep residual learning
	"1406.2661",  // generative adversarial networks
	"1312.6114",  // auto-encoding variational bayes
	"1409.0473",  // neural machine translation by jointly learning to align
	"1301.3781",  // efficient estimation of word representations
	"1502.03167", // batch normalization
	"1412.6980",  // adam
	"1609.02907", // semi-supervised classification with GCNs
	"2005.14165", // language models are few-shot learners
	"2010.11929", // an image is worth 16x16 words
	"2103.00020", // CLIP
	"1911.05722", // momentum contrast
	"2002.05709", // simCLR
}

var seedFileName = flag.String("src", "", "file of arXiv IDs, one per line")

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

// submitAll submits every ID from the source, logging and skipping failures.
func submitAll(ctx context.Context, pipeline *ingestion.Pipeline, source iter.Seq[string]) int {
	submitted := 0
	for id := range source {
		if id == "" {
			continue
		}
		result, err := pipeline.Submit(ctx, id)
		if err != nil {
			slog.Warn("skipping paper", "arxiv_id", id, "err", err)
			continue
		}
		slog.Info("submitted", "arxiv_id", result.ArxivID, "status", result.Status.String())
		submitted++
	}
	return submitted
}

func main() {
	db, err := ronbun.NewDatabase("./paper_db")
	if err != nil {
		panic(err)
	}
	defer db.Close()

	pipeline, q, err := db.NewIngestionPipeline(0)
	if err != nil {
		panic(err)
	}
	defer q.Close()

	ctx := context.Background()

	// Determine source of seed data
	var source iter.Seq[string]
	if seedFileName != nil && *seedFileName != "" {
		source, err = linesFromFile(*seedFileName)
		if err != nil {
			panic(err)
		}
	} else {
		source = linesFromSlice(arxivIDs)
	}

	submitted := submitAll(ctx, pipeline, source)
	slog.Info("waiting for pipeline", "papers", submitted)
	q.Drain()
}
