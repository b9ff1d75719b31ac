package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/cognitext/taxon/pkg/taxon"
	"github.com/cognitext/taxon/pkg/taxon/persist"
)

func main() {
	var (
		modelPath  = flag.String("model", "", "Model file to load (required)")
		text       = flag.String("text", "", "Text to classify")
		related    = flag.String("related", "", "Comma-separated categories to find relations for")
		amount     = flag.Int("amount", 5, "Number of results")
		adaptive   = flag.Bool("adaptive", false, "Cut results at the first score cliff instead of a fixed count")
		capitalize = flag.Bool("capitalize", false, "Title-case output labels")
	)
	flag.Parse()

	if *modelPath == "" {
		log.Fatal("--model required")
	}
	if *text == "" && *related == "" {
		log.Fatal("--text or --related required")
	}

	ctx := context.Background()

	classifier, err := taxon.New(ctx, taxon.Options{
		Store: persist.NewFileStore(*modelPath),
	})
	if err != nil {
		log.Fatalf("load model: %v", err)
	}

	opts := taxon.PredictOptions{Amount: *amount, Adaptive: *adaptive, Capitalize: *capitalize}
	if *adaptive {
		opts.Amount = 0
	}

	var results []taxon.Result
	if *text != "" {
		results, err = classifier.Predict(ctx, taxon.Text(*text), opts)
	} else {
		categories := make(map[string]float64)
		for _, name := range strings.Split(*related, ",") {
			if name = strings.TrimSpace(name); name != "" {
				categories[name] = 1
			}
		}
		results, err = classifier.Related(ctx, categories, opts)
	}
	if err != nil {
		log.Fatalf("query: %v", err)
	}

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		log.Fatalf("marshal results: %v", err)
	}
	fmt.Println(string(out))
}
