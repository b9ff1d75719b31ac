package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/cognitext/taxon/pkg/taxon"
	"github.com/cognitext/taxon/pkg/taxon/config"
)

func main() {
	var (
		input      = flag.String("input", "", "Path to JSONL training file (required)")
		modelPath  = flag.String("model", "", "Model file to create or update (required)")
		configPath = flag.String("config", "", "Optional YAML configuration file")
		batchSize  = flag.Int("batch", 500, "Examples per training batch")
	)
	flag.Parse()

	if *input == "" {
		log.Fatal("--input required")
	}
	if *modelPath == "" {
		log.Fatal("--model required")
	}

	ctx := context.Background()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	cfg.ModelPath = *modelPath
	cfg.CreateIfMissing = true

	classifier, err := taxon.New(ctx, taxon.FromConfig(cfg))
	if err != nil {
		log.Fatalf("open classifier: %v", err)
	}

	file, err := os.Open(*input)
	if err != nil {
		log.Fatalf("open input: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	var batch []taxon.Example
	total, skipped := 0, 0
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := classifier.Train(ctx, batch); err != nil {
			log.Fatalf("train: %v", err)
		}
		total += len(batch)
		batch = batch[:0]
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ex taxon.Example
		if err := json.Unmarshal(line, &ex); err != nil {
			skipped++
			log.Printf("skipping malformed line: %v", err)
			continue
		}
		batch = append(batch, ex)
		if len(batch) >= *batchSize {
			flush()
			log.Printf("trained %d examples...", total)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("read input: %v", err)
	}
	flush()

	if err := classifier.Save(ctx); err != nil {
		log.Fatalf("save model: %v", err)
	}

	log.Printf("trained %d examples (%d skipped), model saved to %s", total, skipped, *modelPath)
}
