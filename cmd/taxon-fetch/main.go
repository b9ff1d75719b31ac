package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/cognitext/taxon/pkg/taxon"
)

// fetchTimeout bounds each page download.
const fetchTimeout = 30 * time.Second

// skippedElements are HTML subtrees that carry no article text.
var skippedElements = map[string]struct{}{
	"script": {},
	"style":  {},
	"head":   {},
	"nav":    {},
	"footer": {},
}

func main() {
	var (
		output = flag.String("output", "", "JSONL output file; stdout when empty")
		labels = flag.String("labels", "", "Comma-separated labels assigned to every fetched page (required)")
	)
	flag.Parse()

	urls := flag.Args()
	if len(urls) == 0 {
		log.Fatal("usage: taxon-fetch --labels cat1,cat2 URL [URL...]")
	}
	if *labels == "" {
		log.Fatal("--labels required")
	}

	var assigned []string
	for _, label := range strings.Split(*labels, ",") {
		if label = strings.TrimSpace(label); label != "" {
			assigned = append(assigned, label)
		}
	}

	out := os.Stdout
	if *output != "" {
		file, err := os.Create(*output)
		if err != nil {
			log.Fatalf("create output: %v", err)
		}
		defer file.Close()
		out = file
	}

	ctx := context.Background()
	encoder := json.NewEncoder(out)
	fetched := 0

	for _, url := range urls {
		text, err := fetchPageText(ctx, url)
		if err != nil {
			log.Printf("skipping %s: %v", url, err)
			continue
		}
		if text == "" {
			log.Printf("skipping %s: no text content", url)
			continue
		}

		ex := taxon.Example{Input: text, Output: assigned}
		if err := encoder.Encode(ex); err != nil {
			log.Fatalf("encode example: %v", err)
		}
		fetched++
	}

	log.Printf("fetched %d of %d pages", fetched, len(urls))
}

// fetchPageText downloads a page and reduces it to whitespace-normalized
// visible text.
func fetchPageText(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return extractText(string(body)), nil
}

// extractText strips markup, skipping non-content subtrees, and collapses
// runs of whitespace to single spaces.
func extractText(page string) string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return strings.Join(strings.Fields(page), " ")
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skippedElements[n.Data]; skip {
				return
			}
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(buf.String()), " ")
}
