package universe

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/pkg/config"
	"github.com/castleryder/dividend-harvest/pkg/httputil"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

// Static is a fixed ticker list from configuration
type Static struct {
	tickers []string
}

// NewStatic creates a static lister
func NewStatic(tickers []string) *Static {
	return &Static{tickers: tickers}
}

// Name returns the lister name
func (s *Static) Name() string { return config.UniverseStatic }

// List returns a copy of the configured tickers
func (s *Static) List(_ context.Context) ([]string, error) {
	if len(s.tickers) == 0 {
		return nil, fmt.Errorf("no tickers configured (set HARVEST_TICKERS)")
	}
	out := make([]string, len(s.tickers))
	copy(out, s.tickers)
	return out, nil
}

// File reads one ticker per line; blank lines and # comments are skipped.
// A line may hold several comma separated tickers.
type File struct {
	path string
}

// NewFile creates a file lister
func NewFile(path string) *File {
	return &File{path: path}
}

// Name returns the lister name
func (f *File) Name() string { return config.UniverseFile }

// List reads the ticker file
func (f *File) List(_ context.Context) ([]string, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open ticker file: %w", err)
	}
	defer file.Close()

	var tickers []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, part := range strings.Split(line, ",") {
			if part = strings.TrimSpace(part); part != "" {
				tickers = append(tickers, part)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ticker file: %w", err)
	}
	return tickers, nil
}

// SP500 scrapes the constituents table of an index page
type SP500 struct {
	url    string
	client *httputil.Client
	logger *logger.Logger
}

// NewSP500 creates an index page lister
func NewSP500(url string, client *httputil.Client, log *logger.Logger) *SP500 {
	return &SP500{url: url, client: client, logger: log}
}

// Name returns the lister name
func (s *SP500) Name() string { return config.UniverseSP500 }

// List downloads and parses the constituents table
func (s *SP500) List(ctx context.Context) ([]string, error) {
	resp, err := s.client.Get(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("fetch constituents page: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse constituents page: %w", err)
	}

	tickers := ParseConstituents(doc)
	if len(tickers) == 0 {
		return nil, fmt.Errorf("constituents table not found: %w", contracts.ErrNoData)
	}

	s.logger.WithFields(map[string]interface{}{
		"url":     s.url,
		"tickers": len(tickers),
	}).Debug("Fetched index constituents")

	return tickers, nil
}

// ParseConstituents reads the first column of the constituents table.
// Class-share dots become dashes (BRK.B -> BRK-B), the form quote APIs use.
func ParseConstituents(doc *goquery.Document) []string {
	table := doc.Find("table#constituents")
	if table.Length() == 0 {
		table = doc.Find("table.wikitable").First()
	}

	var tickers []string
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cell := row.Find("td").First()
		if cell.Length() == 0 {
			return
		}
		symbol := strings.TrimSpace(cell.Text())
		if symbol == "" {
			return
		}
		tickers = append(tickers, strings.ReplaceAll(symbol, ".", "-"))
	})
	return tickers
}
