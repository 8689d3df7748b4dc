// Command offsetspan resolves a quoted passage to character offsets inside
// a book PDF. The printed offsets are what the notes API expects in
// position_start and position_end.
//
//	offsetspan -pdf book.pdf -quote "the sleeper must awaken"
//	offsetspan -pdf book.pdf -page 3 -quote "..." -loose
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ledongthuc/pdf"

	"bookquest/internal/textspan"
)

type result struct {
	PageNumber    int    `json:"page_number,omitempty"`
	PositionStart int    `json:"position_start"`
	PositionEnd   int    `json:"position_end"`
	Hint          string `json:"hint,omitempty"`
}

func main() {
	pdfPath := flag.String("pdf", "", "path to the PDF file")
	quote := flag.String("quote", "", "passage to locate")
	page := flag.Int("page", 0, "restrict the search to one page (1-based; 0 searches all pages)")
	loose := flag.Bool("loose", false, "strip soft hyphens, zero-width spaces, and BOMs before matching")
	flag.Parse()

	if *pdfPath == "" || *quote == "" {
		flag.Usage()
		os.Exit(2)
	}

	res, err := resolve(*pdfPath, *quote, *page, *loose)
	if err != nil {
		log.Fatalf("offsetspan: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(res); err != nil {
		log.Fatalf("offsetspan: encode result: %v", err)
	}
	if res.PositionStart < 0 {
		os.Exit(1)
	}
}

func resolve(path, quote string, page int, loose bool) (result, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return result{}, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	totalPages := reader.NumPage()
	if page < 0 || page > totalPages {
		return result{}, fmt.Errorf("page %d out of range (pdf has %d pages)", page, totalPages)
	}
	first, last := 1, totalPages
	if page > 0 {
		first, last = page, page
	}

	for i := first; i <= last; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// Skip pages the extractor chokes on; the quote may live elsewhere.
			continue
		}
		start, end := textspan.FindSpan(text, quote, loose)
		if start >= 0 {
			return result{PageNumber: i, PositionStart: start, PositionEnd: end}, nil
		}
	}

	miss := result{PositionStart: -1, PositionEnd: -1}
	if loose {
		miss.Hint = "quote not found; check that the passage matches the extracted text exactly"
	} else {
		miss.Hint = "quote not found; retry with -loose to ignore soft hyphens and zero-width characters"
	}
	return miss, nil
}
