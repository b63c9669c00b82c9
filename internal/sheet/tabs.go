package sheet

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Tab is one worksheet of a spreadsheet.
type Tab struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

const tabButtonPrefix = "sheet-button-"

// Tabs lists the worksheets of spreadsheet id by scraping its published HTML
// view.
func (f *Fetcher) Tabs(ctx context.Context, id string) ([]Tab, error) {
	book := Book{Base: f.Base, ID: id}
	res, err := f.Fetch(ctx, Source{ID: "tabs:" + id, URL: book.HTMLViewURL()})
	if err != nil {
		return nil, err
	}
	return ParseTabs(bytes.NewReader(res.Body))
}

// ParseTabs reads the tab menu of a published spreadsheet page:
//
//	<ul id="sheet-menu"><li id="sheet-button-0"><a>Entries</a></li>...</ul>
//
// Items without a gid are skipped. Order is page order.
func ParseTabs(r io.Reader) ([]Tab, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	tabs := make([]Tab, 0)
	seen := make(map[string]bool)
	doc.Find("#sheet-menu li").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("id")
		gid := strings.TrimPrefix(id, tabButtonPrefix)
		if gid == id || gid == "" || seen[gid] {
			return
		}
		name := strings.TrimSpace(sel.Text())
		if name == "" {
			name = gid
		}
		seen[gid] = true
		tabs = append(tabs, Tab{GID: gid, Name: name})
	})
	return tabs, nil
}
