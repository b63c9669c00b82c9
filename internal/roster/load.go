package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	appLog "regattacal/internal/log"
	"regattacal/internal/sheet"
)

// ErrNoTabs is returned by LoadAll when the spreadsheet lists no tabs.
var ErrNoTabs = errors.New("spreadsheet has no discoverable tabs")

// Loader fetches competitor tabs from one spreadsheet.
type Loader struct {
	Fetcher    *sheet.Fetcher
	SheetID    string
	DefaultGID string
}

func (l *Loader) book() sheet.Book {
	return sheet.Book{Base: l.Fetcher.Base, ID: l.SheetID}
}

// Load fetches one tab. ref is a gid or a tab name; empty selects DefaultGID.
func (l *Loader) Load(ctx context.Context, ref string) (Table, error) {
	if l.SheetID == "" {
		return Table{}, errors.New("competitors sheet id is not configured")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = l.DefaultGID
	}

	res, err := l.Fetcher.Fetch(ctx, sheet.Source{ID: "competitors:" + ref, URL: l.book().TabURL(ref)})
	if err != nil {
		return Table{}, err
	}
	t, err := Parse(string(res.Body))
	if err != nil {
		return t, fmt.Errorf("parsing tab %s: %w", ref, err)
	}
	return t, nil
}

// Tabs lists the spreadsheet's tabs.
func (l *Loader) Tabs(ctx context.Context) ([]sheet.Tab, error) {
	if l.SheetID == "" {
		return nil, errors.New("competitors sheet id is not configured")
	}
	return l.Fetcher.Tabs(ctx, l.SheetID)
}

// LoadAll fetches every tab one after another and merges them. The first
// failing tab aborts the load.
func (l *Loader) LoadAll(ctx context.Context) (Table, error) {
	tabs, err := l.Tabs(ctx)
	if err != nil {
		return Table{}, err
	}
	if len(tabs) == 0 {
		return Table{}, ErrNoTabs
	}

	named := make([]NamedTable, 0, len(tabs))
	for i, tab := range tabs {
		if err := ctx.Err(); err != nil {
			return Table{}, err
		}
		appLog.Debug("roster tab fetch", "index", i+1, "total", len(tabs), "name", tab.Name)

		t, err := l.Load(ctx, tab.GID)
		if err != nil {
			return Table{}, fmt.Errorf("tab %q: %w", tab.Name, err)
		}
		named = append(named, NamedTable{Name: tab.Name, Table: t})
	}
	return Merge(named), nil
}
