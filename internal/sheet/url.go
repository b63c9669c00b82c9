package sheet

import (
	"net/url"
	"regexp"
	"strings"
)

// DocsBase is the origin that serves Google Sheets exports.
const DocsBase = "https://docs.google.com"

var (
	idPattern  = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)
	gidPattern = regexp.MustCompile(`[#&?]gid=(\d+)`)
	numericRef = regexp.MustCompile(`^\d+$`)
)

// ExportURL rewrites a spreadsheet share link into its CSV export URL.
//
//	https://docs.google.com/spreadsheets/d/<id>/edit#gid=42
//	-> https://docs.google.com/spreadsheets/d/<id>/export?format=csv&gid=42
//
// Links that already point at /export are returned unchanged, as are links
// without a spreadsheet id. A missing gid selects the first tab (gid 0).
func ExportURL(link string) string {
	link = strings.TrimSpace(link)
	if strings.Contains(link, "/export?") {
		return link
	}
	m := idPattern.FindStringSubmatch(link)
	if m == nil {
		return link
	}
	gid := "0"
	if g := gidPattern.FindStringSubmatch(link); g != nil {
		gid = g[1]
	}
	return Book{Base: DocsBase, ID: m[1]}.ExportURL(gid)
}

// SpreadsheetID extracts the id from a share or export link. An input that is
// not a link is returned trimmed, so bare ids pass through.
func SpreadsheetID(link string) string {
	link = strings.TrimSpace(link)
	if m := idPattern.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return link
}

// NamedTabURL returns the CSV URL of the tab called name.
func NamedTabURL(id, name string) string {
	return Book{Base: DocsBase, ID: id}.NamedURL(name)
}

// TabURL returns the CSV URL for a tab reference: a numeric gid or a tab name.
func TabURL(id, ref string) string {
	return Book{Base: DocsBase, ID: id}.TabURL(ref)
}

// Book addresses one spreadsheet on a given origin. Base is normally DocsBase;
// tests point it at a local server.
type Book struct {
	Base string
	ID   string
}

func (b Book) root() string {
	return strings.TrimRight(b.Base, "/") + "/spreadsheets/d/" + url.PathEscape(b.ID)
}

// ExportURL is the CSV export of the tab with the given gid.
func (b Book) ExportURL(gid string) string {
	return b.root() + "/export?format=csv&gid=" + url.QueryEscape(gid)
}

// NamedURL is the gviz CSV endpoint for a tab selected by name.
func (b Book) NamedURL(name string) string {
	return b.root() + "/gviz/tq?tqx=out:csv&sheet=" + url.QueryEscape(name)
}

// TabURL picks ExportURL for numeric refs and NamedURL otherwise.
func (b Book) TabURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if numericRef.MatchString(ref) {
		return b.ExportURL(ref)
	}
	return b.NamedURL(ref)
}

// HTMLViewURL is the published HTML view listing every tab.
func (b Book) HTMLViewURL() string {
	return b.root() + "/htmlview"
}
