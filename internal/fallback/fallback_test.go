package fallback_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"regattacal/internal/fallback"
	"regattacal/internal/model"
	"regattacal/internal/normalize"
)

func TestJSONFile_bundled(t *testing.T) {
	records, err := fallback.JSONFile{}.Events(context.Background())

	require.NoError(t, err)
	require.NotEmpty(t, records)
	for i, r := range records {
		require.NotEmpty(t, r.Name)
		require.Equal(t, model.SourceFallback, r.Source)
		if i > 0 {
			require.LessOrEqual(t, records[i-1].Date, r.Date)
		}
	}
}

func TestJSONFile_decodeAliasesAndDrops(t *testing.T) {
	data := `[
  {"date": "12th July 2026", "name": "Spring Series", "location": "Quoile", "hwt": "11:00", "tide": "HWT", "pdfUrl": "/pdfs/foo.pdf", "color": "blue"},
  {"date": "2026-05-01", "name": "Opening", "documentUrl": "https://example.com/nor.pdf"},
  {"date": "someday", "name": "Undated"},
  {"date": "2026-06-01", "name": "  "}
]`

	records, err := fallback.JSONFile{}.Decode([]byte(data))
	require.NoError(t, err)

	require.Equal(t, []model.EventRecord{
		{Date: "2026-05-01", Name: "Opening", DocumentURL: "https://example.com/nor.pdf", Source: model.SourceFallback},
		{Date: "2026-07-12", Name: "Spring Series", Location: "Quoile", HWT: "11:00", Tide: "HWT", DocumentURL: "/pdfs/foo.pdf", Colour: "blue", Source: model.SourceFallback},
	}, records)
}

func TestJSONFile_dateOrder(t *testing.T) {
	data := `[{"date": "03/04/2026", "name": "Frostbite"}]`

	mdy, err := fallback.JSONFile{}.Decode([]byte(data))
	require.NoError(t, err)
	require.Equal(t, "2026-03-04", mdy[0].Date)

	dmy, err := fallback.JSONFile{DateOrder: normalize.DayFirst}.Decode([]byte(data))
	require.NoError(t, err)
	require.Equal(t, "2026-04-03", dmy[0].Date)
}

func TestJSONFile_missingFile(t *testing.T) {
	_, err := fallback.JSONFile{Path: filepath.Join(t.TempDir(), "nope.json")}.Events(context.Background())
	require.Error(t, err)
}

func TestJSONFile_malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "an array"}`), 0o600))

	_, err := fallback.JSONFile{Path: path}.Events(context.Background())
	require.Error(t, err)
}

func TestJSONFile_cancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fallback.JSONFile{}.Events(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWrite_roundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.json")
	in := []model.EventRecord{
		{Date: "2026-05-09", Name: "Spring Series", Location: "Quoile", HWT: "12:30", Tide: "High", DocumentURL: "http://example.com/si.pdf"},
		{Date: "2026-09-05", Name: "Autumn Series", Location: "Strangford"},
	}

	require.NoError(t, fallback.Write(path, in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"pdfUrl": "http://example.com/si.pdf"`)
	require.NotContains(t, string(data), `"hwt": ""`)

	out, err := fallback.JSONFile{Path: path}.Events(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, in[0].DocumentURL, out[0].DocumentURL)
	require.Equal(t, in[1].Location, out[1].Location)
	require.Empty(t, out[1].HWT)
}

func TestWrite_emptyPath(t *testing.T) {
	require.Error(t, fallback.Write("", nil))
}
