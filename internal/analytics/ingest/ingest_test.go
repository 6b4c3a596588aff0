package ingest

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"symphonia/internal/analytics/cache"
	"symphonia/internal/analytics/source"
)

func TestRowFromColumns(t *testing.T) {
	cols := make([]string, ColumnCount)
	cols[0] = "label-9"
	cols[2] = "asset-1"
	cols[3] = "2025-01-01"
	cols[4] = "BR"
	cols[6] = "42"
	cols[28] = "123456789"
	cols[50] = "spotify"
	row := RowFromColumns(cols)
	if row.LabelID != "label-9" || row.AssetID != "asset-1" || row.Territory != "BR" {
		t.Fatalf("positional mapping broken: %+v", row)
	}
	if row.UPC != "123456789" || row.DSPData != "spotify" {
		t.Fatalf("tail columns misaligned: upc=%q dsp=%q", row.UPC, row.DSPData)
	}
	if row.Streams() != 42 {
		t.Fatalf("streams: got %d want 42", row.Streams())
	}
}

func TestRowFromColumns_ShortLine(t *testing.T) {
	row := RowFromColumns([]string{"l", "p", "a"})
	if row.AssetID != "a" || row.Date != "" || row.DSPData != "" {
		t.Fatalf("short line should leave missing fields blank: %+v", row)
	}
}

func TestRawRow_StreamsUnparseable(t *testing.T) {
	for _, bad := range []string{"", "abc", "1.5", "NaN"} {
		r := RawRow{NumberOfStreams: bad}
		if r.Streams() != 0 {
			t.Fatalf("unparseable %q should contribute 0, got %d", bad, r.Streams())
		}
	}
}

func TestStager_CleanOldFiles_MissingDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	s := NewStager(missing, 48*time.Hour)
	_, err := s.CleanOldFiles(context.Background())
	if err == nil {
		t.Fatalf("expected error for missing staging dir")
	}
	want := "The directory " + missing + " was not found."
	if err.Error() != want {
		t.Fatalf("error mismatch:\n got %q\nwant %q", err.Error(), want)
	}
}

func TestStager_CleanOldFiles_Retention(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "iMusics_Spotify_trends_2025-01-01.tsv")
	fresh := filepath.Join(dir, "iMusics_Deezer_trends_2025-06-01.tsv")
	unrelated := filepath.Join(dir, "notes.txt")
	for _, p := range []string{stale, fresh, unrelated} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-72 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(unrelated, old, old); err != nil {
		t.Fatal(err)
	}

	s := NewStager(dir, 48*time.Hour)
	removed, err := s.CleanOldFiles(context.Background())
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale report should be gone")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh report should survive: %v", err)
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Fatalf("unrelated file should never be touched: %v", err)
	}
}

func writeGzReport(t *testing.T, dir, platform, date string, lines []string) source.File {
	t.Helper()
	path := filepath.Join(dir, source.FileName(platform, date))
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(strings.Join(lines, "\n"))); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return source.File{Platform: platform, Date: date, Path: path}
}

func tsvLine(asset, territory, streams string) string {
	cols := make([]string, ColumnCount)
	cols[2] = asset
	cols[3] = "2025-01-01"
	cols[4] = territory
	cols[6] = streams
	return strings.Join(cols, "\t")
}

func TestStager_DecompressAndVerifyPairs(t *testing.T) {
	dir := t.TempDir()
	f := writeGzReport(t, dir, "iMusics_Spotify", "2025-01-01", []string{tsvLine("a1", "BR", "10")})
	s := NewStager(dir, 48*time.Hour)

	staged, err := s.Decompress(context.Background(), []source.File{f})
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if len(staged) != 1 {
		t.Fatalf("expected 1 staged file, got %d", len(staged))
	}
	if staged[0].TSVPath != strings.TrimSuffix(f.Path, ".gz") {
		t.Fatalf("unexpected tsv path %s", staged[0].TSVPath)
	}
	if err := s.VerifyPairs(context.Background()); err != nil {
		t.Fatalf("pairs should verify: %v", err)
	}

	// Removing the decompressed half must surface a defect.
	if err := os.Remove(staged[0].TSVPath); err != nil {
		t.Fatal(err)
	}
	if err := s.VerifyPairs(context.Background()); err == nil {
		t.Fatalf("expected missing-counterpart error")
	}
}

func TestCacheWriter_RowCountMatchesRows(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	mem := cache.NewMemoryClient()
	s := NewStager(dir, 48*time.Hour)
	f := writeGzReport(t, dir, "iMusics_Spotify", "2025-01-01", []string{
		strings.Join(headerColumns(), "\t"),
		tsvLine("a1", "BR", "10"),
		tsvLine("a2", "US", "5"),
		tsvLine("a1", "BR", "7"),
	})
	staged, err := s.Decompress(ctx, []source.File{f})
	if err != nil {
		t.Fatal(err)
	}

	w := NewCacheWriter(mem)
	count, err := w.ProcessFile(ctx, staged[0], false)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if count != 3 {
		t.Fatalf("header should be skipped: got %d rows", count)
	}

	meta, err := mem.HGetAll(ctx, cache.PlatformMetaKey("iMusics_Spotify", "2025-01-01"))
	if err != nil {
		t.Fatal(err)
	}
	length, err := mem.LLen(ctx, cache.PlatformRowsKey("iMusics_Spotify", "2025-01-01"))
	if err != nil {
		t.Fatal(err)
	}
	if meta[MetaFieldRowCount] != "3" || length != 3 {
		t.Fatalf("row_count %s disagrees with list length %d", meta[MetaFieldRowCount], length)
	}
	if meta[MetaFieldStatus] != StatusProcessed {
		t.Fatalf("status: got %q want %q", meta[MetaFieldStatus], StatusProcessed)
	}
	if meta[MetaFieldPlatform] != "iMusics_Spotify" || meta[MetaFieldDate] != "2025-01-01" {
		t.Fatalf("meta descriptive fields wrong: %v", meta)
	}
}

func TestCacheWriter_IdempotentRepublish(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	mem := cache.NewMemoryClient()
	s := NewStager(dir, 48*time.Hour)
	f := writeGzReport(t, dir, "iMusics_Deezer", "2025-02-02", []string{
		tsvLine("a1", "BR", "10"),
		tsvLine("a2", "US", "5"),
	})
	staged, err := s.Decompress(ctx, []source.File{f})
	if err != nil {
		t.Fatal(err)
	}

	w := NewCacheWriter(mem)
	w.now = func() time.Time { return time.Date(2025, 2, 3, 1, 0, 0, 0, time.UTC) }
	if _, err := w.ProcessFile(ctx, staged[0], false); err != nil {
		t.Fatal(err)
	}
	firstRows, _ := mem.LRange(ctx, cache.PlatformRowsKey("iMusics_Deezer", "2025-02-02"), 0, -1)
	firstMeta, _ := mem.HGetAll(ctx, cache.PlatformMetaKey("iMusics_Deezer", "2025-02-02"))

	// Second identical run at a later time: content identical, list replaced
	// not appended, only the timestamp differs.
	w.now = func() time.Time { return time.Date(2025, 2, 3, 2, 0, 0, 0, time.UTC) }
	if _, err := w.ProcessFile(ctx, staged[0], false); err != nil {
		t.Fatal(err)
	}
	secondRows, _ := mem.LRange(ctx, cache.PlatformRowsKey("iMusics_Deezer", "2025-02-02"), 0, -1)
	secondMeta, _ := mem.HGetAll(ctx, cache.PlatformMetaKey("iMusics_Deezer", "2025-02-02"))

	if len(secondRows) != len(firstRows) {
		t.Fatalf("republish appended: %d -> %d rows", len(firstRows), len(secondRows))
	}
	for i := range firstRows {
		if firstRows[i] != secondRows[i] {
			t.Fatalf("row %d differs between identical runs", i)
		}
	}
	if firstMeta[MetaFieldTimestamp] == secondMeta[MetaFieldTimestamp] {
		t.Fatalf("timestamp should be volatile across runs")
	}
	for _, field := range []string{MetaFieldDate, MetaFieldFileName, MetaFieldPlatform, MetaFieldStatus, MetaFieldRowCount} {
		if firstMeta[field] != secondMeta[field] {
			t.Fatalf("stable meta field %s changed: %q -> %q", field, firstMeta[field], secondMeta[field])
		}
	}
}

func TestCacheWriter_ReprocessFlag(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	mem := cache.NewMemoryClient()
	s := NewStager(dir, 48*time.Hour)
	f := writeGzReport(t, dir, "iMusics_TikTok", "2025-03-03", []string{tsvLine("a1", "BR", "1")})
	staged, err := s.Decompress(ctx, []source.File{f})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewCacheWriter(mem).ProcessFile(ctx, staged[0], true); err != nil {
		t.Fatal(err)
	}
	meta, _ := mem.HGetAll(ctx, cache.PlatformMetaKey("iMusics_TikTok", "2025-03-03"))
	if meta[MetaFieldStatus] != StatusReprocess {
		t.Fatalf("reprocessing run must mark status %q, got %q", StatusReprocess, meta[MetaFieldStatus])
	}
}

func TestCacheWriter_RowEncoding(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	mem := cache.NewMemoryClient()
	s := NewStager(dir, 48*time.Hour)
	f := writeGzReport(t, dir, "iMusics_Spotify", "2025-01-01", []string{tsvLine("a1", "BR", "10")})
	staged, err := s.Decompress(ctx, []source.File{f})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewCacheWriter(mem).ProcessFile(ctx, staged[0], false); err != nil {
		t.Fatal(err)
	}
	rows, _ := mem.LRange(ctx, cache.PlatformRowsKey("iMusics_Spotify", "2025-01-01"), 0, -1)
	var decoded map[string]string
	if err := json.Unmarshal([]byte(rows[0]), &decoded); err != nil {
		t.Fatalf("rows must be JSON objects: %v", err)
	}
	if decoded["asset_id"] != "a1" || decoded["territory"] != "BR" || decoded["number_of_streams"] != "10" {
		t.Fatalf("column names must survive encoding: %v", decoded)
	}
	if _, ok := decoded["dsp_data"]; !ok {
		t.Fatalf("all 51 columns must be present in the encoded row")
	}
}

// headerColumns returns the provider header line split into columns.
func headerColumns() []string {
	cols := make([]string, ColumnCount)
	cols[0] = headerFirstColumn
	return cols
}
