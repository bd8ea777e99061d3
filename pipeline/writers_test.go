package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-coins/models"
)

func sampleRecord() *models.ScrapeRecord {
	return &models.ScrapeRecord{
		Key:          "ha.com#france|1900|20 francs||",
		TargetURL:    "https://coins.ha.com/c/search-results.zx",
		SourceURL:    "https://coins.ha.com/c/search-results.zx?q=France+1900+20+Francs&category=coins",
		Domain:       "coins.ha.com",
		Success:      true,
		Prices:       []float64{310, 295.5},
		Descriptions: []string{"1900 France 20 Francs MS64", "Gold Rooster"},
		Confidence:   1,
		Attempts:     2,
		ScrapedAt:    time.Date(2025, 11, 4, 13, 9, 13, 0, time.UTC),
	}
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coins.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	if err := writer.Write([]*models.ScrapeRecord{sampleRecord()}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	if records[0][0] != "key" || records[0][5] != "prices" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	row := records[1]
	if row[5] != "310;295.5" {
		t.Errorf("prices column = %q, want 310;295.5", row[5])
	}
	if row[6] != "1900 France 20 Francs MS64 | Gold Rooster" {
		t.Errorf("descriptions column = %q", row[6])
	}
	if row[7] != "1.00" || row[8] != "2" || row[10] != "2025-11-04T13:09:13Z" {
		t.Errorf("unexpected row: %v", row)
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coins.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}

	if err := writer.Write([]*models.ScrapeRecord{sampleRecord(), sampleRecord()}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		var decoded models.ScrapeRecord
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		if decoded.Domain != "coins.ha.com" || len(decoded.Prices) != 2 {
			t.Fatalf("decoded record = %+v", decoded)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if count != 2 {
		t.Fatalf("json lines=%d, want 2", count)
	}
}

func TestNewWriter(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		format  string
		file    string
		want    []string
		wantErr bool
	}{
		{format: "csv", file: "out.csv", want: []string{"out.csv"}},
		{format: "json", file: "out.jsonl", want: []string{"out.jsonl"}},
		{format: "DUAL", file: "both.csv", want: []string{"both.csv", "both.jsonl"}},
		{format: "xml", file: "out.xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			w, err := NewWriter(tt.format, filepath.Join(dir, tt.file))
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewWriter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if err := w.Write([]*models.ScrapeRecord{sampleRecord()}); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			for _, name := range tt.want {
				if info, err := os.Stat(filepath.Join(dir, name)); err != nil || info.Size() == 0 {
					t.Errorf("%s missing or empty", name)
				}
			}
		})
	}
}

func TestJSONLSibling(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "coins.csv", want: "coins.jsonl"},
		{in: "output/coins.csv", want: "output/coins.jsonl"},
		{in: "output/run.2025.csv", want: "output/run.2025.jsonl"},
		{in: "coins", want: "coins.jsonl"},
	}

	for _, tt := range tests {
		if got := JSONLSibling(tt.in); got != tt.want {
			t.Errorf("JSONLSibling(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDualWriterWrite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "nested", "coins.csv")

	writer, err := NewDualWriter(csvPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	jsonPath := filepath.Join(dir, "nested", "coins.jsonl")
	if paths := writer.Paths(); len(paths) != 2 || paths[0] != csvPath || paths[1] != jsonPath {
		t.Fatalf("paths = %v, want [%s %s]", paths, csvPath, jsonPath)
	}

	if err := writer.Write([]*models.ScrapeRecord{sampleRecord()}); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	for _, path := range []string{csvPath, jsonPath} {
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			t.Fatalf("%s missing or empty", path)
		}
	}
}

type failingWriter struct {
	writes int
}

func (w *failingWriter) Write([]*models.ScrapeRecord) error {
	w.writes++
	return errors.New("disk full")
}
func (w *failingWriter) Close() error    { return nil }
func (w *failingWriter) Validate() error { return nil }

type countingWriter struct {
	records int
}

func (w *countingWriter) Write(records []*models.ScrapeRecord) error {
	w.records += len(records)
	return nil
}
func (w *countingWriter) Close() error    { return nil }
func (w *countingWriter) Validate() error { return nil }

func TestDualWriterKeepsWritingPastFailedOutput(t *testing.T) {
	broken := &failingWriter{}
	healthy := &countingWriter{}
	writer := &DualWriter{outputs: []output{
		{format: "csv", path: "coins.csv", writer: broken},
		{format: "json", path: "coins.jsonl", writer: healthy},
	}}

	err := writer.Write([]*models.ScrapeRecord{sampleRecord(), sampleRecord()})
	if err == nil || !strings.Contains(err.Error(), "write csv output coins.csv") {
		t.Fatalf("error = %v, want csv output failure", err)
	}
	if healthy.records != 2 {
		t.Fatalf("json output got %d records, want 2", healthy.records)
	}
}
