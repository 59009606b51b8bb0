package pipeline

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/aluiziolira/go-scrape-movies/models"
	"github.com/aluiziolira/go-scrape-movies/storage"
)

// CSVHeader is the column order consumed by the dashboard.
var CSVHeader = []string{"Title", "Rating", "Votes", "Duration", "ConvertedVote"}

// CSVWriter writes one CSV file per category into a directory.
type CSVWriter struct {
	dir string

	mu      sync.Mutex
	written []string
}

// NewCSVWriter prepares the output directory.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &CSVWriter{dir: dir}, nil
}

// Path returns the file a category is written to.
func (cw *CSVWriter) Path(category models.Category) string {
	return filepath.Join(cw.dir, category.FileName("csv"))
}

// Write replaces the category's file with the batch. Rewriting the same batch
// produces the same bytes.
func (cw *CSVWriter) Write(_ context.Context, batch *models.GenreBatch) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	path := cw.Path(batch.Category)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(CSVHeader); err != nil {
		f.Close()
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, record := range batch.Records {
		row := []string{
			record.Title,
			record.RatingRaw,
			record.VotesRaw,
			record.DurationRaw,
			formatOptionalInt(record.ConvertedVotes),
		}
		if err := writer.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush csv records: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close csv file: %w", err)
	}

	cw.written = append(cw.written, path)
	return nil
}

// Close is a no-op; files are closed after each category.
func (cw *CSVWriter) Close() error {
	return nil
}

// Validate ensures every written file exists and holds at least the header.
func (cw *CSVWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return validateFiles(cw.written, "csv")
}

// JSONWriter writes newline-delimited JSON records, one file per category.
type JSONWriter struct {
	dir string

	mu      sync.Mutex
	written []string
}

// NewJSONWriter prepares the output directory.
func NewJSONWriter(dir string) (*JSONWriter, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &JSONWriter{dir: dir}, nil
}

// Path returns the file a category is written to.
func (jw *JSONWriter) Path(category models.Category) string {
	return filepath.Join(jw.dir, category.FileName("jsonl"))
}

// Write replaces the category's JSONL file with the batch.
func (jw *JSONWriter) Write(_ context.Context, batch *models.GenreBatch) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	path := jw.Path(batch.Category)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	encoder := json.NewEncoder(buffer)
	for _, record := range batch.Records {
		if err := encoder.Encode(record); err != nil {
			f.Close()
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	if err := buffer.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush json writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close json file: %w", err)
	}

	jw.written = append(jw.written, path)
	return nil
}

// Close is a no-op; files are closed after each category.
func (jw *JSONWriter) Close() error {
	return nil
}

// Validate ensures every written file exists. Empty categories yield empty files.
func (jw *JSONWriter) Validate() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	for _, path := range jw.written {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("stat json file: %w", err)
		}
	}
	return nil
}

// SQLWriter inserts each batch into the category's table.
type SQLWriter struct {
	db *storage.DB
}

// NewSQLWriter wraps an open database. The caller keeps ownership of db.
func NewSQLWriter(db *storage.DB) *SQLWriter {
	return &SQLWriter{db: db}
}

// Write creates the table if needed and bulk inserts the batch in one transaction.
func (sw *SQLWriter) Write(ctx context.Context, batch *models.GenreBatch) error {
	return sw.db.InsertBatch(ctx, batch)
}

// Close leaves the connection open; it is released by its owner.
func (sw *SQLWriter) Close() error {
	return nil
}

// Validate has nothing to check; failed inserts are reported per category.
func (sw *SQLWriter) Validate() error {
	return nil
}

func formatOptionalInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func validateFiles(paths []string, kind string) error {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s file: %w", kind, err)
		}
		if info.Size() <= 0 {
			return fmt.Errorf("%s file %s is empty", kind, path)
		}
	}
	return nil
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
