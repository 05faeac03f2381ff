// Package ingest turns an uploaded batch file into persisted rows. One bad
// row never aborts ingestion: unparseable rows are persisted as failed with a
// structural error, and every parseable row is durably written before the
// next is read, so ingestion is resumable at the batch level.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"fbrgate/internal/domain"
	"fbrgate/internal/port"
)

// expected column order for both CSV and XLSX templates. local_id may be
// empty; a content hash is derived as the idempotency key then.
var columns = []string{
	"local_id", "customer_code", "invoice_date",
	"product_code", "description", "hs_code",
	"quantity", "unit_price", "tax_rate", "tax_amount", "total_value",
	"subtotal", "tax_total", "discount", "total_amount",
}

// Ingestor parses uploaded files into BulkInvoiceItem rows.
type Ingestor struct {
	items   port.BatchItemRepository
	maxRows int
}

// NewIngestor creates an Ingestor. maxRows bounds how many data rows a single
// file may carry; zero means no bound.
func NewIngestor(items port.BatchItemRepository, maxRows int) *Ingestor {
	return &Ingestor{items: items, maxRows: maxRows}
}

// Ingest streams the file into persisted rows and returns how many rows were
// created. Amounts are integer paisa in the source file.
func (g *Ingestor) Ingest(ctx context.Context, batchID uuid.UUID, fileName string, r io.Reader) (int, error) {
	records, err := readRecords(fileName, r)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("ingest: file %q has no rows", fileName)
	}

	header := normalizeHeader(records[0])
	records = records[1:]
	if g.maxRows > 0 && len(records) > g.maxRows {
		return 0, fmt.Errorf("ingest: file has %d rows, limit is %d", len(records), g.maxRows)
	}

	seen := make(map[string]bool)
	created := 0
	for i, record := range records {
		rowNumber := i + 1

		item := &domain.BulkInvoiceItem{
			BatchID:   batchID,
			RowNumber: rowNumber,
			Stage:     domain.StageIngested,
		}

		data, parseErrs := parseRow(header, record)
		item.LocalID = localID(data, record, seen)
		seen[item.LocalID] = true

		if len(parseErrs) > 0 {
			// Structurally bad row: persist it as terminally failed so the
			// operator sees it, and keep going.
			item.Stage = domain.StageFailed
			item.FailureKind = domain.FailureValidation
			item.ValidationErrors, _ = json.Marshal(parseErrs)
			item.InvoiceData = json.RawMessage("{}")
		} else {
			frozen, err := json.Marshal(data)
			if err != nil {
				return created, fmt.Errorf("ingest: marshaling row %d: %w", rowNumber, err)
			}
			item.InvoiceData = frozen
		}

		if err := g.items.Create(ctx, item); err != nil {
			return created, fmt.Errorf("ingest: persisting row %d: %w", rowNumber, err)
		}
		created++
	}

	log.Printf("ingest: batch %s ingested %d rows from %q", batchID, created, fileName)
	return created, nil
}

func readRecords(fileName string, r io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1 // ragged rows become per-row errors, not a file error
		records, err := cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("ingest: reading csv: %w", err)
		}
		return records, nil
	case ".xlsx":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("ingest: opening xlsx: %w", err)
		}
		defer func() { _ = f.Close() }()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("ingest: xlsx has no sheets")
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("ingest: reading xlsx rows: %w", err)
		}
		return rows, nil
	default:
		return nil, domain.ErrUnsupportedFileType
	}
}

func normalizeHeader(raw []string) map[string]int {
	header := make(map[string]int, len(raw))
	for i, name := range raw {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return header
}

func field(header map[string]int, record []string, name string) string {
	idx, ok := header[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseRow(header map[string]int, record []string) (*domain.RowInvoiceData, []domain.FieldError) {
	var errs []domain.FieldError

	parseInt := func(name string) int64 {
		raw := field(header, record, name)
		if raw == "" {
			return 0
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, domain.FieldError{Field: name, Message: fmt.Sprintf("not an integer: %q", raw)})
		}
		return v
	}
	parseFloat := func(name string) float64 {
		raw := field(header, record, name)
		if raw == "" {
			return 0
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, domain.FieldError{Field: name, Message: fmt.Sprintf("not a number: %q", raw)})
		}
		return v
	}

	var invoiceDate time.Time
	if raw := field(header, record, "invoice_date"); raw != "" {
		var err error
		invoiceDate, err = time.Parse("2006-01-02", raw)
		if err != nil {
			errs = append(errs, domain.FieldError{Field: "invoice_date", Message: fmt.Sprintf("not a date (want YYYY-MM-DD): %q", raw)})
		}
	}

	data := &domain.RowInvoiceData{
		LocalID:      field(header, record, "local_id"),
		CustomerCode: field(header, record, "customer_code"),
		InvoiceDate:  invoiceDate,
		Items: []domain.RowLineItem{{
			ProductCode: field(header, record, "product_code"),
			Description: field(header, record, "description"),
			HSCode:      field(header, record, "hs_code"),
			Quantity:    parseInt("quantity"),
			UnitPrice:   parseInt("unit_price"),
			TaxRate:     parseFloat("tax_rate"),
			TaxAmount:   parseInt("tax_amount"),
			TotalValue:  parseInt("total_value"),
		}},
		Subtotal:    parseInt("subtotal"),
		TaxAmount:   parseInt("tax_total"),
		Discount:    parseInt("discount"),
		TotalAmount: parseInt("total_amount"),
	}
	return data, errs
}

// localID returns the caller-supplied key, or a deterministic hash of the row
// content if absent. Duplicates within the file are disambiguated by row so
// they can still be persisted and flagged by validation.
func localID(data *domain.RowInvoiceData, record []string, seen map[string]bool) string {
	id := data.LocalID
	if id == "" {
		sum := sha256.Sum256([]byte(strings.Join(record, "\x1f")))
		id = hex.EncodeToString(sum[:8])
	}
	for n := 2; seen[id]; n++ {
		id = fmt.Sprintf("%s#%d", data.LocalID, n)
		if data.LocalID == "" {
			sum := sha256.Sum256([]byte(strings.Join(record, "\x1f") + strconv.Itoa(n)))
			id = hex.EncodeToString(sum[:8])
		}
	}
	return id
}
