package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/promolens/backend/internal/domain"
)

// Columns is the CSV header, one column per promotion field
var Columns = []string{
	"flyer_name",
	"product_name",
	"unit_promo_price",
	"uom",
	"least_unit_for_promo",
	"save_per_unit",
	"discount",
	"organic",
}

// CSVWriter writes promotions as CSV rows. Absent values are empty fields
// and numbers carry two decimals.
type CSVWriter struct {
	out           io.Writer
	writer        *csv.Writer
	header        bool
	headerWritten bool
}

// NewCSVWriter creates a writer over w. When header is set the column
// names are written before the first row.
func NewCSVWriter(w io.Writer, header bool) *CSVWriter {
	return &CSVWriter{
		out:    w,
		writer: csv.NewWriter(w),
		header: header,
	}
}

// NewCSVFileWriter creates (or truncates) the file at path
func NewCSVFileWriter(path string, header bool) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return NewCSVWriter(f, header), nil
}

// Write appends one row per promotion
func (w *CSVWriter) Write(ctx context.Context, promotions []domain.Promotion) error {
	if err := w.writeHeader(); err != nil {
		return err
	}

	for _, p := range promotions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.writer.Write(Row(p)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	w.writer.Flush()
	return w.writer.Error()
}

// Close flushes pending rows and closes the underlying writer if it is
// closable.
func (w *CSVWriter) Close() error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return err
	}
	if c, ok := w.out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (w *CSVWriter) writeHeader() error {
	if !w.header || w.headerWritten {
		return nil
	}
	w.headerWritten = true
	if err := w.writer.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// Row formats a promotion in column order
func Row(p domain.Promotion) []string {
	return []string{
		p.FlyerName,
		p.ProductName,
		formatFloat(p.UnitPromoPrice),
		formatString(p.UnitOfMeasurement),
		formatFloat(p.LeastUnitCountForPromo),
		formatFloat(p.PriceDiscount),
		formatFloat(p.PercentDiscount),
		formatBool(p.IsOrganic),
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}
