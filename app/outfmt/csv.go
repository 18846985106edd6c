package outfmt

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/go-acb/acb/portfolio"
)

func tableFileName(outType OutputType, name string) (string, error) {
	switch outType {
	case Transactions:
		return fmt.Sprintf("%s.csv", name), nil
	case AggregateGains:
		return "aggregate-gains.csv", nil
	case Costs:
		return fmt.Sprintf("%s-costs.csv", strings.ToLower(strings.ReplaceAll(name, " ", "-"))), nil
	default:
		return "", fmt.Errorf("output type %v not implemented", outType)
	}
}

func writeCsvTable(w io.Writer, tableModel *portfolio.RenderTable) error {
	csvWriter := csv.NewWriter(w)

	if err := csvWriter.Write(tableModel.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range tableModel.Rows {
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	if len(tableModel.Footer) > 0 {
		if err := csvWriter.Write(tableModel.Footer); err != nil {
			return fmt.Errorf("write footer: %w", err)
		}
	}
	csvWriter.Flush()
	for _, note := range tableModel.Notes {
		fmt.Fprintln(w, note)
	}
	return nil
}

// CSVWriter writes each rendered table to its own .csv file in OutDir.
type CSVWriter struct {
	OutDir string
}

// PrintRenderTable implements ACBWriter.
func (w *CSVWriter) PrintRenderTable(outType OutputType, name string, tableModel *portfolio.RenderTable) error {
	fn, err := tableFileName(outType, name)
	if err != nil {
		return err
	}

	fp, err := os.Create(path.Join(w.OutDir, fn))
	if err != nil {
		return fmt.Errorf("create file %q: %w", fn, err)
	}
	defer fp.Close()

	return writeCsvTable(fp, tableModel)
}

func NewCSVWriter(outDir string) (*CSVWriter, error) {
	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("creating CSV output directory: %w", err)
	}
	return &CSVWriter{OutDir: outDir}, nil
}

// ZipCSVWriter bundles the same per-table CSV files CSVWriter would produce
// into a single compressed archive, for --csv-output-dir targets ending in
// ".zip".
type ZipCSVWriter struct {
	archive *zip.Writer
	file    *os.File
}

func NewZipCSVWriter(archivePath string) (*ZipCSVWriter, error) {
	fp, err := os.Create(archivePath)
	if err != nil {
		return nil, fmt.Errorf("creating CSV zip archive: %w", err)
	}
	return &ZipCSVWriter{archive: zip.NewWriter(fp), file: fp}, nil
}

// PrintRenderTable implements ACBWriter.
func (w *ZipCSVWriter) PrintRenderTable(outType OutputType, name string, tableModel *portfolio.RenderTable) error {
	fn, err := tableFileName(outType, name)
	if err != nil {
		return err
	}

	entry, err := w.archive.Create(fn)
	if err != nil {
		return fmt.Errorf("create zip entry %q: %w", fn, err)
	}
	return writeCsvTable(entry, tableModel)
}

func (w *ZipCSVWriter) Close() error {
	if err := w.archive.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
