package enrichment

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/ignite/veribatch/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// exportContentType is the content type every export partition is
// written with (spec.md §4.8 step 7).
const exportContentType = "text/csv; charset=utf-8"

// partitionWriter streams one export partition straight into S3 via a
// pipe, so a multi-million-row run never buffers a whole file in memory.
type partitionWriter struct {
	kind      domain.ExportKind
	pw        *io.PipeWriter
	csv       *csv.Writer
	rows      int64
	uploadErr chan error
	done      bool
}

// newPartitionWriter opens the partition's upload pipe and writes the
// UTF-8 BOM and header row (spec.md §4.8 step 7).
func newPartitionWriter(ctx context.Context, store ObjectStore, key string, kind domain.ExportKind, header []string) (*partitionWriter, error) {
	pr, pw := io.Pipe()
	errCh := make(chan error, 1)
	go func() {
		errCh <- store.UploadExport(ctx, key, exportContentType, pr)
	}()

	p := &partitionWriter{kind: kind, pw: pw, csv: csv.NewWriter(pw), uploadErr: errCh}
	if _, err := pw.Write(utf8BOM); err != nil {
		return nil, p.abort(err)
	}
	if err := p.csv.Write(header); err != nil {
		return nil, p.abort(err)
	}
	p.csv.Flush()
	if err := p.csv.Error(); err != nil {
		return nil, p.abort(err)
	}
	return p, nil
}

// WriteRow appends one data row.
func (p *partitionWriter) WriteRow(row []string) error {
	if err := p.csv.Write(row); err != nil {
		return p.abort(err)
	}
	p.csv.Flush()
	if err := p.csv.Error(); err != nil {
		return p.abort(err)
	}
	p.rows++
	return nil
}

// abort aborts the in-flight upload so its goroutine unblocks, and
// returns the original error wrapped with the partition's kind.
func (p *partitionWriter) abort(cause error) error {
	if p.done {
		return fmt.Errorf("enrichment: write %s partition: %w", p.kind, cause)
	}
	p.done = true
	p.pw.CloseWithError(cause)
	<-p.uploadErr
	return fmt.Errorf("enrichment: write %s partition: %w", p.kind, cause)
}

// Close finishes the partition, waits for its upload to complete, and
// returns the row count written. Close is safe to call more than once;
// only the first call waits on the upload.
func (p *partitionWriter) Close() (int64, error) {
	if p.done {
		return p.rows, nil
	}
	p.done = true
	if err := p.pw.Close(); err != nil {
		return p.rows, err
	}
	if err := <-p.uploadErr; err != nil {
		return p.rows, fmt.Errorf("enrichment: upload %s partition: %w", p.kind, err)
	}
	return p.rows, nil
}
