// Package export streams a table to JSON Lines, optionally xz-compressed.
// Rows are pulled page by page through the same paged statements the
// browser uses, so an export never loads the whole table at once.
package export

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/happydigua/recch/core/browse"
	"github.com/happydigua/recch/core/errors"
	"github.com/happydigua/recch/core/schema"
	"github.com/happydigua/recch/core/sqlbuild"
)

// Options controls an export run.
type Options struct {
	Table    string
	Database string
	// PageSize is rows per fetch; zero uses the browsing default.
	PageSize int
	// Compress wraps the output in an xz stream.
	Compress bool
}

// File exports to path, choosing compression from the file extension when
// Options.Compress is unset.
func File(ctx context.Context, exec browse.Executor, dialect sqlbuild.Dialect, path string, opts Options) (int64, error) {
	if !opts.Compress && strings.HasSuffix(path, ".xz") {
		opts.Compress = true
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	n, err := Write(ctx, exec, dialect, f, opts)
	if err != nil {
		return n, err
	}
	return n, f.Close()
}

// Write exports the table to w and returns the number of rows written.
func Write(ctx context.Context, exec browse.Executor, dialect sqlbuild.Dialect, w io.Writer, opts Options) (int64, error) {
	if opts.Table == "" {
		return 0, errors.NewValidation("table", "must not be empty")
	}

	out := w
	var xzw *xz.Writer
	if opts.Compress {
		var err error
		xzw, err = xz.NewWriter(w)
		if err != nil {
			return 0, errors.Wrap(err, "open xz stream")
		}
		out = xzw
		// Flushes the stream on early error returns; the success path
		// closes explicitly and clears xzw.
		defer func() {
			if xzw != nil {
				xzw.Close()
			}
		}()
	}

	var cat schema.Catalog
	if err := cat.Load(ctx, exec, opts.Table, opts.Database); err != nil {
		return 0, err
	}

	enc := json.NewEncoder(out)
	page := sqlbuild.NewPageState(1, opts.PageSize)
	var written int64
	for {
		q := sqlbuild.PagedQuery{
			Dialect:  dialect,
			Table:    opts.Table,
			Database: opts.Database,
			Page:     page,
		}
		rows, err := exec.Query(ctx, q.DataQuery())
		if err != nil {
			return written, err
		}
		for _, row := range rows {
			// Encode in catalog column order for stable output.
			doc := make(map[string]any, len(cat.Columns()))
			for _, col := range cat.Columns() {
				if v, ok := row[col.Name]; ok {
					doc[col.Name] = v.ToAny()
				}
			}
			if err := enc.Encode(doc); err != nil {
				return written, errors.Wrap(err, "encode row")
			}
			written++
		}
		if len(rows) < page.PageSize {
			break
		}
		page.Page++
	}

	if xzw != nil {
		err := xzw.Close()
		xzw = nil
		if err != nil {
			return written, errors.Wrap(err, "close xz stream")
		}
	}
	return written, nil
}
