// Command coupon-import loads bulk coupon-code dumps into the coupon_codes
// table, bound to a campaign promotion. Dump files are gzip'd text, one code
// per line. A code is imported only when it occurs in at least two of the
// given files; the cross-check filters out corrupt dumps without holding
// every code of every file in memory.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/orderflow/internal/storage/postgres"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	minCodeLen    = 8
	maxCodeLen    = 10
	batchSize     = 10_000
	progressEvery = 10_000_000
)

func main() {
	var (
		databaseURL string
		promotionID string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&promotionID, "promotion-id", "", "campaign promotion the codes belong to")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if promotionID == "" {
		slog.Error("--promotion-id is required")
		os.Exit(1)
	}
	files := flag.Args()
	if len(files) < 2 {
		slog.Error("at least two dump files are required for the cross-check")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, promotionID, files); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, databaseURL, promotionID string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: build a bloom filter over the first file.
	slog.Info("pass 1: indexing reference file", slog.String("file", files[0]))
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	if err := scanCodes(files[0], func(code string) {
		filter.AddString(code)
	}); err != nil {
		return errors.Wrapf(err, "index %s", files[0])
	}

	// Pass 2: collect, from the remaining files in parallel, the codes that
	// also occur in the reference file.
	slog.Info("pass 2: cross-checking dump files", slog.Int("files", len(files)-1))
	var (
		mu         sync.Mutex
		candidates = make(map[string]struct{})
	)
	g, _ := errgroup.WithContext(ctx)
	for _, f := range files[1:] {
		g.Go(func() error {
			local := make(map[string]struct{})
			if err := scanCodes(f, func(code string) {
				if filter.TestString(code) {
					local[code] = struct{}{}
				}
			}); err != nil {
				return errors.Wrapf(err, "scan %s", f)
			}
			mu.Lock()
			for code := range local {
				candidates[code] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("cross-check done", slog.Int("candidates", len(candidates)))

	return insertCodes(ctx, databaseURL, promotionID, candidates)
}

// scanCodes streams one gzip'd dump file, invoking fn for each plausible
// code. Codes outside the expected length band are skipped.
func scanCodes(path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "gzip reader")
	}
	defer gz.Close()

	var n int64
	sc := bufio.NewScanner(gz)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for sc.Scan() {
		code := sc.Text()
		if len(code) < minCodeLen || len(code) > maxCodeLen {
			continue
		}
		fn(code)
		if n++; n%progressEvery == 0 {
			slog.Info("scanning", slog.String("file", path), slog.Int64("codes", n))
		}
	}
	return sc.Err()
}

// insertCodes copies the surviving codes into coupon_codes in batches.
func insertCodes(ctx context.Context, databaseURL, promotionID string, candidates map[string]struct{}) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	batch := make([][]any, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		_, err := pool.CopyFrom(ctx,
			pgx.Identifier{"coupon_codes"},
			[]string{"code", "promotion_id"},
			pgx.CopyFromRows(batch),
		)
		batch = batch[:0]
		return err
	}

	var inserted int
	for code := range candidates {
		batch = append(batch, []any{code, promotionID})
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return errors.Wrap(err, "copy batch")
			}
			inserted += batchSize
			slog.Info("inserted", slog.Int("codes", inserted))
		}
	}
	if err := flush(); err != nil {
		return errors.Wrap(err, "copy final batch")
	}

	slog.Info("insert done", slog.String("promotion_id", promotionID),
		slog.Int("total", len(candidates)))
	return nil
}
