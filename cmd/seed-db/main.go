package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/orderflow/internal/storage/postgres"
)

type variantJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	TaxRate   int    `json:"taxRate"`
	Digital   bool   `json:"digital"`
	Stock     int    `json:"stock"`
}

func main() {
	var (
		databaseURL  string
		variantsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&variantsFile, "variants-file", "db/seed/variants.json", "path to variants JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or ORDERFLOW_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or ORDERFLOW_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("ORDERFLOW_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or ORDERFLOW_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("ORDERFLOW_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, variantsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, variantsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedVariants(ctx, pool, variantsFile); err != nil {
		return errors.Wrap(err, "seed variants")
	}

	if err := seedPromotions(ctx, pool); err != nil {
		return errors.Wrap(err, "seed promotions")
	}

	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedVariants(ctx context.Context, pool *pgxpool.Pool, variantsFile string) error {
	slog.Info("reading variants file", slog.String("path", variantsFile))

	data, err := os.ReadFile(variantsFile)
	if err != nil {
		return errors.Wrap(err, "read variants file")
	}

	var variants []variantJSON
	if err := json.Unmarshal(data, &variants); err != nil {
		return errors.Wrap(err, "parse variants JSON")
	}

	slog.Info("upserting variants", slog.Int("count", len(variants)))

	const q = `
		INSERT INTO variants (id, name, unit_price, tax_rate, digital, stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			unit_price = EXCLUDED.unit_price,
			tax_rate = EXCLUDED.tax_rate,
			digital = EXCLUDED.digital,
			stock = EXCLUDED.stock`

	for _, v := range variants {
		if _, err := pool.Exec(ctx, q, v.ID, v.Name, v.UnitPrice, v.TaxRate, v.Digital, v.Stock); err != nil {
			return errors.Wrapf(err, "upsert variant %s", v.ID)
		}

		slog.Info("upserted variant", slog.String("id", v.ID), slog.String("name", v.Name))
	}

	return nil
}

type promotionSeed struct {
	ID           string
	Name         string
	CouponCode   string
	DiscountType string
	Value        decimal.Decimal
	MinSubtotal  int64
	MinQuantity  int
	Priority     int
}

func seedPromotions(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding default promotions")

	promotions := []promotionSeed{
		{
			ID:           "happy-hours",
			Name:         "Happy Hours: 18% off entire order",
			CouponCode:   "HAPPYHOURS",
			DiscountType: "percentage",
			Value:        decimal.NewFromInt(18),
			Priority:     10,
		},
		{
			ID:           "buy-get-one",
			Name:         "Buy one get one: lowest priced item free",
			CouponCode:   "BUYGETONE",
			DiscountType: "free_lowest",
			Value:        decimal.Zero,
			MinQuantity:  2,
			Priority:     5,
		},
		{
			ID:           "big-basket",
			Name:         "5% off orders over 100.00",
			DiscountType: "percentage",
			Value:        decimal.NewFromInt(5),
			MinSubtotal:  10_000,
			Priority:     1,
		},
	}

	const q = `
		INSERT INTO promotions (id, name, coupon_code, discount_type, value, min_subtotal, min_quantity, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			coupon_code = EXCLUDED.coupon_code,
			discount_type = EXCLUDED.discount_type,
			value = EXCLUDED.value,
			min_subtotal = EXCLUDED.min_subtotal,
			min_quantity = EXCLUDED.min_quantity,
			priority = EXCLUDED.priority`

	for _, p := range promotions {
		if _, err := pool.Exec(ctx, q,
			p.ID, p.Name, p.CouponCode, p.DiscountType, p.Value,
			p.MinSubtotal, p.MinQuantity, p.Priority,
		); err != nil {
			return errors.Wrapf(err, "upsert promotion %s", p.ID)
		}

		slog.Info("upserted promotion", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	const q = `
		INSERT INTO api_keys (key_hash, name)
		VALUES ($1, $2)
		ON CONFLICT (key_hash) DO UPDATE SET name = EXCLUDED.name`

	if _, err := pool.Exec(ctx, q, keyHash, "Default test key"); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("name", "Default test key"))

	return nil
}
