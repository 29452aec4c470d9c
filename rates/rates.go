// Package rates holds the currency conversion table: persisted in
// postgres, mirrored in redis for reads, refreshed from the upstream
// rate API at most once per hour per base currency.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/competitiveumar/HopeBridge/model"
)

const redisTTL = 5 * time.Minute

// defaultRates is the static fallback used when the upstream API is
// unreachable and nothing has been cached yet.
var defaultRates = map[string]string{
	"USD": "1.0",
	"EUR": "0.92",
	"GBP": "0.79",
	"JPY": "151.0",
	"CAD": "1.36",
	"AUD": "1.52",
}

type Cache struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Client  *http.Client
	BaseURL string
	TTL     time.Duration

	group singleflight.Group
}

func NewCache(db *gorm.DB, rdb *redis.Client) *Cache {
	return &Cache{
		DB:      db,
		Redis:   rdb,
		Client:  &http.Client{Timeout: 10 * time.Second},
		BaseURL: "https://api.exchangerate-api.com/v4/latest",
		TTL:     time.Hour,
	}
}

// Rates returns the conversion table for one base currency. A fresh
// table is served from redis or postgres; a stale one is served as-is
// while a single-flight refresh runs behind it. Only when nothing was
// ever cached does the caller wait for the upstream fetch.
func (c *Cache) Rates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	if c.Redis != nil {
		if cached, err := c.Redis.Get(ctx, redisKey(base)).Result(); err == nil {
			var table map[string]decimal.Decimal
			if json.Unmarshal([]byte(cached), &table) == nil && len(table) > 0 {
				return table, nil
			}
		}
	}

	rows, err := c.load(ctx, base)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && c.fresh(rows) {
		table := toTable(rows)
		c.store(ctx, base, table)
		return table, nil
	}

	if len(rows) > 0 {
		// Stale but valid: serve it and refresh behind the request.
		go func() {
			if _, err := c.refresh(base); err != nil {
				log.Printf("rates: background refresh %s failed: %v", base, err)
			}
		}()
		return toTable(rows), nil
	}

	// Cold start: block on one shared fetch.
	table, err := c.refresh(base)
	if err != nil {
		return fallbackTable(), nil
	}
	return table, nil
}

// Convert applies the base→target multiplier to an amount.
func (c *Cache) Convert(ctx context.Context, base, target string, amount decimal.Decimal) (decimal.Decimal, error) {
	if base == target {
		return amount, nil
	}
	table, err := c.Rates(ctx, base)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := table[target]
	if !ok {
		return decimal.Zero, model.NewValidationError("unsupported currency %q", target)
	}
	return amount.Mul(rate), nil
}

// refresh fetches the upstream table once per base currency no matter
// how many callers ask concurrently.
func (c *Cache) refresh(base string) (map[string]decimal.Decimal, error) {
	v, err, _ := c.group.Do(base, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		// Another caller may have refreshed while we waited on the group.
		if rows, err := c.load(ctx, base); err == nil && len(rows) > 0 && c.fresh(rows) {
			return toTable(rows), nil
		}

		table, err := c.fetch(ctx, base)
		if err != nil {
			return nil, err
		}
		if err := c.upsert(ctx, base, table); err != nil {
			return nil, err
		}
		c.store(ctx, base, table)
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]decimal.Decimal), nil
}

func (c *Cache) fetch(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/"+base, nil)
	if err != nil {
		return nil, &model.ProviderError{Op: "fetch rates", Err: err}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, &model.ProviderError{Op: "fetch rates", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.ProviderError{Op: "fetch rates", Err: fmt.Errorf("upstream status %d", resp.StatusCode)}
	}

	var body struct {
		Rates map[string]decimal.Decimal `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &model.ProviderError{Op: "fetch rates", Err: err}
	}
	if len(body.Rates) == 0 {
		return nil, &model.ProviderError{Op: "fetch rates", Err: fmt.Errorf("empty rate table")}
	}
	return body.Rates, nil
}

// upsert writes the table keyed (base, target); re-running it with the
// same data is a no-op apart from the timestamp.
func (c *Cache) upsert(ctx context.Context, base string, table map[string]decimal.Decimal) error {
	now := time.Now()
	for target, rate := range table {
		row := model.ExchangeRate{
			BaseCurrency:   base,
			TargetCurrency: target,
			Rate:           rate,
			LastUpdated:    now,
		}
		err := c.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "base_currency"}, {Name: "target_currency"}},
			DoUpdates: clause.AssignmentColumns([]string{"rate", "last_updated"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) load(ctx context.Context, base string) ([]model.ExchangeRate, error) {
	var rows []model.ExchangeRate
	err := c.DB.WithContext(ctx).Where("base_currency = ?", base).Find(&rows).Error
	return rows, err
}

func (c *Cache) fresh(rows []model.ExchangeRate) bool {
	cutoff := time.Now().Add(-c.TTL)
	for _, r := range rows {
		if r.LastUpdated.Before(cutoff) {
			return false
		}
	}
	return true
}

func (c *Cache) store(ctx context.Context, base string, table map[string]decimal.Decimal) {
	if c.Redis == nil {
		return
	}
	js, err := json.Marshal(table)
	if err != nil {
		return
	}
	c.Redis.Set(ctx, redisKey(base), js, redisTTL)
}

func redisKey(base string) string { return "rates:" + base }

func toTable(rows []model.ExchangeRate) map[string]decimal.Decimal {
	table := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		table[r.TargetCurrency] = r.Rate
	}
	return table
}

func fallbackTable() map[string]decimal.Decimal {
	table := make(map[string]decimal.Decimal, len(defaultRates))
	for cur, raw := range defaultRates {
		table[cur], _ = decimal.NewFromString(raw)
	}
	return table
}
