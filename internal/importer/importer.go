package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

type CategoryWriter interface {
	Upsert(ctx context.Context, category domain.Category) (*domain.Category, error)
}

var requiredColumns = []string{"sku", "name", "price"}

// CSVImporter reads a catalog CSV and upserts products by sku. Columns are
// matched by header name: sku, name, description, price, oldPrice, image, category.
type CSVImporter struct {
	reader     *csv.Reader
	products   ProductWriter
	categories CategoryWriter
	seen       map[string]bool
}

func NewCSVImporter(r io.Reader, products ProductWriter, categories CategoryWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:     csvr,
		products:   products,
		categories: categories,
		seen:       map[string]bool{},
	}
}

// Run imports every row and returns how many products were written. It stops at
// the first invalid row; rows before it stay imported.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return 0, fmt.Errorf("missing column %q", col)
		}
	}

	imported := 0
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		if blank(record) {
			continue
		}

		line, _ := i.reader.FieldPos(0)
		p, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		if err := i.ensureCategory(ctx, p.Category); err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		if _, err := i.products.Upsert(ctx, p); err != nil {
			return imported, fmt.Errorf("line %d: upsert product %q: %w", line, p.SKU, err)
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) ensureCategory(ctx context.Context, key string) error {
	if key == "" || i.seen[key] || i.categories == nil {
		return nil
	}
	_, err := i.categories.Upsert(ctx, domain.Category{Key: key, Name: titleCase(key), Slug: key})
	if err != nil {
		return fmt.Errorf("upsert category %q: %w", key, err)
	}
	i.seen[key] = true
	return nil
}

func parseRow(record []string, index map[string]int) (domain.Product, error) {
	p := domain.Product{
		SKU:         pick(record, index, "sku"),
		Name:        pick(record, index, "name"),
		Description: pick(record, index, "description"),
		Image:       pick(record, index, "image"),
		Category:    strings.ToLower(pick(record, index, "category")),
	}
	if p.SKU == "" {
		return p, domain.Invalid("sku", "is required")
	}
	if p.Name == "" {
		return p, domain.Invalid("name", "is required")
	}

	price, err := decimal.NewFromString(pick(record, index, "price"))
	if err != nil {
		return p, domain.Invalid("price", "must be a decimal number")
	}
	p.Price = price

	if raw := pick(record, index, "oldprice"); raw != "" {
		old, err := decimal.NewFromString(raw)
		if err != nil {
			return p, domain.Invalid("oldPrice", "must be a decimal number")
		}
		p.OldPrice = decimal.NewNullDecimal(old)
	}

	return p, p.ValidatePrices()
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return idx
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func titleCase(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
