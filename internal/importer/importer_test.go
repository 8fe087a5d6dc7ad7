package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"storefront/internal/domain"
)

type stubProductRepo struct {
	items []domain.Product
	err   error
}

func (s *stubProductRepo) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.items = append(s.items, p)
	return &p, nil
}

type stubCategoryRepo struct {
	items []domain.Category
}

func (s *stubCategoryRepo) Upsert(_ context.Context, c domain.Category) (*domain.Category, error) {
	s.items = append(s.items, c)
	return &c, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := "\ufeffSKU,name,description,price,oldPrice,image,category\n" +
		"TEE-1,Crew Tee,Cotton tee,19.99,,uploads/tee.jpg,men\n" +
		",,,,,,\n" +
		"CAP-1,Logo Cap,,9.99,19.99,https://cdn.example.com/cap.jpg,sale\n" +
		"TEE-2,V Tee,,21.00,,,Men\n" +
		"SCARF-1,Knit Scarf,,14.99,24.99,,winter-accessories\n"

	repo := &stubProductRepo{}
	catRepo := &stubCategoryRepo{}
	imp := NewCSVImporter(strings.NewReader(csvData), repo, catRepo)

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 products imported, got %d", count)
	}

	first := repo.items[0]
	if first.SKU != "TEE-1" || first.Price.String() != "19.99" || first.OldPrice.Valid || first.Image != "uploads/tee.jpg" || first.Category != "men" {
		t.Fatalf("unexpected first product: %+v", first)
	}
	if !repo.items[1].OnSale() || repo.items[1].DiscountPercent() != 50 {
		t.Fatalf("expected cap to be on sale at 50%%, got %+v", repo.items[1])
	}
	if repo.items[2].Category != "men" {
		t.Fatalf("expected category to be lowercased, got %q", repo.items[2].Category)
	}

	if len(catRepo.items) != 3 {
		t.Fatalf("expected 3 distinct category upserts, got %d", len(catRepo.items))
	}
	if catRepo.items[2].Key != "winter-accessories" || catRepo.items[2].Name != "Winter Accessories" {
		t.Fatalf("unexpected generated category: %+v", catRepo.items[2])
	}
}

func TestCSVImporter_MissingColumn(t *testing.T) {
	imp := NewCSVImporter(strings.NewReader("sku,name\nA,B\n"), &stubProductRepo{}, nil)
	if _, err := imp.Run(context.Background()); err == nil || !strings.Contains(err.Error(), `"price"`) {
		t.Fatalf("expected missing price column error, got %v", err)
	}
}

func TestCSVImporter_InvalidRow(t *testing.T) {
	tests := []struct {
		name  string
		row   string
		field string
	}{
		{"missing sku", ",Tee,1.00,", "sku"},
		{"bad price", "A,Tee,abc,", "price"},
		{"old price not above price", "A,Tee,10.00,9.00", "oldPrice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := "sku,name,price,oldPrice\nOK-1,Fine,1.00,\n" + tt.row + "\n"
			repo := &stubProductRepo{}
			count, err := NewCSVImporter(strings.NewReader(data), repo, nil).Run(context.Background())

			var verr *domain.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
			if !strings.Contains(err.Error(), "line 3") {
				t.Fatalf("expected line number in %q", err.Error())
			}
			if count != 1 || len(repo.items) != 1 {
				t.Fatalf("expected rows before the failure to be imported, got %d", count)
			}
		})
	}
}

func TestCSVImporter_UpsertError(t *testing.T) {
	repo := &stubProductRepo{err: errors.New("boom")}
	_, err := NewCSVImporter(strings.NewReader("sku,name,price\nA,Tee,1\n"), repo, nil).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected upsert error, got %v", err)
	}
}
