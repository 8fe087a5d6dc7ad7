package catalog

import (
	"context"
	"errors"
	"math"
	"testing"

	"storefront/internal/domain"
	productrepo "storefront/internal/repository/product"

	"github.com/shopspring/decimal"
)

type stubProducts struct {
	list       []domain.Product
	total      int
	err        error
	lastFilter productrepo.ListFilter
	byID       map[int64]domain.Product
}

func (s *stubProducts) List(_ context.Context, f productrepo.ListFilter) ([]domain.Product, int, error) {
	s.lastFilter = f
	return s.list, s.total, s.err
}

func (s *stubProducts) GetByID(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

type stubCategories struct {
	cats []domain.Category
}

func (s *stubCategories) ListAll(context.Context) ([]domain.Category, error) {
	return s.cats, nil
}

func (s *stubCategories) GetByKey(_ context.Context, key string) (*domain.Category, error) {
	for _, c := range s.cats {
		if c.Key == key {
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubCategories) Upsert(_ context.Context, c domain.Category) (*domain.Category, error) {
	return &c, nil
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestList_PagesOfTwelve(t *testing.T) {
	products := &stubProducts{total: 30}
	svc := New(products, &stubCategories{}, "http://localhost:5000/")

	page, err := svc.List(context.Background(), ListQuery{Page: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if products.lastFilter.Limit != 12 || products.lastFilter.Offset != 24 {
		t.Fatalf("unexpected paging %+v", products.lastFilter)
	}
	if page.TotalPages != 3 || page.Page != 3 || page.PerPage != 12 {
		t.Fatalf("unexpected page %+v", page)
	}
	if products.lastFilter.Sort != productrepo.SortDefault {
		t.Fatalf("expected default sort, got %q", products.lastFilter.Sort)
	}
}

func TestList_HugePageKeepsOffsetPositive(t *testing.T) {
	products := &stubProducts{total: 5}
	svc := New(products, &stubCategories{}, "")

	page, err := svc.List(context.Background(), ListQuery{Page: math.MaxInt, PerPage: MaxPerPage})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if products.lastFilter.Offset != (MaxPage-1)*MaxPerPage {
		t.Fatalf("expected offset clamped to the last allowed page, got %d", products.lastFilter.Offset)
	}
	if page.Page != MaxPage {
		t.Fatalf("expected page %d, got %d", MaxPage, page.Page)
	}
}

func TestList_ClampsPerPage(t *testing.T) {
	products := &stubProducts{}
	svc := New(products, &stubCategories{}, "")
	if _, err := svc.List(context.Background(), ListQuery{PerPage: 500, Page: -1}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if products.lastFilter.Limit != MaxPerPage || products.lastFilter.Offset != 0 {
		t.Fatalf("unexpected paging %+v", products.lastFilter)
	}
}

func TestList_RejectsUnknownSort(t *testing.T) {
	svc := New(&stubProducts{}, &stubCategories{}, "")
	_, err := svc.List(context.Background(), ListQuery{Sort: "rating"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestList_DerivesSaleFields(t *testing.T) {
	products := &stubProducts{
		total: 2,
		list: []domain.Product{
			{ID: 1, Price: price("29.99"), OldPrice: decimal.NewNullDecimal(price("39.99")), Image: `tees\red.png`},
			{ID: 2, Price: price("10"), Image: "uploads/blue.png"},
		},
	}
	svc := New(products, &stubCategories{}, "http://localhost:5000")

	page, err := svc.List(context.Background(), ListQuery{OnSale: true, Sort: productrepo.SortPriceLow})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !products.lastFilter.OnSale {
		t.Fatalf("sale filter not forwarded")
	}
	first := page.Products[0]
	if !first.OnSale || first.DiscountPercent != 25 {
		t.Fatalf("unexpected sale fields %+v", first)
	}
	if first.ImageURL != "http://localhost:5000/uploads/tees/red.png" {
		t.Fatalf("unexpected image %s", first.ImageURL)
	}
	if page.Products[1].OnSale || page.Products[1].DiscountPercent != 0 {
		t.Fatalf("unexpected sale fields %+v", page.Products[1])
	}
}

func TestListByCategory_UnknownKey(t *testing.T) {
	svc := New(&stubProducts{}, &stubCategories{cats: []domain.Category{{Key: "men"}}}, "")
	if _, err := svc.ListByCategory(context.Background(), "kids", ListQuery{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	products := &stubProducts{}
	svc = New(products, &stubCategories{cats: []domain.Category{{Key: "men"}}}, "")
	if _, err := svc.ListByCategory(context.Background(), "men", ListQuery{}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if products.lastFilter.Category != "men" {
		t.Fatalf("category not forwarded: %+v", products.lastFilter)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := New(&stubProducts{}, &stubCategories{}, "")
	if _, err := svc.Get(context.Background(), 9); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveImageURL(t *testing.T) {
	const host = "http://localhost:5000"
	cases := map[string]string{
		"":                          PlaceholderImage,
		"https://cdn.example/a.png": "https://cdn.example/a.png",
		"http://cdn.example/a.png":  "http://cdn.example/a.png",
		`uploads\kids\a.png`:        host + "/uploads/kids/a.png",
		"/uploads/a.png":            host + "/uploads/a.png",
		"a.png":                     host + "/uploads/a.png",
		`men\shirts\b.jpg`:          host + "/uploads/men/shirts/b.jpg",
	}
	for in, want := range cases {
		if got := ResolveImageURL(host, in); got != want {
			t.Errorf("ResolveImageURL(%q) = %q, want %q", in, got, want)
		}
	}
}
