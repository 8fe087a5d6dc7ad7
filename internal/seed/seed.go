package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
}

type CategoryWriter interface {
	Upsert(ctx context.Context, c domain.Category) (*domain.Category, error)
}

type Users interface {
	Create(ctx context.Context, u domain.User) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Stores groups the repositories the seed writes through.
type Stores struct {
	Products   ProductWriter
	Categories CategoryWriter
	Users      Users
}

type productSeed struct {
	SKU         string
	Name        string
	Description string
	Price       string
	OldPrice    string
	Image       string
	Category    string
}

var users = []domain.User{
	{Email: "demo@storefront.local", Name: "Demo Shopper"},
	{Email: "jane@storefront.local", Name: "Jane Doe"},
}

var categories = []domain.Category{
	{Key: "men", Name: "Men", Slug: "men"},
	{Key: "women", Name: "Women", Slug: "women"},
	{Key: "kids", Name: "Kids", Slug: "kids"},
	{Key: "sale", Name: "Sale", Slug: "sale"},
}

var products = []productSeed{
	{SKU: "MEN-TEE-001", Name: "Classic Crew Tee", Description: "Heavyweight cotton t-shirt", Price: "19.99", Image: "uploads/men-tee.jpg", Category: "men"},
	{SKU: "MEN-HOOD-002", Name: "Zip Hoodie", Description: "Fleece-lined zip hoodie", Price: "49.99", OldPrice: "69.99", Image: "uploads/men-hoodie.jpg", Category: "men"},
	{SKU: "WOM-DRS-001", Name: "Linen Summer Dress", Description: "Breathable linen dress", Price: "59.00", Image: "uploads/women-dress.jpg", Category: "women"},
	{SKU: "WOM-JKT-002", Name: "Denim Jacket", Description: "Washed denim jacket", Price: "79.50", OldPrice: "99.00", Image: "https://images.example.com/women-denim.jpg", Category: "women"},
	{SKU: "KID-TEE-001", Name: "Dino Tee", Description: "Soft tee with dinosaur print", Price: "12.99", Image: "kids-dino.jpg", Category: "kids"},
	{SKU: "KID-SNK-002", Name: "Light-up Sneakers", Description: "Sneakers with LED soles", Price: "29.99", OldPrice: "39.99", Category: "kids"},
	{SKU: "SALE-CAP-001", Name: "Logo Cap", Description: "Adjustable cotton cap", Price: "9.99", OldPrice: "19.99", Image: "uploads/cap.jpg", Category: "sale"},
	{SKU: "SALE-SCF-002", Name: "Knit Scarf", Description: "Merino knit scarf", Price: "14.99", OldPrice: "24.99", Category: "sale"},
}

// Apply writes demo users, categories and products. It is idempotent: products and
// categories are upserted by natural key and existing users are left untouched.
func Apply(ctx context.Context, s Stores, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	for _, u := range users {
		if err := ensureUser(ctx, s.Users, u); err != nil {
			return fmt.Errorf("ensure user %s: %w", u.Email, err)
		}
	}
	logger.Printf("seed: users=%d", len(users))

	for _, c := range categories {
		if _, err := s.Categories.Upsert(ctx, c); err != nil {
			return fmt.Errorf("upsert category %s: %w", c.Key, err)
		}
	}
	logger.Printf("seed: categories=%d", len(categories))

	for _, ps := range products {
		p, err := ps.product()
		if err != nil {
			return fmt.Errorf("product %s: %w", ps.SKU, err)
		}
		if _, err := s.Products.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", ps.SKU, err)
		}
	}
	logger.Printf("seed: products=%d", len(products))

	return nil
}

func ensureUser(ctx context.Context, repo Users, u domain.User) error {
	_, err := repo.GetByEmail(ctx, u.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	_, err = repo.Create(ctx, u)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return nil
	}
	return err
}

func (ps productSeed) product() (domain.Product, error) {
	price, err := decimal.NewFromString(ps.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("price: %w", err)
	}
	p := domain.Product{
		SKU:         ps.SKU,
		Name:        ps.Name,
		Description: ps.Description,
		Price:       price,
		Image:       ps.Image,
		Category:    ps.Category,
	}
	if ps.OldPrice != "" {
		old, err := decimal.NewFromString(ps.OldPrice)
		if err != nil {
			return domain.Product{}, fmt.Errorf("old price: %w", err)
		}
		p.OldPrice = decimal.NewNullDecimal(old)
	}
	return p, nil
}
