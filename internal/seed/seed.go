// Package seed imports the sample catalog shipped with the binary.
package seed

import (
	"context"
	_ "embed"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
)

//go:embed catalog.yaml
var catalogYAML []byte

type CategoryRecord struct {
	Name  string `yaml:"name"`
	Slug  string `yaml:"slug"`
	Image string `yaml:"image"`
}

type ItemRecord struct {
	Name        string `yaml:"name"`
	Slug        string `yaml:"slug"`
	Category    string `yaml:"category"`
	Price       string `yaml:"price"`
	Discount    string `yaml:"discount"`
	Stock       int32  `yaml:"stock"`
	Year        int32  `yaml:"year"`
	Status      string `yaml:"status"`
	Supplier    string `yaml:"supplier"`
	Description string `yaml:"description"`
}

// Catalog is the sample data for one item kind.
type Catalog struct {
	Categories []CategoryRecord `yaml:"categories"`
	Items      []ItemRecord     `yaml:"items"`
}

type Result struct {
	CategoriesCreated int
	ItemsCreated      int
}

// Load parses the embedded catalog, keyed by item kind.
func Load() (map[domain.ItemKind]Catalog, error) {
	return parse(catalogYAML)
}

func parse(raw []byte) (map[domain.ItemKind]Catalog, error) {
	var out map[domain.ItemKind]Catalog
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "parse seed catalog")
	}
	for kind := range out {
		if !kind.IsValid() {
			return nil, errors.Errorf("seed catalog: unknown kind %q", kind)
		}
	}
	return out, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Run imports the categories and items of kind. Rows whose slug already
// exists are left untouched, so running it twice creates nothing new.
func Run(ctx context.Context, db *gorm.DB, kind domain.ItemKind, logger *zap.Logger) (*Result, error) {
	catalogs, err := Load()
	if err != nil {
		return nil, err
	}
	return run(ctx, db, kind, catalogs[kind], logger)
}

func run(ctx context.Context, db *gorm.DB, kind domain.ItemKind, catalog Catalog, logger *zap.Logger) (*Result, error) {
	result := &Result{}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		categoryIDs := make(map[string]int64, len(catalog.Categories))
		for _, rec := range catalog.Categories {
			category := models.Category{Name: rec.Name, Slug: rec.Slug, ImageURL: optional(rec.Image)}
			res := tx.Where("slug = ?", rec.Slug).Attrs(category).FirstOrCreate(&category)
			if res.Error != nil {
				return errors.Wrapf(res.Error, "seed category %s", rec.Slug)
			}
			if res.RowsAffected > 0 {
				result.CategoriesCreated++
			}
			categoryIDs[rec.Slug] = category.ID
		}

		for _, rec := range catalog.Items {
			categoryID, ok := categoryIDs[rec.Category]
			if !ok {
				return errors.Errorf("seed item %s: unknown category %q", rec.Slug, rec.Category)
			}

			status := domain.ItemActive
			if rec.Status != "" {
				status = domain.ItemStatus(rec.Status)
				if !status.IsValid() {
					return errors.Errorf("seed item %s: invalid status %q", rec.Slug, rec.Status)
				}
			}
			price, err := decimal.NewFromString(rec.Price)
			if err != nil {
				return errors.Wrapf(err, "seed item %s: price", rec.Slug)
			}
			discount := decimal.Zero
			if rec.Discount != "" {
				if discount, err = decimal.NewFromString(rec.Discount); err != nil {
					return errors.Wrapf(err, "seed item %s: discount", rec.Slug)
				}
			}

			item := models.CatalogItem{
				Kind:        kind,
				Name:        rec.Name,
				Slug:        rec.Slug,
				Price:       price,
				Discount:    discount,
				Stock:       rec.Stock,
				Status:      status,
				CategoryID:  categoryID,
				Year:        rec.Year,
				Description: optional(rec.Description),
				Supplier:    optional(rec.Supplier),
			}
			res := tx.Where("slug = ?", rec.Slug).Attrs(item).FirstOrCreate(&item)
			if res.Error != nil {
				return errors.Wrapf(res.Error, "seed item %s", rec.Slug)
			}
			if res.RowsAffected > 0 {
				result.ItemsCreated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("catalog seeded",
		zap.String("kind", string(kind)),
		zap.Int("categories_created", result.CategoriesCreated),
		zap.Int("items_created", result.ItemsCreated))
	return result, nil
}
