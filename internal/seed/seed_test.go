package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
	"storefront-system/internal/testutil"
)

func TestLoadEmbeddedCatalog(t *testing.T) {
	catalogs, err := Load()
	require.NoError(t, err)
	require.Contains(t, catalogs, domain.KindMotopart)
	require.Contains(t, catalogs, domain.KindBook)

	for kind, catalog := range catalogs {
		slugs := map[string]bool{}
		for _, c := range catalog.Categories {
			slugs[c.Slug] = true
		}
		for _, item := range catalog.Items {
			assert.True(t, slugs[item.Category], "%s item %s references unknown category %s", kind, item.Slug, item.Category)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	catalogs, err := Load()
	require.NoError(t, err)
	motoparts := catalogs[domain.KindMotopart]

	first, err := Run(ctx, db, domain.KindMotopart, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, len(motoparts.Categories), first.CategoriesCreated)
	assert.Equal(t, len(motoparts.Items), first.ItemsCreated)

	second, err := Run(ctx, db, domain.KindMotopart, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, second.CategoriesCreated)
	assert.Zero(t, second.ItemsCreated)

	var items []models.CatalogItem
	require.NoError(t, db.Find(&items).Error)
	assert.Len(t, items, len(motoparts.Items))
	for _, item := range items {
		assert.Equal(t, domain.KindMotopart, item.Kind)
		assert.True(t, item.Status.IsValid())
	}
}

func TestRunRejectsBrokenRecords(t *testing.T) {
	tests := []struct {
		name    string
		catalog Catalog
	}{
		{
			name:    "unknown category",
			catalog: Catalog{Items: []ItemRecord{{Name: "A", Slug: "a", Category: "nope", Price: "1"}}},
		},
		{
			name: "invalid status",
			catalog: Catalog{
				Categories: []CategoryRecord{{Name: "C", Slug: "c"}},
				Items:      []ItemRecord{{Name: "A", Slug: "a", Category: "c", Price: "1", Status: "sold"}},
			},
		},
		{
			name: "bad price",
			catalog: Catalog{
				Categories: []CategoryRecord{{Name: "C", Slug: "c"}},
				Items:      []ItemRecord{{Name: "A", Slug: "a", Category: "c", Price: "cheap"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.NewDB(t)
			_, err := run(context.Background(), db, domain.KindBook, tt.catalog, zap.NewNop())
			require.Error(t, err)

			var categories int64
			require.NoError(t, db.Model(&models.Category{}).Count(&categories).Error)
			assert.Zero(t, categories, "a failed seed rolls back")
		})
	}
}

func TestParseRejectsUnknownKind(t *testing.T) {
	_, err := parse([]byte("toys:\n  categories: []\n"))
	assert.Error(t, err)
}
