package handler

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
)

const (
	CATALOG_ITEMS_CACHE_KEY  = "catalog:items"
	CATALOG_CATEGORIES_CACHE = "catalog:categories"
	CACHE_TTL_SHORT          = 5 * time.Minute
	CACHE_TTL_MEDIUM         = 30 * time.Minute

	DefaultPageSize = 10
	MaxPageSize     = 100
)

type ItemFilter struct {
	Kind          domain.ItemKind
	CategoryID    *int64
	CategorySlug  string
	Status        domain.ItemStatus
	AvailableOnly bool
	Search        string
	Page          int
	PageSize      int
}

func (f *ItemFilter) normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

func (f ItemFilter) cacheKey() string {
	raw, _ := json.Marshal(f)
	sum := sha1.Sum(raw)
	return CATALOG_ITEMS_CACHE_KEY + ":" + hex.EncodeToString(sum[:])
}

type ItemPage struct {
	Items    []models.CatalogItem `json:"items"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

type CategoryInput struct {
	Name     string
	Slug     string
	ImageURL *string
}

type ItemInput struct {
	Kind        domain.ItemKind
	Name        string
	Slug        string
	Price       decimal.Decimal
	Discount    decimal.Decimal
	Stock       int32
	Status      domain.ItemStatus
	CategoryID  int64
	Year        int32
	Description *string
	Supplier    *string
	ImageURL    *string
}

type ItemPatch struct {
	Name        *string
	Price       *decimal.Decimal
	Discount    *decimal.Decimal
	Stock       *int32
	Status      *domain.ItemStatus
	CategoryID  *int64
	Year        *int32
	Description *string
	Supplier    *string
	ImageURL    *string
}

// -- Handler --
type CatalogHandler struct {
	db     *gorm.DB
	redis  *redis.Client
	logger *zap.Logger
}

// NewCatalogHandler builds the catalog service. redisClient may be nil, which disables caching.
func NewCatalogHandler(db *gorm.DB, redisClient *redis.Client, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		db:     db,
		redis:  redisClient,
		logger: logger,
	}
}

// InvalidateCatalogCaches drops every cached item listing and the category list.
func (s *CatalogHandler) InvalidateCatalogCaches(ctx context.Context) {
	if s.redis == nil {
		return
	}

	keys := []string{CATALOG_CATEGORIES_CACHE}
	iter := s.redis.Scan(ctx, 0, CATALOG_ITEMS_CACHE_KEY+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("scan catalog cache keys", zap.Error(err))
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("invalidate catalog cache", zap.Error(err))
	}
}

func (s *CatalogHandler) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.redis == nil {
		return false
	}
	raw, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("catalog cache get", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (s *CatalogHandler) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, raw, ttl).Err(); err != nil {
		s.logger.Warn("catalog cache set", zap.String("key", key), zap.Error(err))
	}
}

// -- Categories --

func (s *CatalogHandler) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if s.cacheGet(ctx, CATALOG_CATEGORIES_CACHE, &categories) {
		return categories, nil
	}

	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&categories).Error; err != nil {
		return nil, errors.Wrap(err, "list categories")
	}

	s.cacheSet(ctx, CATALOG_CATEGORIES_CACHE, categories, CACHE_TTL_MEDIUM)
	return categories, nil
}

// GetCategory resolves a category by numeric id or by slug.
func (s *CatalogHandler) GetCategory(ctx context.Context, idOrSlug string) (*models.Category, error) {
	var category models.Category
	query := s.db.WithContext(ctx)
	if id, err := strconv.ParseInt(idOrSlug, 10, 64); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("slug = ?", idOrSlug)
	}

	if err := query.First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFound(domain.MsgCategoryNotFound)
		}
		return nil, errors.Wrap(err, "get category")
	}
	return &category, nil
}

func (s *CatalogHandler) CreateCategory(ctx context.Context, actor domain.Actor, in CategoryInput) (*models.Category, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, domain.NewValidation("name is required").WithField("name", []string{"This field is required."})
	}
	slug, err := resolveSlug(in.Slug, in.Name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSlugFree(ctx, &models.Category{}, slug, 0); err != nil {
		return nil, err
	}

	category := models.Category{Name: strings.TrimSpace(in.Name), Slug: slug, ImageURL: in.ImageURL}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, errors.Wrap(err, "create category")
	}

	s.InvalidateCatalogCaches(ctx)
	s.logger.Info("category created", zap.Int64("category_id", category.ID), zap.String("slug", category.Slug))
	return &category, nil
}

func (s *CatalogHandler) UpdateCategory(ctx context.Context, actor domain.Actor, id int64, in CategoryInput) (*models.Category, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	category, err := s.GetCategory(ctx, strconv.FormatInt(id, 10))
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		category.Name = strings.TrimSpace(in.Name)
	}
	if in.Slug != "" && in.Slug != category.Slug {
		if err := s.ensureSlugFree(ctx, &models.Category{}, in.Slug, category.ID); err != nil {
			return nil, err
		}
		category.Slug = in.Slug
	}
	if in.ImageURL != nil {
		category.ImageURL = in.ImageURL
	}

	if err := s.db.WithContext(ctx).Save(category).Error; err != nil {
		return nil, errors.Wrap(err, "update category")
	}
	s.InvalidateCatalogCaches(ctx)
	return category, nil
}

// DeleteCategory removes a category and its items unless one of the items was ordered.
func (s *CatalogHandler) DeleteCategory(ctx context.Context, actor domain.Actor, id int64) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}

	var itemIDs []int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var category models.Category
		if err := tx.First(&category, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFound(domain.MsgCategoryNotFound)
			}
			return errors.Wrap(err, "get category")
		}

		if err := tx.Model(&models.CatalogItem{}).Where("category_id = ?", id).Pluck("id", &itemIDs).Error; err != nil {
			return errors.Wrap(err, "list category items")
		}
		if len(itemIDs) > 0 {
			var ordered int64
			if err := tx.Model(&models.OrderItem{}).Where("catalog_item_id IN ?", itemIDs).Count(&ordered).Error; err != nil {
				return errors.Wrap(err, "count order items")
			}
			if ordered > 0 {
				return domain.NewConflict(domain.MsgCatalogItemReferenced)
			}
			if err := tx.Where("catalog_item_id IN ?", itemIDs).Delete(&models.CartItem{}).Error; err != nil {
				return errors.Wrap(err, "delete cart items")
			}
			if err := tx.Where("category_id = ?", id).Delete(&models.CatalogItem{}).Error; err != nil {
				return errors.Wrap(err, "delete category items")
			}
		}

		return errors.Wrap(tx.Delete(&category).Error, "delete category")
	})
	if err != nil {
		return err
	}

	s.InvalidateCatalogCaches(ctx)
	return nil
}

// -- Items --

func (s *CatalogHandler) ListItems(ctx context.Context, filter ItemFilter) (*ItemPage, error) {
	filter.normalize()

	var page ItemPage
	key := filter.cacheKey()
	if s.cacheGet(ctx, key, &page) {
		return &page, nil
	}

	query := s.db.WithContext(ctx).Model(&models.CatalogItem{})
	if filter.Kind != "" {
		query = query.Where("catalog_items.kind = ?", filter.Kind)
	}
	if filter.CategoryID != nil {
		query = query.Where("catalog_items.category_id = ?", *filter.CategoryID)
	}
	if filter.CategorySlug != "" {
		query = query.Where("catalog_items.category_id IN (?)",
			s.db.Model(&models.Category{}).Select("id").Where("slug = ?", filter.CategorySlug))
	}
	if filter.Status != "" {
		query = query.Where("catalog_items.status = ?", filter.Status)
	}
	if filter.AvailableOnly {
		query = query.Where("catalog_items.status = ? AND catalog_items.stock > 0", domain.ItemActive)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where("LOWER(catalog_items.name) LIKE ? OR LOWER(catalog_items.slug) LIKE ?", like, like)
	}

	if err := query.Count(&page.Total).Error; err != nil {
		return nil, errors.Wrap(err, "count catalog items")
	}

	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Preload("Category").
		Order("catalog_items.created_at DESC, catalog_items.id DESC").
		Offset(offset).Limit(filter.PageSize).
		Find(&page.Items).Error; err != nil {
		return nil, errors.Wrap(err, "list catalog items")
	}

	page.Page = filter.Page
	page.PageSize = filter.PageSize
	s.cacheSet(ctx, key, page, CACHE_TTL_SHORT)
	return &page, nil
}

// GetItem resolves an item by numeric id or by slug. An empty kind matches any kind.
func (s *CatalogHandler) GetItem(ctx context.Context, kind domain.ItemKind, idOrSlug string) (*models.CatalogItem, error) {
	var item models.CatalogItem
	query := s.db.WithContext(ctx).Preload("Category")
	if id, err := strconv.ParseInt(idOrSlug, 10, 64); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("slug = ?", idOrSlug)
	}
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	if err := query.First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFound(domain.MsgCatalogItemNotFound)
		}
		return nil, errors.Wrap(err, "get catalog item")
	}
	return &item, nil
}

func (s *CatalogHandler) CreateItem(ctx context.Context, actor domain.Actor, in ItemInput) (*models.CatalogItem, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if !in.Kind.IsValid() {
		return nil, domain.NewValidationf("unknown item kind %q", in.Kind)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, domain.NewValidation("name is required").WithField("name", []string{"This field is required."})
	}
	if in.Status == "" {
		in.Status = domain.ItemActive
	}
	if err := validatePricing(in.Price, in.Discount, in.Stock, in.Status); err != nil {
		return nil, err
	}
	if _, err := s.GetCategory(ctx, strconv.FormatInt(in.CategoryID, 10)); err != nil {
		return nil, err
	}

	slug, err := resolveSlug(in.Slug, in.Name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSlugFree(ctx, &models.CatalogItem{}, slug, 0); err != nil {
		return nil, err
	}

	item := models.CatalogItem{
		Kind:        in.Kind,
		Name:        strings.TrimSpace(in.Name),
		Slug:        slug,
		Price:       in.Price,
		Discount:    in.Discount,
		Stock:       in.Stock,
		Status:      in.Status,
		CategoryID:  in.CategoryID,
		Year:        in.Year,
		Description: in.Description,
		Supplier:    in.Supplier,
		ImageURL:    in.ImageURL,
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, errors.Wrap(err, "create catalog item")
	}

	s.InvalidateCatalogCaches(ctx)
	s.logger.Info("catalog item created",
		zap.Int64("item_id", item.ID),
		zap.String("kind", string(item.Kind)),
		zap.String("slug", item.Slug))
	return s.GetItem(ctx, "", strconv.FormatInt(item.ID, 10))
}

func (s *CatalogHandler) UpdateItem(ctx context.Context, actor domain.Actor, id int64, patch ItemPatch) (*models.CatalogItem, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	item, err := s.GetItem(ctx, "", strconv.FormatInt(id, 10))
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		item.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Price != nil {
		item.Price = *patch.Price
	}
	if patch.Discount != nil {
		item.Discount = *patch.Discount
	}
	if patch.Stock != nil {
		item.Stock = *patch.Stock
	}
	if patch.Status != nil {
		item.Status = *patch.Status
	}
	if patch.CategoryID != nil && *patch.CategoryID != item.CategoryID {
		if _, err := s.GetCategory(ctx, strconv.FormatInt(*patch.CategoryID, 10)); err != nil {
			return nil, err
		}
		item.CategoryID = *patch.CategoryID
		item.Category = nil
	}
	if patch.Year != nil {
		item.Year = *patch.Year
	}
	if patch.Description != nil {
		item.Description = patch.Description
	}
	if patch.Supplier != nil {
		item.Supplier = patch.Supplier
	}
	if patch.ImageURL != nil {
		item.ImageURL = patch.ImageURL
	}
	if err := validatePricing(item.Price, item.Discount, item.Stock, item.Status); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Omit("Category").Save(item).Error; err != nil {
		return nil, errors.Wrap(err, "update catalog item")
	}

	s.InvalidateCatalogCaches(ctx)
	return s.GetItem(ctx, "", strconv.FormatInt(item.ID, 10))
}

// DeleteItem is blocked while order items still reference the catalog item.
func (s *CatalogHandler) DeleteItem(ctx context.Context, actor domain.Actor, id int64) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.CatalogItem
		if err := tx.First(&item, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFound(domain.MsgCatalogItemNotFound)
			}
			return errors.Wrap(err, "get catalog item")
		}

		var ordered int64
		if err := tx.Model(&models.OrderItem{}).Where("catalog_item_id = ?", id).Count(&ordered).Error; err != nil {
			return errors.Wrap(err, "count order items")
		}
		if ordered > 0 {
			return domain.NewConflict(domain.MsgCatalogItemReferenced).WithField("order_items", ordered)
		}

		if err := tx.Where("catalog_item_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return errors.Wrap(err, "delete cart items")
		}
		return errors.Wrap(tx.Delete(&item).Error, "delete catalog item")
	})
	if err != nil {
		return err
	}

	s.InvalidateCatalogCaches(ctx)
	return nil
}

func (s *CatalogHandler) ensureSlugFree(ctx context.Context, model interface{}, slug string, exceptID int64) error {
	var count int64
	query := s.db.WithContext(ctx).Model(model).Where("slug = ?", slug)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	if err := query.Count(&count).Error; err != nil {
		return errors.Wrap(err, "check slug")
	}
	if count > 0 {
		return domain.NewConflict(domain.MsgSlugTaken).WithField("slug", []string{"This slug is already in use."})
	}
	return nil
}

func validatePricing(price, discount decimal.Decimal, stock int32, status domain.ItemStatus) error {
	if price.IsNegative() {
		return domain.NewValidation("Price cannot be negative").WithField("price", []string{"Ensure this value is greater than or equal to 0."})
	}
	if discount.IsNegative() || discount.GreaterThan(decimal.NewFromInt(100)) {
		return domain.NewValidation("Discount must be between 0 and 100").WithField("discount", []string{"Ensure this value is between 0 and 100."})
	}
	if stock < 0 {
		return domain.NewValidation("Stock cannot be negative").WithField("stock", []string{"Ensure this value is greater than or equal to 0."})
	}
	if !status.IsValid() {
		return domain.NewValidationf("\"%s\" is not a valid choice.", status)
	}
	return nil
}

func resolveSlug(slug, name string) (string, error) {
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return "", domain.NewValidation(domain.MsgSlugRequired).
			WithField("slug", []string{"Enter a slug; none could be derived from the name."})
	}
	return slug, nil
}

// Slugify lower-cases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
