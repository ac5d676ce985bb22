package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
	catalogsvc "storefront-system/internal/services/catalog/handler"
)

type CatalogService interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, idOrSlug string) (*models.Category, error)
	CreateCategory(ctx context.Context, actor domain.Actor, in catalogsvc.CategoryInput) (*models.Category, error)
	UpdateCategory(ctx context.Context, actor domain.Actor, id int64, in catalogsvc.CategoryInput) (*models.Category, error)
	DeleteCategory(ctx context.Context, actor domain.Actor, id int64) error
	ListItems(ctx context.Context, filter catalogsvc.ItemFilter) (*catalogsvc.ItemPage, error)
	GetItem(ctx context.Context, kind domain.ItemKind, idOrSlug string) (*models.CatalogItem, error)
	CreateItem(ctx context.Context, actor domain.Actor, in catalogsvc.ItemInput) (*models.CatalogItem, error)
	UpdateItem(ctx context.Context, actor domain.Actor, id int64, patch catalogsvc.ItemPatch) (*models.CatalogItem, error)
	DeleteItem(ctx context.Context, actor domain.Actor, id int64) error
}

type CatalogHTTPHandler struct {
	catalog CatalogService
}

func NewCatalogHTTPHandler(catalog CatalogService) *CatalogHTTPHandler {
	return &CatalogHTTPHandler{catalog: catalog}
}

type CategoryRequest struct {
	Name     string  `json:"name" binding:"required,max=100"`
	Slug     string  `json:"slug" binding:"omitempty,slug,max=120"`
	ImageURL *string `json:"image" binding:"omitempty,url"`
}

type UpdateCategoryRequest struct {
	Name     string  `json:"name" binding:"omitempty,max=100"`
	Slug     string  `json:"slug" binding:"omitempty,slug,max=120"`
	ImageURL *string `json:"image" binding:"omitempty,url"`
}

type ListItemsQuery struct {
	Page          int    `form:"page,default=1" binding:"gte=1"`
	PageSize      int    `form:"page_size,default=10" binding:"gte=1,lte=100"`
	Category      string `form:"category"`
	CategoryID    *int64 `form:"category_id"`
	Status        string `form:"status" binding:"omitempty,oneof=active inactive out_of_stock"`
	AvailableOnly bool   `form:"available"`
	Search        string `form:"search"`
}

type CreateItemRequest struct {
	Kind        string           `json:"kind" binding:"required,oneof=book motopart"`
	Name        string           `json:"name" binding:"required,max=255"`
	Slug        string           `json:"slug" binding:"omitempty,slug,max=255"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	Discount    decimal.Decimal  `json:"discount"`
	Stock       int32            `json:"stock" binding:"gte=0"`
	Status      string           `json:"status" binding:"omitempty,oneof=active inactive out_of_stock"`
	CategoryID  int64            `json:"category_id" binding:"required,gt=0"`
	Year        int32            `json:"year" binding:"gte=0"`
	Description *string          `json:"description"`
	Supplier    *string          `json:"supplier"`
	ImageURL    *string          `json:"image" binding:"omitempty,url"`
}

type UpdateItemRequest struct {
	Name        *string          `json:"name" binding:"omitempty,max=255"`
	Price       *decimal.Decimal `json:"price"`
	Discount    *decimal.Decimal `json:"discount"`
	Stock       *int32           `json:"stock" binding:"omitempty,gte=0"`
	Status      *string          `json:"status" binding:"omitempty,oneof=active inactive out_of_stock"`
	CategoryID  *int64           `json:"category_id" binding:"omitempty,gt=0"`
	Year        *int32           `json:"year" binding:"omitempty,gte=0"`
	Description *string          `json:"description"`
	Supplier    *string          `json:"supplier"`
	ImageURL    *string          `json:"image" binding:"omitempty,url"`
}

// --- Categories ---

func (h *CatalogHTTPHandler) ListCategories(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	out := make([]CategoryView, 0, len(categories))
	for _, cat := range categories {
		out = append(out, categoryView(cat))
	}
	c.JSON(http.StatusOK, successResponse("Categories retrieved successfully", out))
}

func (h *CatalogHTTPHandler) GetCategory(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	category, err := h.catalog.GetCategory(ctx, c.Param("slug"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Category retrieved successfully", categoryView(*category)))
}

func (h *CatalogHTTPHandler) CreateCategory(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	category, err := h.catalog.CreateCategory(ctx, actor, catalogsvc.CategoryInput{
		Name:     req.Name,
		Slug:     req.Slug,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse("Category created successfully", categoryView(*category)))
}

func (h *CatalogHTTPHandler) UpdateCategory(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	category, err := h.catalog.UpdateCategory(ctx, actor, id, catalogsvc.CategoryInput{
		Name:     req.Name,
		Slug:     req.Slug,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Category updated successfully", categoryView(*category)))
}

func (h *CatalogHTTPHandler) DeleteCategory(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.catalog.DeleteCategory(ctx, actor, id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Category deleted successfully", nil))
}

// --- Items ---

// ListItems serves the public listing for one item kind.
func (h *CatalogHTTPHandler) ListItems(kind domain.ItemKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q ListItemsQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			handleBindError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		page, err := h.catalog.ListItems(ctx, catalogsvc.ItemFilter{
			Kind:          kind,
			CategoryID:    q.CategoryID,
			CategorySlug:  q.Category,
			Status:        domain.ItemStatus(q.Status),
			AvailableOnly: q.AvailableOnly,
			Search:        q.Search,
			Page:          q.Page,
			PageSize:      q.PageSize,
		})
		if err != nil {
			handleServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, successWithMetaResponse("Items retrieved successfully",
			itemViews(page.Items),
			newPageMeta(page.Page, page.PageSize, page.Total)))
	}
}

func (h *CatalogHTTPHandler) GetItem(kind domain.ItemKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c)
		defer cancel()

		item, err := h.catalog.GetItem(ctx, kind, c.Param("slug"))
		if err != nil {
			handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, successResponse("Item retrieved successfully", itemView(*item)))
	}
}

func (h *CatalogHTTPHandler) CreateItem(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	item, err := h.catalog.CreateItem(ctx, actor, catalogsvc.ItemInput{
		Kind:        domain.ItemKind(req.Kind),
		Name:        req.Name,
		Slug:        req.Slug,
		Price:       *req.Price,
		Discount:    req.Discount,
		Stock:       req.Stock,
		Status:      domain.ItemStatus(req.Status),
		CategoryID:  req.CategoryID,
		Year:        req.Year,
		Description: req.Description,
		Supplier:    req.Supplier,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse("Item created successfully", itemView(*item)))
}

func (h *CatalogHTTPHandler) UpdateItem(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	patch := catalogsvc.ItemPatch{
		Name:        req.Name,
		Price:       req.Price,
		Discount:    req.Discount,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
		Year:        req.Year,
		Description: req.Description,
		Supplier:    req.Supplier,
		ImageURL:    req.ImageURL,
	}
	if req.Status != nil {
		status := domain.ItemStatus(*req.Status)
		patch.Status = &status
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	item, err := h.catalog.UpdateItem(ctx, actor, id, patch)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Item updated successfully", itemView(*item)))
}

func (h *CatalogHTTPHandler) DeleteItem(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.catalog.DeleteItem(ctx, actor, id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Item deleted successfully", nil))
}
