package handler

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
	"storefront-system/internal/events"
)

// -- Handler --
type CartHandler struct {
	db        *gorm.DB
	publisher events.Publisher
	logger    *zap.Logger
}

func NewCartHandler(db *gorm.DB, publisher events.Publisher, logger *zap.Logger) *CartHandler {
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}
	return &CartHandler{
		db:        db,
		publisher: publisher,
		logger:    logger,
	}
}

func preloadCart(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("cart_items.id ASC") }).
		Preload("Items.CatalogItem.Category")
}

// visibleCarts scopes reads: admins see every cart, users only their own.
func visibleCarts(db *gorm.DB, actor domain.Actor) *gorm.DB {
	if actor.IsAdmin() {
		return db
	}
	return db.Where("carts.user_id = ?", actor.UserID)
}

// mutableCart loads a cart owned by the actor that can still change.
func mutableCart(tx *gorm.DB, actor domain.Actor, cartID int64) (*models.Cart, error) {
	var cart models.Cart
	if err := tx.Where("id = ? AND user_id = ?", cartID, actor.UserID).First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFound(domain.MsgCartNotFound)
		}
		return nil, errors.Wrap(err, "get cart")
	}
	if !cart.IsActive() {
		return nil, domain.NewConflict(domain.MsgCartCheckedOut)
	}
	return &cart, nil
}

func (s *CartHandler) reload(ctx context.Context, cartID int64) (*models.Cart, error) {
	var cart models.Cart
	if err := preloadCart(s.db.WithContext(ctx)).First(&cart, cartID).Error; err != nil {
		return nil, errors.Wrap(err, "reload cart")
	}
	return &cart, nil
}

// -- Cart --

func (s *CartHandler) GetActiveCart(ctx context.Context, actor domain.Actor) (*models.Cart, error) {
	var cart models.Cart
	err := preloadCart(s.db.WithContext(ctx)).
		Where("user_id = ? AND status = ?", actor.UserID, domain.CartActive).
		First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFound(domain.MsgNoActiveCart)
		}
		return nil, errors.Wrap(err, "get active cart")
	}
	return &cart, nil
}

// GetOrCreateActiveCart returns the actor's active cart, creating an empty one when needed.
func (s *CartHandler) GetOrCreateActiveCart(ctx context.Context, actor domain.Actor) (*models.Cart, error) {
	cart, err := s.GetActiveCart(ctx, actor)
	if err == nil {
		return cart, nil
	}
	if !domain.IsKind(err, domain.KindNotFound) {
		return nil, err
	}

	created := models.Cart{UserID: actor.UserID, Status: domain.CartActive}
	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		// a concurrent request may have created it first
		if cart, getErr := s.GetActiveCart(ctx, actor); getErr == nil {
			return cart, nil
		}
		return nil, errors.Wrap(err, "create cart")
	}

	s.logger.Info("cart created", zap.Int64("cart_id", created.ID), zap.Int64("user_id", actor.UserID))
	return s.reload(ctx, created.ID)
}

// CreateCart fails with Conflict carrying cart_id when the actor already has an active cart.
func (s *CartHandler) CreateCart(ctx context.Context, actor domain.Actor) (*models.Cart, error) {
	existing, err := s.GetActiveCart(ctx, actor)
	if err == nil {
		return nil, domain.NewConflict(domain.MsgActiveCartExists).WithField("cart_id", existing.ID)
	}
	if !domain.IsKind(err, domain.KindNotFound) {
		return nil, err
	}

	cart := models.Cart{UserID: actor.UserID, Status: domain.CartActive}
	if err := s.db.WithContext(ctx).Create(&cart).Error; err != nil {
		if existing, getErr := s.GetActiveCart(ctx, actor); getErr == nil {
			return nil, domain.NewConflict(domain.MsgActiveCartExists).WithField("cart_id", existing.ID)
		}
		return nil, errors.Wrap(err, "create cart")
	}
	return s.reload(ctx, cart.ID)
}

func (s *CartHandler) GetCart(ctx context.Context, actor domain.Actor, cartID int64) (*models.Cart, error) {
	var cart models.Cart
	err := visibleCarts(preloadCart(s.db.WithContext(ctx)), actor).
		Where("carts.id = ?", cartID).
		First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFound(domain.MsgCartNotFound)
		}
		return nil, errors.Wrap(err, "get cart")
	}
	return &cart, nil
}

func (s *CartHandler) ListCarts(ctx context.Context, actor domain.Actor) ([]models.Cart, error) {
	var carts []models.Cart
	err := visibleCarts(preloadCart(s.db.WithContext(ctx)), actor).
		Order("carts.created_at DESC, carts.id DESC").
		Find(&carts).Error
	if err != nil {
		return nil, errors.Wrap(err, "list carts")
	}
	return carts, nil
}

func (s *CartHandler) DeleteCart(ctx context.Context, actor domain.Actor, cartID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		if err := tx.Where("id = ? AND user_id = ?", cartID, actor.UserID).First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFound(domain.MsgCartNotFound)
			}
			return errors.Wrap(err, "get cart")
		}
		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return errors.Wrap(err, "delete cart items")
		}
		return errors.Wrap(tx.Delete(&cart).Error, "delete cart")
	})
}

// -- Cart Items --

// AddItem merges quantity into an existing line for the same catalog item. The
// returned bool reports whether a new line was created.
func (s *CartHandler) AddItem(ctx context.Context, actor domain.Actor, cartID, catalogItemID int64, quantity int32) (*models.CartItem, bool, error) {
	if quantity <= 0 {
		return nil, false, domain.NewValidation(domain.MsgQuantityPositive).
			WithField("quantity", []string{domain.MsgQuantityPositive})
	}

	var line models.CartItem
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := mutableCart(tx, actor, cartID); err != nil {
			return err
		}

		var item models.CatalogItem
		if err := tx.First(&item, catalogItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFound(domain.MsgCatalogItemNotFound)
			}
			return errors.Wrap(err, "get catalog item")
		}

		err := tx.Where("cart_id = ? AND catalog_item_id = ?", cartID, catalogItemID).First(&line).Error
		switch {
		case err == nil:
			if line.Quantity > math.MaxInt32-quantity {
				return domain.NewValidation(domain.MsgQuantityTooLarge).
					WithField("quantity", []string{domain.MsgQuantityTooLarge})
			}
			line.Quantity += quantity
			return errors.Wrap(tx.Omit(clause.Associations).Save(&line).Error, "update cart item")
		case errors.Is(err, gorm.ErrRecordNotFound):
			line = models.CartItem{CartID: cartID, CatalogItemID: catalogItemID, Quantity: quantity}
			created = true
			return errors.Wrap(tx.Create(&line).Error, "create cart item")
		default:
			return errors.Wrap(err, "get cart item")
		}
	})
	if err != nil {
		return nil, false, err
	}

	if err := s.db.WithContext(ctx).Preload("CatalogItem.Category").First(&line, line.ID).Error; err != nil {
		return nil, false, errors.Wrap(err, "reload cart item")
	}
	return &line, created, nil
}

// SetItemQuantity stores a new quantity; zero or less removes the line and returns nil.
func (s *CartHandler) SetItemQuantity(ctx context.Context, actor domain.Actor, cartID, cartItemID int64, quantity int32) (*models.CartItem, error) {
	var line models.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := mutableCart(tx, actor, cartID); err != nil {
			return err
		}
		if err := tx.Where("id = ? AND cart_id = ?", cartItemID, cartID).First(&line).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFound(domain.MsgCartItemNotFound)
			}
			return errors.Wrap(err, "get cart item")
		}

		if quantity <= 0 {
			return errors.Wrap(tx.Delete(&line).Error, "delete cart item")
		}
		line.Quantity = quantity
		return errors.Wrap(tx.Omit(clause.Associations).Save(&line).Error, "update cart item")
	})
	if err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, nil
	}

	if err := s.db.WithContext(ctx).Preload("CatalogItem.Category").First(&line, line.ID).Error; err != nil {
		return nil, errors.Wrap(err, "reload cart item")
	}
	return &line, nil
}

func (s *CartHandler) RemoveItem(ctx context.Context, actor domain.Actor, cartID, cartItemID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := mutableCart(tx, actor, cartID); err != nil {
			return err
		}
		res := tx.Where("id = ? AND cart_id = ?", cartItemID, cartID).Delete(&models.CartItem{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete cart item")
		}
		if res.RowsAffected == 0 {
			return domain.NewNotFound(domain.MsgCartItemNotFound)
		}
		return nil
	})
}

func (s *CartHandler) ClearCart(ctx context.Context, actor domain.Actor, cartID int64) (*models.Cart, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := mutableCart(tx, actor, cartID); err != nil {
			return err
		}
		return errors.Wrap(tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error, "clear cart")
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, cartID)
}
