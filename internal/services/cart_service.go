package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/sooq/internal/apperr"
	"github.com/example/sooq/internal/models"
)

// Owner identifies who a cart belongs to: a registered user or an
// anonymous session, never both.
type Owner struct {
	UserID    *uuid.UUID
	SessionID *string
}

// UserOwner builds an Owner for a registered user.
func UserOwner(id uuid.UUID) Owner {
	return Owner{UserID: &id}
}

// SessionOwner builds an Owner for an anonymous session.
func SessionOwner(sessionID string) Owner {
	return Owner{SessionID: &sessionID}
}

// Variant is the color/size combination distinguishing otherwise
// identical product lines.
type Variant struct {
	Colors []string
	Sizes  []string
}

func (v Variant) empty() bool {
	return len(v.Colors) == 0 && len(v.Sizes) == 0
}

// CartService owns the mutable cart lifecycle: line mutations, total
// recomputation and guest-to-user merging.
type CartService struct {
	db       *gorm.DB
	guestTTL time.Duration
}

// NewCartService constructs a CartService.
func NewCartService(db *gorm.DB, guestTTL time.Duration) *CartService {
	return &CartService{db: db, guestTTL: guestTTL}
}

func (s *CartService) scopeOwner(db *gorm.DB, owner Owner) *gorm.DB {
	if owner.UserID != nil {
		return db.Where("user_id = ? AND status = ?", *owner.UserID, models.CartStatusActive)
	}
	return db.Where("session_id = ? AND status = ?", *owner.SessionID, models.CartStatusActive)
}

func (s *CartService) findActiveCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	var cart models.Cart
	err := s.scopeOwner(s.db.WithContext(ctx), owner).
		Preload("Items").
		First(&cart).Error
	if err != nil {
		return nil, err
	}

	stale, err := s.retireIfExpired(ctx, &cart)
	if err != nil {
		return nil, err
	}
	if stale {
		return nil, gorm.ErrRecordNotFound
	}
	return &cart, nil
}

// retireIfExpired marks a guest cart past its expiry as abandoned so
// it stops matching active-cart lookups.
func (s *CartService) retireIfExpired(ctx context.Context, cart *models.Cart) (bool, error) {
	if cart.ExpiresAt == nil || time.Now().Before(*cart.ExpiresAt) {
		return false, nil
	}
	err := s.db.WithContext(ctx).Model(&models.Cart{}).
		Where("id = ?", cart.ID).
		Update("status", models.CartStatusAbandoned).Error
	return true, err
}

func (s *CartService) getOrCreateCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	cart, err := s.findActiveCart(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := models.Cart{
		UserID:    owner.UserID,
		SessionID: owner.SessionID,
		Status:    models.CartStatusActive,
	}
	if owner.SessionID != nil {
		expires := time.Now().Add(s.guestTTL)
		fresh.ExpiresAt = &expires
	}
	if err := s.db.WithContext(ctx).Create(&fresh).Error; err != nil {
		return nil, err
	}
	return &fresh, nil
}

// AddItem adds quantity of a product variant to the owner's cart,
// merging into an existing line with the same variant identity. New
// lines snapshot the product's current price.
func (s *CartService) AddItem(ctx context.Context, owner Owner, productID uuid.UUID, quantity int, variant Variant) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, apperr.InvalidInput("quantity must be a positive number")
	}

	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product not found")
		}
		return nil, err
	}

	if product.HasColors() && len(variant.Colors) == 0 {
		return nil, apperr.InvalidInput("product %s requires a color", product.Name)
	}
	if product.HasSizes() && len(variant.Sizes) == 0 {
		return nil, apperr.InvalidInput("product %s requires a size", product.Name)
	}

	cart, err := s.getOrCreateCart(ctx, owner)
	if err != nil {
		return nil, err
	}

	key := models.VariantKey(productID, variant.Colors, variant.Sizes)
	var matched *models.CartItem
	for i := range cart.Items {
		if cart.Items[i].Key() == key {
			matched = &cart.Items[i]
			break
		}
	}

	if matched != nil {
		matched.Quantity += quantity
		if err := s.db.WithContext(ctx).Model(&models.CartItem{}).
			Where("id = ?", matched.ID).
			Update("quantity", matched.Quantity).Error; err != nil {
			return nil, err
		}
	} else {
		item := models.CartItem{
			CartID:    cart.ID,
			ProductID: productID,
			Quantity:  quantity,
			Price:     product.Price,
			Colors:    variant.Colors,
			Sizes:     variant.Sizes,
		}
		if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}

	return cart, s.saveTotal(ctx, cart)
}

// RemoveItem removes the product's matching line(s) from the cart.
// An absent line is a no-op; an absent cart is NotFound. An empty
// variant removes every line of the product.
func (s *CartService) RemoveItem(ctx context.Context, owner Owner, productID uuid.UUID, variant Variant) (*models.Cart, error) {
	cart, err := s.findActiveCart(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("cart not found")
		}
		return nil, err
	}

	key := models.VariantKey(productID, variant.Colors, variant.Sizes)
	kept := cart.Items[:0]
	var removed []uuid.UUID
	for _, item := range cart.Items {
		match := item.ProductID == productID && (variant.empty() || item.Key() == key)
		if match {
			removed = append(removed, item.ID)
		} else {
			kept = append(kept, item)
		}
	}
	cart.Items = kept

	if len(removed) > 0 {
		if err := s.db.WithContext(ctx).
			Delete(&models.CartItem{}, "id IN ?", removed).Error; err != nil {
			return nil, err
		}
	}

	return cart, s.saveTotal(ctx, cart)
}

// UpdateQuantity sets a line's quantity, flooring at 1. Removing a
// line goes through RemoveItem, not a zero quantity here.
func (s *CartService) UpdateQuantity(ctx context.Context, owner Owner, productID uuid.UUID, variant Variant, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, apperr.InvalidInput("quantity must be at least 1")
	}

	cart, err := s.findActiveCart(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("cart not found")
		}
		return nil, err
	}

	key := models.VariantKey(productID, variant.Colors, variant.Sizes)
	var matched *models.CartItem
	for i := range cart.Items {
		item := &cart.Items[i]
		if item.ProductID == productID && (variant.empty() || item.Key() == key) {
			matched = item
			break
		}
	}
	if matched == nil {
		return nil, apperr.NotFound("product not in cart")
	}

	matched.Quantity = quantity
	if err := s.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ?", matched.ID).
		Update("quantity", quantity).Error; err != nil {
		return nil, err
	}

	return cart, s.saveTotal(ctx, cart)
}

// Snapshot returns the owner's cart items and total. A missing cart
// yields an empty snapshot, not an error.
func (s *CartService) Snapshot(ctx context.Context, owner Owner) (*models.Cart, error) {
	var cart models.Cart
	err := s.scopeOwner(s.db.WithContext(ctx), owner).
		Preload("Items").
		Preload("Items.Product").
		First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.Cart{Status: models.CartStatusActive, Items: []models.CartItem{}}, nil
		}
		return nil, err
	}

	stale, err := s.retireIfExpired(ctx, &cart)
	if err != nil {
		return nil, err
	}
	if stale {
		return &models.Cart{Status: models.CartStatusActive, Items: []models.CartItem{}}, nil
	}
	return &cart, nil
}

// MergeGuestCart folds an anonymous session's cart into the user's
// cart on login, summing quantities for identical variant lines. The
// guest cart is deleted afterwards. A missing guest cart is a no-op.
func (s *CartService) MergeGuestCart(ctx context.Context, sessionID string, userID uuid.UUID) (*models.Cart, error) {
	guest, err := s.findActiveCart(ctx, SessionOwner(sessionID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.Snapshot(ctx, UserOwner(userID))
		}
		return nil, err
	}

	userCart, err := s.getOrCreateCart(ctx, UserOwner(userID))
	if err != nil {
		return nil, err
	}

	existing := make(map[string]*models.CartItem, len(userCart.Items))
	for i := range userCart.Items {
		existing[userCart.Items[i].Key()] = &userCart.Items[i]
	}

	for _, line := range guest.Items {
		if target, ok := existing[line.Key()]; ok {
			target.Quantity += line.Quantity
			if err := s.db.WithContext(ctx).Model(&models.CartItem{}).
				Where("id = ?", target.ID).
				Update("quantity", target.Quantity).Error; err != nil {
				return nil, err
			}
			continue
		}

		item := models.CartItem{
			CartID:    userCart.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Price,
			Colors:    line.Colors,
			Sizes:     line.Sizes,
		}
		if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
			return nil, err
		}
		userCart.Items = append(userCart.Items, item)
	}

	if err := s.deleteCart(ctx, guest.ID); err != nil {
		return nil, err
	}

	return userCart, s.saveTotal(ctx, userCart)
}

// MoveWishlistToCart adds every wishlist product as a single-quantity
// line (or bumps an existing line) and clears the wishlist.
func (s *CartService) MoveWishlistToCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Wishlist").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}

	cart, err := s.getOrCreateCart(ctx, UserOwner(userID))
	if err != nil {
		return nil, err
	}

	for _, product := range user.Wishlist {
		if cart, err = s.AddItem(ctx, UserOwner(userID), product.ID, 1, Variant{
			Colors: product.Colors,
			Sizes:  product.Sizes,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Model(&user).Association("Wishlist").Clear(); err != nil {
		return nil, err
	}

	return cart, nil
}

// MoveWishlistItemToCart moves one wishlist product into the cart.
func (s *CartService) MoveWishlistItemToCart(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Wishlist", "id = ?", productID).
		First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}
	if len(user.Wishlist) == 0 {
		return nil, apperr.NotFound("product not found in wishlist")
	}

	product := user.Wishlist[0]
	cart, err := s.AddItem(ctx, UserOwner(userID), product.ID, 1, Variant{
		Colors: product.Colors,
		Sizes:  product.Sizes,
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&user).Association("Wishlist").Delete(&product); err != nil {
		return nil, err
	}

	return cart, nil
}

func (s *CartService) saveTotal(ctx context.Context, cart *models.Cart) error {
	cart.RecomputeTotal()
	return s.db.WithContext(ctx).Model(&models.Cart{}).
		Where("id = ?", cart.ID).
		Update("total_price", cart.TotalPrice).Error
}

func (s *CartService) deleteCart(ctx context.Context, cartID uuid.UUID) error {
	if err := s.db.WithContext(ctx).Delete(&models.CartItem{}, "cart_id = ?", cartID).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&models.Cart{}, "id = ?", cartID).Error
}
