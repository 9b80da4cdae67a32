package ports

import (
	"context"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/shopspring/decimal"
)

// TxManager runs units of work atomically. Every collaborator used inside fn
// is bound to the transaction passed to it.
type TxManager interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the stores participating in a transaction.
type Tx interface {
	Catalog() CatalogStore
	Orders() OrderRepository
	Payments() PaymentRepository
	Guests() GuestRepository
	Users() UserRepository
	Carts() CartStore
}

// CatalogStore holds products and their stock counters.
type CatalogStore interface {
	Create(ctx context.Context, product domain.Product) error
	FindProduct(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, error)
	// DecrementStock subtracts qty only if at least qty units remain,
	// otherwise it fails with *domain.InsufficientStockError.
	DecrementStock(ctx context.Context, id string, qty int) error
	RestoreStock(ctx context.Context, id string, qty int) error
	SetStock(ctx context.Context, id string, count int) error
	// Update rewrites product details. Stock is left to the stock operations.
	Update(ctx context.Context, product domain.Product) error
}

// ProductSort orders catalog listings. The zero value sorts by name.
type ProductSort string

const (
	SortByName      ProductSort = "name"
	SortNewest      ProductSort = "newest"
	SortPriceAsc    ProductSort = "price_asc"
	SortPriceDesc   ProductSort = "price_desc"
	SortStockLowest ProductSort = "stock"
)

// ParseProductSort maps a query parameter onto a sort order.
func ParseProductSort(s string) (ProductSort, bool) {
	switch sort := ProductSort(strings.ToLower(strings.TrimSpace(s))); sort {
	case "":
		return SortByName, true
	case SortByName, SortNewest, SortPriceAsc, SortPriceDesc, SortStockLowest:
		return sort, true
	}
	return "", false
}

// ProductFilter narrows catalog listings. Search matches name or
// description, case-insensitively.
type ProductFilter struct {
	Category      string
	Search        string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	FeaturedOnly  bool
	LowStockBelow int
	Sort          ProductSort
	Page          int
	PageSize      int
}

// OrderRepository exposes persistence operations required by the application layer.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	GetByUUID(ctx context.Context, uuid string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	Update(ctx context.Context, order domain.Order) error
	ReassignGuestOrders(ctx context.Context, guestID, userID string) (int, error)
}

// ListFilter narrows list queries by owner, status and pagination.
type ListFilter struct {
	Status    *domain.OrderStatus
	OrderType *domain.OrderType
	UserID    string
	GuestID   string
	Page      int
	PageSize  int
}

// PaymentRepository stores gateway payments.
type PaymentRepository interface {
	Create(ctx context.Context, payment domain.Payment) error
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error)
	Update(ctx context.Context, payment domain.Payment) error
	ReassignGuestPayments(ctx context.Context, guestID, userID string) (int, error)
}

// GuestRepository stores guest identities.
type GuestRepository interface {
	Create(ctx context.Context, guest domain.Guest) error
	FindActiveByEmail(ctx context.Context, email string) (*domain.Guest, error)
	GetByGuestID(ctx context.Context, guestID string) (*domain.Guest, error)
	Update(ctx context.Context, guest domain.Guest) error
	PurgeUnconverted(ctx context.Context, createdBefore time.Time) (int, error)
}

// CartStore keeps one cart per registered user.
type CartStore interface {
	// Get returns the user's cart, or an empty one when nothing was saved.
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

// UserRepository stores registered accounts.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByAPIKeyLookup(ctx context.Context, lookup string) (*domain.User, error)
}

const defaultPageSize = 20

// Normalize applies default pagination and returns the row offset.
func (f *ListFilter) Normalize() int {
	f.Page, f.PageSize = normalizePage(f.Page, f.PageSize)
	return (f.Page - 1) * f.PageSize
}

// Normalize applies default pagination and returns the row offset.
func (f *ProductFilter) Normalize() int {
	f.Page, f.PageSize = normalizePage(f.Page, f.PageSize)
	return (f.Page - 1) * f.PageSize
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = defaultPageSize
	}
	return page, size
}
