package handler

import (
	"time"

	"github.com/d60-Lab/storefront/internal/model"
	"github.com/d60-Lab/storefront/internal/service"
)

// 金额统一以两位小数字符串输出

type categoryResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type productResponse struct {
	ID            uint              `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Price         string            `json:"price"`
	StockQuantity int               `json:"stock_quantity"`
	CategoryID    uint              `json:"category_id"`
	Category      *categoryResponse `json:"category,omitempty"`
	ImageFilename string            `json:"image_filename,omitempty"`
	IsActive      bool              `json:"is_active"`
}

type productPageResponse struct {
	Items    []productResponse `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

type cartItemResponse struct {
	ID        uint            `json:"id"`
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Subtotal  string          `json:"subtotal"`
	Product   productResponse `json:"product"`
	AddedAt   time.Time       `json:"added_at"`
}

type cartResponse struct {
	Items []cartItemResponse `json:"items"`
	Total string             `json:"total"`
	Count int                `json:"count"`
}

type orderItemResponse struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
	Subtotal    string `json:"subtotal"`
}

type orderResponse struct {
	ID              uint                `json:"id"`
	UserID          uint                `json:"user_id"`
	Status          model.OrderStatus   `json:"status"`
	TotalAmount     string              `json:"total_amount"`
	PaymentIntentID string              `json:"payment_intent_id,omitempty"`
	IdempotencyKey  string              `json:"idempotency_key"`
	ShippingAddress string              `json:"shipping_address"`
	Items           []orderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type paymentIntentResponse struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	IdempotencyKey  string `json:"idempotency_key"`
}

type profileResponse struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	IsAdmin   bool   `json:"is_admin"`
}

func toCategory(c *model.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Description: c.Description}
}

func toProduct(p *model.Product) productResponse {
	out := productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price.StringFixed(2),
		StockQuantity: p.StockQuantity,
		CategoryID:    p.CategoryID,
		ImageFilename: p.ImageFilename,
		IsActive:      p.IsActive,
	}
	if p.Category != nil {
		c := toCategory(p.Category)
		out.Category = &c
	}
	return out
}

func toProductPage(page *service.ProductPage) productPageResponse {
	out := productPageResponse{Items: make([]productResponse, 0, len(page.Items)), Total: page.Total, Page: page.Page, PageSize: page.PageSize}
	for _, p := range page.Items {
		out.Items = append(out.Items, toProduct(p))
	}
	return out
}

func toCartItem(it *model.CartItem) cartItemResponse {
	return cartItemResponse{
		ID:        it.ID,
		ProductID: it.ProductID,
		Quantity:  it.Quantity,
		Subtotal:  it.Subtotal().StringFixed(2),
		Product:   toProduct(&it.Product),
		AddedAt:   it.CreatedAt,
	}
}

func toCart(v *service.CartView) cartResponse {
	out := cartResponse{Items: make([]cartItemResponse, 0, len(v.Items)), Total: v.Total.StringFixed(2), Count: v.Count}
	for _, it := range v.Items {
		out.Items = append(out.Items, toCartItem(it))
	}
	return out
}

func toOrder(o *model.Order) orderResponse {
	out := orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount.StringFixed(2),
		IdempotencyKey:  o.IdempotencyKey,
		ShippingAddress: o.ShippingAddress,
		Items:           make([]orderItemResponse, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.PaymentIntentID != nil {
		out.PaymentIntentID = *o.PaymentIntentID
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, orderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price.StringFixed(2),
			Subtotal:    it.Subtotal().StringFixed(2),
		})
	}
	return out
}

func toOrders(orders []*model.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrder(o))
	}
	return out
}

func toProfile(u *model.User) profileResponse {
	return profileResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Address:   u.Address,
		Phone:     u.Phone,
		IsAdmin:   u.IsAdmin,
	}
}
