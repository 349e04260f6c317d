package handler

import (
	"time"

	"tableorder-service/internal/model"
	"tableorder-service/internal/service"

	"github.com/shopspring/decimal"
)

// Diner views carry order numbers only. Table, session, order and menu ids stay server side.

type dinerCustomization struct {
	GroupName     string          `json:"group_name"`
	OptionName    string          `json:"option_name"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
}

type dinerItem struct {
	ItemName            string               `json:"item_name"`
	ItemCategory        string               `json:"item_category"`
	Quantity            int                  `json:"quantity"`
	UnitPrice           decimal.Decimal      `json:"unit_price"`
	TotalPrice          decimal.Decimal      `json:"total_price"`
	Customizations      []dinerCustomization `json:"customizations"`
	SpiceLevel          *string              `json:"spice_level,omitempty"`
	SpecialInstructions string               `json:"special_instructions,omitempty"`
}

type dinerOrder struct {
	OrderNumber         string              `json:"order_number"`
	OrderType           model.OrderType     `json:"order_type"`
	OrderStatus         model.OrderStatus   `json:"order_status"`
	PaymentStatus       model.PaymentStatus `json:"payment_status"`
	PaymentMethod       *string             `json:"payment_method,omitempty"`
	SpecialInstructions string              `json:"special_instructions,omitempty"`
	Subtotal            decimal.Decimal     `json:"subtotal"`
	TaxAmount           decimal.Decimal     `json:"tax_amount"`
	DiscountAmount      decimal.Decimal     `json:"discount_amount"`
	TotalAmount         decimal.Decimal     `json:"total_amount"`
	CreatedAt           time.Time           `json:"created_at"`
	Items               []dinerItem         `json:"items"`
}

func newDinerOrder(o *model.Order) dinerOrder {
	view := dinerOrder{
		OrderNumber:         o.OrderNumber,
		OrderType:           o.OrderType,
		OrderStatus:         o.OrderStatus,
		PaymentStatus:       o.PaymentStatus,
		PaymentMethod:       o.PaymentMethod,
		SpecialInstructions: o.SpecialInstructions,
		Subtotal:            o.Subtotal,
		TaxAmount:           o.TaxAmount,
		DiscountAmount:      o.DiscountAmount,
		TotalAmount:         o.TotalAmount,
		CreatedAt:           o.CreatedAt,
		Items:               make([]dinerItem, 0, len(o.Items)),
	}
	for _, item := range o.Items {
		line := dinerItem{
			ItemName:            item.ItemName,
			ItemCategory:        item.ItemCategory,
			Quantity:            item.Quantity,
			UnitPrice:           item.UnitPrice,
			TotalPrice:          item.TotalPrice,
			Customizations:      make([]dinerCustomization, 0, len(item.Customizations)),
			SpiceLevel:          item.SpiceLevel,
			SpecialInstructions: item.SpecialInstructions,
		}
		for _, applied := range item.Customizations {
			line.Customizations = append(line.Customizations, dinerCustomization{
				GroupName:     applied.GroupName,
				OptionName:    applied.OptionName,
				PriceModifier: applied.PriceModifier,
			})
		}
		view.Items = append(view.Items, line)
	}
	return view
}

func newDinerOrders(orders []model.Order) []dinerOrder {
	views := make([]dinerOrder, 0, len(orders))
	for i := range orders {
		views = append(views, newDinerOrder(&orders[i]))
	}
	return views
}

type sessionReceipt struct {
	SessionToken string          `json:"session_token"`
	CustomerName *string         `json:"customer_name,omitempty"`
	IsActive     bool            `json:"is_active"`
	ExpiresAt    int64           `json:"expires_at"`
	Orders       []dinerOrder    `json:"orders"`
	BillTotal    decimal.Decimal `json:"bill_total"`
}

// newSessionReceipt sums every order that was not cancelled
func newSessionReceipt(r *service.SessionReceipt) sessionReceipt {
	receipt := sessionReceipt{
		SessionToken: r.Session.SessionToken,
		CustomerName: r.Session.CustomerName,
		IsActive:     r.Session.IsActive,
		ExpiresAt:    r.Session.ExpiresAt,
		Orders:       newDinerOrders(r.Orders),
		BillTotal:    decimal.Zero,
	}
	for _, o := range r.Orders {
		if o.OrderStatus != model.StatusCancelled {
			receipt.BillTotal = receipt.BillTotal.Add(o.TotalAmount)
		}
	}
	return receipt
}
