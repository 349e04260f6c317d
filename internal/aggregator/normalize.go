package aggregator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tableorder-service/internal/model"
	"tableorder-service/pkg/bridge"

	"github.com/shopspring/decimal"
)

var errMissingIdentity = errors.New("payload has no order or outlet id")

// NormalizedOrder is the vendor-neutral view of one external order
type NormalizedOrder struct {
	ExternalID    string
	OutletID      string
	Platform      string
	RawStatus     string
	Total         decimal.Decimal
	CustomerName  string
	CustomerPhone string
	Instructions  string
	Items         []NormalizedItem
}

type NormalizedItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Normalize maps a raw platform payload onto NormalizedOrder
func Normalize(ext bridge.ExternalOrder) (*NormalizedOrder, error) {
	var (
		order *NormalizedOrder
		err   error
	)
	switch ext.Platform {
	case bridge.PlatformZomato:
		order, err = normalizeZomato(ext.Payload, ext.Bucket)
	case bridge.PlatformSwiggy:
		order, err = normalizeSwiggy(ext.Payload)
	default:
		return nil, fmt.Errorf("normalize %q order: %w", ext.Platform, bridge.ErrUnsupportedPlatform)
	}
	if err != nil {
		return nil, fmt.Errorf("normalize %s order: %w", ext.Platform, err)
	}
	if order.ExternalID == "" || order.OutletID == "" {
		return nil, fmt.Errorf("normalize %s order: %w", ext.Platform, errMissingIdentity)
	}
	order.Platform = ext.Platform
	return order, nil
}

type amountDetails struct {
	AmountTotalCost *decimal.Decimal `json:"amountTotalCost"`
	TotalCost       *decimal.Decimal `json:"totalCost"`
}

type zomatoDetail struct {
	Order struct {
		ID          bridge.FlexString `json:"id"`
		ResID       bridge.FlexString `json:"resId"`
		State       string            `json:"state"`
		CartDetails struct {
			Total struct {
				AmountDetails amountDetails `json:"amountDetails"`
			} `json:"total"`
			Items struct {
				Dishes []struct {
					Name     string            `json:"name"`
					UnitCost *decimal.Decimal  `json:"unitCost"`
					Quantity bridge.FlexString `json:"quantity"`
				} `json:"dishes"`
			} `json:"items"`
		} `json:"cartDetails"`
		Creator struct {
			Name           string            `json:"name"`
			Phone          bridge.FlexString `json:"phone"`
			CountryIsdCode string            `json:"countryIsdCode"`
		} `json:"creator"`
		SupportingRiderDetails []struct {
			Name  string            `json:"name"`
			Phone bridge.FlexString `json:"phone"`
		} `json:"supportingRiderDetails"`
		OrderMessages []struct {
			Value struct {
				Message string `json:"message"`
			} `json:"value"`
		} `json:"orderMessages"`
	} `json:"order"`
}

// normalizeZomato reads an order detail response. The dashboard bucket wins over the
// order state when both are present.
func normalizeZomato(payload []byte, bucket string) (*NormalizedOrder, error) {
	var detail zomatoDetail
	if err := json.Unmarshal(payload, &detail); err != nil {
		return nil, err
	}
	z := detail.Order

	out := &NormalizedOrder{
		ExternalID:   z.ID.String(),
		OutletID:     z.ResID.String(),
		RawStatus:    bucket,
		Total:        decimal.Zero,
		CustomerName: z.Creator.Name,
	}
	if out.RawStatus == "" {
		out.RawStatus = z.State
	}
	if out.CustomerName == "" {
		out.CustomerName = "Zomato Customer"
	}
	switch cost := z.CartDetails.Total.AmountDetails; {
	case cost.AmountTotalCost != nil:
		out.Total = *cost.AmountTotalCost
	case cost.TotalCost != nil:
		out.Total = *cost.TotalCost
	}

	var notes []string
	for _, m := range z.OrderMessages {
		if m.Value.Message != "" {
			notes = append(notes, m.Value.Message)
		}
	}
	out.Instructions = strings.Join(notes, ", ")

	// the rider is reachable, the diner's number is masked
	var riderPhone string
	if len(z.SupportingRiderDetails) > 0 {
		rider := z.SupportingRiderDetails[0]
		riderPhone = rider.Phone.String()
		if rider.Name != "" {
			if out.Instructions != "" {
				out.Instructions += ". "
			}
			out.Instructions += "Rider: " + rider.Name
		}
		if riderPhone != "" {
			out.Instructions += " (" + riderPhone + ")"
		}
	}
	switch {
	case riderPhone != "":
		out.CustomerPhone = riderPhone
	case z.Creator.Phone != "":
		out.CustomerPhone = z.Creator.CountryIsdCode + z.Creator.Phone.String()
	}

	for _, d := range z.CartDetails.Items.Dishes {
		out.Items = append(out.Items, NormalizedItem{
			Name:      d.Name,
			UnitPrice: decimalOrZero(d.UnitCost),
			Quantity:  quantity(d.Quantity),
		})
	}
	out.Total = out.Total.Round(2)
	return out, nil
}

type swiggyOrder struct {
	ID           bridge.FlexString `json:"id"`
	RestaurantID bridge.FlexString `json:"restaurant_id"`
	Status       string            `json:"status"`
	Details      struct {
		OrderTotal *decimal.Decimal `json:"order_total"`
	} `json:"details"`
	Customer struct {
		Name  string            `json:"name"`
		Phone bridge.FlexString `json:"phone"`
	} `json:"customer"`
	Instructions string `json:"instructions"`
	Items        []struct {
		Name     string            `json:"name"`
		Price    *decimal.Decimal  `json:"price"`
		Quantity bridge.FlexString `json:"quantity"`
	} `json:"items"`
	Cart struct {
		Items []struct {
			Name     string            `json:"name"`
			Total    *decimal.Decimal  `json:"total"`
			Quantity bridge.FlexString `json:"quantity"`
		} `json:"items"`
	} `json:"cart"`
}

func normalizeSwiggy(payload []byte) (*NormalizedOrder, error) {
	var s swiggyOrder
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, err
	}

	out := &NormalizedOrder{
		ExternalID:    s.ID.String(),
		OutletID:      s.RestaurantID.String(),
		RawStatus:     s.Status,
		Total:         decimalOrZero(s.Details.OrderTotal).Round(2),
		CustomerName:  s.Customer.Name,
		CustomerPhone: s.Customer.Phone.String(),
		Instructions:  s.Instructions,
	}
	if out.CustomerName == "" {
		out.CustomerName = "Online Customer"
	}

	if len(s.Items) > 0 {
		for _, i := range s.Items {
			out.Items = append(out.Items, NormalizedItem{
				Name:      i.Name,
				UnitPrice: decimalOrZero(i.Price),
				Quantity:  quantity(i.Quantity),
			})
		}
		return out, nil
	}
	// cart lines carry a line total only
	for _, i := range s.Cart.Items {
		qty := quantity(i.Quantity)
		out.Items = append(out.Items, NormalizedItem{
			Name:      i.Name,
			UnitPrice: decimalOrZero(i.Total).Div(decimal.NewFromInt(int64(qty))).Round(2),
			Quantity:  qty,
		})
	}
	return out, nil
}

func decimalOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// quantity parses a vendor quantity, defaulting to one
func quantity(raw bridge.FlexString) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw.String()))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// toOrder builds the local row for a new external order. Platform prices are final:
// no tax is applied and the bill is already settled.
func (n *NormalizedOrder) toOrder(tenantID uint, raw []byte, prepTime int) *model.Order {
	platform, externalID, outletID, rawStatus := n.Platform, n.ExternalID, n.OutletID, n.RawStatus
	order := &model.Order{
		TenantID:            tenantID,
		OrderType:           model.OrderTypeOnline,
		OrderStatus:         MapStatus(n.RawStatus),
		PaymentStatus:       model.PaymentApproved,
		SpecialInstructions: n.Instructions,
		Subtotal:            n.Total,
		TaxAmount:           decimal.Zero,
		DiscountAmount:      decimal.Zero,
		TotalAmount:         n.Total,
		AppliedTaxRate:      decimal.Zero,
		AppliedDiscountRate: decimal.Zero,
		ExternalPlatform:    &platform,
		ExternalOrderID:     &externalID,
		ExternalOutletID:    &outletID,
		RawStatus:           &rawStatus,
		RawPayload:          raw,
		PrepTimeMinutes:     prepTime,
	}
	if n.CustomerName != "" {
		name := n.CustomerName
		order.CustomerName = &name
	}
	if n.CustomerPhone != "" {
		phone := n.CustomerPhone
		order.CustomerPhone = &phone
	}
	for _, item := range n.Items {
		order.Items = append(order.Items, model.OrderItem{
			ItemName:     item.Name,
			ItemCategory: "online",
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice.Round(2),
			TotalPrice:   item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2),
		})
	}
	return order
}
