package aggregator

import (
	"errors"
	"testing"

	"tableorder-service/pkg/bridge"
)

func TestNormalize_Zomato(t *testing.T) {
	got, err := Normalize(zomatoFixture("9001", "555", "preparing_orders"))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.ExternalID != "9001" || got.OutletID != "555" || got.Platform != bridge.PlatformZomato {
		t.Fatalf("unexpected identity %+v", got)
	}
	if got.RawStatus != "preparing_orders" {
		t.Fatalf("bucket should win over state, got %q", got.RawStatus)
	}
	if !got.Total.Equal(dec("97.36")) || got.CustomerName != "Asha" {
		t.Fatalf("unexpected total %s customer %q", got.Total, got.CustomerName)
	}
	if got.CustomerPhone != "12345" {
		t.Fatalf("rider phone should be preferred, got %q", got.CustomerPhone)
	}
	if got.Instructions != "Cutlery needed. Rider: Ravi (12345)" {
		t.Fatalf("unexpected instructions %q", got.Instructions)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 2 || !got.Items[0].UnitPrice.Equal(dec("45.5")) {
		t.Fatalf("unexpected items %+v", got.Items)
	}
}

func TestNormalize_ZomatoFallbacks(t *testing.T) {
	ext := bridge.ExternalOrder{Platform: bridge.PlatformZomato, Payload: []byte(`{"order": {
		"id": "77", "resId": "555", "state": "FOOD_READY",
		"cartDetails": {"total": {"amountDetails": {"totalCost": "140.5"}}},
		"creator": {"phone": "98765", "countryIsdCode": "+91"}
	}}`)}
	got, err := Normalize(ext)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.RawStatus != "FOOD_READY" || !got.Total.Equal(dec("140.5")) {
		t.Fatalf("expected state and totalCost fallbacks, got %q %s", got.RawStatus, got.Total)
	}
	if got.CustomerName != "Zomato Customer" || got.CustomerPhone != "+9198765" || got.Instructions != "" {
		t.Fatalf("unexpected customer fallbacks %+v", got)
	}
}

func TestNormalize_Swiggy(t *testing.T) {
	got, err := Normalize(swiggyFixture("S1", "77", "ACCEPTED"))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.ExternalID != "S1" || got.OutletID != "77" || got.RawStatus != "ACCEPTED" {
		t.Fatalf("unexpected identity %+v", got)
	}
	if got.CustomerName != "Online Customer" || got.CustomerPhone != "999" || got.Instructions != "No onion" {
		t.Fatalf("unexpected customer %+v", got)
	}
	if len(got.Items) != 1 || !got.Items[0].UnitPrice.Equal(dec("100")) {
		t.Fatalf("cart line total should be split per unit, got %+v", got.Items)
	}

	flat := bridge.ExternalOrder{Platform: bridge.PlatformSwiggy, Payload: []byte(`{
		"id": 5, "restaurant_id": 77, "items": [{"name": "Idli", "price": 40, "quantity": "3"}]
	}`)}
	got, err = Normalize(flat)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.ExternalID != "5" || len(got.Items) != 1 || got.Items[0].Quantity != 3 || !got.Total.IsZero() {
		t.Fatalf("unexpected flat swiggy order %+v", got)
	}
}

func TestNormalize_Rejects(t *testing.T) {
	tests := []struct {
		name string
		ext  bridge.ExternalOrder
		want error
	}{
		{"no id", bridge.ExternalOrder{Platform: bridge.PlatformSwiggy, Payload: []byte(`{"restaurant_id": "77"}`)}, errMissingIdentity},
		{"no outlet", bridge.ExternalOrder{Platform: bridge.PlatformZomato, Payload: []byte(`{"order": {"id": 1}}`)}, errMissingIdentity},
		{"unknown platform", bridge.ExternalOrder{Platform: "ubereats", Payload: []byte(`{}`)}, bridge.ErrUnsupportedPlatform},
		{"bad json", bridge.ExternalOrder{Platform: bridge.PlatformZomato, Payload: []byte(`{`)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.ext)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestQuantity(t *testing.T) {
	tests := map[bridge.FlexString]int{"": 1, "0": 1, "-2": 1, "abc": 1, "4": 4, " 2 ": 2}
	for raw, want := range tests {
		if got := quantity(raw); got != want {
			t.Fatalf("quantity(%q) = %d, want %d", raw, got, want)
		}
	}
}
