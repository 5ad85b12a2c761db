package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"USD", USD(4900), 4900, "usd", "$49.00"},
		{"EUR", EUR(19900), 19900, "eur", "€199.00"},
		{"GBP", GBP(9900), 9900, "gbp", "£99.00"},
		{"Zero USD", Zero("USD"), 0, "usd", "$0.00"},
		{"Zero EUR", Zero("EUR"), 0, "eur", "€0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return USD(100).Add(USD(200)) }, USD(300)},
		{"Subtract", func() Money { return USD(500).Subtract(USD(200)) }, USD(300)},
		{"Multiply", func() Money { return USD(100).Multiply(3) }, USD(300)},
		{"Divide", func() Money { return USD(900).Divide(3) }, USD(300)},
		{"TokenCost", func() Money {
			// 3 cents per 1k tokens, 4500 tokens
			return USD(3).Multiply(4500).Divide(1000)
		}, USD(13)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.op()
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for currency mismatch")
		}
	}()

	_ = USD(100).Add(EUR(100))
}

func TestMoneyDivisionByZero(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for division by zero")
		}
	}()

	_ = USD(100).Divide(0)
}

func TestMoneyComparisons(t *testing.T) {
	if !USD(100).LessThan(USD(200)) {
		t.Error("100 should be less than 200")
	}
	if !USD(200).GreaterThan(USD(100)) {
		t.Error("200 should be greater than 100")
	}
	if !Zero("usd").IsZero() {
		t.Error("Zero should be zero")
	}
	if !USD(1).IsPositive() {
		t.Error("1 should be positive")
	}
	if !USD(-1).IsNegative() {
		t.Error("-1 should be negative")
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(USD(4900))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded.Amount != 4900 || decoded.Currency != "usd" || decoded.Display != "$49.00" {
		t.Errorf("unexpected JSON: %+v", decoded)
	}
}

func TestSum(t *testing.T) {
	total := Sum(USD(100), USD(200), USD(300))
	if !total.Equal(USD(600)) {
		t.Errorf("Sum: got %v, want %v", total, USD(600))
	}

	empty := Sum()
	if !empty.IsZero() {
		t.Errorf("empty Sum should be zero, got %v", empty)
	}
}
