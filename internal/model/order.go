package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// --- Order Structures (Matching the backend JSON) ---

type OrderEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		Order Order `json:"order"`
	} `json:"data"`
}

type Order struct {
	ID                  int64           `json:"id"`
	OrderNumber         string          `json:"orderNumber"`
	BranchName          string          `json:"branchName"`
	Currency            string          `json:"currency"`
	CreatedAt           time.Time       `json:"createdAt"`
	Items               []OrderItem     `json:"orderItems"`
	Packages            []OrderPackage  `json:"orderPackages"`
	DeliveryCharges     decimal.Decimal `json:"deliveryCharges"`
	ServiceCharges      decimal.Decimal `json:"serviceCharges"`
	TaxAmount           decimal.Decimal `json:"taxAmount"`
	TipAmount           decimal.Decimal `json:"tipAmount"`
	DiscountAmount      decimal.Decimal `json:"discountAmount"`
	TotalAmount         decimal.Decimal `json:"totalAmount"`
	Delivery            *DeliveryInfo   `json:"orderDelivery,omitempty"`
	Pickup              *PickupInfo     `json:"orderPickup,omitempty"`
	SpecialInstructions string          `json:"specialInstructions"`
	AllergenNote        string          `json:"allergenNote"`
}

type OrderItem struct {
	Name           string          `json:"name"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Modifiers      []string        `json:"modifiers"`
	Customizations []string        `json:"customizations"`
}

type OrderPackage struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Items    []string        `json:"items"`
}

type DeliveryInfo struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	Instructions string `json:"instructions"`
}

type PickupInfo struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Instructions string `json:"instructions"`
}

// LineTotal is the item quantity times its unit price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// LineTotal is the package quantity times its bundle price.
func (p OrderPackage) LineTotal() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Quantity)))
}
