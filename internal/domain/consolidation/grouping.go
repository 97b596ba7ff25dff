// Package consolidation turns approved purchase-request lines into purchase
// orders: one order per vendor, delivery date and currency.
package consolidation

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"procurement/internal/core/id"
	pr "procurement/internal/domain/purchase_request"
)

// NoDeliveryDate is the key value of lines without a delivery date.
const NoDeliveryDate = "-"

const dateKeyLayout = "2006-01-02"

// GroupKey identifies a candidate order.
type GroupKey struct {
	VendorID     id.ID
	DeliveryDate string // YYYY-MM-DD or NoDeliveryDate
	CurrencyID   id.ID
}

// KeyOf returns the group key of an orderable line.
func KeyOf(d *pr.Detail) GroupKey {
	key := GroupKey{
		VendorID:     *d.VendorID,
		CurrencyID:   *d.CurrencyID,
		DeliveryDate: NoDeliveryDate,
	}
	if d.DeliveryDate != nil {
		key.DeliveryDate = d.DeliveryDate.Format(dateKeyLayout)
	}
	return key
}

// Source is one request line merged into a product.
type Source struct {
	PrDetailID    id.ID           `json:"prDetailId"`
	RequestID     id.ID           `json:"purchaseRequestId"`
	RequestNo     string          `json:"prNo"`
	RequestorID   string          `json:"requestorId"`
	ApprovedQty   decimal.Decimal `json:"approvedQty"`
	FocQty        decimal.Decimal `json:"focQty"`
	OrderUnitID   *id.ID          `json:"orderUnitId"`
	OrderUnitName string          `json:"orderUnitName"`
}

// Product is the merge of every line of one product inside a group.
// Pricing follows the first contributing line, quantities and amounts are summed.
type Product struct {
	ProductID   id.ID  `json:"productId"`
	ProductCode string `json:"productCode"`
	ProductName string `json:"productName"`

	OrderQty      decimal.Decimal `json:"orderQty"`
	FocQty        decimal.Decimal `json:"focQty"`
	OrderUnitID   *id.ID          `json:"orderUnitId"`
	OrderUnitName string          `json:"orderUnitName"`

	Price          decimal.Decimal `json:"price"`
	SubTotalPrice  decimal.Decimal `json:"subTotalPrice"`
	DiscountRate   decimal.Decimal `json:"discountRate"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	NetAmount      decimal.Decimal `json:"netAmount"`
	TaxProfileID   *id.ID          `json:"taxProfileId"`
	TaxProfileName string          `json:"taxProfileName"`
	TaxRate        decimal.Decimal `json:"taxRate"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`

	Note    string   `json:"note"`
	Sources []Source `json:"sources"`
}

// Group is a candidate purchase order.
type Group struct {
	Key GroupKey `json:"-"`

	VendorID     id.ID           `json:"vendorId"`
	VendorName   string          `json:"vendorName"`
	CurrencyID   id.ID           `json:"currencyId"`
	CurrencyName string          `json:"currencyName"`
	ExchangeRate decimal.Decimal `json:"exchangeRate"`
	DeliveryDate *time.Time      `json:"deliveryDate"`

	TotalQty    decimal.Decimal `json:"totalQty"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	TotalTax    decimal.Decimal `json:"totalTax"`
	TotalAmount decimal.Decimal `json:"totalAmount"`

	Products   []Product `json:"products"`
	RequestIDs []id.ID   `json:"purchaseRequestIds"`
}

// GroupLines partitions lines into candidate orders. Lines without vendor or
// currency are dropped. The result is sorted by vendor name, then delivery
// date with undated groups last, ties in first-seen order.
func GroupLines(lines []pr.Detail) []Group {
	var groups []*Group
	byKey := make(map[GroupKey]*Group)
	products := make(map[GroupKey]map[id.ID]int)

	for i := range lines {
		line := &lines[i]
		if !line.Orderable() {
			continue
		}

		key := KeyOf(line)
		g, ok := byKey[key]
		if !ok {
			g = newGroup(key, line)
			byKey[key] = g
			products[key] = make(map[id.ID]int)
			groups = append(groups, g)
		}

		g.TotalQty = g.TotalQty.Add(line.ApprovedQty)
		g.TotalPrice = g.TotalPrice.Add(line.NetAmount)
		g.TotalTax = g.TotalTax.Add(line.TaxAmount)
		g.TotalAmount = g.TotalAmount.Add(line.TotalAmount)
		if !slices.Contains(g.RequestIDs, line.RequestID) {
			g.RequestIDs = append(g.RequestIDs, line.RequestID)
		}

		if idx, ok := products[key][line.ProductID]; ok {
			mergeLine(&g.Products[idx], line)
			continue
		}
		products[key][line.ProductID] = len(g.Products)
		g.Products = append(g.Products, newProduct(line))
	}

	slices.SortStableFunc(groups, func(a, b *Group) int {
		if c := cmp.Compare(a.VendorName, b.VendorName); c != 0 {
			return c
		}
		return compareDateKey(a.Key.DeliveryDate, b.Key.DeliveryDate)
	})

	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = *g
	}
	return out
}

// compareDateKey orders ISO dates ascending with NoDeliveryDate last.
func compareDateKey(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == NoDeliveryDate:
		return 1
	case b == NoDeliveryDate:
		return -1
	}
	return cmp.Compare(a, b)
}

func newGroup(key GroupKey, line *pr.Detail) *Group {
	return &Group{
		Key:          key,
		VendorID:     key.VendorID,
		VendorName:   line.VendorName,
		CurrencyID:   key.CurrencyID,
		CurrencyName: line.CurrencyName,
		ExchangeRate: line.ExchangeRate,
		DeliveryDate: line.DeliveryDate,
		TotalQty:     decimal.Zero,
		TotalPrice:   decimal.Zero,
		TotalTax:     decimal.Zero,
		TotalAmount:  decimal.Zero,
	}
}

func newProduct(line *pr.Detail) Product {
	return Product{
		ProductID:      line.ProductID,
		ProductCode:    line.ProductCode,
		ProductName:    line.ProductName,
		OrderQty:       line.ApprovedQty,
		FocQty:         line.FocQty,
		OrderUnitID:    line.OrderUnitID,
		OrderUnitName:  line.OrderUnitName,
		Price:          line.Price,
		SubTotalPrice:  line.SubTotalPrice,
		DiscountRate:   line.DiscountRate,
		DiscountAmount: line.DiscountAmount,
		NetAmount:      line.NetAmount,
		TaxProfileID:   line.TaxProfileID,
		TaxProfileName: line.TaxProfileName,
		TaxRate:        line.TaxRate,
		TaxAmount:      line.TaxAmount,
		TotalAmount:    line.TotalAmount,
		Note:           line.Note,
		Sources:        []Source{sourceOf(line)},
	}
}

func mergeLine(p *Product, line *pr.Detail) {
	p.OrderQty = p.OrderQty.Add(line.ApprovedQty)
	p.FocQty = p.FocQty.Add(line.FocQty)
	p.SubTotalPrice = p.SubTotalPrice.Add(line.SubTotalPrice)
	p.DiscountAmount = p.DiscountAmount.Add(line.DiscountAmount)
	p.NetAmount = p.NetAmount.Add(line.NetAmount)
	p.TaxAmount = p.TaxAmount.Add(line.TaxAmount)
	p.TotalAmount = p.TotalAmount.Add(line.TotalAmount)
	p.Sources = append(p.Sources, sourceOf(line))
}

func sourceOf(line *pr.Detail) Source {
	return Source{
		PrDetailID:    line.ID,
		RequestID:     line.RequestID,
		RequestNo:     line.RequestNo,
		RequestorID:   line.RequestorID,
		ApprovedQty:   line.ApprovedQty,
		FocQty:        line.FocQty,
		OrderUnitID:   line.OrderUnitID,
		OrderUnitName: line.OrderUnitName,
	}
}
