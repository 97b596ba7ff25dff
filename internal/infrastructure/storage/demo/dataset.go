// Package demo builds a small reference and purchase-request dataset and
// loads it into either store. Ids are name-based, so loading twice keeps
// the same records.
package demo

import (
	"time"

	"github.com/shopspring/decimal"

	"procurement/internal/core/id"
	"procurement/internal/core/numerator"
	"procurement/internal/core/types"
	"procurement/internal/domain/catalogs"
	"procurement/internal/domain/directory"
	po "procurement/internal/domain/purchase_order"
	pr "procurement/internal/domain/purchase_request"
	"procurement/internal/domain/workflow"
)

// Request is a purchase request header with its lines.
type Request struct {
	Header  pr.Request
	Details []pr.Detail
}

// Dataset is everything the engine needs to confirm and approve orders.
type Dataset struct {
	Vendors     []catalogs.Vendor
	Currencies  []catalogs.Currency
	CreditTerms []catalogs.CreditTerm
	Units       []catalogs.Unit
	TaxProfiles []catalogs.TaxProfile
	Users       []directory.UserProfile
	Workflow    workflow.Definition
	Pattern     numerator.Pattern
	Requests    []Request
}

// DetailIDs returns the ids of every request line, in dataset order.
func (d Dataset) DetailIDs() []id.ID {
	var out []id.ID
	for _, r := range d.Requests {
		for _, line := range r.Details {
			out = append(out, line.ID)
		}
	}
	return out
}

// New builds the dataset. workflowID names the approval workflow.
func New(workflowID string, now time.Time) Dataset {
	net30 := catalogs.CreditTerm{ID: id.FromName("credit_term/net30"), Name: "Net 30", Days: 30}
	alpha := catalogs.Vendor{ID: id.FromName("vendor/alpha"), Code: "V-ALPHA", Name: "Alpha Supplies", CreditTermID: &net30.ID}
	beta := catalogs.Vendor{ID: id.FromName("vendor/beta"), Code: "V-BETA", Name: "Beta Trading"}
	usd := catalogs.Currency{ID: id.FromName("currency/usd"), Code: "USD", Name: "US Dollar", ExchangeRate: decimal.NewFromInt(1)}
	eur := catalogs.Currency{ID: id.FromName("currency/eur"), Code: "EUR", Name: "Euro", ExchangeRate: decimal.RequireFromString("1.08")}
	box := catalogs.Unit{ID: id.FromName("unit/box"), Name: "Box"}
	each := catalogs.Unit{ID: id.FromName("unit/each"), Name: "Each"}
	vat := catalogs.TaxProfile{ID: id.FromName("tax/vat7"), Name: "VAT 7%", Rate: decimal.NewFromInt(7)}

	ds := Dataset{
		Vendors:     []catalogs.Vendor{alpha, beta},
		Currencies:  []catalogs.Currency{usd, eur},
		CreditTerms: []catalogs.CreditTerm{net30},
		Units:       []catalogs.Unit{box, each},
		TaxProfiles: []catalogs.TaxProfile{vat},
		Users: []directory.UserProfile{
			{ID: "req-1", Name: "Rita Requestor", Department: "Operations"},
			{ID: "buyer-1", Name: "Bea Buyer", Department: "Purchasing"},
			{ID: "hod-1", Name: "Hana Head", Department: "Purchasing"},
			{ID: "fc-1", Name: "Finn Controller", Department: "Finance"},
		},
		Workflow: workflow.Definition{
			ID:   workflowID,
			Name: "PO Approval",
			Stages: []workflow.StageDefinition{
				{StageInfo: workflow.StageInfo{Name: "Create", Role: "create", AssignedUsers: []string{"buyer-1"}, CreatorAccess: true}},
				{StageInfo: workflow.StageInfo{Name: "HOD", Role: "approve", AssignedUsers: []string{"hod-1"}}},
				{StageInfo: workflow.StageInfo{Name: "FC", Role: "approve", AssignedUsers: []string{"fc-1"}}, Condition: "amount > 1000.0"},
				{StageInfo: workflow.StageInfo{Name: "Completed"}},
			},
		},
		Pattern: numerator.DefaultPattern(po.DocType),
	}

	header := pr.Request{
		ID:            id.FromName("pr/PR-0001"),
		RequestNo:     "PR-0001",
		Status:        pr.StatusApproved,
		RequestorID:   "req-1",
		RequestorName: "Rita Requestor",
		Department:    "Operations",
		RequestDate:   now.UTC().Truncate(time.Second),
	}
	line := func(name string, vendor catalogs.Vendor, cur catalogs.Currency, unit catalogs.Unit, qty, price int64) pr.Detail {
		d := pr.Detail{
			ID:             id.FromName("pr/PR-0001/" + name),
			RequestID:      header.ID,
			RequestNo:      header.RequestNo,
			RequestorID:    header.RequestorID,
			ProductID:      id.FromName("product/" + name),
			ProductCode:    name,
			ProductName:    name,
			VendorID:       &vendor.ID,
			VendorName:     vendor.Name,
			CurrencyID:     &cur.ID,
			CurrencyName:   cur.Code,
			ExchangeRate:   cur.ExchangeRate,
			ApprovedQty:    decimal.NewFromInt(qty),
			FocQty:         decimal.Zero,
			OrderUnitID:    &unit.ID,
			OrderUnitName:  unit.Name,
			Price:          decimal.NewFromInt(price),
			DiscountRate:   decimal.Zero,
			DiscountAmount: decimal.Zero,
			TaxProfileID:   &vat.ID,
			TaxProfileName: vat.Name,
			TaxRate:        vat.Rate,
		}
		d.SubTotalPrice = types.Round2(d.ApprovedQty.Mul(d.Price))
		d.NetAmount = d.SubTotalPrice
		d.TaxAmount = types.Round2(types.Percent(d.NetAmount, d.TaxRate))
		d.TotalAmount = d.NetAmount.Add(d.TaxAmount)
		return d
	}

	ds.Requests = []Request{{
		Header: header,
		Details: []pr.Detail{
			line("PAPER-A4", alpha, usd, box, 10, 5),
			line("TONER-BK", alpha, usd, each, 4, 60),
			line("DESK-OAK", beta, eur, each, 3, 450),
		},
	}}
	return ds
}
