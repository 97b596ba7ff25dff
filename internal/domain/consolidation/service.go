package consolidation

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"procurement/internal/core/apperror"
	appctx "procurement/internal/core/context"
	"procurement/internal/core/id"
	"procurement/internal/core/numerator"
	"procurement/internal/core/tx"
	"procurement/internal/domain/audit"
	"procurement/internal/domain/catalogs"
	"procurement/internal/domain/notification"
	po "procurement/internal/domain/purchase_order"
	pr "procurement/internal/domain/purchase_request"
	"procurement/internal/domain/workflow"
	"procurement/pkg/logger"
)

// Config tunes consolidation.
type Config struct {
	// WorkflowID is the workflow new orders start in
	WorkflowID string

	NavigationTimeout time.Duration
	WriteTimeout      time.Duration
	Now               func() time.Time
}

// Summary counts what a confirmation processed.
type Summary struct {
	Orders       int `json:"orders"`
	Requests     int `json:"requests"`
	Lines        int `json:"lines"`
	SkippedLinks int `json:"skippedLinks"`
}

// Result is the outcome of ConfirmPrToPo.
type Result struct {
	Orders  []*po.PurchaseOrder `json:"orders"`
	Summary Summary             `json:"summary"`
}

// Service groups approved request lines and materializes them as orders.
type Service struct {
	requests  pr.Repository
	orders    po.Repository
	catalogs  catalogs.Lookup
	numerator numerator.Generator
	navigator workflow.Navigator
	audit     audit.Recorder
	notifier  *notification.Sender
	txManager tx.Manager
	cfg       Config
}

// NewService creates the consolidation service.
func NewService(
	requests pr.Repository,
	orders po.Repository,
	lookup catalogs.Lookup,
	gen numerator.Generator,
	navigator workflow.Navigator,
	recorder audit.Recorder,
	notifier *notification.Sender,
	txManager tx.Manager,
	cfg Config,
) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		requests:  requests,
		orders:    orders,
		catalogs:  lookup,
		numerator: gen,
		navigator: navigator,
		audit:     recorder,
		notifier:  notifier,
		txManager: txManager,
		cfg:       cfg,
	}
}

// GroupPrForPo previews the orders the given request lines would produce.
func (s *Service) GroupPrForPo(ctx context.Context, detailIDs []id.ID) ([]Group, error) {
	if len(detailIDs) == 0 {
		return nil, apperror.NewInvalidArgument("at least one purchase request line is required")
	}

	lines, err := s.requests.FindApprovedDetails(ctx, id.Unique(detailIDs))
	if err != nil {
		return nil, fmt.Errorf("find request lines: %w", err)
	}
	if err := s.fillVendorNames(ctx, lines); err != nil {
		return nil, err
	}

	groups := GroupLines(lines)
	if len(groups) == 0 {
		return nil, apperror.NewNotFound("purchase_request_detail", detailIDs)
	}
	return groups, nil
}

// fillVendorNames copies the catalog name onto lines that carry none, so
// groups sort by the name their order will show.
func (s *Service) fillVendorNames(ctx context.Context, lines []pr.Detail) error {
	names := make(map[id.ID]string)
	for i := range lines {
		line := &lines[i]
		if line.VendorName != "" || line.VendorID == nil {
			continue
		}
		name, ok := names[*line.VendorID]
		if !ok {
			vendor, err := catalogs.Optional(s.catalogs.Vendor(ctx, *line.VendorID))
			if err != nil {
				return fmt.Errorf("lookup vendor: %w", err)
			}
			if vendor != nil {
				name = vendor.Name
			}
			names[*line.VendorID] = name
		}
		line.VendorName = name
	}
	return nil
}

// ConfirmPrToPo creates one draft order per group and marks the source
// requests completed, all in one transaction. Requestors are notified
// after commit.
func (s *Service) ConfirmPrToPo(ctx context.Context, detailIDs []id.ID) (*Result, error) {
	if len(detailIDs) == 0 {
		return nil, apperror.NewInvalidArgument("at least one purchase request line is required")
	}
	detailIDs = id.Unique(detailIDs)

	start, err := s.startWorkflow(ctx)
	if err != nil {
		return nil, err
	}

	var (
		result     Result
		requestors = make(map[string][]string)
	)
	err = tx.RunDetached(ctx, s.txManager, s.cfg.WriteTimeout, func(ctx context.Context) error {
		result = Result{}
		clear(requestors)

		lines, err := s.requests.LockApprovedDetails(ctx, detailIDs)
		if err != nil {
			return fmt.Errorf("lock request lines: %w", err)
		}
		if err := s.fillVendorNames(ctx, lines); err != nil {
			return err
		}
		groups := GroupLines(lines)
		if len(groups) == 0 {
			return apperror.NewNotFound("purchase_request_detail", detailIDs)
		}

		var requestIDs []id.ID
		for i := range groups {
			order, skipped, err := s.materialize(ctx, &groups[i], start)
			if err != nil {
				return err
			}
			result.Orders = append(result.Orders, order)
			result.Summary.Lines += len(order.Details)
			result.Summary.SkippedLinks += skipped

			for _, p := range groups[i].Products {
				for _, src := range p.Sources {
					if !slices.Contains(requestors[src.RequestorID], order.PoNo) {
						requestors[src.RequestorID] = append(requestors[src.RequestorID], order.PoNo)
					}
				}
			}
			requestIDs = append(requestIDs, groups[i].RequestIDs...)
		}
		requestIDs = id.Unique(requestIDs)

		n, err := s.requests.MarkCompleted(ctx, requestIDs, appctx.GetUserID(ctx))
		if err != nil {
			return fmt.Errorf("mark requests completed: %w", err)
		}
		if n != len(requestIDs) {
			return fmt.Errorf("mark requests completed: %d of %d requests changed", n, len(requestIDs))
		}

		result.Summary.Orders = len(result.Orders)
		result.Summary.Requests = len(requestIDs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Summary.SkippedLinks > 0 {
		logger.Warn(ctx, "request lines without order unit were not linked",
			"skipped_links", result.Summary.SkippedLinks)
	}
	logger.Info(ctx, "purchase requests consolidated",
		"orders", result.Summary.Orders,
		"requests", result.Summary.Requests,
		"lines", result.Summary.Lines)

	s.notifier.Send(ctx, requestorMessages(requestors)...)

	return &result, nil
}

// materialize writes one group as an order with its lines and links.
func (s *Service) materialize(ctx context.Context, g *Group, start *workflow.Navigation) (*po.PurchaseOrder, int, error) {
	now := s.cfg.Now().UTC()
	user := appctx.GetUser(ctx)
	var userID, userName string
	if user != nil {
		userID, userName = user.UserID, user.Name
	}

	order, err := s.newOrder(ctx, g, start, now)
	if err != nil {
		return nil, 0, err
	}
	order.BuyerID = userID
	order.BuyerName = userName
	order.Stamp(now, userID)
	order.History = po.History{{
		Action:    po.ActionCreated,
		At:        now,
		UserID:    userID,
		UserName:  userName,
		FromStage: po.NoStage,
		ToStage:   order.CurrentStage,
	}}

	order.PoNo, err = s.numerator.Next(ctx, po.DocType, order.OrderDate)
	if err != nil {
		return nil, 0, fmt.Errorf("allocate order number: %w", err)
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, 0, fmt.Errorf("create order: %w", err)
	}

	skipped := 0
	for i, p := range g.Products {
		detail := detailOf(order.ID, i+1, p)
		detail.Stamp(now, userID)
		if err := s.orders.CreateDetail(ctx, &detail); err != nil {
			return nil, 0, fmt.Errorf("create order line: %w", err)
		}

		for _, src := range p.Sources {
			if src.OrderUnitID == nil || id.IsNil(*src.OrderUnitID) {
				skipped++
				logger.Warn(ctx, "request line has no order unit, link skipped",
					"pr_detail_id", src.PrDetailID,
					"po_no", order.PoNo)
				continue
			}
			link := po.PrDetailLink{
				ID:            id.New(),
				PoDetailID:    detail.ID,
				PrDetailID:    src.PrDetailID,
				RequestID:     src.RequestID,
				RequestNo:     src.RequestNo,
				OrderQty:      src.ApprovedQty,
				FocQty:        src.FocQty,
				OrderUnitID:   *src.OrderUnitID,
				OrderUnitName: src.OrderUnitName,
				CreatedAt:     now,
			}
			if err := s.orders.CreateLink(ctx, &link); err != nil {
				return nil, 0, fmt.Errorf("create request link: %w", err)
			}
			detail.Links = append(detail.Links, link)
		}
		order.Details = append(order.Details, detail)
	}

	err = s.audit.Record(ctx, audit.NewEntry(ctx, po.EntityName, order.ID, audit.ActionCreate, map[string]any{
		"po_no":        order.PoNo,
		"vendor_id":    order.VendorID,
		"lines":        len(order.Details),
		"requests":     g.RequestIDs,
		"total_amount": order.TotalAmount,
	}))
	if err != nil {
		return nil, 0, fmt.Errorf("audit order: %w", err)
	}

	return order, skipped, nil
}

// newOrder fills the header from the group and the catalogs.
func (s *Service) newOrder(ctx context.Context, g *Group, start *workflow.Navigation, now time.Time) (*po.PurchaseOrder, error) {
	order := &po.PurchaseOrder{
		ID:            id.New(),
		Status:        po.StatusDraft,
		VendorID:      g.VendorID,
		VendorName:    g.VendorName,
		CurrencyID:    g.CurrencyID,
		CurrencyName:  g.CurrencyName,
		ExchangeRate:  g.ExchangeRate,
		OrderDate:     now,
		DeliveryDate:  g.DeliveryDate,
		WorkflowID:    s.cfg.WorkflowID,
		WorkflowName:  start.WorkflowName,
		CurrentStage:  start.CurrentStageInfo.Name,
		PreviousStage: po.NoStage,
		NextStage:     po.NoStage,
		Assignees:     po.NewAssignees(start.CurrentStageInfo.AssignedUsers...),
		Totals: po.Totals{
			TotalQty:    g.TotalQty,
			TotalPrice:  g.TotalPrice,
			TotalTax:    g.TotalTax,
			TotalAmount: g.TotalAmount,
		},
		DocVersion: 1,
	}
	if !start.Final() {
		order.NextStage = start.NextStageInfo.Name
	}

	vendor, err := catalogs.Optional(s.catalogs.Vendor(ctx, g.VendorID))
	if err != nil {
		return nil, fmt.Errorf("lookup vendor: %w", err)
	}
	if vendor != nil {
		if order.VendorName == "" {
			order.VendorName = vendor.Name
		}
		if vendor.CreditTermID != nil {
			term, err := catalogs.Optional(s.catalogs.CreditTerm(ctx, *vendor.CreditTermID))
			if err != nil {
				return nil, fmt.Errorf("lookup credit term: %w", err)
			}
			if term != nil {
				order.CreditTermID = &term.ID
				order.CreditTermName = term.Name
				order.CreditTermDays = term.Days
			}
		}
	}

	if order.CurrencyName == "" || !order.ExchangeRate.IsPositive() {
		currency, err := catalogs.Optional(s.catalogs.Currency(ctx, g.CurrencyID))
		if err != nil {
			return nil, fmt.Errorf("lookup currency: %w", err)
		}
		if currency != nil {
			if order.CurrencyName == "" {
				order.CurrencyName = currency.Name
			}
			if !order.ExchangeRate.IsPositive() {
				order.ExchangeRate = currency.ExchangeRate
			}
		}
	}
	if !order.ExchangeRate.IsPositive() {
		order.ExchangeRate = decimal.NewFromInt(1)
	}

	return order, nil
}

func (s *Service) startWorkflow(ctx context.Context) (*workflow.Navigation, error) {
	navCtx := ctx
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}

	start, err := s.navigator.Start(navCtx, s.cfg.WorkflowID, workflow.Payload{DocType: po.DocType})
	if err != nil {
		return nil, apperror.FromUpstream("workflow navigator", err)
	}
	return start, nil
}

func detailOf(orderID id.ID, seq int, p Product) po.Detail {
	return po.Detail{
		ID:              id.New(),
		PurchaseOrderID: orderID,
		SequenceNo:      seq,
		ProductID:       p.ProductID,
		ProductCode:     p.ProductCode,
		ProductName:     p.ProductName,
		OrderQty:        p.OrderQty,
		FocQty:          p.FocQty,
		OrderUnitID:     p.OrderUnitID,
		OrderUnitName:   p.OrderUnitName,
		Price:           p.Price,
		SubTotalPrice:   p.SubTotalPrice,
		DiscountRate:    p.DiscountRate,
		DiscountAmount:  p.DiscountAmount,
		NetAmount:       p.NetAmount,
		TaxProfileID:    p.TaxProfileID,
		TaxProfileName:  p.TaxProfileName,
		TaxRate:         p.TaxRate,
		TaxAmount:       p.TaxAmount,
		TotalAmount:     p.TotalAmount,
		Note:            p.Note,
		DocVersion:      1,
	}
}

func requestorMessages(requestors map[string][]string) []notification.Message {
	msgs := make([]notification.Message, 0, len(requestors))
	for requestorID, numbers := range requestors {
		if requestorID == "" {
			continue
		}
		msgs = append(msgs, notification.Message{
			Recipients: []string{requestorID},
			Title:      "Purchase order created",
			Body:       fmt.Sprintf("Your purchase request was converted to purchase order %s.", strings.Join(numbers, ", ")),
			Metadata: notification.Metadata{
				DocType:    pr.DocType,
				Action:     "converted",
				DocumentNo: strings.Join(numbers, ","),
			},
		})
	}
	return msgs
}
