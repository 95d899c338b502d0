package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pmorrisey/njord/internal/commerce"
	"github.com/pmorrisey/njord/internal/domain"
	"github.com/pmorrisey/njord/internal/pricing"
	"github.com/pmorrisey/njord/internal/session"
	"github.com/pmorrisey/njord/internal/settlement"
	"github.com/pmorrisey/njord/internal/shipping"
)

// StoreFactory yields the session store bound to one request. Cookie
// stores need the request's echo context; server-side stores need the
// session ID cookie.
type StoreFactory func(c echo.Context) session.Store

// CheckoutHandler serves the checkout API: submit, gateway return, coupon
// validation and shipping rates.
type CheckoutHandler struct {
	engine   *settlement.Engine
	backend  commerce.Client
	rates    shipping.Provider
	stores   StoreFactory
	validate *validator.Validate
	currency string
	logger   zerolog.Logger
}

func NewCheckoutHandler(
	engine *settlement.Engine,
	backend commerce.Client,
	rates shipping.Provider,
	stores StoreFactory,
	currency string,
	logger zerolog.Logger,
) *CheckoutHandler {
	return &CheckoutHandler{
		engine:   engine,
		backend:  backend,
		rates:    rates,
		stores:   stores,
		validate: validator.New(),
		currency: currency,
		logger:   logger.With().Str("component", "checkout_handler").Logger(),
	}
}

type checkoutItem struct {
	ProductID   string `json:"product_id" validate:"required"`
	VariationID string `json:"variation_id"`
	Name        string `json:"name" validate:"required"`
	UnitPrice   string `json:"unit_price" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
	TaxClass    string `json:"tax_class"`
	WeightGrams int    `json:"weight_grams" validate:"gte=0"`
}

type checkoutShipping struct {
	MethodID string `json:"method_id" validate:"required"`
	Label    string `json:"label" validate:"required"`
	Cost     string `json:"cost" validate:"required"`
}

type checkoutRequest struct {
	Billing domain.Address `json:"billing"`

	// Shipping is validated after the ship-to-billing fallback resolves.
	Shipping           domain.Address   `json:"shipping" validate:"-"`
	ShipToBilling      bool             `json:"ship_to_billing"`
	ShippingSelection  checkoutShipping `json:"shipping_selection" validate:"required"`
	PaymentMethod      string           `json:"payment_method" validate:"required"`
	PaymentMethodTitle string           `json:"payment_method_title"`
	CouponCode         string           `json:"coupon_code"`
	CustomerNote       string           `json:"customer_note"`
	Items              []checkoutItem   `json:"items" validate:"required,min=1,dive"`
}

type breakdownResponse struct {
	SubtotalExclTax string            `json:"subtotal_excl_tax"`
	TaxLines        []taxLineResponse `json:"tax_lines"`
	Shipping        string            `json:"shipping"`
	Discount        string            `json:"discount"`
	GrandTotal      string            `json:"grand_total"`
}

type taxLineResponse struct {
	Rate   string `json:"rate"`
	Amount string `json:"amount"`
}

// Submit handles POST /checkout. It prices the submitted cart, creates a
// payment authorization for the grand total and persists the checkout
// session, returning the client secret the frontend needs to hand the
// customer to the gateway.
func (h *CheckoutHandler) Submit(c echo.Context) error {
	ctx := c.Request().Context()

	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, domain.Invalid("checkout.submit", "Malformed checkout payload"))
	}
	if err := h.validate.Struct(&req); err != nil {
		return ErrorResponse(c, domain.Invalid("checkout.submit", "Missing or invalid checkout fields"))
	}

	items, err := parseItems(req.Items)
	if err != nil {
		return ErrorResponse(c, err)
	}
	shippingCost, err := decimal.NewFromString(req.ShippingSelection.Cost)
	if err != nil || shippingCost.IsNegative() {
		return ErrorResponse(c, domain.Invalid("checkout.submit", "Invalid shipping cost"))
	}

	cart := domain.Cart{Items: items}
	subtotal := cart.Subtotal()

	var coupon *domain.Coupon
	discount := decimal.Zero
	if req.CouponCode != "" {
		coupon, err = h.backend.ValidateCoupon(ctx, req.CouponCode)
		if err != nil {
			return ErrorResponse(c, couponError(err))
		}
		discount = coupon.DiscountFor(subtotal)
	}

	breakdown, err := pricing.Compute(items, shippingCost, discount)
	if err != nil {
		return ErrorResponse(c, err)
	}

	sessionID, err := session.GenerateSessionID()
	if err != nil {
		return ErrorResponse(c, domain.Internal(err, "checkout.submit", "Failed to start checkout"))
	}

	shippingAddr := req.Shipping
	if req.ShipToBilling || shippingAddr.Line1 == "" {
		shippingAddr = req.Billing
	}
	if err := h.validate.Struct(&shippingAddr); err != nil {
		return ErrorResponse(c, domain.Invalid("checkout.submit", "Incomplete shipping address"))
	}

	checkout := &domain.CheckoutSession{
		ID:       sessionID,
		Billing:  req.Billing,
		Shipping: shippingAddr,
		ShippingSelection: domain.ShippingSelection{
			MethodID: req.ShippingSelection.MethodID,
			Label:    req.ShippingSelection.Label,
			Cost:     shippingCost,
		},
		PaymentMethod:      req.PaymentMethod,
		PaymentMethodTitle: req.PaymentMethodTitle,
		Items:              items,
		Coupon:             coupon,
		CustomerNote:       req.CustomerNote,
		CreatedAt:          time.Now().UTC(),
	}

	result, err := h.engine.Begin(ctx, h.stores(c), settlement.BeginParams{
		Session:    checkout,
		GrandTotal: breakdown.GrandTotal,
		Currency:   h.currency,
		Email:      req.Billing.Email,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Checkout begin failed")
		return ErrorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"authorization_id": result.AuthorizationID,
		"client_secret":    result.ClientSecret,
		"amount_minor":     result.AmountMinor,
		"currency":         result.Currency,
		"breakdown":        toBreakdownResponse(breakdown),
	})
}

// Return handles GET /checkout/return, the redirect back from the payment
// gateway. The query carries the authorization reference and an advisory
// status; the engine settles the attempt and the response tells the
// frontend what to render.
func (h *CheckoutHandler) Return(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.engine.Resume(ctx, h.stores(c), settlement.Return{
		ClientReference: c.QueryParam("payment_intent"),
		StatusHint:      c.QueryParam("redirect_status"),
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Checkout resume failed")
		return ErrorResponse(c, err)
	}

	body := map[string]any{"state": result.State.String()}
	if result.Reason != "" {
		body["reason"] = result.Reason.String()
	}
	if result.RecoveryReference != "" {
		// Money moved but no order exists. The reference is the
		// customer's key for manual recovery through support.
		body["recovery_reference"] = result.RecoveryReference
		body["support_message"] = "Your payment went through but we could not finish your order. Contact support and quote this reference."
	}
	if result.Order != nil {
		body["order"] = map[string]any{
			"id":     result.Order.ID,
			"number": result.Order.Number,
			"paid":   result.Order.SetPaid,
		}
	}

	return c.JSON(resultStatus(result), body)
}

// resultStatus maps a settlement outcome to an HTTP status. Post-payment
// failures are server-side faults; pre-payment failures are the
// customer's to retry.
func resultStatus(result *settlement.Result) int {
	switch {
	case !result.Failed():
		return http.StatusOK
	case result.Reason == settlement.ReasonInvalidReturn:
		return http.StatusBadRequest
	case result.Reason.PostPayment():
		return http.StatusInternalServerError
	default:
		return http.StatusPaymentRequired
	}
}

type couponRequest struct {
	Code     string `json:"code" validate:"required"`
	Subtotal string `json:"subtotal"`
}

// Coupon handles POST /checkout/coupon, validating a code against the
// commerce backend before the frontend attaches it to the cart.
func (h *CheckoutHandler) Coupon(c echo.Context) error {
	var req couponRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, domain.Invalid("checkout.coupon", "Malformed coupon payload"))
	}
	if err := h.validate.Struct(&req); err != nil {
		return ErrorResponse(c, domain.Invalid("checkout.coupon", "Coupon code is required"))
	}

	coupon, err := h.backend.ValidateCoupon(c.Request().Context(), req.Code)
	if err != nil {
		return ErrorResponse(c, couponError(err))
	}

	body := map[string]any{
		"code":       coupon.Code,
		"amount":     coupon.Amount.String(),
		"percentage": coupon.Percentage,
	}
	if req.Subtotal != "" {
		if subtotal, err := decimal.NewFromString(req.Subtotal); err == nil {
			body["discount"] = coupon.DiscountFor(subtotal).StringFixed(2)
		}
	}
	return c.JSON(http.StatusOK, body)
}

// Rates handles GET /checkout/rates, returning the shipping options for a
// destination and cart.
func (h *CheckoutHandler) Rates(c echo.Context) error {
	subtotal, _ := decimal.NewFromString(c.QueryParam("subtotal"))
	weight, _ := strconv.Atoi(c.QueryParam("weight_grams"))

	rates, err := h.rates.GetRates(c.Request().Context(), shipping.RateParams{
		Destination: domain.Address{
			Country:    c.QueryParam("country"),
			PostalCode: c.QueryParam("postcode"),
			State:      c.QueryParam("state"),
		},
		Subtotal:         subtotal,
		TotalWeightGrams: weight,
	})
	if errors.Is(err, shipping.ErrDestinationRequired) {
		return ErrorResponse(c, domain.Invalid("checkout.rates", "Destination country is required"))
	}
	if errors.Is(err, shipping.ErrNotServiceable) {
		return ErrorResponse(c, domain.Errorf(domain.ENOTFOUND, "checkout.rates", "No shipping methods available for this destination"))
	}
	if err != nil {
		return ErrorResponse(c, err)
	}

	out := make([]map[string]any, 0, len(rates))
	for _, r := range rates {
		out = append(out, map[string]any{
			"method_id": r.MethodID,
			"label":     r.Label,
			"cost":      r.Cost.StringFixed(2),
			"days_min":  r.DaysMin,
			"days_max":  r.DaysMax,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"rates": out})
}

func parseItems(in []checkoutItem) ([]domain.LineItem, error) {
	items := make([]domain.LineItem, 0, len(in))
	for _, item := range in {
		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil || price.IsNegative() {
			return nil, domain.Invalid("checkout.submit", "Invalid unit price for "+item.Name)
		}
		items = append(items, domain.LineItem{
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Name:        item.Name,
			UnitPrice:   price,
			Quantity:    item.Quantity,
			TaxClass:    domain.TaxClass(item.TaxClass),
			WeightGrams: item.WeightGrams,
		})
	}
	return items, nil
}

func couponError(err error) error {
	switch {
	case errors.Is(err, commerce.ErrCouponNotFound):
		return domain.Errorf(domain.ENOTFOUND, "checkout.coupon", "Coupon code not found")
	case errors.Is(err, commerce.ErrCouponExpired):
		return domain.Invalid("checkout.coupon", "Coupon has expired")
	case errors.Is(err, commerce.ErrCouponNotApplicable):
		return domain.Invalid("checkout.coupon", "Coupon cannot be applied to this cart")
	case errors.Is(err, commerce.ErrBackendUnavailable):
		return domain.Errorf(domain.EUNAVAILABLE, "checkout.coupon", "Could not validate coupon, try again")
	default:
		return err
	}
}

func toBreakdownResponse(b *pricing.Breakdown) breakdownResponse {
	resp := breakdownResponse{
		SubtotalExclTax: b.SubtotalExclTax.StringFixed(2),
		Shipping:        b.Shipping.StringFixed(2),
		Discount:        b.Discount.StringFixed(2),
		GrandTotal:      b.GrandTotal.StringFixed(2),
		TaxLines:        make([]taxLineResponse, 0, len(b.TaxLines)),
	}
	for _, line := range b.TaxLines {
		resp.TaxLines = append(resp.TaxLines, taxLineResponse{
			Rate:   line.Rate.String(),
			Amount: line.Amount.StringFixed(2),
		})
	}
	return resp
}
