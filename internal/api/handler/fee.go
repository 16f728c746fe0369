package handler

import (
	"github.com/go-faster/errors"
	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
	"github.com/shopspring/decimal"

	"gaslessrelay/internal/services"
)

type groupFee struct {
	container *do.Injector
}

func (gr *groupFee) Quote(c echo.Context) error {
	if _, err := ResolveValidUser(c.Request().Context()); err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	amountSol, err := decimal.NewFromString(c.QueryParam("amount_sol"))
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(errors.Wrap(err, "amount_sol"), errorx.Validation))
	}

	divisor := decimal.Zero
	if v := c.QueryParam("divisor"); v != "" {
		if divisor, err = decimal.NewFromString(v); err != nil || !divisor.IsPositive() {
			return httpx.RestAbort(c, nil, errorx.Wrap(errors.New("divisor must be a positive number"), errorx.Validation))
		}
	}

	serviceFee, err := do.Invoke[*services.ServiceFee](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	quote, err := serviceFee.Quote(c.Request().Context(), amountSol, divisor)
	return httpx.RestAbort(c, quote, services.Classify(err))
}

type invoiceRequest struct {
	AmountSol decimal.Decimal `json:"amount_sol"`
}

func (gr *groupFee) Invoice(c echo.Context) error {
	user, err := ResolveValidUser(c.Request().Context())
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	var req invoiceRequest
	if err := c.Bind(&req); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Validation))
	}

	serviceInvoice, err := do.Invoke[*services.ServiceInvoice](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	link, err := serviceInvoice.CreateFeeInvoiceLink(c.Request().Context(), user, req.AmountSol)
	return httpx.RestAbort(c, link, services.Classify(err))
}
