package handler

import (
	"errors"
	"net/http"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"

	"gaslessrelay/internal/models"
	"gaslessrelay/internal/pkg/limiter"
	"gaslessrelay/internal/services"
)

type groupRelay struct {
	container *do.Injector
}

type relayResponse struct {
	Submitted bool   `json:"submitted,omitempty"`
	Pending   bool   `json:"pending,omitempty"`
	Failed    bool   `json:"failed,omitempty"`
	Signature string `json:"signature,omitempty"`
	Cause     string `json:"cause,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (gr *groupRelay) Gasless(c echo.Context) error {
	var req models.GaslessRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, relayResponse{Error: "invalid request body"})
	}

	serviceRelay, err := do.Invoke[*services.ServiceRelay](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	outcome, err := serviceRelay.Relay(c.Request().Context(), &req)
	return renderOutcome(c, outcome, err)
}

func (gr *groupRelay) Status(c echo.Context) error {
	serviceRelay, err := do.Invoke[*services.ServiceRelay](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	status, err := serviceRelay.PayerStatus(c.Request().Context())
	return httpx.RestAbort(c, status, services.Classify(err))
}

func (gr *groupRelay) ClaimTransaction(c echo.Context) error {
	var req models.ClaimTransactionRequest
	if err := c.Bind(&req); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Validation))
	}

	serviceRelay, err := do.Invoke[*services.ServiceRelay](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	tx, err := serviceRelay.ClaimTransaction(c.Request().Context(), &req)
	return httpx.RestAbort(c, tx, services.Classify(err))
}

func renderOutcome(c echo.Context, outcome *models.RelayOutcome, err error) error {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, relayResponse{Error: services.ErrUnauthorized.Error()})
	case errors.Is(err, services.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, relayResponse{Error: err.Error()})
	case errors.Is(err, limiter.ErrRateLimited):
		return c.JSON(http.StatusTooManyRequests, relayResponse{Error: err.Error()})
	}

	if outcome != nil {
		switch outcome.Status {
		case models.RelayStatusSubmitted:
			return c.JSON(http.StatusOK, relayResponse{Submitted: true, Signature: outcome.Signature})
		case models.RelayStatusPending:
			return c.JSON(http.StatusAccepted, relayResponse{Pending: true, Signature: outcome.Signature})
		case models.RelayStatusFailed:
			return c.JSON(http.StatusBadGateway, relayResponse{Failed: true, Signature: outcome.Signature, Cause: outcome.Cause})
		}
	}

	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, relayResponse{Error: "internal error"})
}
