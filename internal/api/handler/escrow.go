package handler

import (
	"github.com/gagliardetto/solana-go"
	"github.com/go-faster/errors"
	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"

	"gaslessrelay/internal/services"
)

type groupEscrow struct {
	container *do.Injector
}

func (gr *groupEscrow) Address(c echo.Context) error {
	owner, err := solana.PublicKeyFromBase58(c.QueryParam("owner"))
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(errors.Wrap(err, "owner"), errorx.Validation))
	}

	serviceEscrow, err := do.Invoke[*services.ServiceEscrow](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	address, err := serviceEscrow.Address(owner, c.QueryParam("username"))
	return httpx.RestAbort(c, address, services.Classify(err))
}
