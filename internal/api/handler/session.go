package handler

import (
	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"

	"gaslessrelay/internal/models"
	"gaslessrelay/internal/services"
)

type groupSession struct {
	container *do.Injector
}

type sessionResponse struct {
	Token string               `json:"token"`
	User  *models.UserFromAuth `json:"user"`
}

func (gr *groupSession) Create(c echo.Context) error {
	user, err := ResolveValidUser(c.Request().Context())
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	authentication, err := do.Invoke[*services.Authentication](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	token, err := authentication.CreateToken(user)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}
	return httpx.RestAbort(c, &sessionResponse{token, user}, nil)
}
