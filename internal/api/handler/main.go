package handler

import (
	"net/http"

	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do"

	"gaslessrelay/internal/services"
)

type Config struct {
	Container *do.Injector
	Mode      string
	Origins   []string
	// Metrics replaces the default prometheus registry when set.
	Metrics *prometheus.Registry
}

func New(cfg *Config) (http.Handler, error) {
	r := echo.New()
	r.Pre(middleware.RemoveTrailingSlash())
	if cfg.Mode == services.SERVER_MODE_DEVELOPMENT {
		r.Debug = true
		pprof.Register(r)
	}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if cfg.Metrics != nil {
		registerer, gatherer = cfg.Metrics, cfg.Metrics
	}

	r.JSONSerializer = httpx.SegmentJSONSerializer{}
	r.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339}\t${method}\t${uri}\t${status}\t${latency_human}\n",
	}))
	r.Use(middleware.Recover())
	r.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "gaslessrelay",
		Registerer: registerer,
	}))

	r.GET("", func(c echo.Context) error {
		return c.String(http.StatusOK, "🤖")
	})
	r.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))

	routesAPIv1 := r.Group("/api/v1")
	{
		bot, err := do.Invoke[*services.Bot](cfg.Container)
		if err != nil {
			return nil, err
		}
		authentication, err := do.Invoke[*services.Authentication](cfg.Container)
		if err != nil {
			return nil, err
		}
		cors := middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.Origins,
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
			AllowCredentials: true,
			MaxAge:           60 * 60,
		})

		routesAPIv1.Use(cors)
		routesAPIv1.GET("", Hello)

		rl := groupRelay{cfg.Container}
		routesAPIv1.POST("/gasless", rl.Gasless)
		routesAPIv1.GET("/relay/status", rl.Status)
		routesAPIv1.POST("/relay/claim-transaction", rl.ClaimTransaction)

		e := groupEscrow{cfg.Container}
		routesAPIv1.GET("/escrow/address", e.Address)

		// raw init data in the Authorization header
		routesAPIv1InitData := routesAPIv1.Group("")
		routesAPIv1InitData.Use(Authn(bot.ValidateInitData))
		{
			s := groupSession{cfg.Container}
			routesAPIv1InitData.POST("/session", s.Create)

			f := groupFee{cfg.Container}
			routesAPIv1InitData.POST("/fee/invoice", f.Invoice)
		}

		// session token in the Authorization header
		routesAPIv1Session := routesAPIv1.Group("")
		routesAPIv1Session.Use(Authn(authentication.Validate))
		{
			f := groupFee{cfg.Container}
			routesAPIv1Session.GET("/fee/quote", f.Quote)
		}
	}

	return r, nil
}

func Hello(c echo.Context) error {
	return httpx.RestAbort(c, "hello world", nil)
}
