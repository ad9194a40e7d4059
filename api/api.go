package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pedalpoint/kiosk-backend/accessory"
	"github.com/pedalpoint/kiosk-backend/customer"
	"github.com/pedalpoint/kiosk-backend/cycle"
	"github.com/pedalpoint/kiosk-backend/damage"
	"github.com/pedalpoint/kiosk-backend/internal/auth0"
	"github.com/pedalpoint/kiosk-backend/internal/middleware"
	"github.com/pedalpoint/kiosk-backend/internal/o11y"
	"github.com/pedalpoint/kiosk-backend/kiosk"
	"github.com/pedalpoint/kiosk-backend/location"
	"github.com/pedalpoint/kiosk-backend/pricing"
	"github.com/pedalpoint/kiosk-backend/rental"
	"github.com/pedalpoint/kiosk-backend/staff"
)

type Repos struct {
	Cycles      *cycle.Repository
	Accessories *accessory.Repository
	Customers   *customer.Repository
	Staff       *staff.Repository
	Locations   *location.Repository
	Rentals     *rental.Repository
	Damages     *damage.Repository
	Slabs       *pricing.Repository
}

type API struct {
	r     *gin.Engine
	repos Repos

	calc    *pricing.Calculator
	index   *kiosk.Index
	watcher *kiosk.Watcher
	auth    auth0.Client
}

func New(repos Repos, obs *o11y.Observability, authClient auth0.Client, auth0Domain, audience, metricsUsername, metricsPassword string) (*API, error) {
	calc := pricing.NewCalculator(repos.Slabs, repos.Accessories)
	a := &API{
		r:       gin.New(),
		repos:   repos,
		calc:    calc,
		index:   kiosk.NewIndex(repos.Cycles, repos.Accessories, repos.Rentals),
		watcher: kiosk.NewWatcher(calc, kiosk.DefaultWatchInterval, obs.Logger),
		auth:    authClient,
	}

	a.r.Use(gin.Recovery())
	a.r.Use(middleware.Tracing())
	a.r.Use(middleware.Logging(obs.Logger))
	a.r.Use(middleware.Metrics(obs.Registry))
	registerKioskMetrics(obs.Registry)

	a.r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	a.r.GET("/metrics", gin.BasicAuth(gin.Accounts{metricsUsername: metricsPassword}),
		gin.WrapH(promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{})))

	jwt, err := middleware.JWT(auth0Domain, audience)
	if err != nil {
		return nil, err
	}

	protected := a.r.Group("/")
	protected.Use(jwt)
	a.RegisterRoutes(protected)

	return a, nil
}

// RegisterRoutes attaches every authenticated route. Exported so the
// acceptance tests can mount the same handlers behind a fake auth layer.
func (a *API) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/me", a.meHandler)

	g.POST("/kiosk/scan", a.scanHandler)

	g.GET("/cycles", a.cyclesHandler)
	g.POST("/cycles/:id/toggle-maintenance", a.toggleMaintenanceHandler)
	g.GET("/accessories", a.accessoriesHandler)
	g.GET("/locations", a.locationsHandler)

	g.POST("/rentals/start", a.startRentalHandler)
	g.GET("/rentals", a.listRentalsHandler)
	g.GET("/rentals/:id", a.getRentalHandler)
	g.GET("/rentals/:id/estimate", a.estimateHandler)
	g.POST("/rentals/:id/end", a.endRentalHandler)
	g.POST("/rentals/:id/override", a.overrideHandler)
	g.POST("/rentals/:id/payment", a.paymentHandler)

	g.POST("/damages", a.createDamageHandler)
	g.GET("/damages", a.listDamagesHandler)
	g.POST("/damages/:id/status", a.damageStatusHandler)
	g.DELETE("/damages/:id", a.deleteDamageHandler)

	g.GET("/dashboard/stats", a.dashboardStatsHandler)
	g.GET("/reports/rentals", a.rentalsReportHandler)
	g.GET("/reports/rentals.csv", a.rentalsReportCSVHandler)
	g.GET("/reports/summary", a.summaryReportHandler)
}

// NewForTesting builds an API with no JWT layer, no metrics endpoint and no
// observability middleware. Tests mount RegisterRoutes behind their own auth.
func NewForTesting(repos Repos, authClient auth0.Client) *API {
	calc := pricing.NewCalculator(repos.Slabs, repos.Accessories)
	a := &API{
		r:       gin.New(),
		repos:   repos,
		calc:    calc,
		index:   kiosk.NewIndex(repos.Cycles, repos.Accessories, repos.Rentals),
		watcher: kiosk.NewWatcher(calc, kiosk.DefaultWatchInterval, nil),
		auth:    authClient,
	}
	a.r.Use(gin.Recovery())
	return a
}

func (a *API) Router() *gin.Engine {
	return a.r
}

// Index exposes the kiosk lookup cache so the server can refresh it on a
// schedule.
func (a *API) Index() *kiosk.Index {
	return a.index
}

// Watcher exposes the active-rental estimate watcher.
func (a *API) Watcher() *kiosk.Watcher {
	return a.watcher
}
