package ops

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/simaogato/kipubank-backend/internal/domain"
	"github.com/simaogato/kipubank-backend/internal/metrics"
)

// AssetLister reports the tracked assets with their recorded totals
type AssetLister interface {
	Totals(ctx context.Context) ([]domain.AssetTotal, error)
}

// BindingLookup reports the price binding of an asset
type BindingLookup interface {
	Binding(asset domain.Address) (domain.PriceBinding, bool)
}

type assetView struct {
	Asset    string `json:"asset"`
	Total    string `json:"total"`
	Source   string `json:"source,omitempty"`
	Decimals *int32 `json:"decimals,omitempty"`
}

// Auth holds what the owner-only routes need to identify the caller
type Auth struct {
	Secret []byte
	Access domain.AccessController
}

// NewRouter builds the operational HTTP surface:
// liveness, readiness, prometheus metrics and the tracked-asset listing.
// The listing exposes custody totals and is restricted to owners.
func NewRouter(health *Health, registry *prometheus.Registry, assets AssetLister, bindings BindingLookup, authn Auth, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(requestID())
	router.Use(requestLogger(logger))
	router.Use(recovery(logger))

	router.GET("/healthz", livenessHandler)
	router.GET("/readyz", readinessHandler(health))
	if registry != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(registry)))
	}
	owners := router.Group("/v1", requireOwner(authn.Secret, authn.Access))
	owners.GET("/assets", listAssetsHandler(assets, bindings, logger))

	return router
}

func listAssetsHandler(assets AssetLister, bindings BindingLookup, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		totals, err := assets.Totals(c.Request.Context())
		if err != nil {
			logger.Error("list assets failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		out := make([]assetView, 0, len(totals))
		for _, total := range totals {
			view := assetView{Asset: total.Asset.String(), Total: total.Amount.String()}
			if bindings != nil {
				if b, ok := bindings.Binding(total.Asset); ok {
					decimals := b.Decimals
					view.Source = b.Ref
					view.Decimals = &decimals
				}
			}
			out = append(out, view)
		}
		c.JSON(http.StatusOK, gin.H{"assets": out})
	}
}
