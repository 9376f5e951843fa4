package main

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"golang.org/x/time/rate"

	"github.com/soumitsalman/insightsack/logger"
	"github.com/soumitsalman/insightsack/sdk"
)

// GET /api/data?topic=oil&intensity_range=21-40&limit=50
// GET /api/stats, /api/sector-analysis, /api/topic-trends, /api/pestle-analysis ... (same filters)
// GET /api/topics, /api/sectors, ... (no filters)
// GET /api/health

const _REQUEST_ID_HEADER = "X-Request-ID"

// listing path -> record field
var _DISTINCT_ROUTES = map[string]string{
	"/topics":    "topic",
	"/sectors":   "sector",
	"/regions":   "region",
	"/countries": "country",
	"/sources":   "source",
	"/pestles":   "pestle",
	"/impacts":   "impact",
	"/cities":    "city",
}

// filteredHandler binds the filter query string, runs one dashboard view and
// writes its result.
func filteredHandler[T any](query func(ctx context.Context, filters *sdk.FilterSet) (T, error)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		filters, ok := bindFilters(ctx)
		if !ok {
			return
		}
		res, err := query(ctx.Request.Context(), filters)
		if err != nil {
			respondWithError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, res)
	}
}

func getDataHandler(dashboard *sdk.Dashboard) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		filters, ok := bindFilters(ctx)
		if !ok {
			return
		}
		limit := sdk.DEFAULT_LIMIT
		if raw := ctx.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				respondWithError(ctx, &sdk.ValidationError{Param: "limit", Value: raw, Reason: "expected a whole number"})
				return
			}
			limit = n
		}
		records, err := dashboard.Records(ctx.Request.Context(), filters, limit)
		if err != nil {
			respondWithError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, records)
	}
}

func getDistinctHandler(dashboard *sdk.Dashboard, field string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		values, err := dashboard.Distinct(ctx.Request.Context(), field)
		if err != nil {
			respondWithError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, values)
	}
}

func getSchemaHandler() gin.HandlerFunc {
	reflector := jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}
	schema := reflector.Reflect(&sdk.Record{})
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, schema)
	}
}

func healthHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func bindFilters(ctx *gin.Context) (*sdk.FilterSet, bool) {
	filters, err := sdk.ParseFilterSet(ctx.Request.URL.Query())
	if err != nil {
		respondWithError(ctx, err)
		return nil, false
	}
	return filters, true
}

// malformed filters are the client's fault, everything else is ours
func respondWithError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	var invalid *sdk.ValidationError
	if errors.As(err, &invalid) {
		status = http.StatusBadRequest
	} else {
		logger.Component("server").WithError(err).WithField("path", ctx.FullPath()).Error("request failed")
	}
	ctx.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func initializeRateLimiter(rps float64, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(ctx *gin.Context) {
		if limiter.Allow() {
			ctx.Next()
		} else {
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		}
	}
}

func requestLogger() gin.HandlerFunc {
	log := logger.Component("http")
	return func(ctx *gin.Context) {
		start := time.Now()
		request_id := ctx.GetHeader(_REQUEST_ID_HEADER)
		if request_id == "" {
			request_id = uuid.NewString()
		}
		ctx.Header(_REQUEST_ID_HEADER, request_id)

		ctx.Next()

		log.WithFields(map[string]any{
			"request_id": request_id,
			"method":     ctx.Request.Method,
			"path":       ctx.Request.URL.Path,
			"query":      ctx.Request.URL.RawQuery,
			"status":     ctx.Writer.Status(),
			"latency":    time.Since(start).String(),
			"client_ip":  ctx.ClientIP(),
		}).Info("request")
	}
}

// corsPolicy allows GET from the configured origins, a comma separated list
// or "*". Credentials are only allowed for an explicit origin list.
func corsPolicy(origins string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", _REQUEST_ID_HEADER},
		ExposeHeaders: []string{_REQUEST_ID_HEADER},
		MaxAge:        12 * time.Hour,
	}
	var allowed []string
	for _, origin := range strings.Split(origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed = append(allowed, origin)
		}
	}
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowed
		config.AllowCredentials = true
	}
	return cors.New(config)
}

func securityHeaders() gin.HandlerFunc {
	return secure.New(secure.Config{
		ContentTypeNosniff:      true,
		CustomFrameOptionsValue: "SAMEORIGIN",
		ReferrerPolicy:          "no-referrer",
	})
}

func newServer(dashboard *sdk.Dashboard, cfg *Config) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), securityHeaders(), corsPolicy(cfg.Server.CorsOrigin))
	router.NoRoute(func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "route not found: " + ctx.Request.URL.Path})
	})

	group := router.Group("/api")
	group.Use(initializeRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst))

	group.GET("/health", healthHandler)
	group.GET("/schema", getSchemaHandler())
	group.GET("/data", getDataHandler(dashboard))

	group.GET("/stats", filteredHandler(dashboard.Stats))
	group.GET("/sector-analysis", filteredHandler(dashboard.SectorAnalysis))
	group.GET("/topic-trends", filteredHandler(dashboard.TopicTrends))
	group.GET("/pestle-analysis", filteredHandler(dashboard.PestleAnalysis))
	group.GET("/swot-analysis", filteredHandler(dashboard.SwotAnalysis))
	group.GET("/intensity-distribution", filteredHandler(dashboard.IntensityDistribution))
	group.GET("/region-distribution", filteredHandler(dashboard.RegionDistribution))
	group.GET("/year-analysis", filteredHandler(dashboard.YearAnalysis))

	for path, field := range _DISTINCT_ROUTES {
		group.GET(path, getDistinctHandler(dashboard, field))
	}
	return router
}
