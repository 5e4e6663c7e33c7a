package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/mealog/internal/auth"
	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	subjectContextKey        = "mealog_subject"
	accessTokenQueryKey      = "access_token"
	defaultHeartbeatInterval = 25 * time.Second
)

var (
	errMissingMealService   = errors.New("meal service dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// MealService is the repository surface the HTTP API drives.
type MealService interface {
	AddMeal(ctx context.Context, meal meals.Meal) error
	UpdateMeal(ctx context.Context, id string, patch meals.Patch) error
	DeleteMeal(ctx context.Context, id string) error
	Meals() []meals.Meal
	MealsByDate(date string) []meals.Meal
	StatsByDate(date string) meals.Totals
	Subscribe(ctx context.Context) (<-chan meals.Snapshot, func())
	IDProvider() meals.IDProvider
}

// TokenValidator checks API bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP API. A nil Tokens leaves the API unauthenticated,
// which is meant for loopback use. Browser pages from AllowedOrigins may call
// the API cross-origin; every other foreign origin is refused.
type Dependencies struct {
	Meals             MealService
	Tokens            TokenValidator
	AllowedOrigins    []string
	Logger            *zap.Logger
	HeartbeatInterval time.Duration
}

// NewHTTPHandler builds the gin engine serving the meal API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Meals == nil {
		return nil, errMissingMealService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		meals:     deps.Meals,
		tokens:    deps.Tokens,
		logger:    logger,
		heartbeat: heartbeat,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	if deps.Tokens != nil {
		protected.Use(handler.authorizeRequest)
	}
	protected.GET("/meals", handler.handleListMeals)
	protected.POST("/meals", handler.handleCreateMeal)
	protected.GET("/meals/stream", handler.handleMealStream)
	protected.PATCH("/meals/:id", handler.handleUpdateMeal)
	protected.DELETE("/meals/:id", handler.handleDeleteMeal)
	protected.GET("/days/:date", handler.handleDay)
	protected.GET("/months/:month", handler.handleMonth)
	protected.GET("/suggestions", handler.handleSuggestions)

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}
	_, allowAny := allowed["*"]
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if allowAny {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{"Authorization", "Content-Type", "Last-Event-ID"},
		MaxAge:       12 * time.Hour,
	})
}

type httpHandler struct {
	meals     MealService
	tokens    TokenValidator
	logger    *zap.Logger
	heartbeat time.Duration
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := ""
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	} else if c.Request.Method == http.MethodGet {
		// EventSource clients cannot set headers.
		token = strings.TrimSpace(c.Query(accessTokenQueryKey))
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(subjectContextKey, subject)
	c.Next()
}
