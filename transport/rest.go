// Package transport предоставляет REST API сервиса счетов поверх gin.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/mayorajesus182/vaultstream-banking/application"
	"github.com/mayorajesus182/vaultstream-banking/domain"
	"github.com/mayorajesus182/vaultstream-banking/eventsourcing"
)

// RESTConfig конфигурация REST адаптера
type RESTConfig struct {
	Addr         string
	BasePath     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Validate проверяет корректность конфигурации
func (c *RESTConfig) Validate() error {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.BasePath == "" {
		c.BasePath = "/api/v1"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return nil
}

// DefaultRESTConfig возвращает конфигурацию REST по умолчанию
func DefaultRESTConfig() RESTConfig {
	return RESTConfig{
		Addr:         ":8080",
		BasePath:     "/api/v1",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// HealthChecker проверка зависимости для /healthz
type HealthChecker func(ctx context.Context) error

// RESTAdapter HTTP вход сервиса счетов
type RESTAdapter struct {
	config   RESTConfig
	router   *gin.Engine
	server   *http.Server
	commands *application.CommandHandler
	queries  *application.QueryHandler
	health   []HealthChecker
	logger   *slog.Logger
	mu       sync.RWMutex
	running  bool
}

// NewRESTAdapter создает новый REST адаптер и регистрирует маршруты
func NewRESTAdapter(config RESTConfig, commands *application.CommandHandler, queries *application.QueryHandler) (*RESTAdapter, error) {
	if commands == nil || queries == nil {
		return nil, fmt.Errorf("command and query handlers cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	adapter := &RESTAdapter{
		config:   config,
		router:   gin.New(),
		commands: commands,
		queries:  queries,
		logger:   slog.Default(),
	}
	adapter.router.Use(gin.Recovery())
	adapter.registerRoutes()
	return adapter, nil
}

// WithLogger устанавливает логгер
func (r *RESTAdapter) WithLogger(logger *slog.Logger) *RESTAdapter {
	r.logger = logger
	return r
}

// WithHealthCheck добавляет проверку зависимости для /healthz
func (r *RESTAdapter) WithHealthCheck(check HealthChecker) *RESTAdapter {
	r.health = append(r.health, check)
	return r
}

// Router возвращает gin router (для тестов)
func (r *RESTAdapter) Router() *gin.Engine {
	return r.router
}

func (r *RESTAdapter) registerRoutes() {
	r.router.GET("/healthz", r.handleHealth)
	r.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.router.Group(r.config.BasePath)
	api.POST("/accounts", r.handleCreateAccount)
	api.GET("/accounts/:id", r.handleGetAccount)
	api.GET("/accounts/:id/history", r.handleGetHistory)
	api.POST("/accounts/:id/activate", r.handleActivate)
	api.POST("/accounts/:id/deposit", r.handleDeposit)
	api.POST("/accounts/:id/withdraw", r.handleWithdraw)
	api.POST("/accounts/:id/freeze", r.handleFreeze)
	api.POST("/accounts/:id/close", r.handleClose)
	api.GET("/accounts/number/:number", r.handleGetByNumber)
	api.GET("/customers/:id/accounts", r.handleListByCustomer)
}

// Start запускает HTTP сервер
func (r *RESTAdapter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	r.server = &http.Server{
		Addr:         r.config.Addr,
		Handler:      r.router,
		ReadTimeout:  r.config.ReadTimeout,
		WriteTimeout: r.config.WriteTimeout,
	}

	go func() {
		if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.running = true
	r.logger.Info("http server started", slog.String("addr", r.config.Addr))
	return nil
}

// Stop останавливает HTTP сервер
func (r *RESTAdapter) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil
	}
	r.running = false
	return r.server.Shutdown(ctx)
}

// IsRunning проверяет, запущен ли адаптер
func (r *RESTAdapter) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

type createAccountRequest struct {
	CustomerID     string          `json:"customer_id" binding:"required"`
	AccountType    string          `json:"account_type" binding:"required"`
	InitialDeposit decimal.Decimal `json:"initial_deposit"`
	Currency       string          `json:"currency" binding:"required"`
}

type moneyRequest struct {
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency" binding:"required"`
	Description          string          `json:"description"`
	TransactionReference string          `json:"transaction_reference"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (r *RESTAdapter) handleCreateAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("INVALID_REQUEST", err.Error()))
		return
	}

	view, err := r.commands.HandleCreateAccount(c.Request.Context(), application.CreateAccountCommand{
		CustomerID:     req.CustomerID,
		AccountType:    domain.AccountType(req.AccountType),
		InitialDeposit: req.InitialDeposit,
		Currency:       req.Currency,
	})
	if err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (r *RESTAdapter) handleGetAccount(c *gin.Context) {
	view, err := r.queries.GetAccountByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (r *RESTAdapter) handleGetByNumber(c *gin.Context) {
	view, err := r.queries.GetAccountByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (r *RESTAdapter) handleListByCustomer(c *gin.Context) {
	views, err := r.queries.ListAccountsByCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": views})
}

func (r *RESTAdapter) handleGetHistory(c *gin.Context) {
	history, err := r.queries.GetAccountHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.respondError(c, err)
		return
	}
	events := make([]gin.H, 0, len(history))
	for _, event := range history {
		events = append(events, gin.H{
			"event_id":    event.EventID(),
			"event_type":  event.EventType(),
			"occurred_at": event.OccurredAt(),
			"event":       event,
		})
	}
	c.JSON(http.StatusOK, gin.H{"account_id": c.Param("id"), "events": events})
}

func (r *RESTAdapter) handleActivate(c *gin.Context) {
	view, err := r.commands.HandleActivateAccount(c.Request.Context(), application.ActivateAccountCommand{
		AccountID: c.Param("id"),
	})
	if err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (r *RESTAdapter) handleDeposit(c *gin.Context) {
	var req moneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("INVALID_REQUEST", err.Error()))
		return
	}

	view, err := r.commands.HandleDepositMoney(c.Request.Context(), application.DepositMoneyCommand{
		AccountID:            c.Param("id"),
		Amount:               req.Amount,
		Currency:             req.Currency,
		Description:          req.Description,
		TransactionReference: req.TransactionReference,
	})
	if err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (r *RESTAdapter) handleWithdraw(c *gin.Context) {
	var req moneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("INVALID_REQUEST", err.Error()))
		return
	}

	view, err := r.commands.HandleWithdrawMoney(c.Request.Context(), application.WithdrawMoneyCommand{
		AccountID:            c.Param("id"),
		Amount:               req.Amount,
		Currency:             req.Currency,
		Description:          req.Description,
		TransactionReference: req.TransactionReference,
	})
	if err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (r *RESTAdapter) handleFreeze(c *gin.Context) {
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)

	view, err := r.commands.HandleFreezeAccount(c.Request.Context(), application.FreezeAccountCommand{
		AccountID: c.Param("id"),
		Reason:    req.Reason,
	})
	if err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (r *RESTAdapter) handleClose(c *gin.Context) {
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)

	view, err := r.commands.HandleCloseAccount(c.Request.Context(), application.CloseAccountCommand{
		AccountID: c.Param("id"),
		Reason:    req.Reason,
	})
	if err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (r *RESTAdapter) handleHealth(c *gin.Context) {
	for _, check := range r.health {
		if err := check(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError отображает доменные и инфраструктурные ошибки на HTTP статусы
func (r *RESTAdapter) respondError(c *gin.Context, err error) {
	switch {
	case domain.IsNotFound(err):
		c.JSON(http.StatusNotFound, errorBody(domain.CodeNotFound, err.Error()))
	case errors.Is(err, eventsourcing.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, errorBody("CONCURRENCY_CONFLICT", err.Error()))
	case domain.IsRuleViolation(err):
		c.JSON(http.StatusUnprocessableEntity, errorBody(domainCode(err), err.Error()))
	default:
		r.logger.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL_ERROR", "internal server error"))
	}
}

func domainCode(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	var ste *domain.StatusTransitionError
	if errors.As(err, &ste) {
		return domain.CodeInvalidStatusTransition
	}
	return domain.CodeBusinessRuleViolation
}

func errorBody(code, message string) gin.H {
	return gin.H{"error": gin.H{"code": code, "message": message}}
}
