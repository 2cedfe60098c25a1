package server

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"lightsats/internal/domain"
	"lightsats/internal/infra"
	"lightsats/internal/infra/storage"
	"lightsats/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Server exposes the tip lifecycle over HTTP.
type Server struct {
	cfg     *infra.Config
	store   *storage.Storage
	tips    *service.TipService
	rates   *service.RateService
	avatars *infra.AvatarDownloader
	hub     *Hub
}

// New creates a server over the given services. avatars may be nil, in which
// case the avatar endpoint always reports not found.
func New(cfg *infra.Config, store *storage.Storage, tips *service.TipService, rates *service.RateService, avatars *infra.AvatarDownloader) *Server {
	s := &Server{
		cfg:     cfg,
		store:   store,
		tips:    tips,
		rates:   rates,
		avatars: avatars,
		hub:     NewHub(),
	}
	tips.SetNotifier(s.hub)
	return s
}

// Hub returns the websocket notification hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS configuration
	config := cors.DefaultConfig()
	if s.cfg.Server.CORSEnabled {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = []string{s.cfg.Server.FrontendURL}
	}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	// Auth endpoints
	r.POST("/auth/login", s.HandleLogin)

	// Public API
	r.GET("/api/exchange/rates", s.HandleRates)
	r.GET("/api/exchange/currencies", s.HandleCurrencies)
	r.GET("/api/tippee/tips/:id", s.HandleGetPublicTip)
	r.GET("/api/users/:id/avatar", s.HandleAvatar)
	r.GET("/api/metrics", s.HandleMetrics)

	// Authenticated API
	auth := r.Group("/", s.RequireAuth())
	auth.GET("/api/me", s.HandleMe)
	auth.POST("/api/tipper/tips", s.HandleCreateTip)
	auth.GET("/api/tipper/tips", s.HandleListTips)
	auth.POST("/api/tippee/tips/:id/claim", s.HandleClaimTip)
	auth.POST("/api/tippee/tips/:id/withdraw", s.HandleWithdrawTip)
	auth.GET("/api/tippee/withdrawals", s.HandleListWithdrawals)
	auth.GET("/ws", s.HandleWS)

	return r
}

// Start runs the HTTP server on the configured address.
func (s *Server) Start() error {
	slog.Info("HTTP server starting", slog.String("addr", s.cfg.Server.Addr))
	return s.Router().Run(s.cfg.Server.Addr)
}

// HandleRates returns the latest exchange rate table.
func (s *Server) HandleRates(c *gin.Context) {
	if !s.rates.Loaded() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rates not loaded"})
		return
	}
	c.JSON(http.StatusOK, s.rates.Table())
}

// HandleCurrencies returns the sorted list of currencies with a known rate.
func (s *Server) HandleCurrencies(c *gin.Context) {
	if !s.rates.Loaded() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rates not loaded"})
		return
	}
	c.JSON(http.StatusOK, s.rates.Currencies())
}

// HandleAvatar serves the locally cached avatar image for a user.
func (s *Server) HandleAvatar(c *gin.Context) {
	if s.avatars == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "avatar not cached"})
		return
	}
	path := s.avatars.GetAvatarPath(c.Param("id"))
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "avatar not cached"})
		return
	}
	c.File(path)
}

// HandleMetrics returns the in-process metrics snapshot.
func (s *Server) HandleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, infra.GlobalMetrics.Snapshot())
}

// HandleGetPublicTip returns the redacted projection of a tip.
func (s *Server) HandleGetPublicTip(c *gin.Context) {
	public, err := s.tips.PublicProjection(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, public)
}

// HandleCreateTip creates a tip for the authenticated tipper.
func (s *Server) HandleCreateTip(c *gin.Context) {
	var req service.CreateTipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tip, err := s.tips.Create(c.GetString(ctxUserID), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tip)
}

// HandleListTips lists the authenticated user's created tips.
func (s *Server) HandleListTips(c *gin.Context) {
	tips, err := s.tips.TipsByTipper(c.GetString(ctxUserID))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tips)
}

// HandleClaimTip claims a tip for the authenticated user and returns the
// refreshed public projection.
func (s *Server) HandleClaimTip(c *gin.Context) {
	if _, err := s.tips.Claim(c.Param("id"), c.GetString(ctxUserID)); err != nil {
		s.writeError(c, err)
		return
	}
	public, err := s.tips.PublicProjection(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, public)
}

type withdrawRequest struct {
	Invoice string `json:"invoice" binding:"required"`
}

// HandleWithdrawTip records a withdrawal for a claimed tip.
func (s *Server) HandleWithdrawTip(c *gin.Context) {
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w, err := s.tips.Withdraw(c.Param("id"), c.GetString(ctxUserID), req.Invoice)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

// HandleListWithdrawals lists the authenticated user's withdrawals.
func (s *Server) HandleListWithdrawals(c *gin.Context) {
	ws, err := s.tips.WithdrawalsByUser(c.GetString(ctxUserID))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

// writeError maps domain errors onto HTTP statuses. Messages stay
// human-readable; no structured error codes cross the wire.
func (s *Server) writeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason})
	case errors.Is(err, domain.ErrTipNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrOwnTip), errors.Is(err, domain.ErrNotClaimant):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrAlreadyClaimed), errors.Is(err, domain.ErrTipNotClaimed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrTipExpired):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	default:
		infra.GlobalMetrics.RecordError()
		slog.Error("Request failed", slog.String("path", c.FullPath()), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
