// Package api exposes the bot control surface over HTTP.
package api

import (
	"net/http"
	"strconv"

	"options-core/internal/bot"
	"options-core/internal/status"

	"github.com/gin-gonic/gin"
)

// Server wires HTTP endpoints around the bot manager.
type Server struct {
	Router    *gin.Engine
	Bots      *bot.Manager
	Store     *status.Store // nil when redis is not configured
	JWTSecret string
}

func NewServer(bots *bot.Manager, store *status.Store, jwtSecret string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Bots:      bots,
		Store:     store,
		JWTSecret: jwtSecret,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)

	api := s.Router.Group("/api")
	api.Use(AuthMiddleware(s.JWTSecret))
	{
		api.GET("/bots", s.listBots)

		bots := api.Group("/bots/:id")
		{
			bots.POST("/start", s.startBot)
			bots.POST("/stop", s.stopBot)
			bots.GET("/status", s.botStatus)
			bots.POST("/reset", s.resetBot)
			bots.GET("/logs", s.botLogs)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listBots(c *gin.Context) {
	if s.Store == nil {
		c.JSON(http.StatusOK, gin.H{"bots": []string{}})
		return
	}
	ids, err := s.Store.ActiveBots(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "STATUS_STORE_ERROR",
			"error": err.Error(),
		})
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"bots": ids})
}

func (s *Server) startBot(c *gin.Context) {
	botID := c.Param("id")

	var spec bot.StartSpec
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&spec); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "INVALID_PAYLOAD",
				"error": "invalid request payload",
			})
			return
		}
	}

	if err := s.Bots.Start(c.Request.Context(), botID, spec); err != nil {
		code, statusCode := "START_FAILED", http.StatusInternalServerError
		if err == bot.ErrAlreadyRunning {
			code, statusCode = "ALREADY_RUNNING", http.StatusConflict
		}
		c.JSON(statusCode, gin.H{"code": code, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started", "bot": botID})
}

func (s *Server) stopBot(c *gin.Context) {
	botID := c.Param("id")
	if err := s.Bots.Stop(botID); err != nil {
		code, statusCode := "STOP_FAILED", http.StatusInternalServerError
		if err == bot.ErrNotRunning {
			code, statusCode = "NOT_RUNNING", http.StatusNotFound
		}
		c.JSON(statusCode, gin.H{"code": code, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped", "bot": botID})
}

func (s *Server) botStatus(c *gin.Context) {
	botID := c.Param("id")
	info := s.Bots.Status(botID)
	if !info.Running && s.Store != nil {
		// A bot on another node may still be reporting through redis.
		if state, err := s.Store.Status(c.Request.Context(), botID); err == nil && state != "" {
			info.State = state
		}
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) resetBot(c *gin.Context) {
	botID := c.Param("id")
	if err := s.Bots.Reset(botID); err != nil {
		code, statusCode := "RESET_FAILED", http.StatusInternalServerError
		if err == bot.ErrAlreadyRunning {
			code, statusCode = "STILL_RUNNING", http.StatusConflict
		}
		c.JSON(statusCode, gin.H{"code": code, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset", "bot": botID})
}

func (s *Server) botLogs(c *gin.Context) {
	botID := c.Param("id")
	n, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	lines := s.Bots.Logs(c.Request.Context(), botID, n)
	if lines == nil {
		lines = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"bot": botID, "logs": lines})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
