package server

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"collabboard-backend/internal/auth"
	"collabboard-backend/internal/cache"
	"collabboard-backend/internal/config"
	"collabboard-backend/internal/handler"
	"collabboard-backend/internal/service"
)

// Server Fiber 서버 래퍼
type Server struct {
	app            *fiber.App
	cfg            *config.Config
	db             *gorm.DB
	hub            *handler.BoardHub
	boardHandler   *handler.BoardHandler
	boardWSHandler *handler.BoardWSHandler
	healthHandler  *handler.HealthHandler
	jwtManager     *auth.JWTManager
}

// New 새 서버 인스턴스 생성
func New(cfg *config.Config, db *gorm.DB, redisClient *cache.RedisClient) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Collab Board Sync Gateway",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // WebSocket과 호환성 문제로 비활성화
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		BodyLimit:             10 * 1024 * 1024, // 10MB - 큰 보드 문서 허용
		DisableStartupMessage: false,
	})

	jwtManager := auth.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	boards := service.NewBoardService(db, redisClient)
	hub := handler.NewBoardHub(boards, cfg)

	return &Server{
		app:            app,
		cfg:            cfg,
		db:             db,
		hub:            hub,
		boardHandler:   handler.NewBoardHandler(boards, hub),
		boardWSHandler: handler.NewBoardWSHandler(hub),
		healthHandler:  handler.NewHealthHandler(db, redisClient, hub),
		jwtManager:     jwtManager,
	}
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() *Server {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// 로깅
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	return s
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() *Server {
	// 헬스체크 엔드포인트
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)

	// Rate Limiter (보드 생성/복제 남용 방지)
	createLimiter := limiter.New(limiter.Config{
		Max:        30,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	// Board 라우트 그룹 (게스트 열람 허용, 목록/삭제는 인증 필요)
	boardGroup := s.app.Group("/api/boards", auth.OptionalAuthMiddleware(s.jwtManager))
	boardGroup.Get("", auth.AuthMiddleware(s.jwtManager), s.boardHandler.ListBoards)
	boardGroup.Post("", createLimiter, s.boardHandler.CreateBoard)
	boardGroup.Get("/:roomId", s.boardHandler.GetBoard)
	boardGroup.Post("/:roomId/save", s.boardHandler.SaveBoard)
	boardGroup.Post("/:roomId/draw", s.boardHandler.DrawElement)
	boardGroup.Post("/:roomId/undo", s.boardHandler.UndoBoard)
	boardGroup.Post("/:roomId/redo", s.boardHandler.RedoBoard)
	boardGroup.Post("/:roomId/duplicate", createLimiter, s.boardHandler.DuplicateBoard)
	boardGroup.Delete("/:roomId", auth.AuthMiddleware(s.jwtManager), s.boardHandler.DeleteBoard)
	boardGroup.Delete("/:roomId/clear", s.boardHandler.ClearBoard)

	// WebSocket 업그레이드 체크 미들웨어
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket 보드 동기화 엔드포인트 (roomId 기반)
	s.app.Get("/ws/board/:roomId", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		roomID := c.Params("roomId")
		if roomID == "" {
			return c.SendStatus(fiber.StatusBadRequest)
		}

		// 쿠키 또는 쿼리에서 JWT 토큰 추출 (게스트 허용)
		accessToken := c.Cookies("access_token")
		if accessToken == "" {
			accessToken = c.Query("token", "")
		}

		userID := ""
		nickname := c.Query("name", "")
		if accessToken != "" {
			claims, err := s.jwtManager.ValidateAccessToken(accessToken)
			if err != nil {
				return c.SendStatus(fiber.StatusUnauthorized)
			}
			userID = strconv.FormatInt(claims.UserID, 10)
			if nickname == "" {
				nickname = claims.Nickname
			}
		} else {
			// Guests get a connection-scoped identity for presence.
			userID = "guest-" + uuid.New().String()[:8]
		}
		if nickname == "" {
			nickname = "Guest"
		}

		c.Locals("roomId", roomID)
		c.Locals("wsUserId", userID)
		c.Locals("wsNickname", nickname)

		return c.Next()
	}, websocket.New(s.boardWSHandler.HandleWebSocket, websocket.Config{
		ReadBufferSize:   s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:  s.cfg.WebSocket.WriteBufferSize,
		HandshakeTimeout: s.cfg.WebSocket.HandshakeTimeout,
	}))

	return s
}

// Start 서버 시작 (Graceful Shutdown 지원)
func (s *Server) Start() error {
	// Graceful Shutdown 설정
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("🛑 Shutting down server...")
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Fatalf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 Collab Board Sync Gateway starting on %s", s.cfg.Server.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost%s/ws/board/:roomId", s.cfg.Server.Port)

	err := s.app.Listen(s.cfg.Server.Port)

	// Listen has returned; flush every open board before exiting so the
	// last autosave window is not lost.
	s.hub.Shutdown()

	return err
}

// Shutdown 서버 종료
func (s *Server) Shutdown() error {
	err := s.app.ShutdownWithTimeout(30 * time.Second)
	s.hub.Shutdown()
	return err
}
