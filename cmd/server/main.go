package main

import (
	"context"
	"net/http"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/talelchaanbi/consultlink/internal/chat"
	"github.com/talelchaanbi/consultlink/internal/db"
	"github.com/talelchaanbi/consultlink/internal/logger"
	"github.com/talelchaanbi/consultlink/internal/middleware"
	"github.com/talelchaanbi/consultlink/internal/notification"
	"github.com/talelchaanbi/consultlink/internal/realtime"
	"github.com/talelchaanbi/consultlink/internal/session"
	"github.com/talelchaanbi/consultlink/internal/user"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug logging."`
		Version kong.VersionFlag
		Serve   ServeCmd `cmd:"" default:"withargs" help:"Start the consultlink server."`
	}
)

type ServeCmd struct {
	Addr          string        `help:"HTTP listen address." default:":4500"`
	DBDSN         string        `help:"Postgres DSN." env:"DB_DSN" required:""`
	RedisAddr     string        `help:"Redis address for sessions." env:"REDIS_ADDR" default:"localhost:6379"`
	SessionSecret string        `help:"Secret used to sign session cookies." env:"SESSION_SECRET" required:""`
	SessionTTL    time.Duration `help:"Sliding session lifetime." env:"SESSION_TTL" default:"24h"`
}

func (s *ServeCmd) Run() error {
	ctx := context.Background()
	log := logger.Setup(cli.Debug)

	// Platform layer: Postgres + Redis.
	database, err := db.NewDatabase(ctx, s.DBDSN)
	if err != nil {
		return err
	}
	defer database.Close()
	log.Info().Msg("connected to PostgreSQL")

	if err := database.AutoMigrate(); err != nil {
		return err
	}
	log.Info().Msg("database schema initialized")

	redisClient := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return err
	}
	defer redisClient.Close()
	log.Info().Msg("connected to Redis")

	// Session layer, shared by HTTP middleware and the socket handshake.
	sessionStore := session.NewRedisStore(redisClient, s.SessionTTL)
	resolver := session.NewResolver(sessionStore, []byte(s.SessionSecret))
	authMiddleware := middleware.NewAuth(resolver, log)

	// Accounts.
	userRepo := user.NewRepository(database.Conn)
	userService := user.NewService(userRepo)
	userHandler := user.NewHandler(userService, resolver, log)

	// Real-time core.
	chatStore := chat.NewPostgresStore(database.Conn)
	registry := realtime.NewRegistry(log)
	hub := realtime.NewHub(registry, chatStore, resolver, log)

	// Notifications: durable store plus best-effort push through the hub.
	notificationStore := notification.NewPostgresStore(database.Conn)
	notifier := notification.NewNotifier(notificationStore, hub, log)
	notificationHandler := notification.NewHandler(notificationStore, log)

	chatService := chat.NewService(chatStore, hub, notifier, log)
	chatHandler := chat.NewHandler(chatService, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public routes.
	r.Post("/api/auth/register", userHandler.Register)
	r.Post("/api/auth/login", userHandler.Login)

	// The socket endpoint authenticates its own handshake through the same
	// resolver the middleware uses.
	r.Get("/ws", hub.ServeWS)

	// Protected routes.
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		r.Post("/api/auth/logout", userHandler.Logout)
		r.Get("/api/auth/me", userHandler.Me)

		r.Post("/api/chat/threads", chatHandler.StartThread)
		r.Get("/api/chat/threads", chatHandler.ListThreads)
		r.Get("/api/chat/threads/{id}/messages", chatHandler.ListMessages)
		r.Post("/api/chat/threads/{id}/messages", chatHandler.SendMessage)

		r.Get("/api/notifications", notificationHandler.List)
		r.Get("/api/notifications/unread-count", notificationHandler.UnreadCount)
		r.Post("/api/notifications/{id}/read", notificationHandler.MarkRead)
		r.Post("/api/notifications/read-all", notificationHandler.MarkAllRead)
	})

	log.Info().Str("addr", s.Addr).Str("version", version).Msg("server starting")
	return http.ListenAndServe(s.Addr, r)
}

func main() {
	cmd := kong.Parse(&cli, kong.Vars{"version": version})
	cmd.FatalIfErrorf(cmd.Run())
}
