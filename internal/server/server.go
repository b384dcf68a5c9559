package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/blindtest/internal/api"
	"github.com/victornm/blindtest/internal/domain"
	"github.com/victornm/blindtest/internal/event"
	"github.com/victornm/blindtest/internal/gateway/redisbridge"
	"github.com/victornm/blindtest/internal/gateway/ws"
	"github.com/victornm/blindtest/internal/leaderboard"
	"github.com/victornm/blindtest/internal/notify"
	"github.com/victornm/blindtest/internal/question"
	"github.com/victornm/blindtest/internal/session"
	"github.com/victornm/blindtest/internal/telemetry"
)

type PostgresConfig struct {
	Addr string
	User string
	Pass string
	Name string
}

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Log telemetry.LogConfig

	Operator struct {
		Token string
	}

	// Players signs the grants of websocket players. Without a secret the
	// websocket gateway trusts the user it is given.
	Players struct {
		Secret   string
		GrantTTL time.Duration
	}

	Questions struct {
		Dir        string
		DefaultSet string
	}

	Redis struct {
		Addrs  []string
		Pass   string
		Prefix string
	}

	// Postgres is optional, question sets are only read from files without it.
	Postgres PostgresConfig
}

// DefaultConfig is the config used for every key the config file leaves out.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.Log = telemetry.LogConfig{Level: "info", Format: "json"}
	c.Questions.Dir = "./blind_test"
	c.Questions.DefaultSet = "music"
	c.Redis.Addrs = []string{"localhost:6379"}
	c.Redis.Prefix = "blindtest"
	return c
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
	}

	service struct {
		session     *session.Service
		leaderboard *leaderboard.Service
	}

	gateway struct {
		hub    *ws.Hub
		grants *ws.Grants
		bridge *redisbridge.Bridge
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if s.c.Postgres.Addr == "" {
		slog.Info("server: postgres not configured, question sets are read from files only")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := ConnectPostgres(ctx, s.c.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	s.infra.postgres = db

	return nil
}

func (s *Server) initRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis = r
	return nil
}

// ConnectPostgres opens a pool and checks it can reach the database.
func ConnectPostgres(ctx context.Context, c PostgresConfig) (*pgxpool.Pool, error) {
	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", c.User, c.Pass, c.Addr, c.Name))
	if err != nil {
		return nil, err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// inbound lets the gateways be built before the service they feed.
type inbound func(ctx context.Context, m domain.MessageEvent) error

func (f inbound) HandleMessage(ctx context.Context, m domain.MessageEvent) error {
	return f(ctx, m)
}

func (s *Server) initService() error {
	sources := question.Chain{question.FileSource{Dir: s.c.Questions.Dir}}
	if s.infra.postgres != nil {
		store := question.NewPostgresStore(s.infra.postgres)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Migrate(ctx); err != nil {
			return err
		}

		sources = append(question.Chain{store}, sources...)
	}

	handle := inbound(func(ctx context.Context, m domain.MessageEvent) error {
		return s.service.session.HandleMessage(ctx, m)
	})

	var grants *ws.Grants
	if s.c.Players.Secret != "" {
		grants = ws.NewGrants(ws.GrantsConfig{Secret: s.c.Players.Secret, TTL: s.c.Players.GrantTTL})
	} else {
		slog.Warn("server: players.secret not configured, websocket players are not verified")
	}
	s.gateway.grants = grants

	s.gateway.hub = ws.NewHub(ws.Config{Handler: handle, Grants: grants})
	s.gateway.bridge = redisbridge.New(redisbridge.Config{
		Redis:    s.infra.redis,
		Prefix:   s.c.Redis.Prefix,
		EventBus: s.eb,
		Handler:  handle,
	})

	s.service.session = session.NewService(session.Config{
		Questions:  sources,
		DefaultSet: s.c.Questions.DefaultSet,
		Notifier:   notify.Fanout{s.gateway.hub, s.gateway.bridge},
		EventBus:   s.eb,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis,
		Prefix:   s.c.Redis.Prefix,
	})

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	e.GET("/ws/:community/:channel", s.gateway.hub.ServeWS)

	c := api.Config{
		Games:         s.service.session,
		Scoreboard:    s.service.leaderboard,
		OperatorToken: s.c.Operator.Token,
	}
	if s.gateway.grants != nil {
		c.Grants = s.gateway.grants
	}
	api.New(c).Register(e)

	s.grpc = grpc.NewServer(telemetry.GRPCServerOptions()...)
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	ctx := context.Background()

	if err := s.gateway.bridge.Start(ctx); err != nil {
		return err
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		return fmt.Errorf("grpc server: listen: %w", err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
		return err
	}

	return nil
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.gateway.hub.Stop()
	if err := s.gateway.bridge.Stop(); err != nil {
		slog.ErrorContext(ctx, "server: stop redis bridge failed", "error", err)
	}

	s.eb.Stop()

	if err := s.infra.redis.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close redis failed", "error", err)
	}
	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
