package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/Domenick1991/journeygate/api"
	"github.com/Domenick1991/journeygate/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

const swaggerSpec = "journeygate.swagger.json"

// Handlers are the HTTP surfaces mounted on the gateway. Audit is optional
// and only mounted when the ledger database is configured.
type Handlers struct {
	Proxy    *api.ProxyHandler
	Flow     *api.FlowHandler
	Catalog  *api.CatalogHandler
	Checkout *api.CheckoutHandler
	Audit    *api.AuditHandler
}

type Servers struct {
	grpcServer *grpc.Server
	health     *health.Server
	httpServer *http.Server
	conn       *grpc.ClientConn
}

// Run starts gRPC (health) and HTTP (gin + grpc-gateway healthz + swagger)
// servers and blocks until ctx is canceled or a server fails.
func Run(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger, h Handlers) error {
	s, err := newServers(cfg, NewEngine(cfg, logger, h))
	if err != nil {
		return err
	}
	defer s.conn.Close()

	errCh := make(chan error, 2)

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}
	go func() { errCh <- s.grpcServer.Serve(lis) }()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.WithFields(logrus.Fields{"http": cfg.HTTP.Address, "grpc": cfg.GRPC.Address}).Info("gateway started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down gateway")
		s.health.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.grpcServer.GracefulStop()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newServers(cfg *config.Config, engine http.Handler) (*Servers, error) {
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	conn, err := grpc.NewClient(cfg.GRPC.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial gRPC %s: %w", cfg.GRPC.Address, err)
	}

	gateway := runtime.NewServeMux(
		runtime.WithHealthzEndpoint(healthpb.NewHealthClient(conn)),
		runtime.WithMarshalerOption(runtime.MIMEWildcard, &runtime.JSONPb{
			MarshalOptions:   protojson.MarshalOptions{EmitUnpopulated: true},
			UnmarshalOptions: protojson.UnmarshalOptions{DiscardUnknown: true},
		}),
	)

	handler := http.NewServeMux()
	handler.Handle("/healthz", gateway)
	handler.Handle("/", engine)

	return &Servers{
		grpcServer: grpcSrv,
		health:     healthSrv,
		httpServer: &http.Server{
			Addr:              cfg.HTTP.Address,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		conn: conn,
	}, nil
}

// NewEngine builds the gin engine with middleware and every mounted handler.
func NewEngine(cfg *config.Config, logger logrus.FieldLogger, h Handlers) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(api.RequestID())
	engine.Use(api.Logger(logger))
	engine.Use(cors.New(corsConfig(cfg.CORS)))

	if h.Proxy != nil {
		h.Proxy.Register(engine.Group("/api"))
	}

	session := api.FlowSession(cfg.Flow.SessionTTL(), cfg.Flow.SecureCookie)
	if h.Flow != nil {
		h.Flow.Register(engine.Group("/booking/flow", session))
	}
	if h.Catalog != nil {
		h.Catalog.Register(engine.Group("/booking"))
	}
	if h.Checkout != nil {
		h.Checkout.Register(engine.Group("/checkout", session))
	}
	if h.Audit != nil {
		h.Audit.Register(engine.Group("/audit"))
	}

	if cfg.HTTP.SwaggerDir != "" {
		engine.Static("/openapi", cfg.HTTP.SwaggerDir)
		engine.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/openapi/"+swaggerSpec))))
	}

	return engine
}

// corsConfig turns the configured lists into a gin-contrib/cors config. A
// wildcard origin cannot be combined with credentials.
func corsConfig(c config.CORSConfig) cors.Config {
	cfg := cors.Config{
		AllowMethods:  c.AllowedMethods,
		AllowHeaders:  c.AllowedHeaders,
		ExposeHeaders: []string{"Content-Length", api.RequestIDHeader, api.FlowSessionHeader},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(c.AllowedOrigins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = c.AllowedOrigins
	cfg.AllowCredentials = true
	return cfg
}
