package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/donnyesq/gamble/config"
	"github.com/donnyesq/gamble/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// App serves the session side channel and the UI-facing snapshot API.
type App struct {
	engine     *gin.Engine
	config     *config.Config
	logger     zerolog.Logger
	client     LotteryClient
	httpServer *http.Server
	onShutdown []func()

	sessionHandler *SessionHandler
	stateHandler   *StateHandler
	walletHandler  *WalletHandler
}

// Options holds server configuration options
type Options struct {
	Config *config.Config
	Logger zerolog.Logger
	Client LotteryClient
}

// New creates the application. Routes are added by Setup or by the
// individual Register/Use methods.
func New(opts Options) *App {
	if opts.Config.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	app := &App{
		engine: gin.New(),
		config: opts.Config,
		logger: opts.Logger,
		client: opts.Client,
	}

	app.sessionHandler = NewSessionHandler(opts.Config.IsProduction(), opts.Logger)
	app.stateHandler = NewStateHandler(opts.Client, opts.Logger)
	app.walletHandler = NewWalletHandler(opts.Client, opts.Logger)

	return app
}

// Setup installs the common middlewares and every route.
func (a *App) Setup() *App {
	a.UseCommonMiddlewares()
	a.RegisterHealthCheck()
	a.RegisterSessionRoutes()
	a.RegisterStateRoutes()
	a.engine.NoRoute(func(c *gin.Context) {
		ErrorWithMessage(c, http.StatusNotFound, "route not found")
	})
	return a
}

// UseCommonMiddlewares adds common middlewares to the application
func (a *App) UseCommonMiddlewares() {
	// Recovery middleware (must be first)
	a.engine.Use(middleware.Recovery(a.logger))
	a.engine.Use(middleware.TraceID(a.logger))
	a.engine.Use(middleware.Logging(a.logger))

	if a.config.Server.EnableCORS {
		a.engine.Use(middleware.CORS())
	}
}

// RegisterHealthCheck adds health check endpoints
func (a *App) RegisterHealthCheck() {
	a.engine.GET("/health", a.healthCheck)
	a.engine.GET("/api/health", a.healthCheck)
}

func (a *App) healthCheck(c *gin.Context) {
	snap := a.client.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"timestamp":         time.Now(),
		"service":           a.config.Environment,
		"ethereum_detected": snap.EthereumDetected,
		"loading":           snap.Loading,
	})
}

// RegisterSessionRoutes registers the address cookie endpoints.
//
// Routes registered:
//   - POST /api/set-metamask    -> SessionHandler.SetAddress
//   - GET  /api/remove-metamask -> SessionHandler.RemoveAddress
func (a *App) RegisterSessionRoutes() {
	api := a.engine.Group("/api", middleware.Timeout(a.config.Server.RequestTimeout))
	api.POST("/set-metamask", a.sessionHandler.SetAddress)
	api.GET("/remove-metamask", a.sessionHandler.RemoveAddress)
}

// RegisterStateRoutes registers the snapshot feed and the user actions.
//
// Routes registered:
//   - GET  /api/state            -> StateHandler.Get
//   - GET  /api/state/updates    -> StateHandler.StreamUpdates (SSE)
//   - GET  /api/state/updates/ws -> StateHandler.StreamUpdatesWebSocket (WebSocket)
//   - POST /api/bets             -> WalletHandler.PlaceBet
//   - POST /api/connect          -> WalletHandler.Connect
//   - GET  /onboarding           -> WalletHandler.Onboarding
func (a *App) RegisterStateRoutes() {
	api := a.engine.Group("/api")
	{
		api.GET("/state", middleware.Timeout(a.config.Server.RequestTimeout), a.stateHandler.Get)
		api.GET("/state/updates", a.stateHandler.StreamUpdates)
		api.GET("/state/updates/ws", a.stateHandler.StreamUpdatesWebSocket)
	}

	// Bets and wallet prompts wait on the user and the chain, not the client
	api.POST("/bets", a.walletHandler.PlaceBet)
	api.POST("/connect", a.walletHandler.Connect)

	a.engine.GET("/onboarding", a.walletHandler.Onboarding)
}

// Router returns the Gin engine for custom route registration
func (a *App) Router() *gin.Engine {
	return a.engine
}

// OnShutdown registers a function to be called on shutdown
func (a *App) OnShutdown(fn func()) {
	a.onShutdown = append(a.onShutdown, fn)
}

func (a *App) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      a.engine,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}
}

// RunWithContext starts the HTTP server and blocks until ctx is done.
func (a *App) RunWithContext(ctx context.Context) error {
	a.httpServer = a.newHTTPServer()

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info().
			Int("port", a.config.Server.Port).
			Str("environment", a.config.Environment).
			Msg("Starting HTTP server")

		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errChan:
		return fmt.Errorf("http server: %w", err)
	}
}

func (a *App) shutdown() error {
	a.logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a.stateHandler.Close()
	for _, fn := range a.onShutdown {
		fn()
	}

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Error during server shutdown")
		return err
	}

	a.logger.Info().Msg("Server shutdown complete")
	return nil
}

// Config returns the application configuration
func (a *App) Config() *config.Config {
	return a.config
}

// Logger returns the application logger
func (a *App) Logger() zerolog.Logger {
	return a.logger
}
