package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"printlink-be/internal/access"
	"printlink-be/internal/config"
	"printlink-be/internal/db"
	"printlink-be/internal/logger"
	"printlink-be/internal/middleware"
	"printlink-be/internal/notify"
	"printlink-be/internal/order"
	"printlink-be/internal/payment"
	"printlink-be/internal/payment/webhook"
	"printlink-be/internal/ratelimit"
	"printlink-be/internal/redemption"
	"printlink-be/internal/shop"
	"printlink-be/internal/storage"
	"printlink-be/internal/transport"
	"printlink-be/internal/upload"
	"printlink-be/internal/user"
	"printlink-be/internal/utils"

	"go.uber.org/zap"
)

const (
	limiterIdle     = 10 * time.Minute
	limiterSweep    = time.Minute
	shutdownTimeout = 10 * time.Second
)

var initDBFunc = db.InitDB

var startServerFunc = func(addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.L().Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	srv := newServer(cfg, database)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Close(ctx)
	}()

	logger.L().Info("🚀 print service running", zap.String("port", cfg.AppPort))
	return startServerFunc(":"+cfg.AppPort, srv)
}

// repositories are the persistence ports the server is assembled from.
type repositories struct {
	users    notify.Directory
	shops    shop.Repository
	orders   order.Repository
	payments payment.Repository
}

type server struct {
	http.Handler
	dispatcher *notify.Dispatcher
	stop       chan struct{}
}

// Close stops the limiter sweeper and drains queued notifications.
func (s *server) Close(ctx context.Context) {
	close(s.stop)
	if err := s.dispatcher.Stop(ctx); err != nil {
		logger.L().Warn("notification queue not drained", zap.Error(err))
	}
}

func newServer(cfg *config.Config, database *sql.DB) *server {
	return assemble(cfg, repositories{
		users:    user.NewRepository(database),
		shops:    shop.NewRepository(database),
		orders:   order.NewRepository(database),
		payments: payment.NewRepository(database),
	})
}

func assemble(cfg *config.Config, repos repositories, opts ...order.Option) *server {
	stop := make(chan struct{})

	var (
		store storage.Store
		files http.Handler
	)
	disk, err := storage.NewDiskStore(cfg.Storage.Dir, []byte(cfg.Storage.SigningKey), cfg.Storage.PublicURL)
	if err != nil {
		logger.L().Error("document storage disabled", zap.Error(err))
		store = storage.Unavailable{Err: err}
	} else {
		store = disk
		files = disk.Handler()
	}

	mailer := notify.NewMailer(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	dispatcher := notify.NewDispatcher(repos.users, mailer, cfg.Notify.QueueSize)
	dispatcher.Start(cfg.Notify.Workers)

	attempts := ratelimit.NewKeyed(limiterIdle)
	go attempts.Run(limiterSweep, stop)
	visitors := ratelimit.NewKeyed(limiterIdle)
	go visitors.Run(limiterSweep, stop)

	orderSvc := order.NewService(repos.orders, repos.shops, dispatcher, opts...)
	verifier := redemption.NewVerifier(orderSvc, repos.shops, dispatcher, attempts)
	accessSvc := access.NewService(orderSvc, store, cfg.Storage.AccessTTL)
	uploadSvc := upload.NewService(store, orderSvc)

	gateway := payment.NewGateway(payment.Credentials{
		MerchantKey:   cfg.PayU.MerchantKey,
		Salt:          cfg.PayU.Salt,
		URL:           cfg.PayU.URL,
		SiteURL:       cfg.SiteURL,
		WebhookSecret: cfg.PayU.WebhookSecret,
	})
	paymentSvc := payment.NewService(gateway, repos.payments, orderSvc)

	router := setupRouter(routes{
		uploads:  transport.NewUploadHandler(uploadSvc),
		orders:   transport.NewOrderHandler(orderSvc, verifier, accessSvc),
		payments: transport.NewPaymentHandler(paymentSvc),
		webhooks: webhook.NewWebhookHandler(paymentSvc, cfg.SiteURL),
		files:    files,
		health:   healthHandler(dispatcher),
	})

	var handler http.Handler = router
	handler = logger.LoggingMiddleware(handler)
	handler = middleware.RateLimitMiddleware(visitors, cfg.InternalSecretKey)(handler)
	handler = middleware.AuthMiddleware([]byte(cfg.JWTSecret))(handler)
	handler = middleware.CORS(cfg.SiteURL)(handler)
	handler = logger.RequestIDMiddleware(handler)

	return &server{Handler: handler, dispatcher: dispatcher, stop: stop}
}

type routes struct {
	uploads  *transport.UploadHandler
	orders   *transport.OrderHandler
	payments *transport.PaymentHandler
	webhooks *webhook.Handler
	files    http.Handler
	health   http.HandlerFunc
}

func setupRouter(rt routes) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", rt.health)

	mux.HandleFunc("POST /uploads", rt.uploads.Upload)

	mux.HandleFunc("GET /orders/{id}", rt.orders.Get)
	mux.HandleFunc("POST /orders/access", rt.orders.Access)
	mux.HandleFunc("POST /orders/redeem", rt.orders.Redeem)
	mux.HandleFunc("POST /orders/complete", rt.orders.Complete)
	mux.HandleFunc("POST /orders/cancel", rt.orders.Cancel)

	mux.HandleFunc("POST /payments/initiate", rt.payments.Initiate)
	mux.HandleFunc("POST /payments/webhook", rt.webhooks.PaymentWebhookHandler)
	mux.HandleFunc("POST /payments/return", rt.webhooks.ReturnHandler)
	mux.HandleFunc("POST /payments/failure", rt.webhooks.ReturnHandler)

	if rt.files != nil {
		mux.Handle("GET /files/{path...}", rt.files)
	}

	return mux
}

func healthHandler(d *notify.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":        "OK",
			"notifications": d.Stats(),
		})
	}
}
