package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/averon/venue-reservation/internal/booking"
	"github.com/averon/venue-reservation/internal/config"
	"github.com/averon/venue-reservation/internal/database"
	"github.com/averon/venue-reservation/internal/handler"
	"github.com/averon/venue-reservation/internal/lock"
	"github.com/averon/venue-reservation/internal/payment"
	"github.com/averon/venue-reservation/internal/queue"
	"github.com/averon/venue-reservation/internal/reconcile"
	"github.com/averon/venue-reservation/internal/repository"
	"github.com/averon/venue-reservation/internal/router"
	queue_publisher "github.com/averon/venue-reservation/internal/service"
	"github.com/averon/venue-reservation/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Print("redis unavailable; rate limiting and duplicate suppression disabled")
	}

	reservationRepo := repository.NewReservationRepo(db)
	slotRepo := repository.NewSlotRepo(db)
	eventRepo := repository.NewEventRepo(db)
	inventoryRepo := repository.NewInventoryRepo(db)
	ledgerRepo := repository.NewLedgerRepo(db)
	accountRepo := repository.NewAccountRepo(db)
	lookupRepo := repository.NewLookupRepo(db)

	locks := lock.NewManager(slotRepo, eventRepo, inventoryRepo)
	gateway := payment.NewHTTPGateway(cfg.GatewayURL, cfg.GatewayKey)
	adapter := payment.NewAdapter(accountRepo, gateway, ledgerRepo, cfg.GatewaySecret)

	sqlStore := store.NewSQLStore(db, reservationRepo, locks, ledgerRepo, lookupRepo)
	engine := reconcile.NewEngine(sqlStore, queue_publisher.NewNotifier(),
		reconcile.WithRetryPolicy(cfg.RetryAttempts, cfg.RetryDelay))

	bookingSvc := booking.NewService(
		store.NewRunner(db), reservationRepo, locks, ledgerRepo, lookupRepo,
		adapter, accountRepo, slotRepo, eventRepo, inventoryRepo)

	reservationHandler := handler.NewReservationHandler(bookingSvc, cfg.Currency)
	paymentHandler := handler.NewPaymentHandler(adapter, ledgerRepo, engine, rdb)
	browseHandler := handler.NewBrowseHandler(slotRepo, eventRepo, inventoryRepo)

	// The ops consumer writes confirmed reservations and stalled
	// reconciliations to logs/; it reconnects forever on its own.
	go func() {
		if err := queue.StartOpsConsumer(cfg.RabbitURL); err != nil {
			log.Printf("ops consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterPublic(e, browseHandler, paymentHandler, rlCfg, rdb)
	router.RegisterReservations(e, reservationHandler, cfg.JWTSecret, rlCfg, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
