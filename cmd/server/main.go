package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/teatarmk/reservation-api/internal/config"
	"github.com/teatarmk/reservation-api/internal/database"
	"github.com/teatarmk/reservation-api/internal/handler"
	"github.com/teatarmk/reservation-api/internal/middleware"
	"github.com/teatarmk/reservation-api/internal/queue"
	"github.com/teatarmk/reservation-api/internal/repository"
	"github.com/teatarmk/reservation-api/internal/router"
	"github.com/teatarmk/reservation-api/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	shows := repository.NewShowRepo(db)
	reservations := repository.NewReservationRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	svc := service.NewReservationService(shows, reservations, cfg.HoldTTL, queue.PublishReservationConfirmed)
	go svc.StartExpirySweeper(context.Background(), cfg.SweepInterval)

	// Consumer writes confirmed-reservation audit lines; the service
	// keeps running without it if the broker is down.
	go func() {
		if err := queue.StartReservationConsumer(); err != nil {
			log.Printf("reservation consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable: response cache and rate limiting disabled")
	}
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	showH := handler.NewShowHandler(shows)
	resH := handler.NewReservationHandler(svc, reservations)
	authH := handler.NewAuthHandler(cfg, users, tokens)

	router.RegisterRoutes(e)
	router.RegisterPublic(e, showH, cache)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterBooking(e, resH, cfg.JWTSecret)
	router.RegisterAdmin(e, showH, resH, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
