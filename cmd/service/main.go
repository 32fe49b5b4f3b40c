package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-lookup-service/internal/circuitbreaker"
	"github.com/kjstillabower/weather-lookup-service/internal/client"
	"github.com/kjstillabower/weather-lookup-service/internal/config"
	"github.com/kjstillabower/weather-lookup-service/internal/degraded"
	"github.com/kjstillabower/weather-lookup-service/internal/geo"
	httphandler "github.com/kjstillabower/weather-lookup-service/internal/http"
	"github.com/kjstillabower/weather-lookup-service/internal/lifecycle"
	"github.com/kjstillabower/weather-lookup-service/internal/observability"
	"github.com/kjstillabower/weather-lookup-service/internal/service"
	"github.com/kjstillabower/weather-lookup-service/internal/store"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherStore, err := store.Open(cfg.DatabasePath, cfg.CacheFreshness, clockwork.NewRealClock(), logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}

	geocodingClient := client.NewGeocodingClient(cfg.GeocodingAPIURL, cfg.GeocodingAPITimeout)
	forecastClient := client.NewForecastClient(cfg.ForecastAPIURL, cfg.ForecastAPITimeout)

	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        "forecast_api",
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition("forecast_api", from.String(), to.String())
				observability.SetCircuitBreakerStateGauge("forecast_api", observability.CircuitBreakerStateValue(int(to)))
			},
		})
		forecastClient.SetCircuitBreaker(cb)
		observability.SetCircuitBreakerStateGauge("forecast_api", 0)
		logger.Info("circuit breaker enabled", zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold), zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	resolver := geo.NewResolver(geocodingClient)
	weatherService := service.NewWeatherService(resolver, forecastClient, weatherStore, nil)

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:         cfg.OverloadWindow,
		OverloadThresholdPct:   cfg.OverloadThresholdPct,
		RateLimitRPS:           cfg.RateLimitRPS,
		RateLimitBurst:         cfg.RateLimitBurst,
		DegradedWindow:         cfg.DegradedWindow,
		DegradedErrorPct:       cfg.DegradedErrorPct,
		DegradedRetryInitial:   cfg.DegradedRetryInitial,
		DegradedRetryMax:       cfg.DegradedRetryMax,
		IdleWindow:             cfg.IdleWindow,
		IdleThresholdReqPerMin: cfg.IdleThresholdReqPerMin,
		MinimumLifespan:        cfg.MinimumLifespan,
		StartTime:              time.Now(),
		StorePing:              weatherStore.Ping,
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(weatherService, healthConfig, logger, limiter, cfg.CityMinLength, cfg.CityMaxLength)

	observability.RegisterRateLimitGauges(cfg.OverloadWindow)
	if len(cfg.TrackedCities) > 0 {
		observability.SetTrackedCities(cfg.TrackedCities)
	}

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// The probe checks the store and one upstream call against a fixed
	// location (Beijing) so recovery reflects both dependencies.
	probe := func(ctx context.Context) error {
		if err := weatherStore.Ping(ctx); err != nil {
			return err
		}
		_, err := forecastClient.FetchCurrent(ctx, 39.9042, 116.4074)
		return err
	}
	degraded.StartRecoveryListener(appCtx, probe, cfg.DegradedRetryInitial, cfg.DegradedRetryMax, func() {
		logger.Error("recovery attempts exhausted, marking service as shutting down")
		lifecycle.SetShuttingDown(true)
	})

	if cfg.WarmCacheOnStart {
		cities := weatherStore.ListPopularCities(context.Background())
		if len(cities) > 0 {
			warmer := store.NewCacheWarmer(weatherService, logger)
			warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := warmer.Warm(warmCtx, cities); err != nil {
				logger.Warn("cache warming failed", zap.Error(err))
			}
			warmCancel()
			if cfg.WarmInterval > 0 {
				go func() {
					if err := warmer.WarmPeriodic(appCtx, cities, cfg.WarmInterval); err != nil && err != context.Canceled {
						logger.Error("periodic cache warming stopped", zap.Error(err))
					}
				}()
			}
		}
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	router.HandleFunc("/popular-cities", handler.GetPopularCities).Methods("GET")

	apiRouter := router.NewRoute().Subrouter()
	apiRouter.Use(httphandler.RateLimitMiddleware(limiter))
	apiRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	apiRouter.HandleFunc("/weather", handler.GetWeather).Methods("GET")
	apiRouter.HandleFunc("/weekly-forecast", handler.GetWeeklyForecast).Methods("GET")
	apiRouter.HandleFunc("/historical", handler.GetHistorical).Methods("GET")
	apiRouter.HandleFunc("/historical/recent", handler.GetRecentHistory).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	appCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if err := weatherStore.Close(); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
