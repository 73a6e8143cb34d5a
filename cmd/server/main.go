package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-source-portal/internal/config"
	"github.com/jrsteele09/go-source-portal/server"
	"github.com/jrsteele09/go-source-portal/sessions"
	"github.com/jrsteele09/go-source-portal/sessions/redisstore"
	"github.com/jrsteele09/go-source-portal/sessions/repofakes"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// redisKeyPrefix namespaces every browser's session keys in a shared Redis
const redisKeyPrefix = "source-portal:browser"

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return fmt.Errorf("config.New: %w", err)
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	kvFactory, closeStore, err := sessionStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	portal, err := server.New(c, kvFactory)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	defer portal.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go portal.Run(ctx)

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           portal,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()

	if err := waitForStopSignal(serveErr); err != nil {
		return err
	}
	return shutdown(httpServer)
}

func setupLogging(c config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if c.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// sessionStore picks the durable key/value backend of browser sessions
func sessionStore(c config.Config) (sessions.KeyValueFactory, func(), error) {
	if !c.UseRedis() {
		log.Warn().Msg("REDIS_ADDR not set, keeping sessions in memory")
		return repofakes.NewFakeKeyValue().Factory(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     c.GetRedisAddr(),
		Password: c.GetRedisPassword(),
		DB:       c.GetRedisDB(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", c.GetRedisAddr(), err)
	}
	log.Info().Str("addr", c.GetRedisAddr()).Msg("Sessions stored in Redis")

	closeClient := func() {
		if err := client.Close(); err != nil {
			log.Err(err).Msg("Failed to close Redis client")
		}
	}
	return redisstore.Factory(client, redisKeyPrefix), closeClient, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

// waitForStopSignal blocks until the process is asked to stop or the listener fails
func waitForStopSignal(serveErr <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		return nil
	case err := <-serveErr:
		return err
	}
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
