package main

import (
	"SkiMonitor/internal/config"
	"SkiMonitor/internal/entity"
	"SkiMonitor/internal/middleware"
	"SkiMonitor/internal/monitor"
	"SkiMonitor/internal/state"
	"SkiMonitor/pkg/camera"
	"SkiMonitor/pkg/detector"
	"SkiMonitor/pkg/log"
	"SkiMonitor/pkg/redis"
	"SkiMonitor/pkg/serial"
	"context"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Warnf("No .env file loaded, using environment and defaults: %v", err)
	}

	appConfig, err := config.LoadAppConfig(config.NewValidator())
	if err != nil {
		logger.Fatalf("Error loading configuration: %v", err)
	}

	reader, err := serial.Open(appConfig.Serial(), logger)
	if err != nil {
		logger.Fatalf("Error opening serial port: %v", err)
	}
	defer reader.Close()

	source, err := camera.Open(camera.Config{
		Device: appConfig.CameraDevice,
		Width:  appConfig.FrameWidth,
		Height: appConfig.FrameHeight,
	}, logger)
	if err != nil {
		logger.Fatalf("Error opening camera: %v", err)
	}
	defer source.Close()

	personDetector, err := detector.New(detector.Config{
		ModelPath:      appConfig.ModelPath,
		NamesPath:      appConfig.ModelNames,
		ScoreThreshold: appConfig.ScoreThreshold,
		NMSThreshold:   appConfig.NMSThreshold,
	}, logger)
	if err != nil {
		logger.Fatalf("Error loading detection model: %v", err)
	}
	defer personDetector.Close()

	var mirror redis.IRedis
	if redisConfig, enabled := appConfig.Redis(); enabled {
		mirror = redis.New(redisConfig, logger)
		defer mirror.Close()
	}

	store := state.New(entity.NewSnapshot())

	server, err := config.NewServer(
		config.WithFiber(config.NewFiber(logger)),
		config.WithLogger(logger),
		config.WithMiddleware(middleware.DefaultConfig()),
		config.WithStore(store),
		config.WithColdThreshold(appConfig.ColdThreshold),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	loop, err := monitor.New(
		monitor.WithSerialReader(reader),
		monitor.WithCameraSource(source),
		monitor.WithDetector(personDetector),
		monitor.WithStore(store),
		monitor.WithMirror(mirror),
		monitor.WithLogger(logger),
		monitor.WithCloseThreshold(appConfig.CloseThreshold),
		monitor.WithIdleDelay(appConfig.SerialIdleDelay),
	)
	if err != nil {
		logger.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(appConfig.Address())
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		return server.Shutdown()
	})

	// A failed loop leaves the last snapshot served until shutdown.
	g.Go(func() error {
		if err := loop.Run(gctx); err != nil {
			logger.Errorf("Monitor loop stopped: %v", err)
		}
		return nil
	})

	logger.Info("Server started successfully")

	if err := g.Wait(); err != nil {
		logger.Errorf("Server stopped with error: %v", err)
		os.Exit(1)
	}
}
