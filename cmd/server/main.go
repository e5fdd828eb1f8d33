// File: cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log" // Standard log for critical startup/shutdown messages before/after zap is active
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"profile_hub_backend/internal/app"
	"profile_hub_backend/internal/config"
	"profile_hub_backend/internal/firebase"
	"profile_hub_backend/internal/platform/database"
	"profile_hub_backend/internal/platform/logger"
	"profile_hub_backend/internal/user"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "list-users":
			runMaintenance(os.Args[1], os.Args[2:])
			return
		case "purge-users":
			runMaintenance(os.Args[1], os.Args[2:])
			return
		}
	}

	startServer()
}

func startServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	rdb, err := database.NewRedis(cfg)
	if err != nil {
		appLogger.Fatal("Failed to connect to profile store", zap.Error(err))
	}
	defer database.CloseRedis(rdb)

	firebaseService, err := firebase.NewService(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize Firebase service", zap.Error(err))
	}

	userRepo := user.NewRedisRepository(rdb, cfg)
	userService := user.NewService(userRepo, firebaseService, cfg, appLogger.Named("UserService"))
	userHandler := user.NewHandler(userService, appLogger.Named("UserHandler"))

	server, err := app.NewServer(cfg, appLogger, firebaseService, userService, userHandler)
	if err != nil {
		appLogger.Fatal("Failed to initialize server", zap.Error(err))
	}

	go func() {
		if err := server.Start(); err != nil {
			appLogger.Fatal("Server failed to start or crashed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	appLogger.Info("Received signal, shutting down server", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ServerTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	} else {
		appLogger.Info("Server shutdown complete")
	}
}

// runMaintenance handles the operational subcommands: listing every profile
// record and identity account, and purging both stores entirely.
func runMaintenance(command string, args []string) {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	yes := fs.Bool("yes", false, "confirm destructive operations")
	_ = fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	rdb, err := database.NewRedis(cfg)
	if err != nil {
		appLogger.Fatal("Failed to connect to profile store", zap.Error(err))
	}
	defer database.CloseRedis(rdb)

	firebaseService, err := firebase.NewService(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize Firebase service", zap.Error(err))
	}

	repo := user.NewRedisRepository(rdb, cfg)
	ctx := context.Background()

	switch command {
	case "list-users":
		if err := listUsers(ctx, repo, firebaseService); err != nil {
			appLogger.Fatal("list-users failed", zap.Error(err))
		}
	case "purge-users":
		if !*yes {
			log.Fatalf("purge-users deletes every profile and identity account; re-run with --yes to confirm")
		}
		if err := purgeUsers(ctx, repo, firebaseService, appLogger); err != nil {
			appLogger.Fatal("purge-users failed", zap.Error(err))
		}
	}
}

func listUsers(ctx context.Context, repo user.Repository, fb *firebase.Service) error {
	profiles, err := repo.All(ctx)
	if err != nil {
		return err
	}
	fmt.Println("Profile store records:")
	if len(profiles) == 0 {
		fmt.Println("  (none)")
	}
	for _, p := range profiles {
		fmt.Printf("  uid=%s username=%s email=%s provider=%s views=%d\n",
			p.UID, p.Username, p.Email, p.Provider, p.ProfileViews)
	}

	uids, err := fb.ListUserUIDs(ctx)
	if err != nil {
		return err
	}
	fmt.Println("Identity provider accounts:")
	if len(uids) == 0 {
		fmt.Println("  (none)")
	}
	for _, uid := range uids {
		fmt.Printf("  uid=%s\n", uid)
	}
	return nil
}

func purgeUsers(ctx context.Context, repo user.Repository, fb *firebase.Service, appLogger *zap.Logger) error {
	uids, err := fb.ListUserUIDs(ctx)
	if err != nil {
		return err
	}
	for _, uid := range uids {
		if err := fb.DeleteUser(ctx, uid); err != nil {
			appLogger.Error("Failed to delete identity account", zap.Error(err), zap.String("uid", uid))
		}
	}

	profiles, err := repo.All(ctx)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		appLogger.Info("Deleting profile record", zap.String("uid", p.UID))
		if err := repo.Delete(ctx, p.UID); err != nil {
			return err
		}
		if err := repo.ReleaseUsername(ctx, p.Username); err != nil {
			appLogger.Error("Failed to release username claim", zap.Error(err), zap.String("username", p.Username))
		}
	}
	appLogger.Info("Purge complete", zap.Int("identityAccounts", len(uids)), zap.Int("profiles", len(profiles)))
	return nil
}
