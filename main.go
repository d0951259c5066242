package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mkrutov/logfetch/internal/activity"
	"github.com/mkrutov/logfetch/internal/config"
	"github.com/mkrutov/logfetch/internal/database"
	"github.com/mkrutov/logfetch/internal/fetcher"
	"github.com/mkrutov/logfetch/internal/handlers"
	"github.com/mkrutov/logfetch/internal/logging"
	"github.com/mkrutov/logfetch/internal/registry"
	"github.com/mkrutov/logfetch/internal/secrets"
	"github.com/mkrutov/logfetch/internal/sshfetch"
	"github.com/mkrutov/logfetch/internal/sweeper"
)

func main() {
	// Handle CLI commands before starting the server
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--encrypt-password":
			runEncryptPassword()
			return
		case "--check-config":
			runCheckConfig()
			return
		}
	}

	config.Load()
	logging.Init()

	if err := database.Init(); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	reg, err := registry.Load(config.Cfg.RegistryPath, decryptor())
	if err != nil {
		log.Fatalf("Registry load: %v", err)
	}
	log.Printf("Registry loaded: %d project(s) from %s", len(reg.Projects()), config.Cfg.RegistryPath)

	auditor := activity.NewAuditor(database.DB, config.Cfg.ActivityRetentionDays)

	dialer := &sshfetch.Dialer{
		KeyPath: config.Cfg.SSHKeyPath,
		Timeout: config.ConnectTimeout(),
	}
	svc := &fetcher.Service{
		Registry: reg,
		Dialer: fetcher.DialerFunc(func(ctx context.Context, host, user, password string) (fetcher.Session, error) {
			return dialer.Open(ctx, host, user, password)
		}),
		ScratchDir: config.Cfg.ScratchDir,
		Threshold:  config.ZipThresholdBytes(),
	}

	handlers.Reg = reg
	handlers.Svc = svc
	handlers.Auditor = auditor

	sw := sweeper.New(config.Cfg.ScratchDir, config.WorkspaceMaxAgeDuration(), auditor)
	if err := sw.Start(); err != nil {
		log.Fatalf("Sweeper init: %v", err)
	}
	// Catch leftovers from a previous crash right away
	if n, err := sw.SweepWorkspaces(); err != nil {
		log.Printf("WARNING: startup workspace sweep: %v", err)
	} else if n > 0 {
		log.Printf("Removed %d orphaned workspace(s) at startup", n)
	}

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	// Health (no auth)
	r.Get("/health", handlers.HealthCheck)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/projects", handlers.ListProjects)
		r.Get("/projects/{project}/modules", handlers.ListModules)
		r.Get("/download", handlers.DownloadLog)
		r.Get("/activity", handlers.GetActivity)
		r.Get("/server-logs", handlers.GetServerLogs)
	})

	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: r,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", config.Cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	sw.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

// decryptor returns the registry password decryptor bound to the data path.
func decryptor() registry.Decryptor {
	return func(value string) (string, error) {
		return secrets.Decrypt(config.Cfg.DataPath, value)
	}
}

func runEncryptPassword() {
	fs := flag.NewFlagSet("encrypt-password", flag.ExitOnError)
	password := fs.String("password", "", "Plaintext password to encrypt")
	fs.Parse(os.Args[2:])

	if *password == "" {
		fmt.Fprintln(os.Stderr, "Usage: logfetch --encrypt-password --password <pass>")
		os.Exit(1)
	}

	config.Load()
	token, err := secrets.Encrypt(config.Cfg.DataPath, *password)
	if err != nil {
		log.Fatalf("Failed to encrypt password: %v", err)
	}
	fmt.Println(token)
}

func runCheckConfig() {
	config.Load()
	reg, err := registry.Load(config.Cfg.RegistryPath, decryptor())
	if err != nil {
		log.Fatalf("Registry check failed: %v", err)
	}
	for _, project := range reg.Projects() {
		modules, _ := reg.Modules(project)
		fmt.Printf("%s: %d module(s)\n", project, len(modules))
	}
	fmt.Println("Registry OK")
}
