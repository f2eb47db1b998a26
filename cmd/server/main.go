// Oficina - auto-repair shop management API
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aethra/oficina/internal/api"
	"github.com/aethra/oficina/internal/audit"
	"github.com/aethra/oficina/internal/config"
	"github.com/aethra/oficina/internal/database"
	"github.com/aethra/oficina/internal/engine"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var Version = "1.0.0"

func main() {
	if len(os.Args) > 1 {
		runCLI()
		return
	}
	startServer()
}

func loadConfig() (*config.Config, *logrus.Logger) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	return cfg, config.NewLogger(cfg.Log)
}

func startServer() {
	cfg, logger := loadConfig()
	logger.WithField("version", Version).Info("oficina starting")

	db := connectDB(cfg, logger)
	if err := database.RunMigrations(db, logger); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}

	gin.SetMode(cfg.Server.Mode)
	api.Version = Version

	handler := api.NewHandler(db, cfg, logger)
	authHandler := api.NewAuthHandler(handler)
	defer authHandler.Close()
	adminHandler := api.NewAdminHandler(handler)

	router, err := api.SetupRouter(cfg.CORS, handler, authHandler, adminHandler)
	if err != nil {
		logger.WithError(err).Fatal("router setup failed")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		config.LogError(logger, "main", "startServer", "graceful shutdown", nil, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func connectDB(cfg *config.Config, logger *logrus.Logger) *gorm.DB {
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("database connection failed")
	}
	logger.WithField("driver", cfg.Database.Driver).Info("database connected")
	return db
}

// CLI
func runCLI() {
	switch os.Args[1] {
	case "serve":
		startServer()
	case "migrate":
		cfg, logger := loadConfig()
		db := connectDB(cfg, logger)
		if err := database.RunMigrations(db, logger); err != nil {
			logger.WithError(err).Fatal("migration failed")
		}
		fmt.Println("Migrations complete")
	case "setup":
		runSetup()
	case "user":
		runUserCmd()
	case "secret":
		fmt.Println(config.GenerateJWTSecret())
	case "version":
		fmt.Printf("oficina %s\n", Version)
	default:
		printUsage()
	}
}

func printUsage() {
	fmt.Println(`Usage: oficina <command>
Commands:
  serve                                         Start server (default)
  migrate                                       Run migrations
  setup                                         Create the first admin interactively
  user list                                     List users
  user create --email= --nome= --senha= [--role=] Create user
  secret                                        Print a random JWT secret
  version                                       Print version`)
}

func userEngine() (*engine.UserEngine, *logrus.Logger) {
	cfg, logger := loadConfig()
	db := connectDB(cfg, logger)
	if err := database.RunMigrations(db, logger); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}
	return engine.NewUserEngine(db, audit.NewRecorder(db, logger)), logger
}

func runUserCmd() {
	if len(os.Args) < 3 {
		printUsage()
		return
	}
	ctx := context.Background()
	switch os.Args[2] {
	case "list":
		users, logger := userEngine()
		page, err := users.List(ctx, engine.QueryParams{PageSize: engine.MaxPageSize, IncludeInactive: true})
		if err != nil {
			logger.WithError(err).Fatal("list users failed")
		}
		for _, u := range page.Data {
			status := "active"
			if !u.Ativo {
				status = "inactive"
			}
			fmt.Printf("%d\t%s <%s>\t%s\t%s\n", u.ID, u.Nome, u.Email, u.Role, status)
		}
	case "create":
		email, nome, senha := getFlag("--email"), getFlag("--nome"), getFlag("--senha")
		if email == "" || nome == "" || senha == "" {
			printUsage()
			return
		}
		users, logger := userEngine()
		u, err := users.Create(ctx, engine.UsuarioInput{Nome: nome, Email: email, Senha: senha, Role: getFlag("--role")}, nil)
		if err != nil {
			logger.WithError(err).Fatal("create user failed")
		}
		fmt.Printf("User created: %s (%s)\n", u.Email, u.Role)
	default:
		printUsage()
	}
}

func getFlag(name string) string {
	prefix := name + "="
	for _, arg := range os.Args {
		if len(arg) > len(prefix) && arg[:len(prefix)] == prefix {
			return arg[len(prefix):]
		}
	}
	return ""
}

// Interactive Setup
func runSetup() {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("=== Oficina Setup ===")

	users, logger := userEngine()

	fmt.Println("\nAdmin User:")
	nome := prompt(reader, "  Name", "Administrador")
	email := prompt(reader, "  Email", "")
	senha := prompt(reader, "  Password", "")

	u, err := users.Create(context.Background(), engine.UsuarioInput{Nome: nome, Email: email, Senha: senha, Role: "admin"}, nil)
	if err != nil {
		logger.WithError(err).Fatal("create admin failed")
	}
	fmt.Printf("Admin user '%s' created!\n", u.Email)

	fmt.Println("\nAdd this to your environment if JWT_SECRET is not set yet:")
	fmt.Println("----------------------------------------")
	fmt.Printf("JWT_SECRET=%s\n", config.GenerateJWTSecret())
	fmt.Println("----------------------------------------")
}

func prompt(reader *bufio.Reader, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}
