package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"

	"storefront-system/config"
	"storefront-system/internal/database"
	"storefront-system/internal/domain"
	"storefront-system/internal/gateway/clients"
	"storefront-system/internal/seed"
)

func main() {
	app := &cli.App{
		Name:  "storefront",
		Usage: "books and motoparts storefront backend",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the gRPC health server",
				Action: serveAction,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the database schema",
				Action: migrateAction,
			},
			{
				Name:  "seed",
				Usage: "import the sample catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "kind",
						Usage: "catalog to import (book or motopart), defaults to STORE_FLAVOR",
					},
				},
				Action: seedAction,
			},
			{
				Name:  "healthcheck",
				Usage: "query the gRPC health server and exit non-zero unless it is serving",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "health server address, defaults to GRPC_HEALTH_ADDR",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Value: 3 * time.Second,
					},
				},
				Action: healthcheckAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("storefront: %v", err)
	}
}

// bootstrap loads the configuration and builds the logger shared by every command.
func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return config.Config{}, nil, errors.Wrap(err, "create logger")
	}
	return cfg, logger, nil
}

func openDatabase(cfg config.Config) (*gorm.DB, error) {
	db, err := database.NewConnection(cfg.DB.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "connect to db")
	}
	return db, nil
}

func migrateAction(c *cli.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	logger.Info("database migrated")
	return nil
}

func seedAction(c *cli.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	kind := cfg.ItemKind()
	if raw := c.String("kind"); raw != "" {
		kind = domain.ItemKind(raw)
		if !kind.IsValid() {
			return errors.Errorf("unknown kind %q", raw)
		}
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	_, err = seed.Run(c.Context, db, kind, logger)
	return err
}

func healthcheckAction(c *cli.Context) error {
	addr := c.String("addr")
	if addr == "" {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		addr = cfg.GRPCHealthAddr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	client, err := clients.NewHealthClient(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	status, err := client.Status(ctx, "")
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if status != grpc_health_v1.HealthCheckResponse_SERVING {
		return cli.Exit("status "+status.String(), 1)
	}
	log.Printf("%s: %s", addr, status)
	return nil
}
