package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"authsvc/internal/config"
	"authsvc/internal/storage/mongodb"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Seeded reference roles. The auth service only reads roles; this is
// where they come from.
var roles = []struct {
	id          int
	name        string
	description string
}{
	{1, "Admin", "Administrator with full access"},
	{2, "Teacher", "Teacher creating courses and tasks"},
	{3, "Student", "Student taking courses"},
}

func main() {
	var configPath, migrationsPath string
	flag.StringVar(&configPath, "config", "config/local.yaml", "path to config file")
	flag.StringVar(&migrationsPath, "migrations", "migrations", "path to sqlite migrations")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	switch cfg.Storage.Driver {
	case "sqlite":
		migrateSQLite(cfg.Storage.SQLitePath, migrationsPath)
	case "mongo":
		migrateMongo(cfg.Storage.MongoURI, cfg.Storage.MongoDB)
	default:
		log.Fatalf("unknown storage driver: %s", cfg.Storage.Driver)
	}

	fmt.Println("Database initialization completed successfully")
}

func migrateSQLite(storagePath, migrationsPath string) {
	m, err := migrate.New(
		"file://"+migrationsPath,
		"sqlite3://"+storagePath,
	)
	if err != nil {
		log.Fatalf("failed to init migrator: %v", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("no migrations to apply")
			return
		}
		log.Fatalf("failed to apply migrations: %v", err)
	}

	log.Println("sqlite migrations applied")
}

func migrateMongo(uri, database string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Println("Connecting to MongoDB...")

	store, err := mongodb.New(ctx, uri, database)
	if err != nil {
		log.Fatalf("failed to connect to mongodb: %v", err)
	}
	defer store.Close(ctx)

	log.Println("MongoDB connected, indexes created")

	for _, r := range roles {
		if err := store.SeedRole(ctx, r.id, r.name, r.description); err != nil {
			log.Fatalf("failed to seed role %s: %v", r.name, err)
		}
	}

	log.Println("roles seeded")
}
