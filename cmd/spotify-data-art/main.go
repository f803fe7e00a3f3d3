// Command spotify-data-art runs the listening-data web application.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/kkrachenfels/spotify-data-art/internal/auth"
	"github.com/kkrachenfels/spotify-data-art/internal/enrich"
	"github.com/kkrachenfels/spotify-data-art/internal/library"
	"github.com/kkrachenfels/spotify-data-art/internal/spotify"
	"github.com/kkrachenfels/spotify-data-art/internal/web"
	webfs "github.com/kkrachenfels/spotify-data-art/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "spotify-data-art",
	})

	clientID := os.Getenv("SPOTIFY_CLIENT_ID")
	clientSecret := os.Getenv("SPOTIFY_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return fmt.Errorf("please set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET environment variables")
	}

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = web.DefaultAddr
	}
	redirectURI := os.Getenv("SPOTIFY_REDIRECT_URI")
	if redirectURI == "" {
		redirectURI = "http://" + addr + "/callback"
	}
	snapshotDir := os.Getenv("SNAPSHOT_DIR")
	if snapshotDir == "" {
		snapshotDir = "."
	}

	ctx := context.Background()

	store, err := attributeStore(ctx, logger)
	if err != nil {
		return err
	}

	enrichOpts := []enrich.ClientOption{}
	if base := os.Getenv("ENRICH_BASE_URL"); base != "" {
		enrichOpts = append(enrichOpts, enrich.WithBaseURL(base))
	}
	resolver := enrich.NewResolver(enrich.NewClient(enrichOpts...), store, logger)

	client := spotify.NewClient(logger)
	refresher := auth.NewRefresher(clientID, clientSecret)
	svc := library.NewService(client, refresher, resolver, logger)

	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	server := web.NewServer(web.ServerConfig{
		Addr:         addr,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		SnapshotDir:  snapshotDir,
		StaticFS:     static,
		Library:      svc,
		Logger:       logger,
	})

	return server.Run()
}

// attributeStore selects the enrichment cache backend: Postgres when
// DATABASE_URL is set, in-memory otherwise.
func attributeStore(ctx context.Context, logger *log.Logger) (enrich.Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Info("using in-memory attribute cache")
		return enrich.NewMemoryStore(), nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	store := enrich.NewDBStore(pool)
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	logger.Info("using database attribute cache")
	return store, nil
}
