package repository

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"notevault-server/internal/config"

	"github.com/avast/retry-go/v4"
	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
	"go.uber.org/zap"
)

const (
	connectAttempts = 10

	// findLimit caps mango queries; CouchDB defaults to 25 rows otherwise.
	findLimit = 100000
)

// OpenCouch connects to CouchDB, waits for it to answer, and makes sure the
// database and its mango indexes exist.
func OpenCouch(ctx context.Context, cfg config.DatabaseConfig, logger *zap.SugaredLogger) (*kivik.Client, error) {
	dsn := &url.URL{
		Scheme: "http",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
	}

	client, err := kivik.New("couch", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("failed to create couchdb client: %w", err)
	}

	if err := retry.Do(
		func() error {
			ok, err := client.Ping(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("couchdb at %s:%s is not ready", cfg.Host, cfg.Port)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Delay(300*time.Millisecond),
		retry.Attempts(connectAttempts),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			logger.Warnw("failed ping to couchdb", "attempt", attempt, "error", err)
		}),
	); err != nil {
		return nil, fmt.Errorf("failed to reach couchdb: %w", err)
	}

	exists, err := client.DBExists(ctx, cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		if err := client.CreateDB(ctx, cfg.Name); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
		logger.Infow("created database", "name", cfg.Name)
	}

	if err := ensureIndexes(ctx, client.DB(cfg.Name)); err != nil {
		return nil, err
	}

	return client, nil
}

func ensureIndexes(ctx context.Context, db *kivik.DB) error {
	indexes := map[string][]string{
		"notes-by-owner-status": {"type", "owner_id", "status"},
	}

	for name, fields := range indexes {
		index := map[string]interface{}{"fields": fields}
		if err := db.CreateIndex(ctx, "notevault", name, index); err != nil {
			return fmt.Errorf("failed to create index %s: %w", name, err)
		}
	}

	return nil
}
