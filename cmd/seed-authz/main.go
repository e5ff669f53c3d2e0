package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/authz"
)

// seed-authz writes demo conversation owners into OpenFGA and verifies that
// only owners may pay. The store must already carry deploy/openfga/model.fga.
func main() {
	_ = godotenv.Load()
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	api := getenv("OPENFGA_API_URL", "http://localhost:8081")
	store := os.Getenv("OPENFGA_STORE_ID")
	if store == "" {
		logger.Fatal("OPENFGA_STORE_ID not set. Create a store, write deploy/openfga/model.fga and export its ID.")
	}
	if err := seed(context.Background(), authz.NewOpenFGA(api, store), logger); err != nil {
		logger.Fatal("seed failed", zap.Error(err))
	}
	logger.Info("authz seed verification passed")
}

type checker interface {
	authz.Client
	Write(ctx context.Context, tuples ...authz.TupleKey) error
}

func seed(ctx context.Context, c checker, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	demo := authz.ConversationObject("demo")
	tuples := []authz.TupleKey{
		{User: "user:alice", Relation: authz.RelationOwner, Object: demo},
		{User: "user:bob", Relation: authz.RelationOwner, Object: authz.ConversationObject("bob-demo")},
	}
	if err := c.Write(ctx, tuples...); err != nil {
		return fmt.Errorf("write tuples: %w", err)
	}
	logger.Info("seeded tuples", zap.Int("count", len(tuples)))

	checks := []struct {
		user, relation string
		want           bool
	}{
		{"user:alice", authz.RelationShop, true},
		{"user:alice", authz.RelationPay, true},
		{"user:bob", authz.RelationPay, false},
	}
	for _, ck := range checks {
		allowed, err := c.Check(ctx, ck.user, demo, ck.relation)
		if err != nil {
			return fmt.Errorf("check %s %s: %w", ck.user, ck.relation, err)
		}
		logger.Info("check", zap.String("user", ck.user), zap.String("relation", ck.relation), zap.Bool("allowed", allowed))
		if allowed != ck.want {
			return fmt.Errorf("check %s %s on %s = %v, want %v", ck.user, ck.relation, demo, allowed, ck.want)
		}
	}
	return nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
