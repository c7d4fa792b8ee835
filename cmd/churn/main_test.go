package main

import (
	"context"
	"math/rand"
	"testing"

	"github.com/TheBitDrifter/sieve"
	"go.uber.org/zap/zaptest"
)

func TestChurn(t *testing.T) {
	cfg := sieve.DefaultConfig()
	cfg.Logger = zaptest.NewLogger(t)

	stats, err := churn(context.Background(), cfg, 20, 50, 4, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatal(err)
	}
	if stats.spawned != 20*50 {
		t.Errorf("spawned %d entities, expected %d", stats.spawned, 20*50)
	}
	if stats.alive != stats.spawned-stats.removed {
		t.Errorf("alive = %d, expected spawned %d minus removed %d", stats.alive, stats.spawned, stats.removed)
	}
	if stats.maxDepth > 1 {
		t.Errorf("max depth = %d, children never get children", stats.maxDepth)
	}
}
