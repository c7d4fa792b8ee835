// Churn drives a world through repeated entity and relation churn. It is a
// soak test for query bookkeeping and a profiling target:
//
//	go build ./cmd/churn
//	./churn -config world.toml -profile mem
//	go tool pprof -http=":8000" ./churn mem.pprof
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/TheBitDrifter/sieve"
	"github.com/pkg/profile"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

type Position struct {
	X, Y float64
}

type Velocity struct {
	X, Y float64
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "world config file (.toml, .yaml or .yml)")
	profileMode := flag.String("profile", "", "profile mode: cpu or mem")
	profileDir := flag.String("profile-dir", ".", "directory for profile output")
	ticks := flag.Int("ticks", 1000, "number of ticks to run")
	entities := flag.Int("entities", 1000, "entities spawned per tick")
	workers := flag.Int("workers", 4, "workers for the movement update")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	cfg := sieve.DefaultConfig()
	if *configPath != "" {
		loaded, err := sieve.LoadConfig(*configPath)
		if err != nil {
			return eris.Wrap(err, "load world config")
		}
		cfg = loaded
	}
	log, err := sieve.NewLogger(cfg.Logging)
	if err != nil {
		return eris.Wrap(err, "build logger")
	}
	defer func() { _ = log.Sync() }()
	cfg.Logger = log

	switch *profileMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*profileDir), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath(*profileDir), profile.NoShutdownHook).Stop()
	default:
		return eris.Errorf("unknown profile mode %q", *profileMode)
	}

	start := time.Now()
	stats, err := churn(context.Background(), cfg, *ticks, *entities, *workers, rand.New(rand.NewSource(*seed)))
	if err != nil {
		return eris.Wrap(err, "churn")
	}
	log.Info("churn finished",
		zap.Int("ticks", *ticks),
		zap.Int("spawned", stats.spawned),
		zap.Int("removed", stats.removed),
		zap.Int("alive", stats.alive),
		zap.Int("max_depth", stats.maxDepth),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

type churnStats struct {
	spawned  int
	removed  int
	alive    int
	maxDepth int
}

// churn spawns parents with moving children each tick, moves every child and
// removes a random share of parents, which cascades to their children.
func churn(ctx context.Context, cfg sieve.Config, ticks, perTick, workers int, rng *rand.Rand) (churnStats, error) {
	var stats churnStats
	world := sieve.Factory.NewWorld(cfg)
	position := sieve.FactoryNewComponent[Position]()
	velocity := sieve.FactoryNewComponent[Velocity]()
	storage, err := sieve.Factory.NewStorage(world, position, velocity)
	if err != nil {
		return stats, err
	}
	defer storage.Close()

	childOf := sieve.NewRelation(sieve.WithName("ChildOf"), sieve.AutoRemoveSubject(), sieve.Exclusive())
	unsubscribe, err := world.Observe(sieve.OnRemove(position), func(sieve.EID, any) any {
		stats.removed++
		return nil
	})
	if err != nil {
		return stats, err
	}
	defer unsubscribe()

	for tick := 0; tick < ticks; tick++ {
		var parents []sieve.EID
		for i := 0; i < perTick; i++ {
			eid := world.AddEntity()
			if err := position.Set(eid, Position{X: rng.Float64(), Y: rng.Float64()}); err != nil {
				return stats, err
			}
			if len(parents) > 0 && rng.Intn(2) == 0 {
				if err := velocity.Set(eid, Velocity{X: 1, Y: 1}); err != nil {
					return stats, err
				}
				if err := world.AddComponent(eid, childOf.Pair(parents[rng.Intn(len(parents))])); err != nil {
					return stats, err
				}
			} else {
				parents = append(parents, eid)
			}
			stats.spawned++
		}

		moving := world.Query(position, velocity)
		err := velocity.ParallelUpdate(ctx, moving, workers, func(eid sieve.EID, vel *Velocity) error {
			vel.X *= 0.99
			vel.Y *= 0.99
			return nil
		})
		if err != nil {
			return stats, err
		}
		for _, eid := range moving {
			pos, vel := position.Get(eid), velocity.Get(eid)
			pos.X += vel.X
			pos.Y += vel.Y
		}
		storage.DrainChanges(func(sieve.EID, []sieve.Component) {})

		for _, parent := range parents {
			if rng.Intn(4) == 0 {
				world.RemoveEntity(parent)
			}
		}
	}
	stats.alive = len(world.GetAllEntities())
	stats.maxDepth = world.GetMaxHierarchyDepth(childOf)
	return stats, nil
}
