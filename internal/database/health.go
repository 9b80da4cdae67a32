package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const probeTimeout = 2 * time.Second

// Pinger is anything whose liveness can be probed, such as *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

func CheckHealth(ctx context.Context, db Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	return db.Ping(ctx)
}

// Dependency is one backing service the readiness probe waits on.
type Dependency struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Readiness probes every dependency concurrently. The returned error names
// each dependency that failed.
type Readiness struct {
	deps []Dependency
}

func (r *Readiness) Add(name string, probe func(ctx context.Context) error) {
	r.deps = append(r.deps, Dependency{Name: name, Probe: probe})
}

func (r *Readiness) AddPinger(name string, db Pinger) {
	r.Add(name, db.Ping)
}

func (r *Readiness) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	failures := make([]error, len(r.deps))
	var g errgroup.Group
	for i, dep := range r.deps {
		g.Go(func() error {
			if err := dep.Probe(ctx); err != nil {
				failures[i] = fmt.Errorf("%s: %w", dep.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(failures...)
}
