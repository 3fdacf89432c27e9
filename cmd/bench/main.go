// Command bench is a Go rendition of the teacher ecosystem's ts.py/ttb.py
// load generators: spin up N concurrent callers against a single named
// limiter instance and report how long the whole batch took to drain.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"go-limiters/internal/redisx"
	"go-limiters/semaphore"
	"go-limiters/tokenbucket"
)

func main() {
	kind := flag.String("kind", "semaphore", "limiter to benchmark: semaphore or tokenbucket")
	redisURL := flag.String("redis-url", "redis://127.0.0.1:6379", "redis connection string")
	callers := flag.Int("callers", 100, "number of concurrent callers")
	capacity := flag.Int("capacity", 1, "limiter capacity")
	refillFrequency := flag.Duration("refill-frequency", 100*time.Millisecond, "token bucket refill frequency")
	refillAmount := flag.Int("refill-amount", 1, "token bucket refill amount")
	hold := flag.Duration("hold", 0, "simulated work duration once a permit is held")
	flag.Parse()

	name := fmt.Sprintf("bench-%06x", rand.New(rand.NewSource(1)).Int31())
	client := redisx.New(*redisURL)
	defer client.Close()

	var run func(ctx context.Context) error
	switch *kind {
	case "semaphore":
		sem, err := semaphore.New(client, name, semaphore.WithCapacity(*capacity))
		if err != nil {
			fatal(err)
		}
		run = func(ctx context.Context) error {
			guard, err := sem.Acquire(ctx)
			if err != nil {
				return err
			}
			if *hold > 0 {
				time.Sleep(*hold)
			}
			return guard.Release(ctx)
		}
	case "tokenbucket":
		tb, err := tokenbucket.New(client, name,
			tokenbucket.WithCapacity(*capacity),
			tokenbucket.WithRefillFrequency(*refillFrequency),
			tokenbucket.WithRefillAmount(*refillAmount),
		)
		if err != nil {
			fatal(err)
		}
		run = func(ctx context.Context) error {
			guard, err := tb.Acquire(ctx)
			if err != nil {
				return err
			}
			if *hold > 0 {
				time.Sleep(*hold)
			}
			return guard.Release(ctx)
		}
	default:
		fatal(fmt.Errorf("unknown -kind %q, want semaphore or tokenbucket", *kind))
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, *callers)

	start := time.Now()
	for i := 0; i < *callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	elapsed := time.Since(start)

	failed := 0
	for err := range errs {
		failed++
		fmt.Fprintln(os.Stderr, "caller failed:", err)
	}

	fmt.Printf("%s: %d callers, %d failed, elapsed %s\n", *kind, *callers, failed, elapsed)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
