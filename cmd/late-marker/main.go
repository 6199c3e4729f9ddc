package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/drheny/cab-sub000/internal/appointment"
	"github.com/drheny/cab-sub000/internal/config"
	"github.com/drheny/cab-sub000/internal/db"
	redisclient "github.com/drheny/cab-sub000/internal/redis"
)

// late-marker persists the derived retard status for overdue programme
// appointments. Deploying it is optional: the day view already derives
// retard at read time, this worker just makes the stored statut match.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("late-marker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running late-marker in env=%s interval=%s", cfg.Env, cfg.WorkerInterval)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	repo := appointment.NewPgRepository(pgPool)
	// Marking late never touches priorities, so the worker runs without a
	// Redis connection and uses in-process locking.
	svc := appointment.NewService(repo, redisclient.NewLocalQueueLocker(), cfg)

	// Run once at startup
	runOnce(rootCtx, svc)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping late-marker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	today := time.Now().Format(appointment.DateLayout)

	start := time.Now()
	marked, err := svc.MarkLate(runCtx, today)
	if err != nil {
		log.Printf("late-marking run error: %v", err)
		return
	}
	log.Printf("late-marking run complete: marked=%d in %s", marked, time.Since(start))
}
