package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// simulate hammers a running api-server with concurrent reorder, status
// and read traffic on one date, then checks that the waiting queue still
// holds contiguous priorities. It is the pressure test for the per-date
// lock: without it this tool reports duplicate or missing positions within
// seconds.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	Date         string
	QueueSize    int
	ReorderRatio float64
	StatusRatio  float64
}

type DataPool struct {
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) Add(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) Random(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Rejected  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, rejected bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if rejected {
		atomic.AddInt64(&om.Rejected, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Reorder OperationMetrics
	Status  OperationMetrics
	ReadDay OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()

	log.Printf("config: duration=%s workers=%d date=%s queue=%d reorder=%.2f status=%.2f",
		cfg.Duration, cfg.Workers, cfg.Date, cfg.QueueSize, cfg.ReorderRatio, cfg.StatusRatio)

	sim := &Simulator{
		config: cfg,
		pool:   &DataPool{},
		client: &http.Client{Timeout: 10 * time.Second},
	}

	if err := sim.Setup(); err != nil {
		log.Fatalf("setup: %v", err)
	}

	sim.Run()
	sim.PrintReport()

	if err := sim.VerifyQueue(); err != nil {
		log.Fatalf("QUEUE INVARIANT BROKEN: %v", err)
	}
	log.Println("queue invariant holds: priorities are contiguous")
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		Date:         getEnv("SIM_DATE", time.Now().Format("2006-01-02")),
		QueueSize:    getInt("SIM_QUEUE_SIZE", 12),
		ReorderRatio: getFloat("SIM_REORDER_RATIO", 0.6),
		StatusRatio:  getFloat("SIM_STATUS_RATIO", 0.1),
	}
}

// Setup creates a fresh waiting queue on the target date via the API.
func (s *Simulator) Setup() error {
	hours := func(i int) string {
		return fmt.Sprintf("%02d:%02d", 9+i/4, (i%4)*15)
	}

	for i := 0; i < s.config.QueueSize; i++ {
		body, _ := json.Marshal(map[string]any{
			"patient_id": uuid.NewString(),
			"date":       s.config.Date,
			"heure":      hours(i),
			"type_rdv":   "visite",
			"statut":     "attente",
			"motif":      "simulation",
		})

		resp, err := s.client.Post(s.config.APIBaseURL+"/rdv/", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("create appointment: status %d: %s", resp.StatusCode, data)
		}

		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.Unmarshal(data, &created); err != nil {
			return fmt.Errorf("parse create response: %w", err)
		}
		s.pool.Add(created.ID)
	}

	log.Printf("created %d waiting appointments on %s", s.config.QueueSize, s.config.Date)
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.ReorderRatio:
				s.doReorder(ctx, rng)
			case r < s.config.ReorderRatio+s.config.StatusRatio:
				s.doStatusFlip(ctx, rng)
			default:
				s.doReadDay(ctx)
			}
		}
	}
}

func (s *Simulator) doReorder(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.Random(rng)
	if !ok {
		return
	}

	actions := []string{"move_up", "move_down", "set_first", "set_position"}
	action := actions[rng.Intn(len(actions))]

	payload := map[string]any{"action": action}
	if action == "set_position" {
		// Out-of-range targets are fair game: the server clamps them.
		payload["position"] = rng.Intn(s.config.QueueSize+4) - 2
	}
	body, _ := json.Marshal(payload)

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/rdv/%s/priority", s.config.APIBaseURL, id), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	rejected := false
	if err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		// 400 means the target left attente under a concurrent status
		// flip; that is expected traffic, not a failure.
		success = resp.StatusCode == http.StatusOK
		rejected = resp.StatusCode == http.StatusBadRequest
	}

	s.metrics.Reorder.Record(latency, success, rejected)
}

func (s *Simulator) doStatusFlip(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.Random(rng)
	if !ok {
		return
	}

	statut := "attente"
	if rng.Intn(2) == 0 {
		statut = "en_cours"
	}
	body, _ := json.Marshal(map[string]string{"statut": statut})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/rdv/%s/status", s.config.APIBaseURL, id), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Status.Record(latency, success, false)
}

func (s *Simulator) doReadDay(ctx context.Context) {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/rdv/day/%s", s.config.APIBaseURL, s.config.Date), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.ReadDay.Record(latency, success, false)
}

// VerifyQueue fetches the final day view and checks the attente subset
// carries exactly the priorities 0..n-1.
func (s *Simulator) VerifyQueue() error {
	resp, err := s.client.Get(fmt.Sprintf("%s/rdv/day/%s", s.config.APIBaseURL, s.config.Date))
	if err != nil {
		return fmt.Errorf("fetch day view: %w", err)
	}
	defer resp.Body.Close()

	var entries []struct {
		Statut   string `json:"statut"`
		Priority int    `json:"priority"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return fmt.Errorf("parse day view: %w", err)
	}

	var priorities []int
	for _, e := range entries {
		if e.Statut == "attente" {
			priorities = append(priorities, e.Priority)
		}
	}
	sort.Ints(priorities)

	for i, p := range priorities {
		if p != i {
			return fmt.Errorf("waiting priorities %v are not contiguous at index %d", priorities, i)
		}
	}

	log.Printf("verified %d waiting appointments", len(priorities))
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Reorder", &s.metrics.Reorder)
	printOperationReport("Status flip", &s.metrics.Status)
	printOperationReport("Read day", &s.metrics.ReadDay)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	rejected := atomic.LoadInt64(&om.Rejected)
	errCount := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if rejected > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", rejected, float64(rejected)/float64(total)*100)
	}
	if errCount > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errCount, float64(errCount)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
