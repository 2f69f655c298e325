// Command replay drives a synthetic order flow through reserve/commit and
// reports latency statistics, the same benchmark shape the matching
// engine this module grew from used for its own feed replay.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	_ "github.com/lib/pq"

	"github.com/google/uuid"
	"github.com/grd/stat"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/percolator/slab/internal/config"
	"github.com/percolator/slab/internal/dispatch"
	"github.com/percolator/slab/internal/logging"
	"github.com/percolator/slab/internal/reserve"
	"github.com/percolator/slab/internal/slab"
	"github.com/percolator/slab/internal/storage"
)

const (
	randomSeed  = 42
	roundCount  = 10
	ordersPerRound = 20_000
	basePrice   = 10_000
	priceSpread = 200
	nanoToSeconds = 1e-9
)

func main() {
	configPath := flag.String("config", "", "path to config yaml (optional; defaults are used if empty)")
	dsn := flag.String("dsn", "", "postgres DSN; trade persistence is skipped if empty")
	flag.Parse()

	cfg := defaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	s := dispatch.Initialize(slab.HeaderParams{
		IMRBps:      cfg.Risk.IMRBps,
		MMRBps:      cfg.Risk.MMRBps,
		MakerFeeBps: cfg.Fees.MakerFeeBps,
		TakerFeeBps: cfg.Fees.TakerFeeBps,
		BatchMs:     cfg.AntiTox.BatchMs,
	})
	d := dispatch.New(s, logger)

	inst, err := d.AddInstrument(slab.Instrument{
		ContractSize: 1,
		Tick:         1,
		Lot:          1,
		IndexPrice:   basePrice,
	})
	if err != nil {
		log.Fatalf("add instrument: %v", err)
	}

	rand.Seed(randomSeed)
	roundLatencies := make([]time.Duration, roundCount)

	for round := 0; round < roundCount; round++ {
		begin := time.Now()
		seedMakers(d, inst, 500)
		runOrders(d, inst, ordersPerRound)
		roundLatencies[round] = time.Since(begin)
		logger.Info("replay round complete", zap.Int("round", round+1), zap.Duration("elapsed", roundLatencies[round]))
	}

	report(roundLatencies)

	if *dsn != "" {
		persist(*dsn, s, logger)
	}
}

func defaultConfig() *config.Config {
	return &config.Config{
		Risk:    config.RiskConfig{IMRBps: 500, MMRBps: 250},
		Fees:    config.FeesConfig{MakerFeeBps: -2, TakerFeeBps: 10},
		AntiTox: config.AntiToxConfig{BatchMs: 100},
		Logging: config.LoggingConfig{Level: "info"},
	}
}

func seedMakers(d *dispatch.Dispatcher, inst uint16, count int) {
	for i := 0; i < count; i++ {
		side := slab.Buy
		if i%2 == 0 {
			side = slab.Sell
		}
		price := uint64(basePrice + rand.Intn(priceSpread))
		d.PostOrder(dispatch.PostOrderInput{
			AccountIdx:    uint32(1000 + i),
			InstrumentIdx: inst,
			Side:          side,
			MakerClass:    slab.MakerDLP,
			Price:         price,
			Qty:           uint64(1 + rand.Intn(20)),
		})
	}
}

func runOrders(d *dispatch.Dispatcher, inst uint16, count int) {
	for i := 0; i < count; i++ {
		accountIdx := uint32(1 + rand.Intn(900))
		side := slab.Buy
		if rand.Intn(2) == 0 {
			side = slab.Sell
		}
		qty := uint64(1 + rand.Intn(10))
		price := uint64(basePrice + rand.Intn(priceSpread))

		res, err := d.Reserve(reserve.Input{
			AccountIdx:     accountIdx,
			InstrumentIdx:  inst,
			Side:           side,
			Qty:            qty,
			LimitPx:        price,
			TTLMs:          1000,
			CommitmentHash: commitmentHash(),
			RouteID:        uint64(i),
		})
		if err != nil {
			continue
		}

		if rand.Intn(20) == 0 {
			d.Cancel(res.HoldID)
			continue
		}
		d.Commit(res.HoldID, 0)
	}
}

func report(roundLatencies []time.Duration) {
	durations := durationSlice(roundLatencies)
	mean := stat.Mean(durations)
	stdDev := stat.SdMean(durations, mean)

	fmt.Printf("[replay] rounds=%d mean(latency)=%ss sd(latency)=%ss\n",
		roundCount,
		decimal.NewFromFloat(mean*nanoToSeconds).Round(4),
		decimal.NewFromFloat(stdDev*nanoToSeconds).Round(4))
}

func persist(dsn string, s *slab.Slab, logger *zap.Logger) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("open database", zap.Error(err))
		return
	}
	defer db.Close()

	if err := storage.ResetSchema(db); err != nil {
		logger.Error("reset schema", zap.Error(err))
		return
	}

	tx, err := db.Begin()
	if err != nil {
		logger.Error("begin transaction", zap.Error(err))
		return
	}

	n, err := storage.ExportTrades(tx, s)
	if err != nil {
		tx.Rollback()
		logger.Error("persist trades", zap.Error(err))
		return
	}
	if err := tx.Commit(); err != nil {
		logger.Error("commit transaction", zap.Error(err))
		return
	}
	logger.Info("trades persisted", zap.Int("count", n))
}

type durationSlice []time.Duration

func (d durationSlice) Get(i int) float64 { return float64(d[i]) }
func (d durationSlice) Len() int          { return len(d) }

// commitmentHash derives a 32-byte commitment from two random UUIDs,
// standing in for the actual reveal scheme's hash input.
func commitmentHash() [32]byte {
	var h [32]byte
	a, b := uuid.New(), uuid.New()
	copy(h[:16], a[:])
	copy(h[16:], b[:])
	return h
}
