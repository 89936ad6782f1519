package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/stellarperps/perpmon/internal/domain"
	"github.com/stellarperps/perpmon/internal/infrastructure/storage"
	"github.com/stellarperps/perpmon/internal/usecase"
)

func main() {
	dbPath := flag.String("db", "perpmon.db", "sqlite database path")
	owner := flag.String("owner", "GTEST...DEMO", "position owner account")
	asset := flag.String("asset", "XLM/USD", "asset pair")
	side := flag.String("side", "long", "long or short")
	notional := flag.Float64("notional", 200, "notional size (USD)")
	entry := flag.Float64("entry", 100, "entry price")
	leverage := flag.Int("leverage", 10, "leverage multiplier")
	margin := flag.Float64("margin", 20, "margin collateral")
	flag.Parse()

	store, err := storage.NewSQLiteStore(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	positions := usecase.NewPositionStore(store)

	pos, err := positions.Create(context.Background(),
		*owner, *asset, domain.Side(*side), *notional, *entry, *leverage, *margin)
	if err != nil {
		log.Fatalf("Failed to create position: %v", err)
	}

	fmt.Printf("Position created\n")
	fmt.Printf("ID:                %s\n", pos.ID)
	fmt.Printf("Asset:             %s\n", pos.Asset)
	fmt.Printf("Side:              %s\n", pos.Side)
	fmt.Printf("Entry Price:       %.4f\n", pos.EntryPrice)
	fmt.Printf("Liquidation Price: %.4f\n", pos.LiquidationPrice)
}
