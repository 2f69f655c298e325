// Package storage exports the engine's trade ledger to Postgres via
// pq.CopyIn bulk loading, the same bulk-copy idiom the matching engine
// this module grew from used for its deal/order tables.
package storage

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/percolator/slab/internal/slab"
)

const schemaDDL = `
DROP TYPE IF EXISTS trade_side CASCADE;
CREATE TYPE trade_side AS ENUM ('buy', 'sell');

DROP TABLE IF EXISTS trades CASCADE;
CREATE TABLE trades (
	id serial primary key,
	ts bigint,
	maker_order_id bigint,
	taker_route_id bigint,
	instrument_idx int,
	side trade_side,
	price bigint,
	qty bigint
) with (fillfactor=90);
`

// ResetSchema drops and recreates the trades table.
func ResetSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("storage: reset schema: %w", err)
	}
	return nil
}

// ExportTrades bulk-loads every trade currently in s's ring buffer into
// the trades table via COPY, the same pq.CopyIn pattern the original
// deal-persistence path used.
func ExportTrades(tx *sql.Tx, s *slab.Slab) (int, error) {
	stmt, err := tx.Prepare(pq.CopyIn("trades", "ts", "maker_order_id", "taker_route_id", "instrument_idx", "side", "price", "qty"))
	if err != nil {
		return 0, fmt.Errorf("storage: prepare copy: %w", err)
	}

	trades := s.TradesInOrder()
	for _, t := range trades {
		side := "buy"
		if t.Side == slab.Sell {
			side = "sell"
		}
		if _, err := stmt.Exec(t.Ts, t.MakerOrderID, t.TakerRouteID, t.InstrumentIdx, side, t.Price, t.Qty); err != nil {
			return 0, fmt.Errorf("storage: copy trade row: %w", err)
		}
	}

	if _, err := stmt.Exec(); err != nil {
		return 0, fmt.Errorf("storage: flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("storage: close copy statement: %w", err)
	}

	return len(trades), nil
}
