package subledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/ledgerlab/subledger/date"
	"github.com/shopspring/decimal"
)

// Staging file names, as produced by the upstream extract.
const (
	TradesFile     = "sec_trades.csv"
	PositionsFile  = "sec_positions.csv"
	FOPositionFile = "fo_sec_positions.csv"
	MarksFile      = "fo_mtm_timeseries.csv"
)

// csvTable wraps a csv.Reader with header-indexed column access and
// row-numbered errors.
type csvTable struct {
	name    string
	columns map[string]int
	row     int
	fields  []string
}

func newCSVTable(name string, header []string) *csvTable {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[h] = i
	}
	return &csvTable{name: name, columns: columns, row: 1}
}

func (t *csvTable) get(column string) (string, error) {
	i, ok := t.columns[column]
	if !ok {
		return "", fmt.Errorf("%s: missing column %q", t.name, column)
	}
	if i >= len(t.fields) {
		return "", fmt.Errorf("%s row %d: short row, no %q field", t.name, t.row, column)
	}
	return t.fields[i], nil
}

func (t *csvTable) date(column string) (date.Date, error) {
	s, err := t.get(column)
	if err != nil {
		return date.Date{}, err
	}
	d, err := date.Parse(s)
	if err != nil {
		return date.Date{}, fmt.Errorf("%s row %d: %w", t.name, t.row, err)
	}
	return d, nil
}

func (t *csvTable) decimal(column string) (decimal.Decimal, error) {
	s, err := t.get(column)
	if err != nil {
		return decimal.Zero, err
	}
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s row %d: invalid number %q in column %q", t.name, t.row, s, column)
	}
	return d, nil
}

// forEachRow reads all data rows, calling fn once per row.
func forEachRow(name string, r io.Reader, fn func(t *csvTable) error) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("%s: cannot read header: %w", name, err)
	}
	t := newCSVTable(name, header)

	for {
		fields, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s row %d: %w", name, t.row+1, err)
		}
		t.row++
		t.fields = fields
		if err := fn(t); err != nil {
			return err
		}
	}
}

// ReadTrades parses the trade blotter from CSV. Expected columns:
// trade_id, customer_id, isin, ccy, trade_date, side, quantity, price.
func ReadTrades(r io.Reader) ([]Trade, error) {
	var trades []Trade
	err := forEachRow(TradesFile, r, func(t *csvTable) error {
		id, err := t.get("trade_id")
		if err != nil {
			return err
		}
		customer, err := t.get("customer_id")
		if err != nil {
			return err
		}
		isin, err := t.get("isin")
		if err != nil {
			return err
		}
		ccy, err := t.get("ccy")
		if err != nil {
			return err
		}
		on, err := t.date("trade_date")
		if err != nil {
			return err
		}
		sideField, err := t.get("side")
		if err != nil {
			return err
		}
		side, err := ParseSide(sideField)
		if err != nil {
			return fmt.Errorf("%s row %d: %w", t.name, t.row, err)
		}
		quantity, err := t.decimal("quantity")
		if err != nil {
			return err
		}
		price, err := t.decimal("price")
		if err != nil {
			return err
		}

		trades = append(trades, Trade{
			ID: id, Customer: customer, ISIN: isin, Currency: ccy,
			Date: on, Side: side, Price: M(price, ccy), Quantity: Q(quantity),
		})
		return nil
	})
	return trades, err
}

// ReadPositions parses the official positions table from CSV. Expected
// columns: customer_id, isin, ccy, as_of_date, position_quantity and an
// optional price.
func ReadPositions(r io.Reader) ([]Position, error) {
	var positions []Position
	err := forEachRow(PositionsFile, r, func(t *csvTable) error {
		customer, err := t.get("customer_id")
		if err != nil {
			return err
		}
		isin, err := t.get("isin")
		if err != nil {
			return err
		}
		ccy, err := t.get("ccy")
		if err != nil {
			return err
		}
		asOf, err := t.date("as_of_date")
		if err != nil {
			return err
		}
		quantity, err := t.decimal("position_quantity")
		if err != nil {
			return err
		}
		price := decimal.Zero
		if _, ok := t.columns["price"]; ok {
			if price, err = t.decimal("price"); err != nil {
				return err
			}
		}

		positions = append(positions, Position{
			Customer: customer, ISIN: isin, Currency: ccy,
			AsOf: asOf, Quantity: Q(quantity), Price: M(price, ccy),
		})
		return nil
	})
	return positions, err
}

// ReadMarks parses FO position-level MtM records from CSV. Expected columns:
// customer_id, isin, ccy, as_of_date, fo_mtm. Both the single-date FO
// position extract and the multi-day timeseries use this shape.
func ReadMarks(name string, r io.Reader) ([]Mark, error) {
	var marks []Mark
	err := forEachRow(name, r, func(t *csvTable) error {
		customer, err := t.get("customer_id")
		if err != nil {
			return err
		}
		isin, err := t.get("isin")
		if err != nil {
			return err
		}
		ccy, err := t.get("ccy")
		if err != nil {
			return err
		}
		asOf, err := t.date("as_of_date")
		if err != nil {
			return err
		}
		value, err := t.decimal("fo_mtm")
		if err != nil {
			return err
		}

		marks = append(marks, Mark{
			Customer: customer, ISIN: isin, Currency: ccy,
			AsOf: asOf, Value: M(value, ccy),
		})
		return nil
	})
	return marks, err
}

// LoadStaging loads the full staging input from a directory of CSV files.
// The trades and positions files are required. The single-date FO extract
// and the timeseries are both optional mark sources; when both exist the
// timeseries wins on overlapping dates.
func LoadStaging(dir string) (Input, error) {
	var in Input

	trades, err := loadCSV(filepath.Join(dir, TradesFile), ReadTrades)
	if err != nil {
		return in, err
	}
	positions, err := loadCSV(filepath.Join(dir, PositionsFile), ReadPositions)
	if err != nil {
		return in, err
	}

	var marks []Mark
	for _, name := range []string{FOPositionFile, MarksFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		more, err := loadCSV(path, func(r io.Reader) ([]Mark, error) { return ReadMarks(name, r) })
		if err != nil {
			return in, err
		}
		marks = append(marks, more...)
	}

	log.Printf("loaded staging dir=%q trades=%d positions=%d marks=%d", dir, len(trades), len(positions), len(marks))
	in.Trades, in.Positions, in.Marks = trades, positions, marks
	return in, nil
}

func loadCSV[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open staging file: %w", err)
	}
	defer f.Close()
	return read(f)
}
