package spanner

import (
	"context"
	"database/sql/driver"
	"time"

	"cloud.google.com/go/civil"
)

// Rows adapts a Result to driver.Rows. Rows keep streaming from the
// server as the cursor advances; Close cancels whatever has not been
// read.
type Rows struct {
	ctx     context.Context
	result  *Result
	columns []string
}

func (r *Rows) Columns() []string {
	return r.columns
}

func (r *Rows) Close() error {
	r.result.Stop()

	return nil
}

func (r *Rows) Next(dest []driver.Value) error {
	row, err := r.result.Next(r.ctx)

	if err != nil {
		// io.EOF is the driver.Rows end-of-stream contract.
		return err
	}

	for i, value := range row.Values() {
		dest[i] = driverValue(value)
	}

	return nil
}

// driverValue converts decoded natives that database/sql cannot carry.
// Dates become midnight UTC timestamps; typed slices pass through for
// callers scanning into custom types.
func driverValue(value any) driver.Value {
	if date, ok := value.(civil.Date); ok {
		return date.In(time.UTC)
	}

	return value
}
