// Package spanner is a streaming driver for a distributed SQL database.
// Statements execute over a demand-driven streaming call; partial result
// chunks are reassembled into typed rows as the consumer pulls them.
package spanner

import (
	"database/sql"
	"database/sql/driver"
)

func init() {
	sql.Register("spanner", &Driver{})
}

type Driver struct{}

func (d *Driver) Open(name string) (driver.Conn, error) {
	connector, err := d.OpenConnector(name)

	if err != nil {
		return nil, err
	}

	return connector.(*Connector).connect()
}

func (d *Driver) OpenConnector(name string) (driver.Connector, error) {
	config, err := ParseConfig(name)

	if err != nil {
		return nil, err
	}

	return &Connector{
		driver: d,
		config: config,
	}, nil
}
