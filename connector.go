package spanner

import (
	"context"
	"database/sql/driver"

	"github.com/eddumelendez/cloud-spanner-go/client"
)

type Connector struct {
	driver driver.Driver
	config Config
}

func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	grpcClient, err := client.Dial(ctx, client.Options{
		Endpoint:        c.config.Endpoint,
		CredentialsFile: c.config.Credentials,
	})

	if err != nil {
		return nil, err
	}

	connection, err := NewConnection(ctx, grpcClient, c.config.DatabaseName(), nil)

	if err != nil {
		grpcClient.Close()

		return nil, err
	}

	return &Conn{
		client:     grpcClient,
		connection: connection,
	}, nil
}

func (c *Connector) Driver() driver.Driver {
	return c.driver
}

func (c *Connector) connect() (driver.Conn, error) {
	return c.Connect(context.Background())
}
