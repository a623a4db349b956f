package client

import (
	"fmt"

	"github.com/matheus3301/typec/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps gRPC connections to the daemon.
type Client struct {
	conn     *grpc.ClientConn
	Session  *api.SessionClient
	Sync     *api.SyncClient
	Rooms    *api.RoomClient
	Messages *api.MessageClient
	Calendar *api.CalendarClient
}

// New dials the daemon's Unix domain socket and returns typed service clients.
func New(socketPath string) (*Client, error) {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, api.CallOptions()...)
	conn, err := grpc.NewClient("unix://"+socketPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}

	return &Client{
		conn:     conn,
		Session:  api.NewSessionClient(conn),
		Sync:     api.NewSyncClient(conn),
		Rooms:    api.NewRoomClient(conn),
		Messages: api.NewMessageClient(conn),
		Calendar: api.NewCalendarClient(conn),
	}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
