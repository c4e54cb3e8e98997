package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/EternisAI/claude-watch/internal/grpc/watchv1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	initialDelay  = 1 * time.Second
	maxDelay      = 30 * time.Second
	backoffFactor = 2
)

var ErrUnauthenticated = errors.New("daemon rejected the device token")

// Event is one event received from the daemon.
type Event struct {
	Type    string
	Payload map[string]any
}

// Client keeps a Subscribe stream open, reconnecting with backoff until
// stopped or rejected.
type Client struct {
	serverAddr string
	token      string
	handler    func(Event)
	dialOpts   []grpc.DialOption

	stopCh chan struct{}
	doneCh chan struct{}

	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	conn     *grpc.ClientConn
	err      error
	stopOnce sync.Once
}

func NewClient(serverAddr, token string, handler func(Event), opts ...grpc.DialOption) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		serverAddr:        serverAddr,
		token:             token,
		handler:           handler,
		dialOpts:          opts,
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
		reconnectDelay:    initialDelay,
		maxReconnectDelay: maxDelay,
		ctx:               ctx,
		cancel:            cancel,
	}
}

func (c *Client) Start() error {
	go c.connectionLoop()
	return nil
}

func (c *Client) Stop() error {
	c.stopOnce.Do(func() {
		slog.Info("Stopping event subscriber")
		close(c.stopCh)
		c.cancel()
	})
	<-c.doneCh
	return nil
}

// Done is closed once the client has stopped for good.
func (c *Client) Done() <-chan struct{} {
	return c.doneCh
}

// Err reports why the client stopped on its own, if it did.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *Client) connectionLoop() {
	defer close(c.doneCh)

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		err := c.subscribe()
		c.disconnect()

		if c.ctx.Err() != nil {
			return
		}

		switch {
		case status.Code(err) == codes.Unauthenticated:
			slog.Error("Event subscription rejected", "error", err)
			c.mu.Lock()
			c.err = ErrUnauthenticated
			c.mu.Unlock()
			return
		case err == nil || errors.Is(err, io.EOF):
			slog.Info("Server closed event stream")
		default:
			slog.Error("Event stream error", "error", err, "retry_in", c.reconnectDelay)
		}

		select {
		case <-c.stopCh:
			return
		case <-time.After(c.reconnectDelay):
			c.increaseReconnectDelay()
		}
	}
}

func (c *Client) subscribe() error {
	slog.Info("Connecting to daemon", "address", c.serverAddr)

	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, c.dialOpts...)
	conn, err := grpc.NewClient(c.serverAddr, opts...)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	ctx := c.ctx
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}

	stream, err := watchv1.Subscribe(ctx, conn)
	if err != nil {
		return err
	}

	for {
		msg, err := stream.Recv()
		if err != nil {
			return err
		}

		// a delivered event means the connection is healthy again
		c.reconnectDelay = initialDelay

		payload := msg.AsMap()
		eventType, _ := payload["type"].(string)
		slog.Debug("Event received", "type", eventType)
		c.handler(Event{Type: eventType, Payload: payload})
	}
}

func (c *Client) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) increaseReconnectDelay() {
	c.reconnectDelay = c.reconnectDelay * backoffFactor
	if c.reconnectDelay > c.maxReconnectDelay {
		c.reconnectDelay = c.maxReconnectDelay
	}
}
