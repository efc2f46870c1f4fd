package fastview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second
	// Maximum message size allowed from peer; clients only ever send control frames.
	maxMessageSize = 512

	// The fastest rate at which updates are sent to a client. Faster updates are dropped.
	pubResolution  = time.Millisecond * 100
	pingResolution = time.Millisecond * 200
	// The number of pings to tolerate losing before concluding the peer is gone.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// Client publishes a stream of updates to a single websocket peer. Updates must be
// idempotent: when they arrive faster than the publication rate intervening ones are
// discarded, and the latest alone must be enough to bring the peer up to date.
type Client[T any] struct {
	updates <-chan T
	encode  Encoder[T]
	ws      *websock
	rootCtx context.Context
}

// NewClient upgrades the request to a websocket and returns a publisher of @updates,
// each encoded with @encode.
func NewClient[T any](
	updates <-chan T,
	encode Encoder[T],
	w http.ResponseWriter,
	r *http.Request,
) (*Client[T], error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied to the peer.
		return nil, err
	}
	ws.SetReadLimit(maxMessageSize)

	return &Client[T]{
		updates: updates,
		encode:  encode,
		ws:      newWebSocket(ws),
		rootCtx: r.Context(),
	}, nil
}

// Sync runs the reader, the liveness check and the publisher until the peer leaves, the
// request context ends or the update channel closes. It returns nil on a normal disconnect.
func (cli *Client[T]) Sync() error {
	group, groupCtx := errgroup.WithContext(cli.rootCtx)

	// Unblock the reader once any routine finishes.
	go func() {
		<-groupCtx.Done()
		_ = cli.ws.Conn().SetReadDeadline(time.Now())
	}()

	group.Go(func() error {
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		err := cli.publish(groupCtx)
		if err == nil {
			// Publication finished, so the others have nothing left to serve.
			err = errPublishDone
		}
		return err
	})

	err := group.Wait()
	if errors.Is(err, errPublishDone) || isClosure(err) {
		return nil
	}
	return err
}

// Close sends a close frame and releases the connection. Call it once Sync has returned.
func (cli *Client[T]) Close() {
	cli.ws.Close()
}

var (
	ErrPongDeadlineExceeded = errors.New("client disconnect, pong deadline exceeded")
	errPublishDone          = errors.New("publication done")
)

// pingPong checks peer liveness. The pong handler only runs while readMessages is reading.
func (cli *Client[T]) pingPong(ctx context.Context) error {
	pong := make(chan struct{})
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		case <-ctx.Done():
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}
			if err := cli.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (cli *Client[T]) ping(ctx context.Context) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (err error) {
			if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if isError(err) {
					err = fmt.Errorf("ping failed: %w", err)
				}
			}
			return
		})
}

// readMessages drains the peer's messages so control frames are handled. Read errors are
// permanent, so any error tears the client down.
func (cli *Client[T]) readMessages(ctx context.Context) error {
	for {
		err := cli.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				_, _, readErr = ws.ReadMessage()
				return
			})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (cli *Client[T]) publish(ctx context.Context) error {
	var lastSync time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-cli.updates:
			if !ok {
				return nil
			}
			if time.Since(lastSync) < pubResolution {
				break
			}

			messageType, payload, err := cli.encode(update)
			if err != nil {
				return fmt.Errorf("encode update: %w", err)
			}

			lastSync = time.Now()
			err = cli.ws.Write(
				ctx,
				func(ws *websocket.Conn) (writeErr error) {
					if writeErr = ws.SetWriteDeadline(time.Now().Add(writeWait)); writeErr != nil {
						return fmt.Errorf("failed to set deadline: %w", writeErr)
					}
					if writeErr = ws.WriteMessage(messageType, payload); writeErr != nil {
						if isError(writeErr) {
							writeErr = fmt.Errorf("publish failed: %w", writeErr)
						}
					}
					return
				})
			if err != nil {
				return err
			}
		}
	}
}

func isError(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func isClosure(err error) bool {
	if errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived)
}

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const writeDeadline = time.Second

// websock serializes access to a websocket, which allows one concurrent reader and one
// concurrent writer.
type websock struct {
	writeSem chan struct{}
	ws       *websocket.Conn
}

func newWebSocket(ws *websocket.Conn) *websock {
	return &websock{
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Conn returns the underlying websocket, for setup before any reader or writer runs.
func (sock *websock) Conn() *websocket.Conn {
	return sock.ws
}

// Close sends a close frame and closes the connection. No writer may run afterward.
func (sock *websock) Close() {
	sock.writeSem <- struct{}{}
	_ = sock.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	sock.ws.Close()
}

// Read runs @readFn on the websocket. There is exactly one reader, readMessages, so reads
// need no semaphore; Sync releases a blocked read by expiring the read deadline.
func (sock *websock) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	if ctx.Err() != nil {
		return nil
	}
	return readFn(sock.ws)
}

// Write serializes write operations to the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
