package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/subtensor-tools/subreg/logging"
)

var (
	ErrClosed           = errors.New("rpc client is closed")
	ErrInvalidResponse  = errors.New("invalid rpc response")
	ErrSubscriptionDone = errors.New("subscription is closed")
)

// Error is a JSON-RPC error object returned by the node.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("%s (code %d): %s", e.Message, e.Code, string(e.Data))
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	result json.RawMessage
	err    error
}

type pendingCall struct {
	done chan response
	// sub is registered by the read loop before the response is delivered
	// so that no notification can be missed.
	sub *Subscription
}

// Client is a JSON-RPC 2.0 client over a websocket connection.
// It is safe for concurrent use.
type Client struct {
	conn    *websocket.Conn
	logger  *zap.Logger
	timeout time.Duration

	writeMu sync.Mutex
	nextID  atomic.Uint64

	pending cmap.ConcurrentMap[string, *pendingCall]
	subs    cmap.ConcurrentMap[string, *Subscription]

	closeOnce sync.Once
	closed    chan struct{}
	readDone  chan struct{}
	readErr   error
}

type dialOptions struct {
	timeout    time.Duration
	bufferSize int
}

type DialOptionFunc func(*dialOptions)

// WithTimeout bounds every Call that has no deadline of its own.
func WithTimeout(timeout time.Duration) DialOptionFunc {
	return func(o *dialOptions) {
		o.timeout = timeout
	}
}

// Dial connects to a node websocket endpoint such as ws://127.0.0.1:9944.
func Dial(ctx context.Context, endpoint string, opts ...DialOptionFunc) (*Client, error) {
	options := dialOptions{timeout: time.Minute}
	for _, opt := range opts {
		opt(&options)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", endpoint, err)
	}
	c := &Client{
		conn:     conn,
		logger:   logging.FromContext(ctx).Named("rpc").With(zap.String("endpoint", endpoint)),
		timeout:  options.timeout,
		pending:  cmap.New[*pendingCall](),
		subs:     cmap.New[*Subscription](),
		closed:   make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Call invokes method and unmarshals its result into result (which may be nil).
func (c *Client) Call(ctx context.Context, method string, result any, params ...any) error {
	raw, err := c.roundTrip(ctx, method, params, nil)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, method, err)
	}
	return nil
}

// Subscribe starts a subscription. unsubscribe is the method that cancels it.
func (c *Client) Subscribe(ctx context.Context, method, unsubscribe string, params ...any) (*Subscription, error) {
	sub := newSubscription(c, unsubscribe)
	if _, err := c.roundTrip(ctx, method, params, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (c *Client) roundTrip(ctx context.Context, method string, params []any, sub *Subscription) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if params == nil {
		params = []any{}
	}
	id := c.nextID.Add(1)
	key := strconv.FormatUint(id, 10)
	call := &pendingCall{done: make(chan response, 1), sub: sub}
	c.pending.Set(key, call)
	defer c.pending.Remove(key)

	if err := c.write(request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return nil, fmt.Errorf("sending %s: %w", method, err)
	}

	select {
	case resp := <-call.done:
		if resp.err != nil {
			return nil, fmt.Errorf("%s: %w", method, resp.err)
		}
		return resp.result, nil
	case <-c.readDone:
		return nil, fmt.Errorf("%s: %w (%v)", method, ErrClosed, c.readErr)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) write(req request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	return c.conn.WriteJSON(req)
}

func (c *Client) readLoop() {
	defer close(c.readDone)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				c.readErr = ErrClosed
			default:
				c.logger.Warn("connection lost", zap.Error(err))
				c.readErr = err
			}
			for _, sub := range c.subs.Items() {
				sub.finish(c.readErr)
			}
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg []byte) {
	if !gjson.ValidBytes(msg) {
		c.logger.Debug("dropping invalid message", zap.ByteString("msg", msg))
		return
	}
	parsed := gjson.ParseBytes(msg)

	if id := parsed.Get("id"); id.Exists() && id.Type != gjson.Null {
		call, ok := c.pending.Get(id.String())
		if !ok {
			c.logger.Debug("response for unknown request", zap.String("id", id.String()))
			return
		}
		var resp response
		if e := parsed.Get("error"); e.Exists() {
			rpcErr := &Error{}
			if err := json.Unmarshal([]byte(e.Raw), rpcErr); err != nil {
				resp.err = fmt.Errorf("%w: %v", ErrInvalidResponse, err)
			} else {
				resp.err = rpcErr
			}
		} else {
			result := parsed.Get("result")
			resp.result = json.RawMessage(result.Raw)
			if call.sub != nil {
				call.sub.id = result.String()
				c.subs.Set(call.sub.id, call.sub)
			}
		}
		call.done <- resp
		return
	}

	subID := parsed.Get("params.subscription")
	if !subID.Exists() {
		c.logger.Debug("dropping unexpected message", zap.ByteString("msg", msg))
		return
	}
	sub, ok := c.subs.Get(subID.String())
	if !ok {
		c.logger.Debug("notification for unknown subscription", zap.String("subscription", subID.String()))
		return
	}
	sub.deliver(json.RawMessage(parsed.Get("params.result").Raw))
}

// Close terminates the connection and every active subscription.
func (c *Client) Close() error {
	var result *multierror.Error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		close(c.closed)
		err := c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		c.writeMu.Unlock()
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			result = multierror.Append(result, fmt.Errorf("sending close message: %w", err))
		}
		if err := c.conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing connection: %w", err))
		}
		<-c.readDone
	})
	return result.ErrorOrNil()
}

// Subscription receives notifications until it is unsubscribed or the connection drops.
type Subscription struct {
	id          string
	client      *Client
	unsubscribe string

	notifications chan json.RawMessage
	done          chan struct{}
	once          sync.Once
	err           error
}

// notificationBuffer bounds the notifications queued for a slow consumer.
const notificationBuffer = 64

func newSubscription(c *Client, unsubscribe string) *Subscription {
	return &Subscription{
		client:        c,
		unsubscribe:   unsubscribe,
		notifications: make(chan json.RawMessage, notificationBuffer),
		done:          make(chan struct{}),
	}
}

func (s *Subscription) ID() string {
	return s.id
}

// Notifications yields the result of every notification in arrival order.
func (s *Subscription) Notifications() <-chan json.RawMessage {
	return s.notifications
}

// Done is closed once no more notifications will arrive.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns why the subscription ended.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Subscription) deliver(msg json.RawMessage) {
	select {
	case s.notifications <- msg:
	case <-s.done:
	default:
		s.client.logger.Warn("subscription buffer full, dropping notification", zap.String("subscription", s.id))
	}
}

func (s *Subscription) finish(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Unsubscribe cancels the subscription on the node.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	s.client.subs.Remove(s.id)
	s.finish(ErrSubscriptionDone)
	if s.unsubscribe == "" {
		return nil
	}
	select {
	case <-s.client.readDone:
		return nil
	default:
	}
	var ok bool
	if err := s.client.Call(ctx, s.unsubscribe, &ok, s.id); err != nil {
		return fmt.Errorf("unsubscribing %s: %w", s.id, err)
	}
	return nil
}
