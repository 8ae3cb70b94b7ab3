package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/semplan/tools"
)

const (
	// DefaultSubjectPrefix is the subject prefix tool requests are served under.
	DefaultSubjectPrefix = "semplan.tools"
	// DefaultQueueGroup load-balances requests across server instances.
	DefaultQueueGroup = "semplan"
	// DefaultRequestTimeout bounds one tool call.
	DefaultRequestTimeout = 30 * time.Second
)

// CallSubject is the subject tool calls are sent to.
func CallSubject(prefix string) string { return prefix + ".call" }

// ListSubject is the subject tool listings are requested on.
func ListSubject(prefix string) string { return prefix + ".list" }

// callResponse is the reply envelope for a tool call. Error carries
// transport-level failures; tool failures are in Result.Error.
type callResponse struct {
	Result tools.ToolResult `json:"result"`
	Error  string           `json:"error,omitempty"`
}

// NATSServer serves tool calls as NATS request/reply.
type NATSServer struct {
	nc      *nats.Conn
	exec    tools.Executor
	prefix  string
	queue   string
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	subs   []*nats.Subscription
}

// NATSOption configures a NATSServer.
type NATSOption func(*NATSServer)

// WithSubjectPrefix overrides DefaultSubjectPrefix.
func WithSubjectPrefix(prefix string) NATSOption {
	return func(s *NATSServer) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) NATSOption {
	return func(s *NATSServer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithNATSLogger sets the logger.
func WithNATSLogger(logger *slog.Logger) NATSOption {
	return func(s *NATSServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewNATSServer creates a request/reply server for exec on nc.
func NewNATSServer(nc *nats.Conn, exec tools.Executor, opts ...NATSOption) *NATSServer {
	s := &NATSServer{
		nc:      nc,
		exec:    exec,
		prefix:  DefaultSubjectPrefix,
		queue:   DefaultQueueGroup,
		timeout: DefaultRequestTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to the call and list subjects. Handlers run until Stop
// is called or ctx is cancelled.
func (s *NATSServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs != nil {
		return errors.New("nats server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	callSub, err := s.nc.QueueSubscribe(CallSubject(s.prefix), s.queue, s.handleCall)
	if err != nil {
		s.cancel()
		return fmt.Errorf("subscribe %s: %w", CallSubject(s.prefix), err)
	}
	listSub, err := s.nc.QueueSubscribe(ListSubject(s.prefix), s.queue, s.handleList)
	if err != nil {
		_ = callSub.Unsubscribe()
		s.cancel()
		return fmt.Errorf("subscribe %s: %w", ListSubject(s.prefix), err)
	}
	s.subs = []*nats.Subscription{callSub, listSub}

	// Flush so subscriptions are registered before callers send requests.
	if err := s.nc.Flush(); err != nil {
		return fmt.Errorf("flush subscriptions: %w", err)
	}

	s.logger.Info("Serving tools over NATS",
		"call_subject", CallSubject(s.prefix),
		"list_subject", ListSubject(s.prefix),
		"queue", s.queue)
	return nil
}

// Stop drains the subscriptions.
func (s *NATSServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
	}
	s.subs = nil
	if s.cancel != nil {
		s.cancel()
	}
	return errors.Join(errs...)
}

func (s *NATSServer) handleCall(msg *nats.Msg) {
	var call tools.ToolCall
	if err := json.Unmarshal(msg.Data, &call); err != nil {
		s.respond(msg, callResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}
	if call.Name == "" {
		s.respond(msg, callResponse{Error: "invalid request: tool name is required"})
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	result, err := s.exec.Execute(ctx, call)
	resp := callResponse{Result: result}
	if err != nil {
		resp.Error = err.Error()
	}
	s.respond(msg, resp)
}

func (s *NATSServer) handleList(msg *nats.Msg) {
	s.respond(msg, s.exec.ListTools())
}

func (s *NATSServer) respond(msg *nats.Msg, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to marshal NATS response", "subject", msg.Subject, "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("Failed to send NATS response", "subject", msg.Subject, "error", err)
	}
}

// Client calls tools served by a NATSServer. It implements tools.Executor.
type Client struct {
	nc      *nats.Conn
	prefix  string
	timeout time.Duration
}

// NewClient creates a client for tools served under prefix.
func NewClient(nc *nats.Conn, prefix string, timeout time.Duration) *Client {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{nc: nc, prefix: prefix, timeout: timeout}
}

// Execute sends call and waits for the result.
func (c *Client) Execute(ctx context.Context, call tools.ToolCall) (tools.ToolResult, error) {
	data, err := json.Marshal(call)
	if err != nil {
		return tools.ToolResult{}, fmt.Errorf("marshal call: %w", err)
	}

	msg, err := c.request(ctx, CallSubject(c.prefix), data)
	if err != nil {
		return tools.ToolResult{}, err
	}

	var resp callResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return tools.ToolResult{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != "" {
		return resp.Result, errors.New(resp.Error)
	}
	return resp.Result, nil
}

// ListTools fetches the served tool definitions. It returns nil on failure;
// use Tools to see the error.
func (c *Client) ListTools() []tools.ToolDefinition {
	defs, _ := c.Tools(context.Background())
	return defs
}

// Tools fetches the served tool definitions.
func (c *Client) Tools(ctx context.Context) ([]tools.ToolDefinition, error) {
	msg, err := c.request(ctx, ListSubject(c.prefix), nil)
	if err != nil {
		return nil, err
	}
	var defs []tools.ToolDefinition
	if err := json.Unmarshal(msg.Data, &defs); err != nil {
		return nil, fmt.Errorf("decode tool list: %w", err)
	}
	return defs, nil
}

func (c *Client) request(ctx context.Context, subject string, data []byte) (*nats.Msg, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.nc.RequestWithContext(reqCtx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", subject, err)
	}
	return msg, nil
}
