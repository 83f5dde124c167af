package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LeJamon/shalltest/internal/crypto"
	"github.com/LeJamon/shalltest/internal/emulator"
	"github.com/LeJamon/shalltest/internal/interaction"
	"github.com/LeJamon/shalltest/internal/value"
	"github.com/gorilla/websocket"
)

// ErrBadResponse is returned when the server's reply cannot be understood.
var ErrBadResponse = errors.New("malformed rpc response")

// Client talks to a Server. It implements interaction.Client.
type Client struct {
	endpoint string
	http     *http.Client
}

var _ interaction.Client = (*Client)(nil)

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient returns a client for the server at endpoint, e.g.
// "http://127.0.0.1:8888".
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response struct {
	Result json.RawMessage `json:"result"`
}

type resultStatus struct {
	Status  string `json:"status"`
	Code    int    `json:"error_code"`
	Name    string `json:"error"`
	Message string `json:"error_message"`
}

// Call invokes method with params and decodes the result into out. Numbers
// in out are decoded as json.Number.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	req := map[string]any{"method": method}
	if params != nil {
		req["params"] = []any{params}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: http %d: %s", ErrBadResponse, method, resp.StatusCode, bytes.TrimSpace(data))
	}

	var r response
	if err := json.Unmarshal(data, &r); err != nil || len(r.Result) == 0 {
		return fmt.Errorf("%w: %s: %s", ErrBadResponse, method, bytes.TrimSpace(data))
	}
	var status resultStatus
	if err := json.Unmarshal(r.Result, &status); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadResponse, method, err)
	}
	if status.Status != "success" {
		return &Error{Code: status.Code, Name: status.Name, Message: status.Message}
	}
	if out == nil {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(r.Result))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadResponse, method, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	err := c.Call(ctx, method, params, out)
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return fromError(rpcErr, "")
	}
	return err
}

// GetAccountAddress implements interaction.Inspector.
func (c *Client) GetAccountAddress(ctx context.Context, name string) (crypto.Address, error) {
	if crypto.IsAddress(name) {
		return crypto.ParseAddress(name)
	}
	var out struct {
		Address crypto.Address `json:"address"`
	}
	if err := c.call(ctx, "get_account_address", nameParams{Name: name}, &out); err != nil {
		return crypto.EmptyAddress, err
	}
	return out.Address, nil
}

// GetStoragePaths implements interaction.Inspector.
func (c *Client) GetStoragePaths(ctx context.Context, addr crypto.Address) ([]string, error) {
	var out struct {
		Paths []string `json:"paths"`
	}
	if err := c.call(ctx, "get_storage_paths", storageParams{Address: addr.String()}, &out); err != nil {
		return nil, err
	}
	if out.Paths == nil {
		out.Paths = []string{}
	}
	return out.Paths, nil
}

// GetStorageValue implements interaction.Inspector.
func (c *Client) GetStorageValue(ctx context.Context, addr crypto.Address, path string) (any, error) {
	var out struct {
		Value any `json:"value"`
	}
	if err := c.call(ctx, "get_storage_value", storageParams{Address: addr.String(), Path: path}, &out); err != nil {
		return nil, err
	}
	return value.Normalize(out.Value), nil
}

// SendTransaction implements interaction.Client.
func (c *Client) SendTransaction(ctx context.Context, tx emulator.Transaction) (*emulator.TransactionResult, error) {
	var out struct {
		Transaction *emulator.TransactionResult `json:"transaction"`
	}
	if err := c.call(ctx, "send_transaction", tx, &out); err != nil {
		return nil, err
	}
	if out.Transaction == nil {
		return nil, fmt.Errorf("%w: send_transaction: missing transaction", ErrBadResponse)
	}
	normalizeEvents(out.Transaction)
	return out.Transaction, nil
}

// ExecuteScript implements interaction.Client.
func (c *Client) ExecuteScript(ctx context.Context, script emulator.Script) (any, error) {
	var out struct {
		Value any `json:"value"`
	}
	err := c.Call(ctx, "execute_script", script, &out)
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return nil, fromError(rpcErr, script.Code)
	}
	if err != nil {
		return nil, err
	}
	return value.Normalize(out.Value), nil
}

// GetTransactionResult fetches a sealed result by ID.
func (c *Client) GetTransactionResult(ctx context.Context, id string) (*emulator.TransactionResult, error) {
	var out struct {
		Transaction *emulator.TransactionResult `json:"transaction"`
	}
	if err := c.call(ctx, "get_transaction_result", idParams{ID: id}, &out); err != nil {
		return nil, err
	}
	if out.Transaction == nil {
		return nil, fmt.Errorf("%w: get_transaction_result: missing transaction", ErrBadResponse)
	}
	normalizeEvents(out.Transaction)
	return out.Transaction, nil
}

// CreateAccount creates a named account on the server and returns its
// address.
func (c *Client) CreateAccount(ctx context.Context, name string) (crypto.Address, error) {
	var out struct {
		Address crypto.Address `json:"address"`
	}
	if err := c.call(ctx, "create_account", nameParams{Name: name}, &out); err != nil {
		return crypto.EmptyAddress, err
	}
	return out.Address, nil
}

func normalizeEvents(res *emulator.TransactionResult) {
	for i := range res.Events {
		res.Events[i].Payload, _ = value.Normalize(res.Events[i].Payload).(map[string]any)
	}
}

// Subscribe streams sealed transactions from the server's /ws endpoint. The
// returned channel is closed when ctx is done or the connection ends.
func (c *Client) Subscribe(ctx context.Context) (<-chan *emulator.TransactionResult, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan *emulator.TransactionResult, 16)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()
	go func() {
		defer close(out)
		defer close(stop)
		defer conn.Close()
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type != "transaction" || msg.Transaction == nil {
				continue
			}
			normalizeEvents(msg.Transaction)
			select {
			case out <- msg.Transaction:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
