package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LeJamon/shalltest/internal/emulator"
	"github.com/LeJamon/shalltest/internal/emulator/emutest"
	"github.com/LeJamon/shalltest/internal/interaction"
	"github.com/LeJamon/shalltest/internal/shall"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testServer struct {
	emu    *emulator.Emulator
	server *Server
	http   *httptest.Server
	client *Client
}

func newTestServer(t *testing.T, cfg Config, opts ...emulator.Option) *testServer {
	t.Helper()
	emu := emutest.New(t, opts...)
	srv := NewServer(emu, cfg, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return &testServer{
		emu:    emu,
		server: srv,
		http:   ts,
		client: NewClient(ts.URL, WithHTTPClient(ts.Client())),
	}
}

func postRaw(t *testing.T, ts *testServer, body string) map[string]any {
	t.Helper()
	resp, err := ts.http.Client().Post(ts.http.URL, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	result, ok := out["result"].(map[string]any)
	require.True(t, ok, "response has no result object: %v", out)
	return result
}

func TestServer_ProtocolErrors(t *testing.T) {
	ts := newTestServer(t, DefaultConfig())

	result := postRaw(t, ts, `{not json`)
	assert.Equal(t, "error", result["status"])
	assert.Equal(t, "jsonInvalid", result["error"])
	assert.Equal(t, float64(CodeParseError), result["error_code"])

	result = postRaw(t, ts, `{"params": [{}]}`)
	assert.Equal(t, "missingCommand", result["error"])

	result = postRaw(t, ts, `{"method": "does_not_exist"}`)
	assert.Equal(t, "unknownCmd", result["error"])
	assert.Equal(t, "unknown method: does_not_exist", result["error_message"])

	result = postRaw(t, ts, `{"method": "get_account_address", "params": [{}]}`)
	assert.Equal(t, "invalidParams", result["error"])

	result = postRaw(t, ts, `{"method": "get_storage_paths", "params": [{"address": "nope"}]}`)
	assert.Equal(t, "accountMalformed", result["error"])
}

func TestServer_GetServerInfo(t *testing.T) {
	ts := newTestServer(t, DefaultConfig())

	resp, err := ts.http.Client().Get(ts.http.URL + "/?command=server_info")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Result struct {
			Status         string   `json:"status"`
			Running        bool     `json:"running"`
			ServiceAccount string   `json:"service_account"`
			Methods        []string `json:"methods"`
			Transactions   []string `json:"transactions"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "success", out.Result.Status)
	assert.True(t, out.Result.Running)
	assert.Equal(t, ts.emu.ServiceAccount().Address.String(), out.Result.ServiceAccount)
	assert.Contains(t, out.Result.Methods, "send_transaction")
	assert.Contains(t, out.Result.Transactions, "token.mint")
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, DefaultConfig())

	resp, err := ts.http.Client().Get(ts.http.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, ts.emu.Stop())
	resp, err = ts.http.Client().Get(ts.http.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_RateLimit(t *testing.T) {
	ts := newTestServer(t, Config{RateLimit: 0.001, Burst: 1, Timeout: time.Second})

	ctx := context.Background()
	_, err := ts.client.GetAccountAddress(ctx, "alice")
	require.NoError(t, err)

	_, err = ts.client.GetAccountAddress(ctx, "bob")
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, CodeSlowDown, rpcErr.Code)
}

func TestClient_Accounts(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t, DefaultConfig())

	remote, err := ts.client.GetAccountAddress(ctx, "alice")
	require.NoError(t, err)
	local, err := ts.emu.GetAccountAddress(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, local, remote)

	literal, err := ts.client.GetAccountAddress(ctx, local.String())
	require.NoError(t, err)
	assert.Equal(t, local, literal)

	_, err = ts.client.CreateAccount(ctx, "alice")
	assert.ErrorIs(t, err, emulator.ErrAccountExists)

	carol, err := ts.client.CreateAccount(ctx, "carol")
	require.NoError(t, err)
	acct, ok := ts.emu.AccountByName("carol")
	require.True(t, ok)
	assert.Equal(t, acct.Address, carol)
}

func TestClient_TransactionsAndStorage(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t, DefaultConfig())
	alice, err := ts.client.GetAccountAddress(ctx, "alice")
	require.NoError(t, err)

	res, err := ts.client.SendTransaction(ctx, emulator.Transaction{
		Code:  "storage.save",
		Payer: alice,
		Args:  []any{"profile", map[string]any{"age": 30, "name": "Alice"}},
	})
	require.NoError(t, err)
	assert.False(t, res.Failed())
	assert.Equal(t, emulator.StatusSealed, res.Status)
	require.Len(t, res.Events, 1)
	assert.Equal(t, alice.String(), res.Events[0].Payload["owner"])

	v, err := ts.client.GetStorageValue(ctx, alice, "/storage/profile")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"age": int64(30), "name": "Alice"}, v)

	paths, err := ts.client.GetStoragePaths(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"/storage/profile"}, paths)

	_, err = ts.client.GetStorageValue(ctx, alice, "/storage/missing")
	assert.ErrorIs(t, err, emulator.ErrPathNotFound)

	got, err := ts.client.GetTransactionResult(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, got.ID)
	assert.Equal(t, res.BlockHeight, got.BlockHeight)

	_, err = ts.client.GetTransactionResult(ctx, "missing")
	assert.ErrorIs(t, err, emulator.ErrTransactionNotFound)

	failed, err := ts.client.SendTransaction(ctx, emulator.Transaction{Code: "panic", Args: []any{"stop"}})
	require.NoError(t, err)
	assert.True(t, failed.Failed())
	assert.Equal(t, "stop", failed.ErrorMessage)

	_, err = ts.client.SendTransaction(ctx, emulator.Transaction{Code: "nope"})
	assert.ErrorIs(t, err, emulator.ErrUnknownCode)
}

func TestClient_SignedTransaction(t *testing.T) {
	ctx := context.Background()
	emuCfg := emulator.DefaultConfig()
	emuCfg.RequireSignatures = true

	emu := emutest.NewWithConfig(t, emuCfg)
	srv := NewServer(emu, DefaultConfig(), zaptest.NewLogger(t))
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		hs.Close()
	})
	client := NewClient(hs.URL, WithHTTPClient(hs.Client()))

	addr, err := client.GetAccountAddress(ctx, "alice")
	require.NoError(t, err)
	acct, ok := emu.Account(addr)
	require.True(t, ok)

	tx := emulator.Transaction{Code: "storage.save", Payer: addr, Args: []any{"n", 7}}
	_, err = client.SendTransaction(ctx, tx)
	assert.ErrorIs(t, err, emulator.ErrMissingSignature)

	require.NoError(t, acct.SignTransaction(&tx))
	res, err := client.SendTransaction(ctx, tx)
	require.NoError(t, err)
	assert.False(t, res.Failed(), res.ErrorMessage)
}

func TestClient_Scripts(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t, DefaultConfig())

	v, err := ts.client.ExecuteScript(ctx, emulator.Script{Code: "math.sum", Args: []any{40, 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = ts.client.ExecuteScript(ctx, emulator.Script{Code: "echo", Args: []any{[]any{1.5, "x", true}}})
	require.NoError(t, err)
	assert.Equal(t, []any{1.5, "x", true}, v)

	_, err = ts.client.ExecuteScript(ctx, emulator.Script{Code: "math.sum", Args: []any{"x"}})
	var scriptErr *emulator.ScriptError
	require.ErrorAs(t, err, &scriptErr)
	assert.Equal(t, "math.sum", scriptErr.Code)
}

func TestClient_WithAssertions(t *testing.T) {
	ts := newTestServer(t, DefaultConfig())
	a := shall.New(t, ts.client)

	a.Pass(a.Tx(interaction.TxConfig{Code: "token.setup", Payer: "alice"}))
	a.Revert(a.Tx(interaction.TxConfig{Code: "token.setup", Payer: "alice"}), shall.Match(`^vault already exists for 0x[0-9a-f]{16}$`))
	alice := ts.address(t, "alice")
	a.Pass(a.Tx(interaction.TxConfig{Code: "token.mint", Args: []any{alice, 25}}))
	a.HavePath("alice", "/storage/tokenVault")
	a.HaveStorageValue("alice", shall.StorageParams{PathName: "tokenVault", Key: "balance", Expect: 25})
	assert.Equal(t, 25, shall.ResolveAs[int](t, a.Script(interaction.ScriptConfig{
		Code: "token.balance",
		Args: []any{alice},
	})))
}

func (ts *testServer) address(t *testing.T, name string) string {
	t.Helper()
	addr, err := ts.client.GetAccountAddress(context.Background(), name)
	require.NoError(t, err)
	return addr.String()
}

func TestClient_Subscribe(t *testing.T) {
	ts := newTestServer(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results, err := ts.client.Subscribe(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ts.server.ws.Connections() == 1 }, 2*time.Second, 10*time.Millisecond)

	res, err := ts.client.SendTransaction(ctx, emulator.Transaction{Code: "storage.save", Args: []any{"x", 1}})
	require.NoError(t, err)

	select {
	case got := <-results:
		require.NotNil(t, got)
		assert.Equal(t, res.ID, got.ID)
		assert.Equal(t, "/storage/x", got.Events[0].Payload["path"])
	case <-time.After(2 * time.Second):
		t.Fatal("no result streamed")
	}

	cancel()
	for range results {
	}
	require.Eventually(t, func() bool { return ts.server.ws.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_Serve(t *testing.T) {
	emu := emutest.New(t)
	srv := NewServer(emu, DefaultConfig(), zaptest.NewLogger(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, ln)
	}()

	httpClient := &http.Client{Transport: &http.Transport{}}
	defer httpClient.CloseIdleConnections()
	client := NewClient("http://"+ln.Addr().String(), WithHTTPClient(httpClient))

	addr, err := client.GetAccountAddress(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, addr.IsZero())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
