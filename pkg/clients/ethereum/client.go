// Package ethereum provides a minimal JSON-RPC client for the two contract
// reads this engine needs: token balances pinned to the snapshot block and
// the tranche-active flag on the merkle drop contract.
package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const erc20AbiJson = `[
	{"name":"balanceOf","type":"function","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

const merkleDropAbiJson = `[
	{"name":"trancheActive","type":"function","stateMutability":"view",
	 "inputs":[{"name":"tranche","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

type EthereumClientConfig struct {
	BaseUrl string
}

type Client struct {
	httpClient *http.Client
	config     *EthereumClientConfig
	logger     *zap.Logger

	erc20Abi      abi.ABI
	merkleDropAbi abi.ABI
}

func DefaultHttpClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
	}
}

func NewClient(cfg *EthereumClientConfig, l *zap.Logger) *Client {
	erc20, err := abi.JSON(strings.NewReader(erc20AbiJson))
	if err != nil {
		l.Sugar().Fatalw("failed to parse erc20 abi", zap.Error(err))
	}
	merkleDrop, err := abi.JSON(strings.NewReader(merkleDropAbiJson))
	if err != nil {
		l.Sugar().Fatalw("failed to parse merkle drop abi", zap.Error(err))
	}
	return &Client{
		httpClient:    DefaultHttpClient(),
		config:        cfg,
		logger:        l,
		erc20Abi:      erc20,
		merkleDropAbi: merkleDrop,
	}
}

// WithHttpClient overrides the underlying http client, used in tests.
func (c *Client) WithHttpClient(client *http.Client) *Client {
	c.httpClient = client
	return c
}

type RPCRequest struct {
	JsonRpc string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint          `json:"id"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type RPCResponse struct {
	ID     uint            `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	rpcReq := &RPCRequest{
		JsonRpc: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}
	body, err := json.Marshal(rpcReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal rpc request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseUrl, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build rpc request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "rpc call '%s' failed", method)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read rpc response")
	}
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("rpc call '%s' returned status %d", method, res.StatusCode)
	}

	rpcRes := &RPCResponse{}
	if err := json.Unmarshal(resBody, rpcRes); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal rpc response")
	}
	if rpcRes.Error != nil {
		return nil, fmt.Errorf("rpc call '%s' returned error %d: %s", method, rpcRes.Error.Code, rpcRes.Error.Message)
	}
	return rpcRes.Result, nil
}

func (c *Client) ethCall(ctx context.Context, to string, data []byte, blockNumber string) ([]byte, error) {
	callObj := map[string]string{
		"to":   to,
		"data": hexutil.Encode(data),
	}
	result, err := c.call(ctx, "eth_call", callObj, blockNumber)
	if err != nil {
		return nil, err
	}

	var hexResult string
	if err := json.Unmarshal(result, &hexResult); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal eth_call result")
	}
	return hexutil.Decode(hexResult)
}

// GetTokenBalanceAtBlock reads balanceOf(holder) on the token contract as of
// the given block height.
func (c *Client) GetTokenBalanceAtBlock(ctx context.Context, tokenAddr string, holderAddr string, blockNumber uint64) (*big.Int, error) {
	data, err := c.erc20Abi.Pack("balanceOf", common.HexToAddress(holderAddr))
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack balanceOf call")
	}

	raw, err := c.ethCall(ctx, tokenAddr, data, hexutil.EncodeUint64(blockNumber))
	if err != nil {
		return nil, err
	}

	outputs, err := c.erc20Abi.Unpack("balanceOf", raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unpack balanceOf result")
	}
	balance, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf output type %T", outputs[0])
	}
	return balance, nil
}

// GetTrancheActive reads trancheActive(trancheId) on the merkle drop
// contract at the latest block. An active tranche means the distribution has
// been finalized on-chain and must not be recomputed.
func (c *Client) GetTrancheActive(ctx context.Context, merkleDropAddr string, trancheId uint64) (bool, error) {
	data, err := c.merkleDropAbi.Pack("trancheActive", new(big.Int).SetUint64(trancheId))
	if err != nil {
		return false, errors.Wrap(err, "failed to pack trancheActive call")
	}

	raw, err := c.ethCall(ctx, merkleDropAddr, data, "latest")
	if err != nil {
		return false, err
	}

	outputs, err := c.merkleDropAbi.Unpack("trancheActive", raw)
	if err != nil {
		return false, errors.Wrap(err, "failed to unpack trancheActive result")
	}
	active, ok := outputs[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected trancheActive output type %T", outputs[0])
	}
	return active, nil
}
