package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jpillora/backoff"

	"github.com/gridmarket/paydriver/types"
	"github.com/gridmarket/paydriver/utils"
)

var _ ChainClient = (*EVMClient)(nil)

const broadcastAttempts = 3

// EVMClient implements ChainClient against a JSON-RPC endpoint.
type EVMClient struct {
	network       types.Network
	rpcURL        string
	client        *ethclient.Client
	token         common.Address
	confirmations uint64
}

func NewEVMClient(network types.Network, cfg types.NetworkConfig) (*EVMClient, error) {
	if !network.Valid() {
		return nil, &types.DriverError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("unsupported network: %s", network),
		}
	}
	client, err := ethclient.Dial(cfg.RPCUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s RPC: %w", network, err)
	}
	token, err := utils.ParseAddress(cfg.TokenContract)
	if err != nil {
		return nil, fmt.Errorf("bad token contract for %s: %w", network, err)
	}
	confirmations := cfg.Confirmations
	if confirmations == 0 {
		confirmations = network.Confirmations()
	}
	return &EVMClient{
		network:       network,
		rpcURL:        cfg.RPCUrl,
		client:        client,
		token:         token,
		confirmations: confirmations,
	}, nil
}

func (e *EVMClient) Network() types.Network {
	return e.network
}

func (e *EVMClient) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := e.client.BlockNumber(ctx)
	if err != nil {
		return 0, &types.DriverError{
			Code:    types.ErrChainQuery,
			Message: fmt.Sprintf("failed to get block number on %s: %v", e.network, err),
		}
	}
	return n, nil
}

func (e *EVMClient) Broadcast(ctx context.Context, rawTx []byte) (common.Hash, error) {
	var tx ethtypes.Transaction
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return common.Hash{}, &types.DriverError{
			Code:    types.ErrBroadcastFailed,
			Message: fmt.Sprintf("undecodable raw transaction: %v", err),
		}
	}

	b := &backoff.Backoff{Min: 200 * time.Millisecond, Max: 2 * time.Second, Jitter: true}
	var lastErr error
	for attempt := 0; attempt < broadcastAttempts; attempt++ {
		err := e.client.SendTransaction(ctx, &tx)
		if err == nil {
			return tx.Hash(), nil
		}
		// The node already holds this exact transaction; the broadcast
		// has effectively succeeded.
		if strings.Contains(err.Error(), "already known") ||
			strings.Contains(err.Error(), "known transaction") {
			return tx.Hash(), nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return common.Hash{}, ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return common.Hash{}, &types.DriverError{
		Code:    types.ErrBroadcastFailed,
		Message: fmt.Sprintf("broadcast on %s failed after %d attempts: %v", e.network, broadcastAttempts, lastErr),
	}
}

func (e *EVMClient) TxStatus(ctx context.Context, txHash common.Hash, currentBlock uint64) (TxChainStatus, error) {
	_, pending, err := e.client.TransactionByHash(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return ChainTxNotFound, nil
	}
	if err != nil {
		return 0, &types.DriverError{
			Code:    types.ErrChainQuery,
			Message: fmt.Sprintf("failed to look up tx %s on %s: %v", txHash, e.network, err),
		}
	}
	if pending {
		return ChainTxPending, nil
	}

	receipt, err := e.client.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return ChainTxPending, nil
	}
	if err != nil {
		return 0, &types.DriverError{
			Code:    types.ErrChainQuery,
			Message: fmt.Sprintf("failed to get receipt for %s on %s: %v", txHash, e.network, err),
		}
	}

	included := receipt.BlockNumber.Uint64()
	if currentBlock < included || currentBlock-included+1 < e.confirmations {
		return ChainTxAwaitingConfirmations, nil
	}
	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		return ChainTxSucceeded, nil
	}
	return ChainTxReverted, nil
}

func (e *EVMClient) NextNonce(ctx context.Context, account common.Address) (uint64, error) {
	nonce, err := e.client.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, &types.DriverError{
			Code:    types.ErrChainQuery,
			Message: fmt.Sprintf("failed to get nonce for %s on %s: %v", account, e.network, err),
		}
	}
	return nonce, nil
}

func (e *EVMClient) VerifyTransfer(ctx context.Context, txHash common.Hash) (*types.PaymentDetails, error) {
	tx, pending, err := e.client.TransactionByHash(ctx, txHash)
	if err != nil {
		return nil, &types.DriverError{
			Code:    types.ErrVerifyFailed,
			Message: fmt.Sprintf("failed to fetch tx %s: %v", txHash, err),
		}
	}
	if pending {
		return nil, &types.DriverError{
			Code:    types.ErrVerifyFailed,
			Message: fmt.Sprintf("tx %s is still pending", txHash),
		}
	}
	if tx.To() == nil || *tx.To() != e.token {
		return nil, &types.DriverError{
			Code:    types.ErrVerifyFailed,
			Message: fmt.Sprintf("tx %s does not target the payment token", txHash),
		}
	}

	recipient, value, err := DecodeTransfer(tx.Data())
	if err != nil {
		return nil, &types.DriverError{
			Code:    types.ErrVerifyFailed,
			Message: fmt.Sprintf("tx %s calldata: %v", txHash, err),
		}
	}

	chainID, err := e.network.ChainID()
	if err != nil {
		return nil, err
	}
	sender, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return nil, &types.DriverError{
			Code:    types.ErrVerifyFailed,
			Message: fmt.Sprintf("failed to recover sender of %s: %v", txHash, err),
		}
	}

	receipt, err := e.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, &types.DriverError{
			Code:    types.ErrVerifyFailed,
			Message: fmt.Sprintf("failed to get receipt for %s: %v", txHash, err),
		}
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, &types.DriverError{
			Code:    types.ErrVerifyFailed,
			Message: fmt.Sprintf("tx %s reverted", txHash),
		}
	}

	date := time.Now().UTC()
	if header, err := e.client.HeaderByHash(ctx, receipt.BlockHash); err == nil {
		date = time.Unix(int64(header.Time), 0).UTC()
	}

	return &types.PaymentDetails{
		Sender:    sender,
		Recipient: recipient,
		Amount:    utils.AmountFromBaseUnits(value),
		Date:      date,
	}, nil
}

func (e *EVMClient) Close() {
	e.client.Close()
}
