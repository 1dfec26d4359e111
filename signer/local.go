package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"

	"github.com/gridmarket/paydriver/clients"
	"github.com/gridmarket/paydriver/types"
	"github.com/gridmarket/paydriver/utils"
)

var _ Signer = (*LocalSigner)(nil)

const (
	defaultGasLimit     = uint64(100_000)
	defaultGasPriceGwei = int64(20)
)

// LocalSigner signs with an in-process ECDSA key. Gas settings and token
// contracts come from the per-network configuration, so no chain I/O
// happens during signing.
type LocalSigner struct {
	key      *ecdsa.PrivateKey
	address  common.Address
	networks map[types.Network]types.NetworkConfig
}

func NewLocalSigner(hexKey string, networks map[types.Network]types.NetworkConfig) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, &types.DriverError{
			Code:    types.ErrConfig,
			Message: fmt.Sprintf("invalid signing key: %v", err),
		}
	}
	return &LocalSigner{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		networks: networks,
	}, nil
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

func (s *LocalSigner) SignTransfer(order TransferOrder) ([]byte, error) {
	cfg, ok := s.networks[order.Network]
	if !ok {
		return nil, &types.DriverError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("no configuration for network %s", order.Network),
		}
	}
	token, err := utils.ParseAddress(cfg.TokenContract)
	if err != nil {
		return nil, buildErr("bad token contract: %v", err)
	}
	value, err := utils.BaseUnits(order.Amount)
	if err != nil {
		return nil, buildErr("bad amount: %v", err)
	}
	calldata, err := clients.EncodeTransfer(order.Recipient, value)
	if err != nil {
		return nil, buildErr("failed to encode transfer: %v", err)
	}
	return s.sign(order.Network, cfg, token, order.Nonce, calldata)
}

func (s *LocalSigner) SignFaucet(network types.Network, nonce uint64) ([]byte, error) {
	cfg, ok := s.networks[network]
	if !ok {
		return nil, &types.DriverError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("no configuration for network %s", network),
		}
	}
	if !network.IsTestnet() {
		return nil, buildErr("faucet funding is only available on testnets, not %s", network)
	}
	if cfg.FaucetContract == "" {
		return nil, buildErr("no faucet contract configured for %s", network)
	}
	faucet, err := utils.ParseAddress(cfg.FaucetContract)
	if err != nil {
		return nil, buildErr("bad faucet contract: %v", err)
	}
	calldata, err := clients.EncodeFaucetCreate()
	if err != nil {
		return nil, buildErr("failed to encode faucet call: %v", err)
	}
	return s.sign(network, cfg, faucet, nonce, calldata)
}

func (s *LocalSigner) sign(network types.Network, cfg types.NetworkConfig, to common.Address, nonce uint64, calldata []byte) ([]byte, error) {
	chainID, err := network.ChainID()
	if err != nil {
		return nil, err
	}

	gasLimit := cfg.GasLimit
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
	}
	gasPriceGwei := cfg.GasPriceGwei
	if gasPriceGwei == 0 {
		gasPriceGwei = defaultGasPriceGwei
	}
	gasPrice := new(big.Int).Mul(big.NewInt(gasPriceGwei), big.NewInt(params.GWei))

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     calldata,
	})
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, buildErr("failed to sign transaction: %v", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, buildErr("failed to encode signed transaction: %v", err)
	}
	return raw, nil
}

func buildErr(format string, args ...interface{}) error {
	return &types.DriverError{
		Code:    types.ErrBuildFailed,
		Message: fmt.Sprintf(format, args...),
	}
}
