package types

import (
	"fmt"
	"math/big"
	"strings"
)

// Network identifies a supported EVM chain.
type Network string

const (
	NetworkMainnet     Network = "mainnet"
	NetworkHolesky     Network = "holesky" // testnet
	NetworkPolygon     Network = "polygon"
	NetworkPolygonAmoy Network = "polygon-amoy" // testnet
)

type networkParams struct {
	chainID       int64
	token         string
	testnet       bool
	confirmations uint64
}

var networks = map[Network]networkParams{
	NetworkMainnet:     {chainID: 1, token: "GLM", confirmations: 3},
	NetworkHolesky:     {chainID: 17000, token: "tGLM", testnet: true, confirmations: 1},
	NetworkPolygon:     {chainID: 137, token: "GLM", confirmations: 3},
	NetworkPolygonAmoy: {chainID: 80002, token: "tGLM", testnet: true, confirmations: 1},
}

func (n Network) String() string {
	return string(n)
}

// Valid reports whether the network is one the driver knows about.
func (n Network) Valid() bool {
	_, ok := networks[n]
	return ok
}

// ChainID returns the EIP-155 chain id for the network.
func (n Network) ChainID() (*big.Int, error) {
	p, ok := networks[n]
	if !ok {
		return nil, &DriverError{
			Code:    ErrUnsupportedNetwork,
			Message: fmt.Sprintf("unsupported network: %s", n),
		}
	}
	return big.NewInt(p.chainID), nil
}

// Token returns the symbol of the payment token on this network.
func (n Network) Token() string {
	return networks[n].token
}

func (n Network) IsTestnet() bool {
	return networks[n].testnet
}

// Confirmations returns the default confirmation depth required before a
// transaction on this network is treated as finalized.
func (n Network) Confirmations() uint64 {
	if p, ok := networks[n]; ok {
		return p.confirmations
	}
	return 1
}

// Platform returns the payment platform identifier carried on settlement
// notifications, e.g. "erc20-holesky-tglm".
func (n Network) Platform() (string, error) {
	p, ok := networks[n]
	if !ok {
		return "", &DriverError{
			Code:    ErrUnsupportedNetwork,
			Message: fmt.Sprintf("unsupported network: %s", n),
		}
	}
	return fmt.Sprintf("erc20-%s-%s", n, strings.ToLower(p.token)), nil
}

// SupportedNetworks lists every network the driver can be configured for.
func SupportedNetworks() []Network {
	return []Network{NetworkMainnet, NetworkHolesky, NetworkPolygon, NetworkPolygonAmoy}
}
