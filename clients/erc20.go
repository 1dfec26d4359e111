package clients

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

const erc20JSON = `
[
  {
    "name": "transfer",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "to", "type": "address" },
      { "name": "value", "type": "uint256" }
    ],
    "outputs": [{ "name": "", "type": "bool" }]
  },
  {
    "name": "balanceOf",
    "type": "function",
    "stateMutability": "view",
    "inputs": [{ "name": "owner", "type": "address" }],
    "outputs": [{ "name": "", "type": "uint256" }]
  },
  {
    "name": "create",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [],
    "outputs": []
  }
]
`

var erc20ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20JSON))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in ERC20 ABI: %v", err))
	}
	erc20ABI = parsed
}

// EncodeTransfer builds calldata for an ERC-20 transfer(to, value).
func EncodeTransfer(to common.Address, value *big.Int) ([]byte, error) {
	return erc20ABI.Pack("transfer", to, value)
}

// EncodeFaucetCreate builds calldata for a faucet contract's create()
// call, used for self-funding on testnets.
func EncodeFaucetCreate() ([]byte, error) {
	return erc20ABI.Pack("create")
}

// DecodeTransfer recovers the recipient and value from ERC-20 transfer
// calldata.
func DecodeTransfer(calldata []byte) (common.Address, *big.Int, error) {
	method := erc20ABI.Methods["transfer"]
	if len(calldata) < 4 || !bytes.Equal(calldata[:4], method.ID) {
		return common.Address{}, nil, fmt.Errorf("calldata is not an ERC20 transfer")
	}
	args, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to decode transfer calldata: %w", err)
	}
	to, ok := args[0].(common.Address)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("unexpected transfer recipient type %T", args[0])
	}
	value, ok := args[1].(*big.Int)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("unexpected transfer value type %T", args[1])
	}
	return to, value, nil
}

// DecodeRawTransfer decodes a signed raw transaction and the ERC-20
// transfer embedded in its calldata.
func DecodeRawTransfer(raw []byte) (*ethtypes.Transaction, common.Address, *big.Int, error) {
	var tx ethtypes.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, common.Address{}, nil, fmt.Errorf("failed to decode raw transaction: %w", err)
	}
	to, value, err := DecodeTransfer(tx.Data())
	if err != nil {
		return nil, common.Address{}, nil, err
	}
	return &tx, to, value, nil
}
