package clients

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTransfer(t *testing.T) {
	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	value := big.NewInt(0).Mul(big.NewInt(5), big.NewInt(1e18))

	calldata, err := EncodeTransfer(to, value)
	require.NoError(t, err)
	// 4-byte selector + two 32-byte words.
	require.Len(t, calldata, 68)

	gotTo, gotValue, err := DecodeTransfer(calldata)
	require.NoError(t, err)
	assert.Equal(t, to, gotTo)
	assert.Zero(t, value.Cmp(gotValue))
}

func TestDecodeTransferRejectsOtherCalls(t *testing.T) {
	_, _, err := DecodeTransfer(nil)
	require.Error(t, err)

	faucet, err := EncodeFaucetCreate()
	require.NoError(t, err)
	_, _, err = DecodeTransfer(faucet)
	require.Error(t, err)
}

func TestDecodeRawTransfer(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	token := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	value := big.NewInt(12345)

	calldata, err := EncodeTransfer(to, value)
	require.NoError(t, err)

	chainID := big.NewInt(17000)
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    7,
		GasPrice: big.NewInt(1),
		Gas:      100_000,
		To:       &token,
		Value:    big.NewInt(0),
		Data:     calldata,
	})
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), key)
	require.NoError(t, err)
	raw, err := signed.MarshalBinary()
	require.NoError(t, err)

	decoded, gotTo, gotValue, err := DecodeRawTransfer(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), decoded.Nonce())
	assert.Equal(t, token, *decoded.To())
	assert.Equal(t, to, gotTo)
	assert.Zero(t, value.Cmp(gotValue))

	_, _, _, err = DecodeRawTransfer([]byte{0xde, 0xad})
	require.Error(t, err)
}
