package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridmarket/paydriver/types"
)

func validConfig() *types.DriverConfig {
	return &types.DriverConfig{
		Name:   "erc20",
		DBPath: ":memory:",
		Networks: map[types.Network]types.NetworkConfig{
			types.NetworkHolesky: {
				RPCUrl:        "http://127.0.0.1:8545",
				TokenContract: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
			},
		},
	}
}

func TestValidateConfigFillsDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, types.DefaultInterval, cfg.Interval)
	assert.Equal(t, types.DefaultSubmitTimeout, cfg.SubmitTimeout)

	cfg.Interval = types.Duration(3 * time.Second)
	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, 3*time.Second, cfg.Interval.Std())
}

func TestValidateConfigRejections(t *testing.T) {
	require.Error(t, ValidateConfig(nil))

	cfg := validConfig()
	cfg.Name = ""
	err := ValidateConfig(cfg)
	require.Error(t, err)
	var derr *types.DriverError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, types.ErrConfig, derr.Code)

	cfg = validConfig()
	cfg.Networks[types.Network("bogus")] = types.NetworkConfig{
		RPCUrl:        "http://127.0.0.1:8545",
		TokenContract: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
	}
	err = ValidateConfig(cfg)
	require.Error(t, err)
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, types.ErrUnsupportedNetwork, derr.Code)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paydriver.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
name = "erc20"
db_path = "driver.db"
interval = "5s"
submit_timeout = "20m"

[networks.holesky]
rpc_url = "http://127.0.0.1:8545"
token_contract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "erc20", cfg.Name)
	assert.Equal(t, 5*time.Second, cfg.Interval.Std())
	assert.Equal(t, 20*time.Minute, cfg.SubmitTimeout.Std())
	require.Contains(t, cfg.Networks, types.NetworkHolesky)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
