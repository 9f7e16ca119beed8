package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// nothing listens on port 1, so the dial is refused straight away
const unreachable = "host=127.0.0.1 port=1 user=skilllink dbname=skilllink sslmode=disable connect_timeout=1"

func TestConnectWithoutServerReturnsIdleHandle(t *testing.T) {
	gdb, err := Connect(unreachable, "", zap.NewNop())
	require.Error(t, err)
	require.NotNil(t, gdb)

	var n int
	assert.Error(t, gdb.Raw("SELECT 1").Scan(&n).Error)
}

func TestConnectTriesFallback(t *testing.T) {
	gdb, err := Connect("", unreachable, zap.NewNop())
	require.Error(t, err)
	assert.NotNil(t, gdb)
}

func TestConnectWithoutDSN(t *testing.T) {
	gdb, err := Connect("", "", zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, gdb)
}
