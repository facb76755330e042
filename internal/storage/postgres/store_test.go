package postgres

import (
	"regexp"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexAdapter/internal/model"
)

var (
	testPool   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testToken0 = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testToken1 = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func TestUpsertSQLKeepsRefinedValues(t *testing.T) {
	for _, col := range []string{"fee", "tick_spacing"} {
		assert.Contains(t, upsertPoolSQL,
			col+" = CASE WHEN EXCLUDED.refined OR NOT pools.refined THEN EXCLUDED."+col+" ELSE pools."+col+" END")
	}
	assert.Contains(t, upsertPoolSQL, "refined = pools.refined OR EXCLUDED.refined")
	assert.Contains(t, upsertPoolSQL, "created_block = LEAST(pools.created_block, EXCLUDED.created_block)")

	params := regexp.MustCompile(`\$\d+`).FindAllString(upsertPoolSQL, -1)
	assert.Len(t, params, len(upsertArgs(model.Pool{})))
}

func TestUpsertArgsOptionalColumns(t *testing.T) {
	args := upsertArgs(model.Pool{Network: "base", Address: testPool, Fee: 500, TickSpacing: 10})

	require.Len(t, args, 11)
	assert.Equal(t, "base", args[0])
	assert.Equal(t, testPool.Hex(), args[1])
	assert.Equal(t, int64(500), args[4])
	assert.Equal(t, int32(10), args[5])
	for i := 6; i <= 9; i++ {
		assert.Nil(t, args[i], "column %d", i+1)
	}
	assert.Equal(t, false, args[10])
}

func TestPoolRowRoundTrip(t *testing.T) {
	block, ts := uint64(77), uint64(1_700_000_000)
	tx := common.HexToHash("0xdeadbeef")
	creator := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	want := model.Pool{
		Network: "base", Address: testPool, Fee: 3000, TickSpacing: 60, Refined: true,
		Token0:         model.PoolToken{Address: testToken0},
		Token1:         model.PoolToken{Address: testToken1},
		CreatedAtBlock: &block, CreatedAtTimestamp: &ts, CreatedAtTx: &tx, Creator: &creator,
	}

	args := upsertArgs(want)
	row := poolRow{
		addr:         args[1].(string),
		token0:       args[2].(string),
		token1:       args[3].(string),
		fee:          args[4].(int64),
		tickSpacing:  args[5].(int32),
		createdBlock: args[6].(*int64),
		createdTS:    args[7].(*int64),
		createdTx:    args[8].(*string),
		creator:      args[9].(*string),
		refined:      args[10].(bool),
	}
	assert.True(t, strings.HasPrefix(row.addr, "0x"))
	assert.Equal(t, want, row.pool("base"))
}
