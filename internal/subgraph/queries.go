package subgraph

import (
	"fmt"

	"dexAdapter/internal/model"
)

const tokenFields = `id symbol name decimals`

const poolFields = `pool { id token0 { ` + tokenFields + ` } token1 { ` + tokenFields + ` } fee }`

const (
	swapFieldsV1 = `id ` + poolFields + ` sender origin recipient amount0 amount1 price liquidity tick logIndex`
	mintFieldsV1 = `id ` + poolFields + ` owner sender origin amount0 amount1 tickLower tickUpper amount logIndex`
	burnFieldsV1 = `id ` + poolFields + ` owner origin amount0 amount1 tickLower tickUpper amount logIndex`

	reserveFields = ` reserves0 reserves1`
)

const transactionsTemplate = `query Transactions($fromBlock: Int!, $toBlock: Int!, $first: Int!, $lastId: ID!) {
  transactions(
    where: { blockNumber_gte: $fromBlock, blockNumber_lte: $toBlock, id_gt: $lastId }
    first: $first
    orderBy: id
    orderDirection: asc
  ) {
    id
    index
    blockNumber
    timestamp
    swaps { %s }
    mints { %s }
    burns { %s }
  }
}`

var (
	transactionsQueryV1 = fmt.Sprintf(transactionsTemplate, swapFieldsV1, mintFieldsV1, burnFieldsV1)
	transactionsQueryV2 = fmt.Sprintf(transactionsTemplate,
		swapFieldsV1+reserveFields, mintFieldsV1+reserveFields, burnFieldsV1+reserveFields)
)

// TransactionsQuery returns the paginated transactions query for version.
func TransactionsQuery(version model.SchemaVersion) string {
	switch version {
	case model.SchemaV2:
		return transactionsQueryV2
	default:
		return transactionsQueryV1
	}
}

const latestBlockQuery = `query LatestBlock { _meta { block { number timestamp } } }`

const poolQuery = `query Pool($id: ID!) {
  pool(id: $id) {
    id
    token0 { id symbol name decimals totalSupply }
    token1 { id symbol name decimals totalSupply }
    fee
    tickSpacing
    createdAtTimestamp
    createdAtBlockNumber
  }
}`

const tokenQuery = `query Token($id: ID!) { token(id: $id) { id symbol name decimals totalSupply } }`
