package subgraph

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"dexAdapter/internal/model"
)

type tokenRecord struct {
	ID          string `json:"id"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Decimals    Scalar `json:"decimals"`
	TotalSupply Scalar `json:"totalSupply"`
}

func (r tokenRecord) token(network string) (model.Token, error) {
	addr, err := parseAddress("token id", r.ID)
	if err != nil {
		return model.Token{}, err
	}
	decimals, err := r.Decimals.uint64Or("decimals", 18)
	if err != nil {
		return model.Token{}, err
	}
	if decimals > 255 {
		return model.Token{}, fmt.Errorf("decimals out of range: %d", decimals)
	}
	token := model.Token{
		Network:  network,
		Address:  addr,
		Name:     r.Name,
		Symbol:   r.Symbol,
		Decimals: uint8(decimals),
	}
	if r.TotalSupply != "" {
		supply, err := r.TotalSupply.bigInt("totalSupply")
		if err != nil {
			return model.Token{}, err
		}
		amount := model.RawAmount(supply)
		token.TotalSupply = &amount
	}
	return token, nil
}

type poolRecord struct {
	ID                   string      `json:"id"`
	Token0               tokenRecord `json:"token0"`
	Token1               tokenRecord `json:"token1"`
	Fee                  Scalar      `json:"fee"`
	TickSpacing          Scalar      `json:"tickSpacing"`
	CreatedAtTimestamp   Scalar      `json:"createdAtTimestamp"`
	CreatedAtBlockNumber Scalar      `json:"createdAtBlockNumber"`
}

func (r poolRecord) pool(network string) (model.Pool, error) {
	addr, err := parseAddress("pool id", r.ID)
	if err != nil {
		return model.Pool{}, err
	}
	token0, err := r.Token0.token(network)
	if err != nil {
		return model.Pool{}, fmt.Errorf("token0: %w", err)
	}
	token1, err := r.Token1.token(network)
	if err != nil {
		return model.Pool{}, fmt.Errorf("token1: %w", err)
	}
	fee, err := r.Fee.uint64Or("fee", 0)
	if err != nil {
		return model.Pool{}, err
	}

	pool := model.Pool{
		Network: network,
		Address: addr,
		Token0:  model.PoolToken{Address: token0.Address, Meta: &token0},
		Token1:  model.PoolToken{Address: token1.Address, Meta: &token1},
		Fee:     uint32(fee),
	}
	if r.TickSpacing != "" {
		if pool.TickSpacing, err = r.TickSpacing.int32("tickSpacing"); err != nil {
			return model.Pool{}, err
		}
	}
	if r.CreatedAtBlockNumber != "" {
		block, err := r.CreatedAtBlockNumber.uint64("createdAtBlockNumber")
		if err != nil {
			return model.Pool{}, err
		}
		pool.CreatedAtBlock = &block
	}
	if r.CreatedAtTimestamp != "" {
		ts, err := r.CreatedAtTimestamp.uint64("createdAtTimestamp")
		if err != nil {
			return model.Pool{}, err
		}
		pool.CreatedAtTimestamp = &ts
	}
	return pool, nil
}

// txHeader carries the parent transaction fields shared by its sub-events.
type txHeader struct {
	hash      common.Hash
	index     uint64
	block     uint64
	timestamp uint64
}

type txFields struct {
	ID          string `json:"id"`
	Index       Scalar `json:"index"`
	BlockNumber Scalar `json:"blockNumber"`
	Timestamp   Scalar `json:"timestamp"`
}

func (r txFields) header() (txHeader, error) {
	hash, err := parseTxHash(r.ID)
	if err != nil {
		return txHeader{}, err
	}
	index, err := r.Index.uint64Or("index", 0)
	if err != nil {
		return txHeader{}, err
	}
	block, err := r.BlockNumber.uint64("blockNumber")
	if err != nil {
		return txHeader{}, err
	}
	ts, err := r.Timestamp.uint64("timestamp")
	if err != nil {
		return txHeader{}, err
	}
	return txHeader{hash: hash, index: index, block: block, timestamp: ts}, nil
}

func (h txHeader) meta(network string, pool common.Address, origin string, logIndex Scalar) (model.EventMeta, error) {
	originAddr, err := parseAddress("origin", origin)
	if err != nil {
		return model.EventMeta{}, err
	}
	li, err := logIndex.uint64Or("logIndex", 0)
	if err != nil {
		return model.EventMeta{}, err
	}
	return model.EventMeta{
		Network:        network,
		TxHash:         h.hash,
		TxIndex:        h.index,
		LogIndex:       li,
		BlockNumber:    h.block,
		BlockTimestamp: h.timestamp,
		Pool:           pool,
		Origin:         originAddr,
	}, nil
}

// reserves is the V2 extension selected on every sub-event.
type reserves struct {
	Reserves0 Scalar `json:"reserves0"`
	Reserves1 Scalar `json:"reserves1"`
}

func (r reserves) apply(meta *model.EventMeta) error {
	var err error
	if meta.Reserves0, err = r.Reserves0.optionalAmount("reserves0"); err != nil {
		return err
	}
	if meta.Reserves1, err = r.Reserves1.optionalAmount("reserves1"); err != nil {
		return err
	}
	return nil
}

type swapFields struct {
	ID        string     `json:"id"`
	Pool      poolRecord `json:"pool"`
	Sender    string     `json:"sender"`
	Origin    string     `json:"origin"`
	Recipient string     `json:"recipient"`
	Amount0   Scalar     `json:"amount0"`
	Amount1   Scalar     `json:"amount1"`
	Price     Scalar     `json:"price"`
	Liquidity Scalar     `json:"liquidity"`
	Tick      Scalar     `json:"tick"`
	LogIndex  Scalar     `json:"logIndex"`
}

func (r swapFields) swap(network string, tx txHeader) (model.Swap, model.Pool, error) {
	pool, err := r.Pool.pool(network)
	if err != nil {
		return model.Swap{}, model.Pool{}, err
	}
	meta, err := tx.meta(network, pool.Address, r.Origin, r.LogIndex)
	if err != nil {
		return model.Swap{}, model.Pool{}, err
	}
	swap := model.Swap{EventMeta: meta}
	if swap.Sender, err = parseAddress("sender", r.Sender); err != nil {
		return model.Swap{}, model.Pool{}, err
	}
	if swap.Recipient, err = parseAddress("recipient", r.Recipient); err != nil {
		return model.Swap{}, model.Pool{}, err
	}
	if swap.Amount0, err = r.Amount0.amount("amount0"); err != nil {
		return model.Swap{}, model.Pool{}, err
	}
	if swap.Amount1, err = r.Amount1.amount("amount1"); err != nil {
		return model.Swap{}, model.Pool{}, err
	}
	if r.Price != "" {
		if swap.SqrtPriceX96, err = r.Price.bigInt("price"); err != nil {
			return model.Swap{}, model.Pool{}, err
		}
	}
	if swap.Liquidity, err = r.Liquidity.bigInt("liquidity"); err != nil {
		return model.Swap{}, model.Pool{}, err
	}
	if swap.Tick, err = r.Tick.int32("tick"); err != nil {
		return model.Swap{}, model.Pool{}, err
	}
	return swap, pool, nil
}

type liquidityFields struct {
	ID        string     `json:"id"`
	Pool      poolRecord `json:"pool"`
	Owner     string     `json:"owner"`
	Origin    string     `json:"origin"`
	Amount0   Scalar     `json:"amount0"`
	Amount1   Scalar     `json:"amount1"`
	TickLower Scalar     `json:"tickLower"`
	TickUpper Scalar     `json:"tickUpper"`
	Amount    Scalar     `json:"amount"`
	LogIndex  Scalar     `json:"logIndex"`
}

type liquidityEvent struct {
	meta      model.EventMeta
	owner     common.Address
	tickLower int32
	tickUpper int32
	amount0   model.Amount
	amount1   model.Amount
}

func (r liquidityFields) parse(network string, tx txHeader) (liquidityEvent, model.Pool, error) {
	var out liquidityEvent
	pool, err := r.Pool.pool(network)
	if err != nil {
		return out, model.Pool{}, err
	}
	if out.meta, err = tx.meta(network, pool.Address, r.Origin, r.LogIndex); err != nil {
		return out, model.Pool{}, err
	}
	if out.owner, err = parseAddress("owner", r.Owner); err != nil {
		return out, model.Pool{}, err
	}
	if out.amount0, err = r.Amount0.amount("amount0"); err != nil {
		return out, model.Pool{}, err
	}
	if out.amount1, err = r.Amount1.amount("amount1"); err != nil {
		return out, model.Pool{}, err
	}
	if out.tickLower, err = r.TickLower.int32("tickLower"); err != nil {
		return out, model.Pool{}, err
	}
	if out.tickUpper, err = r.TickUpper.int32("tickUpper"); err != nil {
		return out, model.Pool{}, err
	}
	return out, pool, nil
}

type mintFields struct {
	liquidityFields
	Sender string `json:"sender"`
}

func (r mintFields) mint(network string, tx txHeader) (model.Mint, model.Pool, error) {
	ev, pool, err := r.parse(network, tx)
	if err != nil {
		return model.Mint{}, model.Pool{}, err
	}
	sender, err := parseAddress("sender", r.Sender)
	if err != nil {
		return model.Mint{}, model.Pool{}, err
	}
	liquidity, err := r.Amount.bigInt("amount")
	if err != nil {
		return model.Mint{}, model.Pool{}, err
	}
	return model.Mint{
		EventMeta: ev.meta,
		Owner:     ev.owner,
		Sender:    sender,
		TickLower: ev.tickLower,
		TickUpper: ev.tickUpper,
		Liquidity: liquidity,
		Amount0:   ev.amount0,
		Amount1:   ev.amount1,
	}, pool, nil
}

type burnFields struct {
	liquidityFields
}

func (r burnFields) burn(network string, tx txHeader) (model.Burn, model.Pool, error) {
	ev, pool, err := r.parse(network, tx)
	if err != nil {
		return model.Burn{}, model.Pool{}, err
	}
	liquidity, err := r.Amount.bigInt("amount")
	if err != nil {
		return model.Burn{}, model.Pool{}, err
	}
	return model.Burn{
		EventMeta: ev.meta,
		Owner:     ev.owner,
		TickLower: ev.tickLower,
		TickUpper: ev.tickUpper,
		Liquidity: liquidity,
		Amount0:   ev.amount0,
		Amount1:   ev.amount1,
	}, pool, nil
}

// Schema variants. V1 records carry no reserve fields at all; V2 records
// embed them.

type swapV1 struct{ swapFields }
type swapV2 struct {
	swapFields
	reserves
}
type mintV1 struct{ mintFields }
type mintV2 struct {
	mintFields
	reserves
}
type burnV1 struct{ burnFields }
type burnV2 struct {
	burnFields
	reserves
}

func (r swapV1) normalize(network string, tx txHeader) (model.Swap, model.Pool, error) {
	return r.swap(network, tx)
}

func (r swapV2) normalize(network string, tx txHeader) (model.Swap, model.Pool, error) {
	swap, pool, err := r.swap(network, tx)
	if err != nil {
		return swap, pool, err
	}
	err = r.reserves.apply(&swap.EventMeta)
	return swap, pool, err
}

func (r mintV1) normalize(network string, tx txHeader) (model.Mint, model.Pool, error) {
	return r.mint(network, tx)
}

func (r mintV2) normalize(network string, tx txHeader) (model.Mint, model.Pool, error) {
	mint, pool, err := r.mint(network, tx)
	if err != nil {
		return mint, pool, err
	}
	err = r.reserves.apply(&mint.EventMeta)
	return mint, pool, err
}

func (r burnV1) normalize(network string, tx txHeader) (model.Burn, model.Pool, error) {
	return r.burn(network, tx)
}

func (r burnV2) normalize(network string, tx txHeader) (model.Burn, model.Pool, error) {
	burn, pool, err := r.burn(network, tx)
	if err != nil {
		return burn, pool, err
	}
	err = r.reserves.apply(&burn.EventMeta)
	return burn, pool, err
}

func (r swapV1) recordID() string { return r.ID }
func (r swapV2) recordID() string { return r.ID }
func (r mintV1) recordID() string { return r.ID }
func (r mintV2) recordID() string { return r.ID }
func (r burnV1) recordID() string { return r.ID }
func (r burnV2) recordID() string { return r.ID }

type record[E any] interface {
	normalize(network string, tx txHeader) (E, model.Pool, error)
	recordID() string
}

type transactionRecord[S record[model.Swap], M record[model.Mint], B record[model.Burn]] struct {
	txFields
	Swaps []S `json:"swaps"`
	Mints []M `json:"mints"`
	Burns []B `json:"burns"`
}

type transactionsData[S record[model.Swap], M record[model.Mint], B record[model.Burn]] struct {
	Transactions []transactionRecord[S, M, B] `json:"transactions"`
}
