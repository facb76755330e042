package subgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"dexAdapter/internal/model"
)

// Scalar holds a GraphQL scalar as text. Subgraphs return BigInt and
// BigDecimal as strings and Int as numbers; both decode here.
type Scalar string

func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	*s = Scalar(b)
	return nil
}

func (s Scalar) uint64(field string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("%s: missing", field)
	}
	v, err := strconv.ParseUint(string(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

func (s Scalar) uint64Or(field string, fallback uint64) (uint64, error) {
	if s == "" {
		return fallback, nil
	}
	return s.uint64(field)
}

func (s Scalar) int32(field string) (int32, error) {
	if s == "" {
		return 0, fmt.Errorf("%s: missing", field)
	}
	v, err := strconv.ParseInt(string(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return int32(v), nil
}

// bigInt accepts integers written with a trailing fractional part, which
// some subgraphs emit for BigDecimal-typed liquidity fields.
func (s Scalar) bigInt(field string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%s: missing", field)
	}
	if v, ok := new(big.Int).SetString(string(s), 10); ok {
		return v, nil
	}
	d, err := decimal.NewFromString(string(s))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return d.BigInt(), nil
}

func (s Scalar) amount(field string) (model.Amount, error) {
	a, err := model.ParseScaledAmount(string(s))
	if err != nil {
		return model.Amount{}, fmt.Errorf("%s: %w", field, err)
	}
	return a, nil
}

func (s Scalar) optionalAmount(field string) (*model.Amount, error) {
	if s == "" {
		return nil, nil
	}
	a, err := s.amount(field)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

func parseTxHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("transaction id: invalid hash %q", s)
	}
	return common.BytesToHash(b), nil
}
