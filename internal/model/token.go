package model

import "github.com/ethereum/go-ethereum/common"

// Token is an ERC20 descriptor scoped to a network.
type Token struct {
	Network     string
	Address     common.Address
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *Amount
}
