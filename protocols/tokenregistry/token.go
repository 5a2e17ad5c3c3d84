package tokenregistry

import "github.com/ethereum/go-ethereum/common"

// Token is a preloaded token-universe entry: the on-chain identity plus the
// safety classification spec.md 3's TokenSafety record needs. It adapts the
// source Token struct (which carried a float FeeOnTransferPercent and an
// unused GasForTransfer) to the exact-basis-points honeypot/tax contract the
// route eligibility rule requires.
type Token struct {
	ID            uint64         `json:"id"`
	Address       common.Address `json:"address"`
	Symbol        string         `json:"symbol"`
	Decimals      uint8          `json:"decimals"`
	Honeypot      bool           `json:"honeypot"`
	TransferTaxBP uint16         `json:"transferTaxBp"`
}
