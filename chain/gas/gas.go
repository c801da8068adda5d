// Package gas implements the fixed-formula gas estimator of §4.4: no
// mempool simulation, no historical fee percentile tracking, just the
// three constants derived from the target block's base fee.
package gas

import (
	"math/big"

	"github.com/filecoin-project/lotus-lite/chain/types"
)

const (
	// BlockGasTarget is the per-epoch gas budget the estimator assumes
	// a message may consume a tenth of.
	BlockGasTarget = 5_000_000_000

	// MinGasPremium is the floor premium new messages are priced at
	// 1.5x above.
	MinGasPremium = 100_000
)

// feeCapMultiplier is round((1 + 1/8)^20 * 2^8), computed once in
// exact rational arithmetic so the estimator never substitutes a
// floating-point approximation with different rounding.
var feeCapMultiplier = computeFeeCapMultiplier()

func computeFeeCapMultiplier() *big.Int {
	num := big.NewInt(9)
	den := big.NewInt(8)
	numPow := new(big.Int).Exp(num, big.NewInt(20), nil)
	denPow := new(big.Int).Exp(den, big.NewInt(20), nil)
	numPow.Mul(numPow, big.NewInt(256))

	// round(numPow/denPow) = floor((numPow + denPow/2) / denPow)
	half := new(big.Int).Rsh(denPow, 1)
	numPow.Add(numPow, half)
	return numPow.Div(numPow, denPow)
}

// EstimateGasLimit returns the fixed gas limit, ignoring the message
// entirely: BlockGasTarget / 10.
func EstimateGasLimit() uint64 {
	return BlockGasTarget / 10
}

// EstimateGasPremium returns 1.5 x MinGasPremium.
func EstimateGasPremium() types.BigInt {
	n := big.NewInt(MinGasPremium)
	n.Mul(n, big.NewInt(3))
	n.Div(n, big.NewInt(2))
	return types.BigInt{Int: n}
}

// EstimateGasFeeCap computes (baseFee * round((1+1/8)^20 * 2^8)) / 2^8
// + gasPremium, in exact integer arithmetic over big.Int.
func EstimateGasFeeCap(baseFee types.BigInt, premium types.BigInt) types.BigInt {
	scaled := new(big.Int).Mul(baseFee.Int, feeCapMultiplier)
	scaled.Rsh(scaled, 8)
	scaled.Add(scaled, premium.Int)
	return types.BigInt{Int: scaled}
}

// Estimate fills in any zero-valued gas fields on msg using baseFee,
// per §4.4: gasLimit absent -> BlockGasTarget/10, gasPremium absent ->
// 1.5x MinGasPremium, gasFeeCap absent -> the feeCap formula above.
// "Absent" for the two BigInt fields means a nil or zero value; the
// caller decides whether to call this at all for a fully-specified
// message.
func Estimate(msg *types.Message, baseFee types.BigInt) {
	if msg.GasLimit == 0 {
		msg.GasLimit = EstimateGasLimit()
	}
	if msg.GasPremium.Int == nil || msg.GasPremium.Int.Sign() == 0 {
		msg.GasPremium = EstimateGasPremium()
	}
	if msg.GasFeeCap.Int == nil || msg.GasFeeCap.Int.Sign() == 0 {
		msg.GasFeeCap = EstimateGasFeeCap(baseFee, msg.GasPremium)
	}
}
