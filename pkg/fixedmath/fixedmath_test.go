package fixedmath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDiv(t *testing.T) {
	dest := new(big.Int)
	err := MulDiv(dest, big.NewInt(10), big.NewInt(3), big.NewInt(4))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(7), dest) // floor(30/4) = 7
}

func TestMulDivRoundingUp(t *testing.T) {
	dest := new(big.Int)
	err := MulDivRoundingUp(dest, big.NewInt(10), big.NewInt(3), big.NewInt(4))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(8), dest) // ceil(30/4) = 8

	dest2 := new(big.Int)
	require.NoError(t, MulDivRoundingUp(dest2, big.NewInt(8), big.NewInt(2), big.NewInt(4)))
	assert.Equal(t, big.NewInt(4), dest2) // exact, no rounding
}

func TestMulDivDivideByZero(t *testing.T) {
	dest := new(big.Int)
	err := MulDiv(dest, big.NewInt(1), big.NewInt(1), big.NewInt(0))
	assert.ErrorIs(t, err, ErrDivideByZero)
}

func TestMulDivOverflow(t *testing.T) {
	dest := new(big.Int)
	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	err := MulDiv(dest, huge, huge, big.NewInt(1))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestOverflows256(t *testing.T) {
	assert.False(t, Overflows256(maxUint256))
	over := new(big.Int).Add(maxUint256, big.NewInt(1))
	assert.True(t, Overflows256(over))
	assert.True(t, Overflows256(big.NewInt(-1)))
}

func TestCheckedMul(t *testing.T) {
	product, err := CheckedMul(big.NewInt(6), big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), product)

	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	_, err = CheckedMul(huge, huge)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestDivRoundingUp(t *testing.T) {
	dest := new(big.Int)
	require.NoError(t, DivRoundingUp(dest, big.NewInt(7), big.NewInt(2)))
	assert.Equal(t, big.NewInt(4), dest)

	dest2 := new(big.Int)
	require.NoError(t, DivRoundingUp(dest2, big.NewInt(8), big.NewInt(2)))
	assert.Equal(t, big.NewInt(4), dest2)
}
