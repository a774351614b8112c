package ethereum

import (
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestToNative(t *testing.T) {
	assert.Equal(t, "10000000", ToNative(10, 6).String())
	assert.Equal(t, "1500000000000000000", ToNative(1.5, 18).String())
	assert.Equal(t, "123456", ToNative(0.1234567, 6).String(), "truncates beyond token precision")
}

func TestFromNative(t *testing.T) {
	assert.Equal(t, 2.5, FromNative(big.NewInt(2500000), 6))
	wei, _ := new(big.Int).SetString("250000000000000000", 10)
	assert.Equal(t, 0.25, FromNative(wei, 18))
}

func TestMinOut(t *testing.T) {
	assert.Equal(t, "995000", MinOut(big.NewInt(1000000), 50).String())
	assert.Equal(t, "999900", MinOut(big.NewInt(1000000), 1).String())
	assert.Equal(t, "1000000", MinOut(big.NewInt(1000000), 0).String())
}

func TestABIsParse(t *testing.T) {
	u, err := NewUniswapV2(nil, "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D", zeroLogger())
	if err != nil {
		t.Fatalf("NewUniswapV2: %v", err)
	}
	if _, ok := u.routerABI.Methods["getAmountsOut"]; !ok {
		t.Fatal("router ABI missing getAmountsOut")
	}
	if _, ok := u.erc20ABI.Methods["approve"]; !ok {
		t.Fatal("ERC20 ABI missing approve")
	}
}

func zeroLogger() zerolog.Logger { return zerolog.Nop() }
