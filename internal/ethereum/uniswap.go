package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/kjannette/trahn-dca/internal/executor"
	"github.com/kjannette/trahn-dca/internal/swap"
)

const (
	explorerTxPrefix = "https://etherscan.io/tx/"
	swapDeadline     = 20 * time.Minute
)

// UniswapV2 swaps ERC20 pairs through a Uniswap V2 Router02. It implements
// swap.Venue for live trading.
type UniswapV2 struct {
	client     *Client
	routerAddr common.Address
	routerABI  abi.ABI
	erc20ABI   abi.ABI
	logger     zerolog.Logger
}

var _ swap.Venue = (*UniswapV2)(nil)

func NewUniswapV2(client *Client, routerAddr string, logger zerolog.Logger) (*UniswapV2, error) {
	rABI, err := abi.JSON(routerABIJSON())
	if err != nil {
		return nil, fmt.Errorf("parse router ABI: %w", err)
	}
	eABI, err := abi.JSON(erc20ABIJSON())
	if err != nil {
		return nil, fmt.Errorf("parse ERC20 ABI: %w", err)
	}
	return &UniswapV2{
		client:     client,
		routerAddr: common.HexToAddress(routerAddr),
		routerABI:  rABI,
		erc20ABI:   eABI,
		logger:     logger.With().Str("component", "uniswap").Logger(),
	}, nil
}

func ExplorerURL(txHash string) string {
	return explorerTxPrefix + txHash
}

// BalanceOf returns the wallet's ERC20 balance in human units.
func (u *UniswapV2) BalanceOf(ctx context.Context, asset swap.Asset) (float64, error) {
	raw, err := u.balanceNative(ctx, asset)
	if err != nil {
		return 0, err
	}
	return FromNative(raw, asset.Decimals), nil
}

// Quote asks the router for the output of a direct two-hop path.
func (u *UniswapV2) Quote(ctx context.Context, in swap.Intent, _ int) (swap.Quote, error) {
	out, err := u.amountsOut(ctx, in)
	if err != nil {
		return swap.Quote{}, err
	}
	return swap.Quote{ExpectedOut: FromNative(out, in.Output.Decimals)}, nil
}

// Execute quotes, ensures allowance, sends swapExactTokensForTokens with a
// minimum output derived from slippageBps and waits for the receipt. The
// received amount is the change in the output token balance.
func (u *UniswapV2) Execute(ctx context.Context, in swap.Intent, slippageBps int) (swap.Result, error) {
	amountIn := ToNative(in.Amount, in.Input.Decimals)

	have, err := u.balanceNative(ctx, in.Input)
	if err != nil {
		return swap.Result{}, err
	}
	if have.Cmp(amountIn) < 0 {
		return swap.Result{}, fmt.Errorf("%s balance %s < %s: %w",
			in.Input.Symbol, have, amountIn, swap.ErrInsufficientBalance)
	}

	expected, err := u.amountsOut(ctx, in)
	if err != nil {
		return swap.Result{}, err
	}
	minOut := MinOut(expected, slippageBps)

	if err := u.ensureAllowance(ctx, in.Input, amountIn); err != nil {
		return swap.Result{}, err
	}

	before, err := u.balanceNative(ctx, in.Output)
	if err != nil {
		return swap.Result{}, err
	}

	path := []common.Address{common.HexToAddress(in.Input.Address), common.HexToAddress(in.Output.Address)}
	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())
	data, err := u.routerABI.Pack("swapExactTokensForTokens", amountIn, minOut, path, u.client.WalletAddress(), deadline)
	if err != nil {
		return swap.Result{}, executor.Permanent(fmt.Errorf("pack swapExactTokensForTokens: %w", err))
	}

	hash, err := u.client.SignAndSend(ctx, u.routerAddr, big.NewInt(0), data)
	if err != nil {
		return swap.Result{}, err
	}
	u.logger.Info().
		Str("tx", hash.Hex()).
		Str("explorer", ExplorerURL(hash.Hex())).
		Int("slippage_bps", slippageBps).
		Msg("swap submitted")

	if _, err := u.client.WaitMined(ctx, hash); err != nil {
		return swap.Result{}, err
	}

	after, err := u.balanceNative(ctx, in.Output)
	if err != nil {
		return swap.Result{}, fmt.Errorf("post-swap balance (tx %s): %w", hash.Hex(), err)
	}
	received := new(big.Int).Sub(after, before)
	if received.Sign() <= 0 {
		received = minOut
	}

	return swap.Result{Received: FromNative(received, in.Output.Decimals), Ref: hash.Hex()}, nil
}

func (u *UniswapV2) amountsOut(ctx context.Context, in swap.Intent) (*big.Int, error) {
	path := []common.Address{common.HexToAddress(in.Input.Address), common.HexToAddress(in.Output.Address)}
	data, err := u.routerABI.Pack("getAmountsOut", ToNative(in.Amount, in.Input.Decimals), path)
	if err != nil {
		return nil, fmt.Errorf("pack getAmountsOut: %w", err)
	}
	raw, err := u.client.Call(ctx, u.routerAddr, data)
	if err != nil {
		return nil, fmt.Errorf("getAmountsOut call: %w", err)
	}

	vals, err := u.routerABI.Unpack("getAmountsOut", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack getAmountsOut: %w", err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("getAmountsOut: %w", swap.ErrMissingField)
	}
	amounts, ok := vals[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return nil, fmt.Errorf("getAmountsOut amounts: %w", swap.ErrMissingField)
	}
	return amounts[len(amounts)-1], nil
}

func (u *UniswapV2) balanceNative(ctx context.Context, asset swap.Asset) (*big.Int, error) {
	data, err := u.erc20ABI.Pack("balanceOf", u.client.WalletAddress())
	if err != nil {
		return nil, err
	}
	raw, err := u.client.Call(ctx, common.HexToAddress(asset.Address), data)
	if err != nil {
		return nil, fmt.Errorf("%s balanceOf: %w", asset.Symbol, err)
	}
	return new(big.Int).SetBytes(raw), nil
}

// ensureAllowance approves the router for the max amount when the current
// allowance does not cover required.
func (u *UniswapV2) ensureAllowance(ctx context.Context, asset swap.Asset, required *big.Int) error {
	token := common.HexToAddress(asset.Address)
	data, err := u.erc20ABI.Pack("allowance", u.client.WalletAddress(), u.routerAddr)
	if err != nil {
		return err
	}
	raw, err := u.client.Call(ctx, token, data)
	if err != nil {
		return fmt.Errorf("allowance call: %w", err)
	}
	if new(big.Int).SetBytes(raw).Cmp(required) >= 0 {
		return nil
	}

	u.logger.Info().Str("token", asset.Symbol).Msg("setting router allowance")
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	approveData, err := u.erc20ABI.Pack("approve", u.routerAddr, maxUint256)
	if err != nil {
		return err
	}

	hash, err := u.client.SignAndSend(ctx, token, big.NewInt(0), approveData)
	if err != nil {
		return fmt.Errorf("approve tx: %w", err)
	}
	if _, err := u.client.WaitMined(ctx, hash); err != nil {
		return fmt.Errorf("approve tx: %w", err)
	}
	u.logger.Info().Str("tx", hash.Hex()).Msg("allowance confirmed")
	return nil
}
