package token

import (
	"fmt"
	"sync"

	"currency-ledger/internal/types"
)

// TokenInfo 代币元信息
type TokenInfo struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
}

// CurrencyToken 持有余额表与总发行量，是进程内唯一的账本状态。
// 不变式：
//   - 余额表中不存在值为 0 的条目（归零即删除）
//   - totalSupply 恒等于余额表所有值之和
//
// 所有操作要么完整生效、要么完全不生效。
type CurrencyToken struct {
	mu          sync.Mutex
	balances    map[types.Principal]uint64
	totalSupply uint64
	info        TokenInfo
	controllers []types.Principal
}

func NewCurrencyToken(info TokenInfo, controllers []types.Principal) *CurrencyToken {
	return &CurrencyToken{
		balances:    make(map[types.Principal]uint64),
		info:        info,
		controllers: controllers,
	}
}

// GuardController 校验调用方是否为 controller，mint 等受控操作前置检查
func (t *CurrencyToken) GuardController(caller types.Principal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range t.controllers {
		if c.Equals(caller) {
			return nil
		}
	}
	return fmt.Errorf("caller %s is not a controller: %w", caller, ErrAccessDenied)
}

// Mint 为 to 增发 qty。qty 为 0 时拒绝；加法溢出视为致命的不变式破坏，关闭式失败。
func (t *CurrencyToken) Mint(to types.Principal, qty uint64) error {
	if qty == 0 {
		return ErrZeroQuantity
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prevBalance := t.balances[to]
	newBalance := prevBalance + qty
	newSupply := t.totalSupply + qty
	if newBalance < prevBalance || newSupply < t.totalSupply {
		return fmt.Errorf("mint overflow: balance=%d supply=%d qty=%d: %w",
			prevBalance, t.totalSupply, qty, ErrForbiddenOperation)
	}

	t.totalSupply = newSupply
	t.balances[to] = newBalance
	return nil
}

// Transfer 从 from 转账 qty 到 to，总发行量不变。
// from == to 时余额不变，但仍执行完整校验（调用方照常发出事件）。
func (t *CurrencyToken) Transfer(from, to types.Principal, qty uint64) error {
	if qty == 0 {
		return ErrZeroQuantity
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prevFromBalance := t.balances[from]
	if prevFromBalance < qty {
		return ErrInsufficientBalance
	}

	if from.Equals(to) {
		return nil
	}

	prevToBalance := t.balances[to]
	newToBalance := prevToBalance + qty
	if newToBalance < prevToBalance {
		return fmt.Errorf("transfer overflow: to balance=%d qty=%d: %w",
			prevToBalance, qty, ErrForbiddenOperation)
	}

	if newFromBalance := prevFromBalance - qty; newFromBalance == 0 {
		delete(t.balances, from)
	} else {
		t.balances[from] = newFromBalance
	}
	t.balances[to] = newToBalance
	return nil
}

// Burn 销毁 from 的 qty，总发行量同步扣减
func (t *CurrencyToken) Burn(from types.Principal, qty uint64) error {
	if qty == 0 {
		return ErrZeroQuantity
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prevBalance := t.balances[from]
	if prevBalance < qty {
		return ErrInsufficientBalance
	}

	if newBalance := prevBalance - qty; newBalance == 0 {
		delete(t.balances, from)
	} else {
		t.balances[from] = newBalance
	}
	t.totalSupply -= qty
	return nil
}

// BalanceOf 查询余额，账户不存在时返回 0，永不失败
func (t *CurrencyToken) BalanceOf(accountOwner types.Principal) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[accountOwner]
}

func (t *CurrencyToken) TotalSupply() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalSupply
}

func (t *CurrencyToken) Info() TokenInfo {
	return t.info
}

// HolderCount 返回余额严格为正的账户数（等于余额表条目数）
func (t *CurrencyToken) HolderCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.balances)
}

// SumBalances 返回余额表所有值之和，用于核对 totalSupply 不变式
func (t *CurrencyToken) SumBalances() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sum uint64
	for _, b := range t.balances {
		sum += b
	}
	return sum
}
