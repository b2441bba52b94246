package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Principal 表示调用方身份（不透明标识，仅支持相等比较）
type Principal [32]byte

func (p Principal) String() string {
	return base58.Encode(p[:])
}

func (p Principal) Equals(other Principal) bool {
	return p == other
}

func (p Principal) IsZero() bool {
	return p == Principal{}
}

// MarshalText / UnmarshalText 使 Principal 可直接用于 JSON 字段与 map key
func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Principal) UnmarshalText(text []byte) error {
	parsed, err := TryPrincipalFromBase58(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// TryPrincipalFromBase58 解析 base58 字符串为 Principal，失败时返回 error（用于不信任输入路径）
func TryPrincipalFromBase58(s string) (Principal, error) {
	data, err := base58.Decode(s)
	if err != nil {
		return Principal{}, fmt.Errorf("failed to decode base58 principal %q: %w", s, err)
	}
	if len(data) != 32 {
		return Principal{}, fmt.Errorf("invalid principal length: got %d, want 32, input=%q", len(data), s)
	}
	var p Principal
	copy(p[:], data)
	return p, nil
}

func PrincipalFromBase58(s string) Principal {
	p, err := TryPrincipalFromBase58(s)
	if err != nil {
		panic(err)
	}
	return p
}

func PrincipalsFromBase58(strs []string) []Principal {
	result := make([]Principal, 0, len(strs))
	for _, s := range strs {
		result = append(result, PrincipalFromBase58(s))
	}
	return result
}
