package model

import (
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// ID 32 字节内容标识（轨道、桌台、点歌请求共用）
type ID [32]byte

// ParseID 解析 64 位十六进制字符串，允许 0x 前缀
func ParseID(s string) (ID, error) {
	var id ID
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if len(trimmed) != 64 {
		return id, fmt.Errorf("id must be 32 bytes (got %d hex chars)", len(trimmed))
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return id, fmt.Errorf("decode id: %w", err)
	}
	copy(id[:], raw)
	return id, nil
}

// String 返回十六进制表示
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero 是否为零值
func (id ID) IsZero() bool {
	return id == ID{}
}

// Scan 实现 sql.Scanner 接口
func (id *ID) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case nil:
		*id = ID{}
		return nil
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return fmt.Errorf("unsupported id column type %T", value)
	}
	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value 实现 driver.Valuer 接口
func (id ID) Value() (driver.Value, error) {
	return id.String(), nil
}

// MarshalJSON 以十六进制字符串输出
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON 解析十六进制字符串
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Amount 有符号定点金额，任意精度（覆盖 i128）
type Amount struct {
	v *big.Int
}

// NewAmount 由 int64 构造金额
func NewAmount(n int64) Amount {
	return Amount{v: big.NewInt(n)}
}

// AmountFromBig 复制一个 big.Int
func AmountFromBig(b *big.Int) Amount {
	if b == nil {
		return Amount{v: big.NewInt(0)}
	}
	return Amount{v: new(big.Int).Set(b)}
}

// ParseAmount 解析十进制字符串
func ParseAmount(s string) (Amount, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	return Amount{v: v}, nil
}

// Big 返回底层值的副本
func (a Amount) Big() *big.Int {
	if a.v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.v)
}

func (a Amount) Sign() int {
	if a.v == nil {
		return 0
	}
	return a.v.Sign()
}

func (a Amount) Cmp(b Amount) int {
	return a.Big().Cmp(b.Big())
}

func (a Amount) Add(b Amount) Amount {
	return Amount{v: new(big.Int).Add(a.Big(), b.Big())}
}

func (a Amount) Sub(b Amount) Amount {
	return Amount{v: new(big.Int).Sub(a.Big(), b.Big())}
}

func (a Amount) IsZero() bool {
	return a.Sign() == 0
}

func (a Amount) String() string {
	return a.Big().String()
}

// Scan 实现 sql.Scanner 接口
func (a *Amount) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*a = NewAmount(0)
		return nil
	case int64:
		*a = NewAmount(v)
		return nil
	case []byte:
		parsed, err := ParseAmount(string(v))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case string:
		parsed, err := ParseAmount(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	default:
		return fmt.Errorf("unsupported amount column type %T", value)
	}
}

// Value 实现 driver.Valuer 接口，以十进制字符串落库避免精度丢失
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// MarshalJSON 金额以字符串输出，避免 JSON number 精度问题
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON 同时接受字符串和数字
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*a = NewAmount(0)
		return nil
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// IDList 有序的 ID 列表（JSON 字段）
type IDList []ID

// Scan 实现 sql.Scanner 接口
func (l *IDList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// Value 实现 driver.Valuer 接口
func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return valueJSON(l)
}

// StringList 字符串列表（JSON 字段）
type StringList []string

// Scan 实现 sql.Scanner 接口
func (l *StringList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// Value 实现 driver.Valuer 接口
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return valueJSON(l)
}

// RoyaltyShare 版税分成条目
type RoyaltyShare struct {
	Recipient  string `json:"recipient"`
	Percentage uint32 `json:"percentage"`
}

// RoyaltySplit 有序的版税分成列表（JSON 字段）
type RoyaltySplit []RoyaltyShare

// Total 百分比总和
func (s RoyaltySplit) Total() uint64 {
	var total uint64
	for _, share := range s {
		total += uint64(share.Percentage)
	}
	return total
}

// Scan 实现 sql.Scanner 接口
func (s *RoyaltySplit) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// Value 实现 driver.Valuer 接口
func (s RoyaltySplit) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return valueJSON(s)
}

// VoterSet 跳过投票的投票人集合。只记录“已投票”，不存在 false 的情况
type VoterSet map[string]struct{}

// Add 加入投票人，返回是否为新增
func (s *VoterSet) Add(voter string) bool {
	if *s == nil {
		*s = make(VoterSet)
	}
	if _, ok := (*s)[voter]; ok {
		return false
	}
	(*s)[voter] = struct{}{}
	return true
}

// Has 是否已投票
func (s VoterSet) Has(voter string) bool {
	_, ok := s[voter]
	return ok
}

// Len 票数
func (s VoterSet) Len() int {
	return len(s)
}

// Members 按字典序返回投票人
func (s VoterSet) Members() []string {
	out := make([]string, 0, len(s))
	for voter := range s {
		out = append(out, voter)
	}
	sort.Strings(out)
	return out
}

// Scan 实现 sql.Scanner 接口
func (s *VoterSet) Scan(value interface{}) error {
	var voters []string
	if err := scanJSON(value, &voters); err != nil {
		return err
	}
	set := make(VoterSet, len(voters))
	for _, voter := range voters {
		set[voter] = struct{}{}
	}
	*s = set
	return nil
}

// Value 实现 driver.Valuer 接口
func (s VoterSet) Value() (driver.Value, error) {
	return valueJSON(s.Members())
}

// MarshalJSON 以排序后的数组输出
func (s VoterSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Members())
}

// UnmarshalJSON 从数组读取
func (s *VoterSet) UnmarshalJSON(data []byte) error {
	var voters []string
	if err := json.Unmarshal(data, &voters); err != nil {
		return err
	}
	set := make(VoterSet, len(voters))
	for _, voter := range voters {
		set[voter] = struct{}{}
	}
	*s = set
	return nil
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		return nil
	}
	return json.Unmarshal(bytes, dest)
}

func valueJSON(v interface{}) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
