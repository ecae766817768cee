// Package ident 从计数器和上下文字节派生实体标识
package ident

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"metajuke/model"
)

// Generator 标识生成器，只有一个 Next 操作
type Generator interface {
	Next(parts ...[]byte) model.ID
}

// SHA256 对各部分拼接后做 SHA-256
type SHA256 struct{}

// Next 实现 Generator
func (SHA256) Next(parts ...[]byte) model.ID {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var id model.ID
	copy(id[:], h.Sum(nil))
	return id
}

// Sequence 测试用的确定性生成器：第 n 次调用返回首字节为 n 的 ID
// 同时记录每次调用的输入，便于断言派生上下文
type Sequence struct {
	mu    sync.Mutex
	next  uint32
	Calls [][]byte
}

// Next 实现 Generator
func (s *Sequence) Next(parts ...[]byte) model.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	var id model.ID
	binary.BigEndian.PutUint32(id[:4], s.next)
	var joined []byte
	for _, p := range parts {
		joined = append(joined, p...)
	}
	s.Calls = append(s.Calls, joined)
	return id
}

// Uint32 大端编码
func Uint32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

// Uint64 大端编码
func Uint64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

// TrackID H("track_" ‖ counter)
func TrackID(g Generator, counter uint32) model.ID {
	return g.Next([]byte("track_"), Uint32(counter))
}

// TableID H("table_" ‖ owner ‖ counter)
func TableID(g Generator, owner string, counter uint32) model.ID {
	return g.Next([]byte("table_"), []byte(owner), Uint32(counter))
}

// RequestID H("request_" ‖ requester ‖ track ‖ table ‖ counter ‖ unix nanos)
func RequestID(g Generator, requester string, track, table model.ID, counter uint32, unixNano int64) model.ID {
	return g.Next([]byte("request_"), []byte(requester), track[:], table[:], Uint32(counter), Uint64(uint64(unixNano)))
}
