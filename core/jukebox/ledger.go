package jukebox

import (
	"context"
	"fmt"

	"metajuke/model"
)

// DefaultRequestPageSize 列表默认条数
const DefaultRequestPageSize = 50

// GetRequest 读取点歌收据，不存在返回 nil
func (e *Engine) GetRequest(ctx context.Context, id model.ID) (*model.TrackRequest, error) {
	request, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("读取点歌收据失败: %w", err)
	}
	return request, nil
}

// ListTableRequests 桌台最近的点歌收据
func (e *Engine) ListTableRequests(ctx context.Context, tableID model.ID, limit int) ([]*model.TrackRequest, error) {
	if limit <= 0 || limit > 500 {
		limit = DefaultRequestPageSize
	}
	requests, err := e.store.ListTableRequests(ctx, tableID, limit)
	if err != nil {
		return nil, fmt.Errorf("读取点歌收据失败: %w", err)
	}
	return requests, nil
}

// GetTotalTracks 已发行曲目数
func (e *Engine) GetTotalTracks(ctx context.Context) (uint32, error) {
	n, err := e.store.GetCounter(ctx, model.CounterTrack)
	if err != nil {
		return 0, fmt.Errorf("读取计数器失败: %w", err)
	}
	return n, nil
}

// GetPlatformStats 曲目、桌台、点歌计数，缺失视为 0
func (e *Engine) GetPlatformStats(ctx context.Context) (model.PlatformStats, error) {
	var stats model.PlatformStats
	for name, dst := range map[string]*uint32{
		model.CounterTrack:   &stats.Tracks,
		model.CounterTable:   &stats.Tables,
		model.CounterRequest: &stats.Requests,
	} {
		n, err := e.store.GetCounter(ctx, name)
		if err != nil {
			return model.PlatformStats{}, fmt.Errorf("读取计数器失败: %w", err)
		}
		*dst = n
	}
	return stats, nil
}
