package model

// HasTarget 判断组织是否在记录的接收方集合中
func (r *DistributionRecord) HasTarget(workplaceID string) bool {
	for _, id := range r.WorkplaceIDs {
		if id == workplaceID {
			return true
		}
	}
	return false
}

// VisibleTo 判断记录对某个组织是否可见：记录有效，且为全局记录或该组织是接收方之一
func (r *DistributionRecord) VisibleTo(workplaceID string) bool {
	if !r.IsActive {
		return false
	}
	if r.IsGlobal() {
		return true
	}
	if workplaceID == "" {
		return false
	}
	return r.WorkplaceID() == workplaceID || r.HasTarget(workplaceID)
}

// ReadByWorkplace 判断组织是否已有已读确认
func (r *DistributionRecord) ReadByWorkplace(workplaceID string) bool {
	for _, rc := range r.ReadBy {
		if rc.WorkplaceID == workplaceID {
			return true
		}
	}
	return false
}

// ReadFor 计算某个组织视角下的已读状态。
// 全局记录使用存储的 IsRead；定向记录只看该组织是否有已读确认。
func (r *DistributionRecord) ReadFor(workplaceID string) bool {
	if r.IsGlobal() {
		return r.IsRead
	}
	return r.ReadByWorkplace(workplaceID)
}

// AllTargetsRead 定向记录的每个接收组织都已确认时返回 true。
// 全局记录只要有任意一条确认即视为已读。
func (r *DistributionRecord) AllTargetsRead() bool {
	if r.IsGlobal() {
		return len(r.ReadBy) > 0
	}
	for _, id := range r.WorkplaceIDs {
		if !r.ReadByWorkplace(id) {
			return false
		}
	}
	return true
}
