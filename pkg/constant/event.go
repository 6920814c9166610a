/*
 * @Description:
 * @Author: 安知鱼
 * @Date: 2026-09-10 18:07:37
 * @LastEditTime: 2026-09-10 18:07:49
 * @LastEditors: 安知鱼
 */
package constant

import "github.com/anzhiyu-c/anheyu-filehub/internal/pkg/event"

// EventTopic 事件主题类型
type EventTopic = event.Topic

// 导出事件主题常量，供外部使用
const (
	EventDistributionPublished EventTopic = event.DistributionPublished
	EventDistributionRead      EventTopic = event.DistributionRead
	EventDistributionDeleted   EventTopic = event.DistributionDeleted
)
