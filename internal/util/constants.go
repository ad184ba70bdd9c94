package util

import "strings"

// 未填写主题的答案统一归入该哨兵主题，保证不丢题
const UnknownTopic = "Unknown"

// 进步评估的方向取值
const (
	DirectionImproved = "improved"
	DirectionDeclined = "declined"
	DirectionStable   = "stable"
)

// NormalizeDirection 把远端返回的方向值规整到固定取值，未知值按改善幅度推断
func NormalizeDirection(direction string, improvement float64) string {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case DirectionImproved:
		return DirectionImproved
	case DirectionDeclined:
		return DirectionDeclined
	case DirectionStable:
		return DirectionStable
	}

	switch {
	case improvement > 0:
		return DirectionImproved
	case improvement < 0:
		return DirectionDeclined
	default:
		return DirectionStable
	}
}
