package dto

import (
	"time"

	"gigmarket/internal/domain"
)

type ResolveNotificationRequest struct {
	Outcome string `json:"outcome"`
}

type NotificationResponse struct {
	TraceID   string         `json:"traceId,omitempty"`
	ID        uint           `json:"id"`
	Type      string         `json:"type"`
	Kind      string         `json:"kind"`
	Content   string         `json:"content"`
	Payload   domain.Payload `json:"payload"`
	Status    string         `json:"status,omitempty"`
	SenderID  *uint          `json:"senderId,omitempty"`
	RequestID *string        `json:"requestId,omitempty"`
	IsRead    bool           `json:"isRead"`
	CreatedAt time.Time      `json:"createdAt"`
}

type NotificationListResponse struct {
	TraceID       string                 `json:"traceId"`
	Notifications []NotificationResponse `json:"notifications"`
}

type NotificationHistoryEntry struct {
	Action     string    `json:"action"`
	Status     string    `json:"status,omitempty"`
	IsRead     bool      `json:"isRead"`
	Content    string    `json:"content"`
	RecordedAt time.Time `json:"recordedAt"`
}

type NotificationHistoryResponse struct {
	TraceID        string                     `json:"traceId"`
	NotificationID uint                       `json:"notificationId"`
	Entries        []NotificationHistoryEntry `json:"entries"`
}

type UnreadCountResponse struct {
	TraceID string `json:"traceId"`
	Unread  int    `json:"unread"`
}

func NewNotificationResponse(traceID string, n domain.Notification) NotificationResponse {
	resp := NotificationResponse{
		TraceID:   traceID,
		ID:        n.ID,
		Type:      string(n.Type),
		Content:   n.Content,
		Payload:   n.Payload,
		Status:    string(n.Status),
		SenderID:  n.SenderID,
		RequestID: n.RequestID,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
	if n.Payload != nil {
		resp.Kind = string(n.Payload.Kind())
	}
	return resp
}

func NewNotificationListResponse(traceID string, notifications []domain.Notification) NotificationListResponse {
	items := make([]NotificationResponse, len(notifications))
	for i, n := range notifications {
		items[i] = NewNotificationResponse("", n)
	}
	return NotificationListResponse{TraceID: traceID, Notifications: items}
}

func NewNotificationHistoryResponse(traceID string, notificationID uint, history []domain.NotificationHistory) NotificationHistoryResponse {
	entries := make([]NotificationHistoryEntry, len(history))
	for i, h := range history {
		entries[i] = NotificationHistoryEntry{
			Action:     string(h.Action),
			Status:     string(h.Status),
			IsRead:     h.IsRead,
			Content:    h.Content,
			RecordedAt: h.RecordedAt,
		}
	}
	return NotificationHistoryResponse{TraceID: traceID, NotificationID: notificationID, Entries: entries}
}
