// Package notification содержит доменную модель уведомлений Chrono Hub.
// Уведомления производительности строго типизированы: каждый тип несёт
// свой набор данных, произвольных payload-карт нет.
// Философия: доставка best-effort, сбой уведомления никогда не ломает
// основную операцию.
package notification

import (
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// NotificationID представляет уникальный идентификатор уведомления.
type NotificationID string

// IsValid проверяет, что ID не пустой.
func (id NotificationID) IsValid() bool {
	return len(id) > 0
}

// String возвращает строковое представление ID.
func (id NotificationID) String() string {
	return string(id)
}

// RecipientID представляет идентификатор получателя уведомления.
type RecipientID string

// IsValid проверяет, что ID получателя не пустой.
func (id RecipientID) IsValid() bool {
	return len(id) > 0
}

// String возвращает строковое представление ID получателя.
func (id RecipientID) String() string {
	return string(id)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// NotificationType определяет тип уведомления.
type NotificationType string

const (
	// NotificationTypeAchievement - получено достижение.
	// "New achievement: First Steps!"
	NotificationTypeAchievement NotificationType = "achievement"

	// NotificationTypeRankUp - пользователь поднялся в рейтинге.
	// "You moved up 5 places! Now #42"
	NotificationTypeRankUp NotificationType = "rank_up"

	// NotificationTypeRankDown - пользователя обогнали.
	// "You dropped to #43"
	NotificationTypeRankDown NotificationType = "rank_down"

	// NotificationTypeStreakExtended - серия активных дней продолжилась.
	// "7 days in a row! Keep it up"
	NotificationTypeStreakExtended NotificationType = "streak_extended"

	// NotificationTypeStreakBroken - серия активных дней прервана.
	// "Your 12-day streak ended. Start a new one!"
	NotificationTypeStreakBroken NotificationType = "streak_broken"
)

// IsValid проверяет, что тип уведомления корректен.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTypeAchievement,
		NotificationTypeRankUp,
		NotificationTypeRankDown,
		NotificationTypeStreakExtended,
		NotificationTypeStreakBroken:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление типа.
func (t NotificationType) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// TYPED PAYLOADS
// Каждый тип уведомления несёт собственную структуру данных.
// ══════════════════════════════════════════════════════════════════════════════

// AchievementPayload - данные уведомления о достижении.
type AchievementPayload struct {
	AchievementType string `json:"achievement_type"`
	Title           string `json:"title"`
	Description     string `json:"description"`
}

// RankChangePayload - данные уведомления об изменении ранга.
type RankChangePayload struct {
	ScopeID    string `json:"scope_id"`
	PeriodType string `json:"period_type"`
	OldRank    int    `json:"old_rank"`
	NewRank    int    `json:"new_rank"`
}

// StreakPayload - данные уведомления о серии.
type StreakPayload struct {
	CurrentStreak int  `json:"current_streak"`
	LongestStreak int  `json:"longest_streak"`
	BrokenStreak  int  `json:"broken_streak,omitempty"`
	IsRecord      bool `json:"is_record,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Notification представляет уведомление, отправляемое пользователю.
// Из полей payload заполнено ровно одно, соответствующее Type.
type Notification struct {
	// ID - уникальный идентификатор уведомления.
	ID NotificationID

	// Type - тип уведомления.
	Type NotificationType

	// RecipientID - ID получателя.
	RecipientID RecipientID

	// Message - текст уведомления.
	Message string

	// Achievement - данные для NotificationTypeAchievement.
	Achievement *AchievementPayload

	// RankChange - данные для NotificationTypeRankUp / RankDown.
	RankChange *RankChangePayload

	// Streak - данные для NotificationTypeStreakExtended / StreakBroken.
	Streak *StreakPayload

	// CreatedAt - время создания.
	CreatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewAchievementNotification создаёт уведомление о полученном достижении.
func NewAchievementNotification(id NotificationID, recipient RecipientID, p AchievementPayload) (*Notification, error) {
	n := &Notification{
		ID:          id,
		Type:        NotificationTypeAchievement,
		RecipientID: recipient,
		Message:     fmt.Sprintf("New achievement: %s!", p.Title),
		Achievement: &p,
		CreatedAt:   time.Now().UTC(),
	}
	return n, n.validate()
}

// NewRankChangeNotification создаёт уведомление об изменении ранга.
// Тип выбирается по направлению: меньший ранг - выше позиция.
func NewRankChangeNotification(id NotificationID, recipient RecipientID, p RankChangePayload) (*Notification, error) {
	typ := NotificationTypeRankUp
	msg := fmt.Sprintf("You moved up to #%d!", p.NewRank)
	if p.NewRank > p.OldRank {
		typ = NotificationTypeRankDown
		msg = fmt.Sprintf("You dropped to #%d", p.NewRank)
	}

	n := &Notification{
		ID:          id,
		Type:        typ,
		RecipientID: recipient,
		Message:     msg,
		RankChange:  &p,
		CreatedAt:   time.Now().UTC(),
	}
	return n, n.validate()
}

// NewStreakNotification создаёт уведомление о серии активных дней.
func NewStreakNotification(id NotificationID, recipient RecipientID, broken bool, p StreakPayload) (*Notification, error) {
	typ := NotificationTypeStreakExtended
	msg := fmt.Sprintf("%d days in a row! Keep it up", p.CurrentStreak)
	if broken {
		typ = NotificationTypeStreakBroken
		msg = fmt.Sprintf("Your %d-day streak ended. Start a new one!", p.BrokenStreak)
	}

	n := &Notification{
		ID:          id,
		Type:        typ,
		RecipientID: recipient,
		Message:     msg,
		Streak:      &p,
		CreatedAt:   time.Now().UTC(),
	}
	return n, n.validate()
}

func (n *Notification) validate() error {
	if !n.ID.IsValid() {
		return ErrInvalidNotificationID
	}
	if !n.Type.IsValid() {
		return ErrInvalidNotificationType
	}
	if !n.RecipientID.IsValid() {
		return ErrInvalidRecipientID
	}
	if n.Message == "" {
		return ErrEmptyMessage
	}
	return nil
}

// String возвращает строковое представление для логирования.
func (n *Notification) String() string {
	return fmt.Sprintf("Notification{ID: %s, Type: %s, Recipient: %s}",
		n.ID, n.Type, n.RecipientID)
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidNotificationID - невалидный ID уведомления.
	ErrInvalidNotificationID = errors.New("invalid notification id: cannot be empty")

	// ErrInvalidNotificationType - невалидный тип уведомления.
	ErrInvalidNotificationType = errors.New("invalid notification type")

	// ErrInvalidRecipientID - невалидный ID получателя.
	ErrInvalidRecipientID = errors.New("invalid recipient id: cannot be empty")

	// ErrEmptyMessage - пустое сообщение.
	ErrEmptyMessage = errors.New("notification message cannot be empty")
)
