// Package model содержит доменные сущности сервиса cardkeeper.
package model

import "time"

// User представляет зарегистрированного пользователя сервиса.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Profile представляет профиль держателя карт (участника домохозяйства).
type Profile struct {
	ID        int64
	UserID    int64
	Name      string
	CreatedAt time.Time
}

// CardStatus описывает состояние карты.
type CardStatus string

const (
	CardStatusActive CardStatus = "active"
	CardStatusClosed CardStatus = "closed"
)

// CardType различает личные и бизнес-карты. В окне 5/24 учитываются только личные.
type CardType string

const (
	CardTypePersonal CardType = "personal"
	CardTypeBusiness CardType = "business"
)

// Card описывает кредитную карту профиля. Денежные суммы хранятся в целых долларах.
type Card struct {
	ID            int64
	ProfileID     int64
	CardName      string
	LastDigits    string
	Issuer        string
	CardType      CardType
	Status        CardStatus
	OpenDate      *time.Time
	CloseDate     *time.Time
	AnnualFee     *int64
	AnnualFeeDate *time.Time
	CreditLimit   *int64
	CreatedAt     time.Time
}

// Frequency задаёт периодичность цикла бенефита.
type Frequency string

const (
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencySemiAnnual Frequency = "semi_annual"
	FrequencyAnnual     Frequency = "annual"
)

// Months возвращает длину цикла в месяцах. Неизвестная периодичность трактуется как годовая.
func (f Frequency) Months() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	case FrequencySemiAnnual:
		return 6
	default:
		return 12
	}
}

// ResetType определяет, к чему привязаны границы цикла бенефита.
type ResetType string

const (
	// ResetCalendar — границы фиксированы к гражданскому календарю (1 января, начало квартала и т.п.).
	ResetCalendar ResetType = "calendar"
	// ResetCardiversary — границы привязаны к годовщине открытия карты.
	ResetCardiversary ResetType = "cardiversary"
)

// Benefit описывает кредит (бенефит) карты с лимитом на цикл.
type Benefit struct {
	ID            int64
	CardID        int64
	BenefitName   string
	BenefitAmount int64
	AmountUsed    int64
	Frequency     Frequency
	ResetType     ResetType
	Notes         string
	CreatedAt     time.Time
}

// BonusSource описывает происхождение бонуса.
type BonusSource string

const (
	BonusSourceSignup    BonusSource = "signup"
	BonusSourceUpgrade   BonusSource = "upgrade"
	BonusSourceRetention BonusSource = "retention"
)

// Bonus описывает бонус за траты (приветственный, за апгрейд или за удержание).
// Флаги BonusEarned и BonusMissed терминальны: разрешённый бонус не проецируется как дедлайн.
type Bonus struct {
	ID               int64
	CardID           int64
	EventID          *int64
	BonusSource      BonusSource
	BonusAmount      *int64
	SpendRequirement *int64
	SpendDeadline    *time.Time
	BonusEarned      bool
	BonusMissed      bool
	ReminderEnabled  bool
	Description      string
	CreatedAt        time.Time
}

// EventType описывает тип события в истории карты.
type EventType string

const (
	EventOpened         EventType = "opened"
	EventClosed         EventType = "closed"
	EventFeePosted      EventType = "fee_posted"
	EventFeeRefunded    EventType = "fee_refunded"
	EventProductChange  EventType = "product_change"
	EventRetentionOffer EventType = "retention_offer"
	EventReopened       EventType = "reopened"
	EventOther          EventType = "other"
)

// SystemEventTypes — типы событий, управляемые жизненным циклом карты.
// Такие события нельзя менять и удалять через API событий.
var SystemEventTypes = map[EventType]bool{
	EventOpened:        true,
	EventClosed:        true,
	EventProductChange: true,
	EventReopened:      true,
}

// Event — неизменяемый факт истории карты. События никогда не синтезируются движком проекций.
type Event struct {
	ID          int64
	CardID      int64
	EventType   EventType
	EventDate   time.Time
	Description string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// CardTemplate описывает шаблон карты из внешнего каталога.
type CardTemplate struct {
	TemplateID string
	CardName   string
	Issuer     string
	AnnualFee  *int64
	UpdatedAt  time.Time
}
