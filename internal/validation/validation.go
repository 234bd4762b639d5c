// Package validation содержит функции валидации входных данных API.
package validation

import (
	"unicode"

	"github.com/mmeshcher/cardkeeper/internal/model"
)

// IsValidLastDigits проверяет последние цифры номера карты: только цифры, не длиннее пяти.
func IsValidLastDigits(s string) bool {
	if s == "" || len(s) > 5 {
		return false
	}
	for _, ch := range s {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// IsValidFrequency проверяет периодичность цикла бенефита.
func IsValidFrequency(f model.Frequency) bool {
	switch f {
	case model.FrequencyMonthly, model.FrequencyQuarterly, model.FrequencySemiAnnual, model.FrequencyAnnual:
		return true
	}
	return false
}

// IsValidResetType проверяет тип сброса бенефита.
func IsValidResetType(rt model.ResetType) bool {
	return rt == model.ResetCalendar || rt == model.ResetCardiversary
}

// IsValidBonusSource проверяет происхождение бонуса.
func IsValidBonusSource(s model.BonusSource) bool {
	switch s {
	case model.BonusSourceSignup, model.BonusSourceUpgrade, model.BonusSourceRetention:
		return true
	}
	return false
}

// IsValidEventType проверяет тип события истории карты.
func IsValidEventType(et model.EventType) bool {
	switch et {
	case model.EventOpened, model.EventClosed, model.EventFeePosted, model.EventFeeRefunded,
		model.EventProductChange, model.EventRetentionOffer, model.EventReopened, model.EventOther:
		return true
	}
	return false
}

// IsValidCardType проверяет тип карты.
func IsValidCardType(ct model.CardType) bool {
	return ct == model.CardTypePersonal || ct == model.CardTypeBusiness
}
