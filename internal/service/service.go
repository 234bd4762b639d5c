// Package service реализует бизнес-логику сервиса cardkeeper.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/mmeshcher/cardkeeper/internal/model"
	"github.com/mmeshcher/cardkeeper/internal/projection"
	"github.com/mmeshcher/cardkeeper/internal/repository"
	"github.com/mmeshcher/cardkeeper/internal/templates"
)

// ErrSystemEvent возвращается при попытке создать через API событие,
// тип которого управляется жизненным циклом карты.
var ErrSystemEvent = errors.New("system event type is managed by card lifecycle")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	CreateProfile(ctx context.Context, userID int64, name string) (int64, error)
	GetProfilesByUser(ctx context.Context, userID int64) ([]model.Profile, error)
	GetProfile(ctx context.Context, profileID, userID int64) (*model.Profile, error)
	CreateCard(ctx context.Context, card model.Card) (int64, error)
	GetCard(ctx context.Context, cardID, userID int64) (*model.Card, error)
	GetCardsByProfile(ctx context.Context, profileID int64) ([]model.Card, error)
	CloseCard(ctx context.Context, cardID int64, closeDate time.Time) error
	CreateBenefit(ctx context.Context, b model.Benefit) (int64, error)
	GetBenefitsByCard(ctx context.Context, cardID int64) ([]model.Benefit, error)
	UpdateBenefitUsage(ctx context.Context, benefitID, amountUsed int64) error
	CreateBonus(ctx context.Context, b model.Bonus) (int64, error)
	GetBonusesByCard(ctx context.Context, cardID int64) ([]model.Bonus, error)
	GetBonusesByProfile(ctx context.Context, profileID int64) (map[int64][]model.Bonus, error)
	ResolveBonus(ctx context.Context, bonusID int64, earned bool) error
	CreateRetentionOffer(ctx context.Context, e model.Event, b model.Bonus) (int64, int64, error)
	CreateEvent(ctx context.Context, e model.Event) (int64, error)
	GetEventsByCard(ctx context.Context, cardID int64) ([]model.Event, error)
	GetEventsByProfile(ctx context.Context, profileID int64, limit, offset int) ([]model.Event, error)
	UpsertTemplate(ctx context.Context, t model.CardTemplate) error
	ListTemplates(ctx context.Context) ([]model.CardTemplate, error)
}

// Service содержит бизнес-логику сервиса cardkeeper.
type Service struct {
	repo               Repository
	templatesClient    *templates.Client
	firstRenewalMonths int
	windowCfg          projection.WindowConfig
}

// NewService создаёт новый сервис с указанным репозиторием, клиентом каталога
// шаблонов и настройками движка проекций.
func NewService(repo Repository, templatesClient *templates.Client, firstRenewalMonths int, windowCfg projection.WindowConfig) *Service {
	return &Service{
		repo:               repo,
		templatesClient:    templatesClient,
		firstRenewalMonths: firstRenewalMonths,
		windowCfg:          windowCfg,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, errors.New("invalid credentials")
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// CreateProfile создаёт профиль держателя карт для пользователя.
func (s *Service) CreateProfile(ctx context.Context, userID int64, name string) (int64, error) {
	return s.repo.CreateProfile(ctx, userID, name)
}

// GetProfiles возвращает профили пользователя.
func (s *Service) GetProfiles(ctx context.Context, userID int64) ([]model.Profile, error) {
	return s.repo.GetProfilesByUser(ctx, userID)
}

// CreateCard создаёт карту в профиле пользователя.
func (s *Service) CreateCard(ctx context.Context, userID int64, card model.Card) (int64, error) {
	if _, err := s.repo.GetProfile(ctx, card.ProfileID, userID); err != nil {
		return 0, err
	}
	if card.Status == "" {
		card.Status = model.CardStatusActive
	}
	if card.CardType == "" {
		card.CardType = model.CardTypePersonal
	}
	return s.repo.CreateCard(ctx, card)
}

// GetCard возвращает карту пользователя.
func (s *Service) GetCard(ctx context.Context, userID, cardID int64) (*model.Card, error) {
	return s.repo.GetCard(ctx, cardID, userID)
}

// GetCardsByProfile возвращает карты профиля пользователя.
func (s *Service) GetCardsByProfile(ctx context.Context, userID, profileID int64) ([]model.Card, error) {
	if _, err := s.repo.GetProfile(ctx, profileID, userID); err != nil {
		return nil, err
	}
	return s.repo.GetCardsByProfile(ctx, profileID)
}

// CloseCard закрывает карту пользователя указанной датой.
func (s *Service) CloseCard(ctx context.Context, userID, cardID int64, closeDate time.Time) error {
	if _, err := s.repo.GetCard(ctx, cardID, userID); err != nil {
		return err
	}
	return s.repo.CloseCard(ctx, cardID, closeDate)
}

// CreateBenefit добавляет бенефит карте пользователя.
func (s *Service) CreateBenefit(ctx context.Context, userID int64, b model.Benefit) (int64, error) {
	if _, err := s.repo.GetCard(ctx, b.CardID, userID); err != nil {
		return 0, err
	}
	return s.repo.CreateBenefit(ctx, b)
}

// GetBenefitsByCard возвращает бенефиты карты пользователя.
func (s *Service) GetBenefitsByCard(ctx context.Context, userID, cardID int64) ([]model.Benefit, error) {
	if _, err := s.repo.GetCard(ctx, cardID, userID); err != nil {
		return nil, err
	}
	return s.repo.GetBenefitsByCard(ctx, cardID)
}

// UpdateBenefitUsage обновляет израсходованную сумму бенефита карты пользователя.
func (s *Service) UpdateBenefitUsage(ctx context.Context, userID, cardID, benefitID, amountUsed int64) error {
	benefits, err := s.GetBenefitsByCard(ctx, userID, cardID)
	if err != nil {
		return err
	}
	for _, b := range benefits {
		if b.ID == benefitID {
			return s.repo.UpdateBenefitUsage(ctx, benefitID, amountUsed)
		}
	}
	return repository.ErrBenefitNotFound
}

// CreateBonus добавляет бонус карте пользователя.
func (s *Service) CreateBonus(ctx context.Context, userID int64, b model.Bonus) (int64, error) {
	if _, err := s.repo.GetCard(ctx, b.CardID, userID); err != nil {
		return 0, err
	}
	return s.repo.CreateBonus(ctx, b)
}

// GetBonusesByCard возвращает бонусы карты пользователя.
func (s *Service) GetBonusesByCard(ctx context.Context, userID, cardID int64) ([]model.Bonus, error) {
	if _, err := s.repo.GetCard(ctx, cardID, userID); err != nil {
		return nil, err
	}
	return s.repo.GetBonusesByCard(ctx, cardID)
}

// ResolveBonus переводит бонус карты пользователя в состояние earned либо missed.
func (s *Service) ResolveBonus(ctx context.Context, userID, cardID, bonusID int64, earned bool) error {
	bonuses, err := s.GetBonusesByCard(ctx, userID, cardID)
	if err != nil {
		return err
	}
	for _, b := range bonuses {
		if b.ID == bonusID {
			return s.repo.ResolveBonus(ctx, bonusID, earned)
		}
	}
	return repository.ErrBonusNotFound
}

// CreateRetentionOffer регистрирует предложение удержания: событие
// retention_offer и связанный с ним бонус создаются атомарно. Тип события и
// происхождение бонуса фиксированы и не принимаются от вызывающего.
func (s *Service) CreateRetentionOffer(ctx context.Context, userID int64, e model.Event, b model.Bonus) (int64, int64, error) {
	if _, err := s.repo.GetCard(ctx, e.CardID, userID); err != nil {
		return 0, 0, err
	}

	e.EventType = model.EventRetentionOffer
	b.CardID = e.CardID
	b.BonusSource = model.BonusSourceRetention

	return s.repo.CreateRetentionOffer(ctx, e, b)
}

// CreateEvent добавляет событие в историю карты пользователя.
// Типы событий жизненного цикла создаются только самим сервисом.
func (s *Service) CreateEvent(ctx context.Context, userID int64, e model.Event) (int64, error) {
	if model.SystemEventTypes[e.EventType] {
		return 0, ErrSystemEvent
	}
	if _, err := s.repo.GetCard(ctx, e.CardID, userID); err != nil {
		return 0, err
	}
	return s.repo.CreateEvent(ctx, e)
}

// GetEventsByCard возвращает события карты пользователя, новые первыми.
func (s *Service) GetEventsByCard(ctx context.Context, userID, cardID int64) ([]model.Event, error) {
	if _, err := s.repo.GetCard(ctx, cardID, userID); err != nil {
		return nil, err
	}
	return s.repo.GetEventsByCard(ctx, cardID)
}

// GetEventsByProfile возвращает страницу истории профиля пользователя.
func (s *Service) GetEventsByProfile(ctx context.Context, userID, profileID int64, limit, offset int) ([]model.Event, error) {
	if _, err := s.repo.GetProfile(ctx, profileID, userID); err != nil {
		return nil, err
	}
	return s.repo.GetEventsByProfile(ctx, profileID, limit, offset)
}

// BenefitCycle — проекция цикла одного бенефита в составе проекции карты.
type BenefitCycle struct {
	BenefitID   int64                       `json:"benefit_id"`
	BenefitName string                      `json:"benefit_name"`
	Cycle       *projection.CycleProjection `json:"cycle,omitempty"`
}

// CardProjection — производное состояние карты на опорную дату: следующая
// годовая плата, циклы бенефитов и статусы бонусов. Ничего не сохраняется.
type CardProjection struct {
	CardID   int64                     `json:"card_id"`
	Fee      *projection.FeeProjection `json:"annual_fee,omitempty"`
	Benefits []BenefitCycle            `json:"benefits"`
	Bonuses  []projection.BonusStatus  `json:"bonuses"`
}

// GetCardProjection строит проекцию карты пользователя на дату today.
func (s *Service) GetCardProjection(ctx context.Context, userID, cardID int64, today time.Time) (*CardProjection, error) {
	card, err := s.repo.GetCard(ctx, cardID, userID)
	if err != nil {
		return nil, err
	}

	benefits, err := s.repo.GetBenefitsByCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	bonuses, err := s.repo.GetBonusesByCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	proj := &CardProjection{
		CardID:   card.ID,
		Fee:      projection.ProjectFee(*card, today, s.firstRenewalMonths),
		Benefits: make([]BenefitCycle, 0, len(benefits)),
		Bonuses:  make([]projection.BonusStatus, 0, len(bonuses)),
	}

	for _, b := range benefits {
		proj.Benefits = append(proj.Benefits, BenefitCycle{
			BenefitID:   b.ID,
			BenefitName: b.BenefitName,
			Cycle:       projection.ProjectCycle(b, *card, today),
		})
	}

	for _, b := range bonuses {
		proj.Bonuses = append(proj.Bonuses, projection.ClassifyBonus(b, today))
	}

	return proj, nil
}

// GetAdmissionWindow считает окно допуска по картам профиля на дату today.
func (s *Service) GetAdmissionWindow(ctx context.Context, userID, profileID int64, today time.Time) (*projection.WindowStatus, error) {
	cards, err := s.GetCardsByProfile(ctx, userID, profileID)
	if err != nil {
		return nil, err
	}
	status := projection.ComputeWindow(cards, today, s.windowCfg)
	return &status, nil
}

// TimelineEntry — элемент хронологии в ответе сервиса. Реальные события несут
// идентификатор записи; синтетические распознаются по флагу synthetic.
type TimelineEntry struct {
	EventID   *int64    `json:"event_id,omitempty"`
	CardID    int64     `json:"card_id"`
	CardName  string    `json:"card_name,omitempty"`
	Date      time.Time `json:"date"`
	Type      string    `json:"type"`
	Label     string    `json:"label"`
	Synthetic bool      `json:"synthetic"`
}

// TimelinePage — страница объединённой хронологии профиля.
type TimelinePage struct {
	Entries     []TimelineEntry `json:"entries"`
	TodayIndex  int             `json:"today_index"`
	MonthBreaks []int           `json:"month_breaks"`
	Limit       int             `json:"limit"`
	Offset      int             `json:"offset"`
}

// GetTimeline строит страницу хронологии профиля: страница реальных событий из
// хранилища плюс полный набор синтетических проекций по активным картам профиля.
func (s *Service) GetTimeline(ctx context.Context, userID, profileID int64, today time.Time, limit, offset int) (*TimelinePage, error) {
	if _, err := s.repo.GetProfile(ctx, profileID, userID); err != nil {
		return nil, err
	}

	cards, err := s.repo.GetCardsByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	events, err := s.repo.GetEventsByProfile(ctx, profileID, limit, offset)
	if err != nil {
		return nil, err
	}

	bonuses, err := s.repo.GetBonusesByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	names := make(map[int64]string, len(cards))
	for _, c := range cards {
		names[c.ID] = c.CardName
	}

	recorded := make([]projection.RecordedItem, 0, len(events))
	for _, e := range events {
		recorded = append(recorded, projection.RecordedItem{
			Event:    e,
			CardName: names[e.CardID],
		})
	}

	projected := projection.Synthesize(cards, bonuses, today, s.firstRenewalMonths)
	timeline := projection.Merge(recorded, projected)

	page := &TimelinePage{
		Entries:     make([]TimelineEntry, 0, len(timeline.Items)),
		TodayIndex:  timeline.TodayIndex,
		MonthBreaks: timeline.MonthBreaks(),
		Limit:       limit,
		Offset:      offset,
	}

	for _, item := range timeline.Items {
		entry := TimelineEntry{
			Date:      item.ItemDate(),
			Type:      item.ItemType(),
			Label:     item.ItemLabel(),
			Synthetic: item.Synthetic(),
		}
		switch it := item.(type) {
		case projection.RecordedItem:
			id := it.Event.ID
			entry.EventID = &id
			entry.CardID = it.Event.CardID
			entry.CardName = it.CardName
		case projection.ProjectedItem:
			entry.CardID = it.CardID
			entry.CardName = it.CardName
		}
		page.Entries = append(page.Entries, entry)
	}

	return page, nil
}

// ListTemplates возвращает сохранённые шаблоны карт из каталога.
func (s *Service) ListTemplates(ctx context.Context) ([]model.CardTemplate, error) {
	return s.repo.ListTemplates(ctx)
}

// StartTemplateSync запускает фоновую синхронизацию каталога шаблонов карт.
// Синхронизация выключена, если клиент каталога не настроен.
func (s *Service) StartTemplateSync(ctx context.Context, interval time.Duration) {
	if s.templatesClient == nil {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.syncTemplates(ctx)
			}
		}
	}()
}

func (s *Service) syncTemplates(ctx context.Context) {
	list, statusCode, retryAfter, err := s.templatesClient.ListTemplates(ctx)
	if err != nil {
		return
	}

	if statusCode == 429 {
		if retryAfter > 0 {
			timer := time.NewTimer(retryAfter)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		return
	}

	for _, t := range list {
		_ = s.repo.UpsertTemplate(ctx, model.CardTemplate{
			TemplateID: t.TemplateID,
			CardName:   t.CardName,
			Issuer:     t.Issuer,
			AnnualFee:  t.AnnualFee,
		})
	}
}
