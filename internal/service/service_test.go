package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmeshcher/cardkeeper/internal/model"
	"github.com/mmeshcher/cardkeeper/internal/projection"
	"github.com/mmeshcher/cardkeeper/internal/repository"
)

func TestHashPasswordDeterministic(t *testing.T) {
	a := hashPassword("user", "pass")
	b := hashPassword("user", "pass")
	c := hashPassword("user", "other")

	if string(a) != string(b) {
		t.Fatalf("hashPassword must be deterministic, got %x and %x", a, b)
	}
	if string(a) == string(c) {
		t.Fatalf("different passwords must produce different hashes")
	}
}

type stubRepo struct {
	createUserID  int64
	createUserErr error

	getUser    *model.User
	getUserErr error

	profile    *model.Profile
	profileErr error

	createCardID  int64
	createCardErr error
	createdCard   *model.Card

	card    *model.Card
	cardErr error

	cards    []model.Card
	cardsErr error

	benefits    []model.Benefit
	benefitsErr error

	bonuses    []model.Bonus
	bonusesErr error

	profileBonuses map[int64][]model.Bonus

	events    []model.Event
	eventsErr error

	createEventID int64
	createdEvent  *model.Event

	retentionEvent *model.Event
	retentionBonus *model.Bonus

	updatedBenefitID int64
	resolvedBonusID  int64

	templates []model.CardTemplate
	upserted  []model.CardTemplate
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	return s.createUserID, s.createUserErr
}

func (s *stubRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) CreateProfile(ctx context.Context, userID int64, name string) (int64, error) {
	return 1, nil
}

func (s *stubRepo) GetProfilesByUser(ctx context.Context, userID int64) ([]model.Profile, error) {
	return nil, nil
}

func (s *stubRepo) GetProfile(ctx context.Context, profileID, userID int64) (*model.Profile, error) {
	return s.profile, s.profileErr
}

func (s *stubRepo) CreateCard(ctx context.Context, card model.Card) (int64, error) {
	s.createdCard = &card
	return s.createCardID, s.createCardErr
}

func (s *stubRepo) GetCard(ctx context.Context, cardID, userID int64) (*model.Card, error) {
	return s.card, s.cardErr
}

func (s *stubRepo) GetCardsByProfile(ctx context.Context, profileID int64) ([]model.Card, error) {
	return s.cards, s.cardsErr
}

func (s *stubRepo) CloseCard(ctx context.Context, cardID int64, closeDate time.Time) error {
	return nil
}

func (s *stubRepo) CreateBenefit(ctx context.Context, b model.Benefit) (int64, error) {
	return 1, nil
}

func (s *stubRepo) GetBenefitsByCard(ctx context.Context, cardID int64) ([]model.Benefit, error) {
	return s.benefits, s.benefitsErr
}

func (s *stubRepo) UpdateBenefitUsage(ctx context.Context, benefitID, amountUsed int64) error {
	s.updatedBenefitID = benefitID
	return nil
}

func (s *stubRepo) CreateBonus(ctx context.Context, b model.Bonus) (int64, error) {
	return 1, nil
}

func (s *stubRepo) GetBonusesByCard(ctx context.Context, cardID int64) ([]model.Bonus, error) {
	return s.bonuses, s.bonusesErr
}

func (s *stubRepo) GetBonusesByProfile(ctx context.Context, profileID int64) (map[int64][]model.Bonus, error) {
	return s.profileBonuses, nil
}

func (s *stubRepo) ResolveBonus(ctx context.Context, bonusID int64, earned bool) error {
	s.resolvedBonusID = bonusID
	return nil
}

func (s *stubRepo) CreateRetentionOffer(ctx context.Context, e model.Event, b model.Bonus) (int64, int64, error) {
	s.retentionEvent = &e
	s.retentionBonus = &b
	return 5, 6, nil
}

func (s *stubRepo) CreateEvent(ctx context.Context, e model.Event) (int64, error) {
	s.createdEvent = &e
	return s.createEventID, nil
}

func (s *stubRepo) GetEventsByCard(ctx context.Context, cardID int64) ([]model.Event, error) {
	return s.events, s.eventsErr
}

func (s *stubRepo) GetEventsByProfile(ctx context.Context, profileID int64, limit, offset int) ([]model.Event, error) {
	return s.events, s.eventsErr
}

func (s *stubRepo) UpsertTemplate(ctx context.Context, t model.CardTemplate) error {
	s.upserted = append(s.upserted, t)
	return nil
}

func (s *stubRepo) ListTemplates(ctx context.Context) ([]model.CardTemplate, error) {
	return s.templates, nil
}

func newTestService(repo *stubRepo) *Service {
	return NewService(repo, nil, projection.DefaultFirstRenewalMonths, projection.DefaultWindowConfig())
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	repo := &stubRepo{
		createUserErr: repository.ErrUserExists,
	}
	svc := newTestService(repo)

	_, err := svc.RegisterUser(context.Background(), "login", "pass")
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthenticateUser_InvalidCredentials(t *testing.T) {
	hashed := hashPassword("user", "correct")
	repo := &stubRepo{
		getUser: &model.User{
			ID:           1,
			Login:        "user",
			PasswordHash: hashed,
		},
	}

	svc := newTestService(repo)

	_, err := svc.AuthenticateUser(context.Background(), "user", "wrong")
	if err == nil {
		t.Fatalf("expected error for invalid credentials")
	}
}

func TestCreateCard_ChecksProfileOwnership(t *testing.T) {
	repo := &stubRepo{
		profileErr: repository.ErrProfileNotFound,
	}
	svc := newTestService(repo)

	_, err := svc.CreateCard(context.Background(), 1, model.Card{ProfileID: 42})
	if !errors.Is(err, repository.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if repo.createdCard != nil {
		t.Fatalf("card must not be created for foreign profile")
	}
}

func TestCreateCard_DefaultsStatusAndType(t *testing.T) {
	repo := &stubRepo{
		profile:      &model.Profile{ID: 42, UserID: 1},
		createCardID: 7,
	}
	svc := newTestService(repo)

	id, err := svc.CreateCard(context.Background(), 1, model.Card{ProfileID: 42, CardName: "Sapphire"})
	if err != nil {
		t.Fatalf("CreateCard error: %v", err)
	}
	if id != 7 {
		t.Fatalf("id = %d, want 7", id)
	}
	if repo.createdCard.Status != model.CardStatusActive {
		t.Fatalf("status = %s, want active", repo.createdCard.Status)
	}
	if repo.createdCard.CardType != model.CardTypePersonal {
		t.Fatalf("card type = %s, want personal", repo.createdCard.CardType)
	}
}

func TestUpdateBenefitUsage_UnknownBenefit(t *testing.T) {
	repo := &stubRepo{
		card:     &model.Card{ID: 1},
		benefits: []model.Benefit{{ID: 10, CardID: 1}},
	}
	svc := newTestService(repo)

	err := svc.UpdateBenefitUsage(context.Background(), 1, 1, 99, 100)
	if !errors.Is(err, repository.ErrBenefitNotFound) {
		t.Fatalf("expected ErrBenefitNotFound, got %v", err)
	}
	if repo.updatedBenefitID != 0 {
		t.Fatalf("benefit %d must not be updated", repo.updatedBenefitID)
	}
}

func TestResolveBonus_UnknownBonus(t *testing.T) {
	repo := &stubRepo{
		card:    &model.Card{ID: 1},
		bonuses: []model.Bonus{{ID: 10, CardID: 1}},
	}
	svc := newTestService(repo)

	err := svc.ResolveBonus(context.Background(), 1, 1, 99, true)
	if !errors.Is(err, repository.ErrBonusNotFound) {
		t.Fatalf("expected ErrBonusNotFound, got %v", err)
	}
	if repo.resolvedBonusID != 0 {
		t.Fatalf("bonus %d must not be resolved", repo.resolvedBonusID)
	}
}

func TestCreateEvent_RejectsSystemType(t *testing.T) {
	repo := &stubRepo{
		card: &model.Card{ID: 1},
	}
	svc := newTestService(repo)

	_, err := svc.CreateEvent(context.Background(), 1, model.Event{
		CardID:    1,
		EventType: model.EventOpened,
		EventDate: time.Now(),
	})
	if !errors.Is(err, ErrSystemEvent) {
		t.Fatalf("expected ErrSystemEvent, got %v", err)
	}
	if repo.createdEvent != nil {
		t.Fatalf("system event must not be created via API")
	}
}

func TestCreateRetentionOffer_StampsTypeAndSource(t *testing.T) {
	repo := &stubRepo{
		card: &model.Card{ID: 1},
	}
	svc := newTestService(repo)

	amount := int64(20000)
	eventID, bonusID, err := svc.CreateRetentionOffer(context.Background(), 1,
		model.Event{CardID: 1, EventDate: time.Now(), EventType: model.EventOther, Description: "Retention call"},
		model.Bonus{CardID: 99, BonusSource: model.BonusSourceSignup, BonusAmount: &amount},
	)
	if err != nil {
		t.Fatalf("CreateRetentionOffer error: %v", err)
	}
	if eventID != 5 || bonusID != 6 {
		t.Fatalf("ids = (%d, %d), want (5, 6)", eventID, bonusID)
	}

	if repo.retentionEvent.EventType != model.EventRetentionOffer {
		t.Fatalf("event type = %s, want %s", repo.retentionEvent.EventType, model.EventRetentionOffer)
	}
	if repo.retentionBonus.BonusSource != model.BonusSourceRetention {
		t.Fatalf("bonus source = %s, want %s", repo.retentionBonus.BonusSource, model.BonusSourceRetention)
	}
	if repo.retentionBonus.CardID != 1 {
		t.Fatalf("bonus card id = %d, want the event's card", repo.retentionBonus.CardID)
	}
}

func TestCreateRetentionOffer_ChecksCardOwnership(t *testing.T) {
	repo := &stubRepo{
		cardErr: repository.ErrCardNotFound,
	}
	svc := newTestService(repo)

	_, _, err := svc.CreateRetentionOffer(context.Background(), 1,
		model.Event{CardID: 7, EventDate: time.Now()}, model.Bonus{})
	if !errors.Is(err, repository.ErrCardNotFound) {
		t.Fatalf("expected ErrCardNotFound, got %v", err)
	}
	if repo.retentionEvent != nil {
		t.Fatalf("offer must not be created for foreign card")
	}
}

func TestGetCardProjection_Assembles(t *testing.T) {
	open := time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)
	fee := int64(95)
	deadline := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

	repo := &stubRepo{
		card: &model.Card{
			ID:        1,
			CardName:  "Sapphire",
			Status:    model.CardStatusActive,
			OpenDate:  &open,
			AnnualFee: &fee,
		},
		benefits: []model.Benefit{
			{ID: 10, CardID: 1, BenefitName: "Travel credit", BenefitAmount: 300, AmountUsed: 150,
				Frequency: model.FrequencyAnnual, ResetType: model.ResetCalendar},
		},
		bonuses: []model.Bonus{
			{ID: 20, CardID: 1, BonusSource: model.BonusSourceSignup, SpendDeadline: &deadline},
		},
	}
	svc := newTestService(repo)

	today := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	proj, err := svc.GetCardProjection(context.Background(), 1, 1, today)
	if err != nil {
		t.Fatalf("GetCardProjection error: %v", err)
	}

	if proj.Fee == nil {
		t.Fatalf("expected fee projection for active card with annual fee")
	}
	wantFee := time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC)
	if !proj.Fee.NextDate.Equal(wantFee) {
		t.Fatalf("fee next date = %v, want %v", proj.Fee.NextDate, wantFee)
	}

	if len(proj.Benefits) != 1 {
		t.Fatalf("benefits = %d, want 1", len(proj.Benefits))
	}
	cycle := proj.Benefits[0].Cycle
	if cycle == nil || cycle.UsageRatio != 50 || cycle.SeverityTier != projection.SeverityHalf {
		t.Fatalf("unexpected cycle projection: %+v", cycle)
	}

	if len(proj.Bonuses) != 1 {
		t.Fatalf("bonuses = %d, want 1", len(proj.Bonuses))
	}
	if proj.Bonuses[0].State != projection.BonusPending || proj.Bonuses[0].Overdue {
		t.Fatalf("unexpected bonus status: %+v", proj.Bonuses[0])
	}
}

func TestGetAdmissionWindow_CountsAndColors(t *testing.T) {
	today := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	inside := today.AddDate(-1, 0, 0)
	outside := today.AddDate(-3, 0, 0)

	repo := &stubRepo{
		profile: &model.Profile{ID: 42, UserID: 1},
		cards: []model.Card{
			{ID: 1, CardName: "A", CardType: model.CardTypePersonal, Status: model.CardStatusActive, OpenDate: &inside},
			{ID: 2, CardName: "B", CardType: model.CardTypePersonal, Status: model.CardStatusClosed, OpenDate: &inside},
			{ID: 3, CardName: "C", CardType: model.CardTypeBusiness, Status: model.CardStatusActive, OpenDate: &inside},
			{ID: 4, CardName: "D", CardType: model.CardTypePersonal, Status: model.CardStatusActive, OpenDate: &outside},
		},
	}
	svc := newTestService(repo)

	status, err := svc.GetAdmissionWindow(context.Background(), 1, 42, today)
	if err != nil {
		t.Fatalf("GetAdmissionWindow error: %v", err)
	}
	if status.Count != 2 {
		t.Fatalf("count = %d, want 2", status.Count)
	}
	if status.StatusColor != projection.WindowGreen {
		t.Fatalf("color = %s, want green", status.StatusColor)
	}
}

func TestGetTimeline_MergesRecordedAndSynthetic(t *testing.T) {
	today := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	open := time.Date(2023, time.March, 10, 0, 0, 0, 0, time.UTC)

	repo := &stubRepo{
		profile: &model.Profile{ID: 42, UserID: 1},
		cards: []model.Card{
			{ID: 1, CardName: "Sapphire", CardType: model.CardTypePersonal,
				Status: model.CardStatusActive, OpenDate: &open},
		},
		events: []model.Event{
			{ID: 100, CardID: 1, EventType: model.EventOpened, EventDate: open, Description: "Opened Sapphire"},
		},
		profileBonuses: map[int64][]model.Bonus{},
	}
	svc := newTestService(repo)

	page, err := svc.GetTimeline(context.Background(), 1, 42, today, 50, 0)
	if err != nil {
		t.Fatalf("GetTimeline error: %v", err)
	}

	if page.TodayIndex != 1 {
		t.Fatalf("today index = %d, want 1", page.TodayIndex)
	}
	if len(page.Entries) < 2 {
		t.Fatalf("entries = %d, want at least recorded event and anniversary", len(page.Entries))
	}

	first := page.Entries[0]
	if first.Synthetic || first.EventID == nil || *first.EventID != 100 {
		t.Fatalf("first entry must be the recorded event: %+v", first)
	}
	if first.CardName != "Sapphire" {
		t.Fatalf("card name = %s, want Sapphire", first.CardName)
	}

	for _, e := range page.Entries[page.TodayIndex:] {
		if !e.Synthetic {
			t.Fatalf("entry after today index must be synthetic: %+v", e)
		}
		if e.Date.Before(today) {
			t.Fatalf("synthetic entry %v is before today", e.Date)
		}
	}
}

func TestStartTemplateSync_NoClient(t *testing.T) {
	svc := &Service{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})

	go func() {
		svc.StartTemplateSync(ctx, time.Second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("StartTemplateSync did not return without client")
	}
}
