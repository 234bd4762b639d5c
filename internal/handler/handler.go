// Package handler содержит HTTP-обработчики API сервиса cardkeeper.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/cardkeeper/internal/middleware"
	"github.com/mmeshcher/cardkeeper/internal/model"
	"github.com/mmeshcher/cardkeeper/internal/projection"
	"github.com/mmeshcher/cardkeeper/internal/repository"
	"github.com/mmeshcher/cardkeeper/internal/service"
	"github.com/mmeshcher/cardkeeper/internal/validation"
)

const dateLayout = "2006-01-02"

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	CreateProfile(ctx context.Context, userID int64, name string) (int64, error)
	GetProfiles(ctx context.Context, userID int64) ([]model.Profile, error)
	CreateCard(ctx context.Context, userID int64, card model.Card) (int64, error)
	GetCard(ctx context.Context, userID, cardID int64) (*model.Card, error)
	GetCardsByProfile(ctx context.Context, userID, profileID int64) ([]model.Card, error)
	CloseCard(ctx context.Context, userID, cardID int64, closeDate time.Time) error
	CreateBenefit(ctx context.Context, userID int64, b model.Benefit) (int64, error)
	GetBenefitsByCard(ctx context.Context, userID, cardID int64) ([]model.Benefit, error)
	UpdateBenefitUsage(ctx context.Context, userID, cardID, benefitID, amountUsed int64) error
	CreateBonus(ctx context.Context, userID int64, b model.Bonus) (int64, error)
	GetBonusesByCard(ctx context.Context, userID, cardID int64) ([]model.Bonus, error)
	ResolveBonus(ctx context.Context, userID, cardID, bonusID int64, earned bool) error
	CreateRetentionOffer(ctx context.Context, userID int64, e model.Event, b model.Bonus) (int64, int64, error)
	CreateEvent(ctx context.Context, userID int64, e model.Event) (int64, error)
	GetEventsByCard(ctx context.Context, userID, cardID int64) ([]model.Event, error)
	GetEventsByProfile(ctx context.Context, userID, profileID int64, limit, offset int) ([]model.Event, error)
	GetCardProjection(ctx context.Context, userID, cardID int64, today time.Time) (*service.CardProjection, error)
	GetAdmissionWindow(ctx context.Context, userID, profileID int64, today time.Time) (*projection.WindowStatus, error)
	GetTimeline(ctx context.Context, userID, profileID int64, today time.Time, limit, offset int) (*service.TimelinePage, error)
	ListTemplates(ctx context.Context) ([]model.CardTemplate, error)
}

// Handler реализует HTTP-обработчики API сервиса cardkeeper.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	location       *time.Location
	pageSize       int
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// location задаёт часовой пояс, в котором разрешается опорная дата "сегодня";
// pageSize — размер страницы хронологии по умолчанию.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, location *time.Location, pageSize int) *Handler {
	if location == nil {
		location = time.UTC
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		location:       location,
		pageSize:       pageSize,
	}
}

// today разрешает опорную дату ровно один раз на запрос: календарная дата
// в настроенном часовом поясе, нормализованная к полуночи UTC.
func (h *Handler) today() time.Time {
	now := time.Now().In(h.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

// serviceError переводит ошибки сервиса в HTTP-статусы; неожиданные ошибки
// логируются и отдаются как 500.
func (h *Handler) serviceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, repository.ErrProfileNotFound),
		errors.Is(err, repository.ErrCardNotFound),
		errors.Is(err, repository.ErrBenefitNotFound),
		errors.Is(err, repository.ErrBonusNotFound),
		errors.Is(err, repository.ErrEventNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, repository.ErrCardClosed),
		errors.Is(err, repository.ErrBonusResolved):
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
	case errors.Is(err, service.ErrSystemEvent):
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
	default:
		h.logger.Error(msg, zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return id, ok
}

func urlID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || err.Error() == "invalid credentials" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

type profileRequest struct {
	Name string `json:"name"`
}

type profileResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CreateProfile создаёт профиль держателя карт для текущего пользователя.
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.CreateProfile(r.Context(), uid, req.Name)
	if err != nil {
		h.serviceError(w, err, "create profile error")
		return
	}

	h.writeJSONStatus(w, http.StatusCreated, profileResponse{ID: id, Name: req.Name})
}

// GetProfiles возвращает профили текущего пользователя.
func (h *Handler) GetProfiles(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	profiles, err := h.service.GetProfiles(r.Context(), uid)
	if err != nil {
		h.serviceError(w, err, "get profiles error")
		return
	}

	resp := make([]profileResponse, 0, len(profiles))
	for _, p := range profiles {
		resp = append(resp, profileResponse{ID: p.ID, Name: p.Name})
	}

	h.writeJSON(w, resp)
}

type cardRequest struct {
	CardName      string  `json:"card_name"`
	LastDigits    string  `json:"last_digits"`
	Issuer        string  `json:"issuer"`
	CardType      string  `json:"card_type"`
	OpenDate      *string `json:"open_date"`
	AnnualFee     *int64  `json:"annual_fee"`
	AnnualFeeDate *string `json:"annual_fee_date"`
	CreditLimit   *int64  `json:"credit_limit"`
}

type cardResponse struct {
	ID            int64   `json:"id"`
	ProfileID     int64   `json:"profile_id"`
	CardName      string  `json:"card_name"`
	LastDigits    string  `json:"last_digits,omitempty"`
	Issuer        string  `json:"issuer,omitempty"`
	CardType      string  `json:"card_type"`
	Status        string  `json:"status"`
	OpenDate      *string `json:"open_date,omitempty"`
	CloseDate     *string `json:"close_date,omitempty"`
	AnnualFee     *int64  `json:"annual_fee,omitempty"`
	AnnualFeeDate *string `json:"annual_fee_date,omitempty"`
	CreditLimit   *int64  `json:"credit_limit,omitempty"`
}

func toCardResponse(c model.Card) cardResponse {
	return cardResponse{
		ID:            c.ID,
		ProfileID:     c.ProfileID,
		CardName:      c.CardName,
		LastDigits:    c.LastDigits,
		Issuer:        c.Issuer,
		CardType:      string(c.CardType),
		Status:        string(c.Status),
		OpenDate:      formatDate(c.OpenDate),
		CloseDate:     formatDate(c.CloseDate),
		AnnualFee:     c.AnnualFee,
		AnnualFeeDate: formatDate(c.AnnualFeeDate),
		CreditLimit:   c.CreditLimit,
	}
}

// CreateCard создаёт карту в профиле текущего пользователя.
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	profileID, err := urlID(r, "profileID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req cardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CardName == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.LastDigits != "" && !validation.IsValidLastDigits(req.LastDigits) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}
	if req.CardType != "" && !validation.IsValidCardType(model.CardType(req.CardType)) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	openDate, err := parseDate(req.OpenDate)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	feeDate, err := parseDate(req.AnnualFeeDate)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	card := model.Card{
		ProfileID:     profileID,
		CardName:      req.CardName,
		LastDigits:    req.LastDigits,
		Issuer:        req.Issuer,
		CardType:      model.CardType(req.CardType),
		OpenDate:      openDate,
		AnnualFee:     req.AnnualFee,
		AnnualFeeDate: feeDate,
		CreditLimit:   req.CreditLimit,
	}

	id, err := h.service.CreateCard(r.Context(), uid, card)
	if err != nil {
		h.serviceError(w, err, "create card error")
		return
	}

	card.ID = id
	card.Status = model.CardStatusActive
	if card.CardType == "" {
		card.CardType = model.CardTypePersonal
	}

	h.writeJSONStatus(w, http.StatusCreated, toCardResponse(card))
}

// GetCards возвращает карты профиля текущего пользователя.
func (h *Handler) GetCards(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	profileID, err := urlID(r, "profileID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	cards, err := h.service.GetCardsByProfile(r.Context(), uid, profileID)
	if err != nil {
		h.serviceError(w, err, "get cards error")
		return
	}

	resp := make([]cardResponse, 0, len(cards))
	for _, c := range cards {
		resp = append(resp, toCardResponse(c))
	}

	h.writeJSON(w, resp)
}

// GetCard возвращает одну карту текущего пользователя.
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	cardID, err := urlID(r, "cardID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	card, err := h.service.GetCard(r.Context(), uid, cardID)
	if err != nil {
		h.serviceError(w, err, "get card error")
		return
	}

	h.writeJSON(w, toCardResponse(*card))
}

type closeCardRequest struct {
	CloseDate *string `json:"close_date"`
}

// CloseCard закрывает карту текущего пользователя. Дата закрытия по умолчанию — сегодня.
func (h *Handler) CloseCard(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	cardID, err := urlID(r, "cardID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req closeCardRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
	}

	closeDate, err := parseDate(req.CloseDate)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if closeDate == nil {
		d := h.today()
		closeDate = &d
	}

	if err := h.service.CloseCard(r.Context(), uid, cardID, *closeDate); err != nil {
		h.serviceError(w, err, "close card error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type benefitRequest struct {
	BenefitName   string `json:"benefit_name"`
	BenefitAmount int64  `json:"benefit_amount"`
	AmountUsed    int64  `json:"amount_used"`
	Frequency     string `json:"frequency"`
	ResetType     string `json:"reset_type"`
	Notes         string `json:"notes"`
}

type benefitResponse struct {
	ID            int64  `json:"id"`
	CardID        int64  `json:"card_id"`
	BenefitName   string `json:"benefit_name"`
	BenefitAmount int64  `json:"benefit_amount"`
	AmountUsed    int64  `json:"amount_used"`
	Frequency     string `json:"frequency"`
	ResetType     string `json:"reset_type"`
	Notes         string `json:"notes,omitempty"`
}

// CreateBenefit добавляет бенефит карте текущего пользователя.
func (h *Handler) CreateBenefit(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	cardID, err := urlID(r, "cardID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req benefitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BenefitName == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidFrequency(model.Frequency(req.Frequency)) ||
		!validation.IsValidResetType(model.ResetType(req.ResetType)) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	b := model.Benefit{
		CardID:        cardID,
		BenefitName:   req.BenefitName,
		BenefitAmount: req.BenefitAmount,
		AmountUsed:    req.AmountUsed,
		Frequency:     model.Frequency(req.Frequency),
		ResetType:     model.ResetType(req.ResetType),
		Notes:         req.Notes,
	}

	id, err := h.service.CreateBenefit(r.Context(), uid, b)
	if err != nil {
		h.serviceError(w, err, "create benefit error")
		return
	}

	b.ID = id
	h.writeJSONStatus(w, http.StatusCreated, benefitResponse{
		ID:            b.ID,
		CardID:        b.CardID,
		BenefitName:   b.BenefitName,
		BenefitAmount: b.BenefitAmount,
		AmountUsed:    b.AmountUsed,
		Frequency:     string(b.Frequency),
		ResetType:     string(b.ResetType),
		Notes:         b.Notes,
	})
}

// GetBenefits возвращает бенефиты карты текущего пользователя.
func (h *Handler) GetBenefits(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	cardID, err := urlID(r, "cardID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	benefits, err := h.service.GetBenefitsByCard(r.Context(), uid, cardID)
	if err != nil {
		h.serviceError(w, err, "get benefits error")
		return
	}

	resp := make([]benefitResponse, 0, len(benefits))
	for _, b := range benefits {
		resp = append(resp, benefitResponse{
			ID:            b.ID,
			CardID:        b.CardID,
			BenefitName:   b.BenefitName,
			BenefitAmount: b.BenefitAmount,
			AmountUsed:    b.AmountUsed,
			Frequency:     string(b.Frequency),
			ResetType:     string(b.ResetType),
			Notes:         b.Notes,
		})
	}

	h.writeJSON(w, resp)
}

type usageRequest struct {
	AmountUsed int64 `json:"amount_used"`
}

// UpdateBenefitUsage обновляет израсходованную сумму бенефита.
func (h *Handler) UpdateBenefitUsage(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	cardID, err := urlID(r, "cardID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	benefitID, err := urlID(r, "benefitID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req usageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AmountUsed < 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateBenefitUsage(r.Context(), uid, cardID, benefitID, req.AmountUsed); err != nil {
		h.serviceError(w, err, "update benefit usage error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type bonusRequest struct {
	BonusSource      string  `json:"bonus_source"`
	BonusAmount      *int64  `json:"bonus_amount"`
	SpendRequirement *int64  `json:"spend_requirement"`
	SpendDeadline    *string `json:"spend_deadline"`
	ReminderEnabled  bool    `json:"reminder_enabled"`
	Description      string  `json:"description"`
}

type bonusResponse struct {
	ID               int64   `json:"id"`
	CardID           int64   `json:"card_id"`
	EventID          *int64  `json:"event_id,omitempty"`
	BonusSource      string  `json:"bonus_source"`
	BonusAmount      *int64  `json:"bonus_amount,omitempty"`
	SpendRequirement *int64  `json:"spend_requirement,omitempty"`
	SpendDeadline    *string `json:"spend_deadline,omitempty"`
	BonusEarned      bool    `json:"bonus_earned"`
	BonusMissed      bool    `json:"bonus_missed"`
	ReminderEnabled  bool    `json:"reminder_enabled"`
	Description      string  `json:"description,omitempty"`
}

func toBonusResponse(b model.Bonus) bonusResponse {
	return bonusResponse{
		ID:               b.ID,
		CardID:           b.CardID,
		EventID:          b.EventID,
		BonusSource:      string(b.BonusSource),
		BonusAmount:      b.BonusAmount,
		SpendRequirement: b.SpendRequirement,
		SpendDeadline:    formatDate(b.SpendDeadline),
		BonusEarned:      b.BonusEarned,
		BonusMissed:      b.BonusMissed,
		ReminderEnabled:  b.ReminderEnabled,
		Description:      b.Description,
	}
}

// CreateBonus добавляет бонус карте текущего пользователя.
func (h *Handler) CreateBonus(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	cardID, err := urlID(r, "cardID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req bonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidBonusSource(model.BonusSource(req.BonusSource)) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	deadline, err := parseDate(req.SpendDeadline)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b := model.Bonus{
		CardID:           cardID,
		BonusSource:      model.BonusSource(req.BonusSource),
		BonusAmount:      req.BonusAmount,
		SpendRequirement: req.SpendRequirement,
		SpendDeadline:    deadline,
		ReminderEnabled:  req.ReminderEnabled,
		Description:      req.Description,
	}

	id, err := h.service.CreateBonus(r.Context(), uid, b)
	if err != nil {
		h.serviceError(w, err, "create bonus error")
		return
	}

	b.ID = id
	h.writeJSONStatus(w, http.StatusCreated, toBonusResponse(b))
}

// GetBonuses возвращает бонусы карты текущего пользователя.
func (h *Handler) GetBonuses(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	cardID, err := urlID(r, "cardID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	bonuses, err := h.service.GetBonusesByCard(r.Context(), uid, cardID)
	if err != nil {
		h.serviceError(w, err, "get bonuses error")
		return
	}

	resp := make([]bonusResponse, 0, len(bonuses))
	for _, b := range bonuses {
		resp = append(resp, toBonusResponse(b))
	}

	h.writeJSON(w, resp)
}

type resolveBonusRequest struct {
	Outcome string `json:"outcome"`
}

// ResolveBonus переводит бонус в терминальное состояние earned либо missed.
func (h *Handler) ResolveBonus(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	cardID, err := urlID(r, "cardID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	bonusID, err := urlID(r, "bonusID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req resolveBonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var earned bool
	switch req.Outcome {
	case "earned":
		earned = true
	case "missed":
		earned = false
	default:
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	if err := h.service.ResolveBonus(r.Context(), uid, cardID, bonusID, earned); err != nil {
		h.serviceError(w, err, "resolve bonus error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type retentionOfferRequest struct {
	EventDate        string  `json:"event_date"`
	Description      string  `json:"description"`
	BonusAmount      *int64  `json:"bonus_amount"`
	SpendRequirement *int64  `json:"spend_requirement"`
	SpendDeadline    *string `json:"spend_deadline"`
	ReminderEnabled  bool    `json:"reminder_enabled"`
}

type retentionOfferResponse struct {
	EventID int64         `json:"event_id"`
	Bonus   bonusResponse `json:"bonus"`
}

// CreateRetentionOffer регистрирует предложение удержания по карте:
// событие retention_offer и связанный бонус создаются одним запросом.
func (h *Handler) CreateRetentionOffer(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	cardID, err := urlID(r, "cardID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req retentionOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	eventDate, err := time.Parse(dateLayout, req.EventDate)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	deadline, err := parseDate(req.SpendDeadline)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	e := model.Event{
		CardID:      cardID,
		EventDate:   eventDate,
		Description: req.Description,
	}
	b := model.Bonus{
		CardID:           cardID,
		BonusAmount:      req.BonusAmount,
		SpendRequirement: req.SpendRequirement,
		SpendDeadline:    deadline,
		ReminderEnabled:  req.ReminderEnabled,
		Description:      req.Description,
	}

	eventID, bonusID, err := h.service.CreateRetentionOffer(r.Context(), uid, e, b)
	if err != nil {
		h.serviceError(w, err, "create retention offer error")
		return
	}

	b.ID = bonusID
	b.EventID = &eventID
	b.BonusSource = model.BonusSourceRetention
	h.writeJSONStatus(w, http.StatusCreated, retentionOfferResponse{
		EventID: eventID,
		Bonus:   toBonusResponse(b),
	})
}

type eventRequest struct {
	EventType   string         `json:"event_type"`
	EventDate   string         `json:"event_date"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

type eventResponse struct {
	ID          int64          `json:"id"`
	CardID      int64          `json:"card_id"`
	EventType   string         `json:"event_type"`
	EventDate   string         `json:"event_date"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func toEventResponse(e model.Event) eventResponse {
	return eventResponse{
		ID:          e.ID,
		CardID:      e.CardID,
		EventType:   string(e.EventType),
		EventDate:   e.EventDate.Format(dateLayout),
		Description: e.Description,
		Metadata:    e.Metadata,
	}
}

// CreateEvent добавляет событие в историю карты текущего пользователя.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	cardID, err := urlID(r, "cardID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidEventType(model.EventType(req.EventType)) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	eventDate, err := time.Parse(dateLayout, req.EventDate)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	e := model.Event{
		CardID:      cardID,
		EventType:   model.EventType(req.EventType),
		EventDate:   eventDate,
		Description: req.Description,
		Metadata:    req.Metadata,
	}

	id, err := h.service.CreateEvent(r.Context(), uid, e)
	if err != nil {
		h.serviceError(w, err, "create event error")
		return
	}

	e.ID = id
	h.writeJSONStatus(w, http.StatusCreated, toEventResponse(e))
}

// GetCardEvents возвращает события карты текущего пользователя, новые первыми.
func (h *Handler) GetCardEvents(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	cardID, err := urlID(r, "cardID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	events, err := h.service.GetEventsByCard(r.Context(), uid, cardID)
	if err != nil {
		h.serviceError(w, err, "get card events error")
		return
	}

	resp := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, toEventResponse(e))
	}

	h.writeJSON(w, resp)
}

// pagination извлекает limit/offset из query-параметров запроса.
func (h *Handler) pagination(r *http.Request) (int, int) {
	limit := h.pageSize
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}

// GetProfileEvents возвращает страницу истории профиля, новые первыми.
func (h *Handler) GetProfileEvents(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	profileID, err := urlID(r, "profileID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	limit, offset := h.pagination(r)

	events, err := h.service.GetEventsByProfile(r.Context(), uid, profileID, limit, offset)
	if err != nil {
		h.serviceError(w, err, "get profile events error")
		return
	}

	resp := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, toEventResponse(e))
	}

	h.writeJSON(w, resp)
}

// GetCardProjection возвращает проекцию карты: годовую плату, циклы бенефитов
// и статусы бонусов на сегодня.
func (h *Handler) GetCardProjection(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	cardID, err := urlID(r, "cardID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	proj, err := h.service.GetCardProjection(r.Context(), uid, cardID, h.today())
	if err != nil {
		h.serviceError(w, err, "get card projection error")
		return
	}

	h.writeJSON(w, proj)
}

// GetAdmissionWindow возвращает статус окна допуска профиля на сегодня.
func (h *Handler) GetAdmissionWindow(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	profileID, err := urlID(r, "profileID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	status, err := h.service.GetAdmissionWindow(r.Context(), uid, profileID, h.today())
	if err != nil {
		h.serviceError(w, err, "get admission window error")
		return
	}

	h.writeJSON(w, status)
}

// GetTimeline возвращает страницу объединённой хронологии профиля.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	profileID, err := urlID(r, "profileID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	limit, offset := h.pagination(r)

	page, err := h.service.GetTimeline(r.Context(), uid, profileID, h.today(), limit, offset)
	if err != nil {
		h.serviceError(w, err, "get timeline error")
		return
	}

	h.writeJSON(w, page)
}

type templateResponse struct {
	TemplateID string `json:"template_id"`
	CardName   string `json:"card_name"`
	Issuer     string `json:"issuer"`
	AnnualFee  *int64 `json:"annual_fee,omitempty"`
}

// GetTemplates возвращает шаблоны карт из синхронизированного каталога.
func (h *Handler) GetTemplates(w http.ResponseWriter, r *http.Request) {
	if _, ok := userID(w, r); !ok {
		return
	}

	list, err := h.service.ListTemplates(r.Context())
	if err != nil {
		h.serviceError(w, err, "get templates error")
		return
	}

	resp := make([]templateResponse, 0, len(list))
	for _, t := range list {
		resp = append(resp, templateResponse{
			TemplateID: t.TemplateID,
			CardName:   t.CardName,
			Issuer:     t.Issuer,
			AnnualFee:  t.AnnualFee,
		})
	}

	h.writeJSON(w, resp)
}
