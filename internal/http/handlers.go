package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ruktech/income-tracker/internal/core"
	"github.com/ruktech/income-tracker/internal/log"
	"github.com/ruktech/income-tracker/internal/services"
	"github.com/ruktech/income-tracker/internal/storage"
)

type registerRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	DisplayName    string `json:"display_name"`
	WhatsAppNumber string `json:"whatsapp_number"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name,omitempty"`
	Role           string `json:"role"`
	WhatsAppNumber string `json:"whatsapp_number,omitempty"`
}

type incomeRequest struct {
	CategoryID     int64  `json:"category_id"`
	Description    string `json:"description"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	DueDate        string `json:"due_date"`
	Frequency      string `json:"frequency"`
	ExpirationDate string `json:"expiration_date"`
	Active         *bool  `json:"active"`
}

type incomeResponse struct {
	ID             int64  `json:"id"`
	CategoryID     int64  `json:"category_id"`
	Category       string `json:"category"`
	Description    string `json:"description"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	DueDate        string `json:"due_date"`
	Frequency      string `json:"frequency"`
	ExpirationDate string `json:"expiration_date,omitempty"`
	Active         bool   `json:"active"`
	NextDueDate    string `json:"next_due_date,omitempty"`
}

func toIncomeResponse(inc core.Income, today core.Date) incomeResponse {
	resp := incomeResponse{
		ID:          inc.ID,
		CategoryID:  inc.CategoryID,
		Category:    inc.CategoryName,
		Description: inc.Description,
		Amount:      inc.Amount.Decimal(),
		Currency:    string(inc.Currency),
		DueDate:     inc.DueDate.String(),
		Frequency:   string(inc.Frequency),
		Active:      inc.Active,
	}
	if !inc.ExpirationDate.IsZero() {
		resp.ExpirationDate = inc.ExpirationDate.String()
	}
	if inc.Active && !inc.Expired(today) {
		next := core.NextDueAfter(inc.DueDate, inc.Frequency, today)
		if !next.IsZero() {
			resp.NextDueDate = next.String()
		}
	}
	return resp
}

func userToResponse(u core.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		Role:           string(u.Role),
		WhatsAppNumber: u.WhatsAppNumber,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "username is required and password must be at least 8 characters")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to hash password", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := core.User{
		Username:       req.Username,
		DisplayName:    req.DisplayName,
		Role:           core.RoleUser,
		WhatsAppNumber: req.WhatsAppNumber,
	}
	id, err := s.users.CreateUser(r.Context(), user, hash)
	if errors.Is(err, storage.ErrUsernameTaken) {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to create user", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	user.ID = id

	writeJSON(w, http.StatusCreated, userToResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, storedHash, err := s.users.GetUserByUsername(r.Context(), req.Username)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !CheckPassword(req.Password, storedHash)) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to load user", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := GenerateToken(s.jwtSecret, user, s.jwtTTL)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to sign token", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	user, err := s.users.GetUser(r.Context(), actor.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, userToResponse(user))
}

func (s *Server) handleSetWhatsApp(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req struct {
		WhatsAppNumber string `json:"whatsapp_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.users.SetWhatsAppNumber(r.Context(), actor.UserID, req.WhatsAppNumber); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to update WhatsApp number", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseIncomeRequest converts the JSON payload into a domain income. Field
// validation beyond shape (limits, enums) happens in the service.
func parseIncomeRequest(req incomeRequest) (core.Income, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.Income{}, err
	}
	due, err := core.ParseDate(req.DueDate)
	if err != nil {
		return core.Income{}, core.ErrInvalidDueDate
	}

	inc := core.Income{
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Amount:      amount,
		Currency:    core.Currency(req.Currency),
		DueDate:     due,
		Frequency:   core.Frequency(req.Frequency),
		Active:      true,
	}
	if req.ExpirationDate != "" {
		inc.ExpirationDate, err = core.ParseDate(req.ExpirationDate)
		if err != nil {
			return core.Income{}, core.ErrInvalidExpiration
		}
	}
	if req.Active != nil {
		inc.Active = *req.Active
	}
	return inc, nil
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())

	var req incomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	inc, err := parseIncomeRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	today := core.DateOf(time.Now())
	created, err := s.incomes.Create(r.Context(), actor, inc, today)
	if err != nil {
		s.writeIncomeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIncomeResponse(created, today))
}

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	inc, err := s.incomes.Get(r.Context(), actor, id)
	if err != nil {
		s.writeIncomeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncomeResponse(inc, core.DateOf(time.Now())))
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req incomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	inc, err := parseIncomeRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	inc.ID = id

	updated, err := s.incomes.Update(r.Context(), actor, inc)
	if err != nil {
		s.writeIncomeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncomeResponse(updated, core.DateOf(time.Now())))
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := s.incomes.Delete(r.Context(), actor, id); err != nil {
		s.writeIncomeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())

	filter, err := parseIncomeFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	incomes, err := s.incomes.List(r.Context(), actor, filter)
	if err != nil {
		s.writeIncomeError(w, r, err)
		return
	}

	today := core.DateOf(time.Now())
	out := make([]incomeResponse, 0, len(incomes))
	for _, inc := range incomes {
		out = append(out, toIncomeResponse(inc, today))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cat, err := s.incomes.CreateCategory(r.Context(), actor, req.Name)
	if err != nil {
		s.writeIncomeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": cat.ID, "name": cat.Name})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())

	cats, err := s.incomes.ListCategories(r.Context(), actor)
	if err != nil {
		s.writeIncomeError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(cats))
	for _, c := range cats {
		out = append(out, map[string]any{"id": c.ID, "name": c.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := s.incomes.DeleteCategory(r.Context(), actor, id); err != nil {
		s.writeIncomeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())

	group := services.GroupBy(r.URL.Query().Get("group"))
	if group == "" {
		group = services.GroupByMonth
	}
	filter, err := parseIncomeFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := s.reports.Summary(r.Context(), actor, group, filter, core.DateOf(time.Now()))
	if err != nil {
		if !group.Valid() {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "Failed to compute report", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	type row struct {
		Key   string `json:"key"`
		Total string `json:"total"`
		Count int    `json:"count"`
	}
	out := make([]row, 0, len(rows))
	for _, rr := range rows {
		out = append(out, row{Key: rr.Key, Total: rr.Total.Decimal(), Count: rr.Count})
	}
	writeJSON(w, http.StatusOK, map[string]any{"group": string(group), "rows": out})
}

// writeIncomeError maps domain and storage errors onto HTTP statuses. Records
// the actor does not own answer 404: their existence is not revealed.
func (s *Server) writeIncomeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrCategoryInUse):
		writeError(w, http.StatusConflict, "category still has incomes")
	case errors.Is(err, storage.ErrCategoryExists):
		writeError(w, http.StatusConflict, "category already exists")
	case errors.Is(err, storage.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username already taken")
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrNegativeAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrDescriptionTooLong),
		errors.Is(err, core.ErrInvalidFrequency),
		errors.Is(err, core.ErrInvalidCurrency),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrMissingCategory),
		errors.Is(err, core.ErrInvalidDueDate),
		errors.Is(err, core.ErrInvalidExpiration):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func parseIncomeFilter(r *http.Request) (storage.IncomeFilter, error) {
	var f storage.IncomeFilter
	q := r.URL.Query()

	if v := q.Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return f, errors.New("invalid year")
		}
		f.Year = year
	}
	if v := q.Get("month"); v != "" {
		month, err := strconv.Atoi(v)
		if err != nil || month < 1 || month > 12 {
			return f, errors.New("invalid month")
		}
		f.Month = month
	}
	if v := q.Get("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, errors.New("invalid category_id")
		}
		f.CategoryID = id
	}
	return f, nil
}
