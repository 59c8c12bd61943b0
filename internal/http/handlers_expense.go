package http

import (
	"net/http"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
)

// expenseRequest also accepts paymentMethod for clients that send camelCase.
type expenseRequest struct {
	Title              *string     `json:"title"`
	Amount             *core.Money `json:"amount"`
	Category           *string     `json:"category"`
	PaymentMethod      *string     `json:"payment_method"`
	PaymentMethodCamel *string     `json:"paymentMethod"`
	Date               *core.Date  `json:"date"`
	Notes              *string     `json:"notes"`
}

func (expenseRequest) moneyField() string { return "amount" }

func (req expenseRequest) patch() core.ExpensePatch {
	p := core.ExpensePatch{
		Title:         req.Title,
		Amount:        req.Amount,
		Category:      req.Category,
		PaymentMethod: req.PaymentMethod,
		Date:          req.Date,
		Notes:         req.Notes,
	}
	if p.PaymentMethod == nil {
		p.PaymentMethod = req.PaymentMethodCamel
	}
	for _, s := range []*string{p.Title, p.Category, p.PaymentMethod, p.Notes} {
		if s != nil {
			*s = sanitizeInput(*s)
		}
	}
	return p
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseExpenseFilter(r.URL.Query())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	list, err := s.svc.Expenses.List(r.Context(), owner(r), filter)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	if list == nil {
		list = []core.Expense{}
	}
	NewJSONResponse().JSON(list).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	e := core.Expense{}.Apply(req.patch())
	created, err := s.svc.Expenses.Create(r.Context(), owner(r), e)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(created).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	e, err := s.svc.Expenses.Get(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().JSON(e).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	updated, err := s.svc.Expenses.Update(r.Context(), owner(r), id, req.patch())
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().JSON(updated).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	if err := s.svc.Expenses.Delete(r.Context(), owner(r), id); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().JSON(map[string]bool{"deleted": true}).Write(w)
}
