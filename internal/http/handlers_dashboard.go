package http

import (
	"bytes"
	"net/http"
	"strconv"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type categoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// settingsRequest also accepts monthlyBudget for clients that send camelCase.
type settingsRequest struct {
	MonthlyBudget      *core.Money `json:"monthly_budget"`
	MonthlyBudgetCamel *core.Money `json:"monthlyBudget"`
	Currency           *string     `json:"currency"`
	Theme              *core.Theme `json:"theme"`
}

func (settingsRequest) moneyField() string { return "monthly_budget" }

func (req settingsRequest) patch() core.SettingsPatch {
	p := core.SettingsPatch{
		MonthlyBudget: req.MonthlyBudget,
		Currency:      req.Currency,
		Theme:         req.Theme,
	}
	if p.MonthlyBudget == nil {
		p.MonthlyBudget = req.MonthlyBudgetCamel
	}
	return p
}

func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Dashboard.Summary(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().JSON(summary).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Categories.List(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	NewJSONResponse().JSON(cats).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	c, err := s.svc.Categories.Create(r.Context(), owner(r),
		sanitizeInput(req.Name), sanitizeInput(req.Color), sanitizeInput(req.Icon))
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(c).Write(w)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.svc.Accounts.Settings(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().JSON(settings).Write(w)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	settings, err := s.svc.Accounts.UpdateSettings(r.Context(), owner(r), req.patch())
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().JSON(settings).Write(w)
}

// Exports are rendered into memory first so a failure can still produce a
// proper error status.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	ownerID := owner(r)
	var buf bytes.Buffer
	if err := s.svc.Export.WriteCSV(r.Context(), ownerID, &buf); err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	writeAttachment(w, "text/csv; charset=utf-8", attachmentName(ownerID, "csv"), buf.Bytes())
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	ownerID := owner(r)
	var buf bytes.Buffer
	if err := s.svc.Export.WriteXLSX(r.Context(), ownerID, &buf); err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	writeAttachment(w, xlsxContentType, attachmentName(ownerID, "xlsx"), buf.Bytes())
}

func writeAttachment(w http.ResponseWriter, contentType, disposition string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
