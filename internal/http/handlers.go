package http

import (
	"net/http"

	"kasbuku/internal/auth"
	"kasbuku/internal/core"
)

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tx, err := s.service.AddTransaction(r.Context(), caller, req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	txs, err := s.service.ListTransactions(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponses(txs))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	recordingTime, err := parseRecordingTime(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tx, err := s.service.GetTransaction(r.Context(), caller, recordingTime)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	recordingTime, err := parseRecordingTime(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.service.DeleteTransaction(r.Context(), caller, recordingTime); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleTransactionHistory(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	day, err := parseTimeParam(r, "day")
	if err != nil {
		writeError(w, r, err)
		return
	}

	txs, err := s.service.TransactionHistory(r.Context(), caller, day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponses(txs))
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.service.AddExpense(r.Context(), caller, req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseResponse(e))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	exps, err := s.service.ListExpenses(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponses(exps))
}

func (s *Server) handleExpensesByCategory(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	month, err := parseTimeParam(r, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}

	totals, err := s.service.ExpensesByCategory(r.Context(), caller, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryAmountResponses(totals))
}

func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	date, err := parseTimeParam(r, "date")
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.service.DailyReport(r.Context(), caller, date, parseOwnerParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyReportResponse(report))
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	month, err := parseTimeParam(r, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.service.MonthlyReport(r.Context(), caller, month, parseOwnerParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlyReportResponse(report))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	summary, err := s.service.DashboardSummary(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardResponse(summary))
}

func (s *Server) handleMultiDeviceDashboard(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	boards, err := s.service.MultiDeviceDashboard(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOwnerDashboardResponses(boards))
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	profile, err := s.service.GetProfile(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if profile == nil {
		writeErrorMessage(w, http.StatusNotFound, "not_found", "no profile saved")
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Name: profile.Name})
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.service.SaveProfile(r.Context(), caller, core.UserProfile{Name: req.Name}); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Name: req.Name})
}

func (s *Server) handleGetProfileOf(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())
	target := core.CallerID(r.PathValue("id"))

	profile, err := s.service.GetProfileOf(r.Context(), caller, target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if profile == nil {
		writeErrorMessage(w, http.StatusNotFound, "not_found", "no profile saved")
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Name: profile.Name})
}

func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.service.AssignRole(r.Context(), caller, core.CallerID(req.Target), core.Role(req.Role)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	role, err := s.service.RoleOf(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := s.service.GetProfile(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := meResponse{Caller: string(caller), Role: string(role)}
	if profile != nil {
		resp.Profile = &profileResponse{Name: profile.Name}
	}
	writeJSON(w, http.StatusOK, resp)
}
