package api

import (
	"net/http"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/go-chi/chi/v5"
)

// listTransactions handles GET /api/transactions with optional start, end
// (YYYY-MM-DD), unbalanced=true and limit filters.
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	var filter service.TransactionFilter
	q := r.URL.Query()

	var err error
	if filter.StartDate, err = dateParam(r, "start"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.EndDate, err = dateParam(r, "end"); err != nil {
		writeError(w, r, err)
		return
	}
	if q.Get("unbalanced") == "true" {
		balanced := false
		filter.IsBalanced = &balanced
	}
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, r, err)
		return
	}

	txns, err := s.storage.FindTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(txns))
}

// createTransaction handles POST /api/transactions. Ids are always assigned
// by storage.
func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var txn model.Transaction
	if err := decodeBody(r, &txn); err != nil {
		writeError(w, r, err)
		return
	}
	txn.ID = ""
	for i := range txn.Entries {
		txn.Entries[i].ID = ""
		txn.Entries[i].Generated = nil
	}

	if err := s.storage.SaveTransaction(r.Context(), &txn); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, txn)
}

// getTransaction handles GET /api/transactions/{id}.
func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := s.storage.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, txn)
}

// transactionBalance handles GET /api/transactions/{id}/balance.
func (s *Server) transactionBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.engine.Evaluate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, balance)
}

// applyRules handles POST /api/transactions/{id}/apply-rules.
func (s *Server) applyRules(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.ApplyRules(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

// transactionMatches handles GET /api/transactions/{id}/matches.
func (s *Server) transactionMatches(w http.ResponseWriter, r *http.Request) {
	opts, err := matchOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	matches, err := s.engine.FindTransactionMatches(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(matches))
}

// entryMatches handles GET /api/entries/{id}/matches.
func (s *Server) entryMatches(w http.ResponseWriter, r *http.Request) {
	opts, err := matchOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	matches, err := s.engine.FindMatches(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(matches))
}

func dateParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, common.Validationf("%s must be a YYYY-MM-DD date", name)
	}
	return &t, nil
}

func matchOptions(r *http.Request) (engine.MatchOptions, error) {
	window, err := queryInt(r, "window_days")
	if err != nil {
		return engine.MatchOptions{}, err
	}
	limit, err := queryInt(r, "max_results")
	if err != nil {
		return engine.MatchOptions{}, err
	}
	return engine.MatchOptions{WindowDays: window, MaxResults: limit}, nil
}
