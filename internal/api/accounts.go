package api

import (
	"net/http"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/go-chi/chi/v5"
)

// listAccounts handles GET /api/accounts.
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.storage.ListAccounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(accounts))
}

// createAccount handles POST /api/accounts.
func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var account model.Account
	if err := decodeBody(r, &account); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.storage.CreateAccount(r.Context(), &account); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, account)
}

// deleteAccount handles DELETE /api/accounts/{id}. Rules referencing the
// account are marked invalid.
func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.DeleteAccount(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nil)
}
