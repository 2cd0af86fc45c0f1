package api

import (
	"net/http"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
)

type mergeRequest struct {
	SourceTransactionID string `json:"source_transaction_id"`
	TargetTransactionID string `json:"target_transaction_id"`
}

type moveEntryRequest struct {
	EntryID                  string `json:"entry_id"`
	DestinationTransactionID string `json:"destination_transaction_id"`
}

type massRequest struct {
	Action model.MassAction `json:"action"`
	Query  model.MassQuery  `json:"query"`
}

// merge handles POST /api/merge. The target is folded into the source.
func (s *Server) merge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.SourceTransactionID == "" || req.TargetTransactionID == "" {
		writeError(w, r, common.Validationf("source_transaction_id and target_transaction_id are required"))
		return
	}

	merged, err := s.engine.Merge(r.Context(), req.SourceTransactionID, req.TargetTransactionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, merged)
}

// moveEntry handles POST /api/move-entry.
func (s *Server) moveEntry(w http.ResponseWriter, r *http.Request) {
	var req moveEntryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.EntryID == "" || req.DestinationTransactionID == "" {
		writeError(w, r, common.Validationf("entry_id and destination_transaction_id are required"))
		return
	}

	result, err := s.engine.MoveEntry(r.Context(), req.EntryID, req.DestinationTransactionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

// previewMass handles POST /api/mass/preview.
func (s *Server) previewMass(w http.ResponseWriter, r *http.Request) {
	var req massRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	preview, err := s.engine.PreviewMass(r.Context(), req.Query, req.Action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, preview)
}

// applyMass handles POST /api/mass/apply.
func (s *Server) applyMass(w http.ResponseWriter, r *http.Request) {
	var req massRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.engine.ApplyMass(r.Context(), req.Query, req.Action, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}
