package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/teemow/mailbot/internal/gateway"
	"github.com/teemow/mailbot/internal/gmail"
	"github.com/teemow/mailbot/internal/google"
)

// Fallback messages for upstream failures, per route.
const (
	MsgFetchEmailsFailed  = "Failed to fetch emails"
	MsgApplyLabelsFailed  = "Failed to apply labels to email"
	MsgRemoveLabelsFailed = "Failed to remove labels from email"
	MsgFetchLabelsFailed  = "Failed to fetch labels"
	MsgCreateLabelFailed  = "Failed to create label"
	MsgUpdateLabelFailed  = "Failed to update label"
	MsgDeleteLabelFailed  = "Failed to delete label"
)

type mutationRequest struct {
	EmailID  string   `json:"emailId"`
	LabelIDs []string `json:"labelIds"`
}

type labelRequest struct {
	Name string `json:"name"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type emailsResponse struct {
	Emails []gmail.Email `json:"emails"`
}

type labelsResponse struct {
	Labels []gmail.Label `json:"labels"`
}

type labelResponse struct {
	Label gmail.Label `json:"label"`
}

// parseCount reads the count query parameter. Anything that is not a
// positive integer yields the default.
func parseCount(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || n <= 0 {
		return gateway.DefaultEmailCount
	}
	return n
}

func handleFetchEmails(svc *gateway.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		emails, err := svc.ListEmails(r.Context(), google.TokenFromContext(r.Context()), parseCount(r))
		if err != nil {
			writeGatewayError(w, r, logger, err, MsgFetchEmailsFailed)
			return
		}
		writeJSON(w, http.StatusOK, emailsResponse{Emails: emails})
	}
}

// handleModifyLabels serves POST and DELETE /emails/labels. A body that does
// not decode is validated as empty, so an unauthenticated caller still gets 401.
func handleModifyLabels(svc *gateway.Service, logger *slog.Logger, add bool) http.HandlerFunc {
	fallback := MsgRemoveLabelsFailed
	if add {
		fallback = MsgApplyLabelsFailed
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req mutationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			req = mutationRequest{}
		}

		ctx := r.Context()
		tok := google.TokenFromContext(ctx)
		var err error
		if add {
			err = svc.ApplyLabels(ctx, tok, req.EmailID, req.LabelIDs)
		} else {
			err = svc.RemoveLabels(ctx, tok, req.EmailID, req.LabelIDs)
		}
		if err != nil {
			writeGatewayError(w, r, logger, err, fallback)
			return
		}
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	}
}

func handleListLabels(svc *gateway.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		labels, err := svc.ListLabels(r.Context(), google.TokenFromContext(r.Context()))
		if err != nil {
			writeGatewayError(w, r, logger, err, MsgFetchLabelsFailed)
			return
		}
		writeJSON(w, http.StatusOK, labelsResponse{Labels: labels})
	}
}

func handleCreateLabel(svc *gateway.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req labelRequest
		if err := decodeJSON(w, r, &req); err != nil {
			req = labelRequest{}
		}

		label, err := svc.CreateLabel(r.Context(), google.TokenFromContext(r.Context()), req.Name)
		if err != nil {
			writeGatewayError(w, r, logger, err, MsgCreateLabelFailed)
			return
		}
		writeJSON(w, http.StatusOK, labelResponse{Label: label})
	}
}

func handleUpdateLabel(svc *gateway.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req labelRequest
		if err := decodeJSON(w, r, &req); err != nil {
			req = labelRequest{}
		}

		label, err := svc.UpdateLabel(r.Context(), google.TokenFromContext(r.Context()), chi.URLParam(r, "id"), req.Name)
		if err != nil {
			writeGatewayError(w, r, logger, err, MsgUpdateLabelFailed)
			return
		}
		writeJSON(w, http.StatusOK, labelResponse{Label: label})
	}
}

func handleDeleteLabel(svc *gateway.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := svc.DeleteLabel(r.Context(), google.TokenFromContext(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeGatewayError(w, r, logger, err, MsgDeleteLabelFailed)
			return
		}
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	}
}
