package app

import (
	"net/http"
	"strings"

	"caseload/api/internal/store"
)

// routePublicIntake handles the token-gated form endpoints. Returns false
// when the path belongs to the authenticated intake surface instead.
func (s *HTTPServer) routePublicIntake(w http.ResponseWriter, r *http.Request, rest []string) bool {
	switch {
	case len(rest) == 2 && rest[0] == "form" && r.Method == http.MethodGet:
		payload, err := s.service.PublicIntakeForm(r.Context(), rest[1])
		if err != nil {
			writeMappedError(w, err)
			return true
		}
		writeJSON(w, http.StatusOK, payload)
		return true
	case len(rest) == 2 && rest[0] == "submit" && r.Method == http.MethodPost:
		var body SubmitIntakeInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.SubmitIntakeSection(r.Context(), rest[1], body)
		if err != nil {
			writeMappedError(w, err)
			return true
		}
		writeJSON(w, http.StatusOK, payload)
		return true
	case len(rest) == 2 && rest[0] == "submit-assessment" && r.Method == http.MethodPost:
		var body SubmitAssessmentInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.SubmitAssessment(r.Context(), rest[1], body)
		if err != nil {
			writeMappedError(w, err)
			return true
		}
		writeJSON(w, http.StatusCreated, payload)
		return true
	case len(rest) == 2 && rest[0] == "complete" && r.Method == http.MethodPost:
		payload, err := s.service.CompleteIntake(r.Context(), rest[1])
		if err != nil {
			writeMappedError(w, err)
			return true
		}
		writeJSON(w, http.StatusOK, payload)
		return true
	}
	return false
}

func (s *HTTPServer) routeIntake(w http.ResponseWriter, r *http.Request, therapist store.Therapist, rest []string) {
	switch {
	case len(rest) == 1 && rest[0] == "create-link" && r.Method == http.MethodPost:
		var body CreateLinkInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateIntakeLink(r.Context(), therapist.ID, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
	case len(rest) == 1 && rest[0] == "send-email" && r.Method == http.MethodPost:
		var body SendIntakeEmailInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SendIntakeEmail(r.Context(), therapist.ID, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(rest) == 1 && rest[0] == "pending" && r.Method == http.MethodGet:
		payload, err := s.service.PendingIntakes(r.Context(), therapist.ID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(rest) == 2 && rest[0] == "review" && r.Method == http.MethodGet:
		responseID, ok := pathID(w, rest[1])
		if !ok {
			return
		}
		payload, err := s.service.IntakeReview(r.Context(), therapist.ID, responseID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(rest) == 2 && rest[0] == "approve" && r.Method == http.MethodPost:
		responseID, ok := pathID(w, rest[1])
		if !ok {
			return
		}
		// Approval creates a client unless explicitly told not to.
		createClient := !strings.EqualFold(r.URL.Query().Get("create_client"), "false")
		payload, err := s.service.ApproveIntake(r.Context(), therapist.ID, responseID, createClient)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}
