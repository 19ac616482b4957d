package app

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"caseload/api/internal/store"
)

const maxUploadBytes = 25 << 20

func (s *HTTPServer) routeMessages(w http.ResponseWriter, r *http.Request, therapist store.Therapist, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodPost:
		var body SendMessageInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SendMessage(r.Context(), therapist.ID, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
	case len(rest) == 2 && rest[0] == "thread" && r.Method == http.MethodGet:
		otherID, ok := pathID(w, rest[1])
		if !ok {
			return
		}
		otherType := strings.TrimSpace(r.URL.Query().Get("other_party_type"))
		if otherType == "" {
			otherType = "client"
		}
		payload, err := s.service.MessageThread(r.Context(), therapist.ID, otherID, otherType)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(rest) == 1 && rest[0] == "unread-count" && r.Method == http.MethodGet:
		payload, err := s.service.UnreadCount(r.Context(), therapist.ID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(rest) == 2 && rest[1] == "read" && r.Method == http.MethodPatch:
		messageID, ok := pathID(w, rest[0])
		if !ok {
			return
		}
		payload, err := s.service.MarkMessageRead(r.Context(), therapist.ID, messageID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeHomework(w http.ResponseWriter, r *http.Request, therapist store.Therapist, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodPost:
		var body CreateHomeworkInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateHomework(r.Context(), therapist.ID, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
	case len(rest) == 2 && rest[0] == "client" && r.Method == http.MethodGet:
		clientID, ok := pathID(w, rest[1])
		if !ok {
			return
		}
		payload, err := s.service.ListClientHomework(r.Context(), therapist.ID, clientID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(rest) == 3 && rest[0] == "submission" && rest[2] == "feedback" && r.Method == http.MethodPatch:
		submissionID, ok := pathID(w, rest[1])
		if !ok {
			return
		}
		var body struct {
			Feedback string `json:"feedback"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.HomeworkFeedback(r.Context(), therapist.ID, submissionID, body.Feedback)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(rest) == 1 && r.Method == http.MethodPatch:
		assignmentID, ok := pathID(w, rest[0])
		if !ok {
			return
		}
		var body UpdateHomeworkInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateHomework(r.Context(), therapist.ID, assignmentID, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// handleSubmitHomework is reached without a bearer token; the claimed
// client id must own the assignment, which the store enforces.
func (s *HTTPServer) handleSubmitHomework(w http.ResponseWriter, r *http.Request, rawID string) {
	assignmentID, ok := pathID(w, rawID)
	if !ok {
		return
	}
	clientID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("client_id")), 10, 64)
	if err != nil || clientID <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "client_id is required", nil)
		return
	}
	var body SubmitHomeworkInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.SubmitHomework(r.Context(), assignmentID, clientID, body)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payload)
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart body", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file field is required", nil)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	result, err := s.service.Upload(r.Context(), header.Filename, contentType, header.Size, file)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleFetchUpload(w http.ResponseWriter, r *http.Request, name string) {
	body, contentType, err := s.service.FetchUpload(r.Context(), name)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	defer body.Close()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func (s *HTTPServer) handleLinkPreview(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		var body struct {
			URL string `json:"url"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		target = body.URL
	}
	payload, err := s.service.LinkPreview(r.Context(), target)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
