package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/modelsite/modelsite-go/pkg/account"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// AccountHandler handles signup, login and account maintenance requests
type AccountHandler struct {
	service *account.Service
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(service *account.Service) *AccountHandler {
	return &AccountHandler{
		service: service,
	}
}

// writeAccountError reports validation failures as 422 and everything else
// as an error body
func writeAccountError(w http.ResponseWriter, r *http.Request, err error) {
	if models.ErrorCode(err) == models.EInvalid {
		writeValidationResponse(w, err.Error())
		return
	}
	writeErrorResponse(w, r, err)
}

// HandleSignup handles POST /signup
func (h *AccountHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := decodeJSONBody(r, &creds); err != nil {
		writeValidationResponse(w, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	ok, err := h.service.Signup(r.Context(), &creds)
	if err != nil {
		writeAccountError(w, r, err)
		return
	}
	if !ok {
		writeJSONResponse(w, http.StatusOK, map[string]string{"failed": "failed"})
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"success": "success"})
}

// HandleLogin handles POST /login. The response body is a bare boolean.
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := decodeJSONBody(r, &creds); err != nil {
		writeValidationResponse(w, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	ok, err := h.service.Login(r.Context(), &creds)
	if err != nil {
		writeAccountError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, ok)
}

// HandleChangePassword handles POST /change-password
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordChangeRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeValidationResponse(w, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	updated, err := h.service.ChangePassword(r.Context(), &req)
	if err != nil {
		writeAccountError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]bool{"updated": updated})
}

// HandleDeleteUser handles DELETE /users/{username}
func (h *AccountHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	deleted, err := h.service.DeleteUser(r.Context(), username)
	if err != nil {
		writeAccountError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]bool{"deleted": deleted})
}
