package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"tradesim/src/auth"
	"tradesim/src/onboarding"
)

// RegisterHandler creates a new account with a funded wallet. Public; the
// only unauthenticated endpoint besides the healthcheck.
func RegisterHandler(svc *onboarding.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload onboarding.RegisterParams
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid register payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		// roles are assigned by admins, not self-selected
		payload.Role = ""
		payload.ManagerID = nil

		user, err := svc.Register(r.Context(), payload)
		if err != nil {
			switch {
			case errors.Is(err, onboarding.ErrEmailTaken):
				http.Error(w, err.Error(), http.StatusConflict)
			case errors.Is(err, onboarding.ErrInvalidEmail),
				errors.Is(err, onboarding.ErrInvalidPassword),
				errors.Is(err, onboarding.ErrInvalidRole):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				logger.WithError(err).Error("failed to register user")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, user)
	}
}

type changePasswordPayload struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func ChangePasswordHandler(svc *onboarding.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			logger.Warn("user not found in context during password change")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var payload changePasswordPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid change password payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		if payload.CurrentPassword == "" || payload.NewPassword == "" {
			http.Error(w, "Current and new passwords are required", http.StatusBadRequest)
			return
		}

		if err := svc.ChangePassword(r.Context(), user, payload.CurrentPassword, payload.NewPassword); err != nil {
			if errors.Is(err, onboarding.ErrInvalidPassword) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			logger.WithField("user_id", user.ID).WithError(err).Warn("password change rejected")
			http.Error(w, "Invalid current password", http.StatusUnauthorized)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
	}
}
