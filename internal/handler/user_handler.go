package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/invito-app/invito/internal/domain"
	"github.com/invito-app/invito/internal/usecase"
)

type UserHandler struct {
	service *usecase.UserService
}

func NewUserHandler(service *usecase.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// ---

func (h *UserHandler) HealthChecker(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{
		"status":  "success",
		"message": "Invito is running...",
	})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	users, err := h.service.ListUsers(r.Context(), page, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list users", "error", err)
		writeFail(w, http.StatusInternalServerError, "Something bad happened while fetching all user items")
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"status":  "success",
		"results": len(users),
		"users":   users,
	})
}

type createUserRequest struct {
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	RefCode  string `json:"ref_code"`
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var body createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.UserName == "" || body.Email == "" {
		writeFail(w, http.StatusBadRequest, "user_name and email are required")
		return
	}

	user, err := h.service.CreateUser(r.Context(), usecase.CreateUserInput{
		UserName: body.UserName,
		Email:    body.Email,
		RefCode:  body.RefCode,
	})

	switch {
	case errors.Is(err, domain.ErrRefCodeNotFound):
		writeFail(w, http.StatusNotFound, "User with referral code: "+body.RefCode+" not found")
	case errors.Is(err, domain.ErrDuplicateEmail):
		writeFail(w, http.StatusConflict, "user with that email already exists")
	case err != nil:
		slog.ErrorContext(r.Context(), "failed to create user", "error", err)
		writeError(w, err)
	default:
		writeJSON(w, http.StatusCreated, envelope{
			"status":  "success",
			"message": "User created successfully",
			"data":    envelope{"user": user},
		})
	}
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userName := chi.URLParam(r, "user")

	user, err := h.service.GetUserByName(r.Context(), userName)
	if err != nil {
		writeFail(w, http.StatusNotFound, userName+" not found")
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"status": "success",
		"data":   envelope{"user": user},
	})
}

type updateUserRequest struct {
	UserName *string `json:"user_name"`
	Email    *string `json:"email"`
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "user")

	var body updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.service.UpdateUser(r.Context(), id, usecase.UpdateUserInput{
		UserName: body.UserName,
		Email:    body.Email,
	})

	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		writeFail(w, http.StatusNotFound, "User with ID: "+id+" not found")
	case err != nil:
		slog.ErrorContext(r.Context(), "failed to update user", "error", err)
		writeError(w, err)
	default:
		writeJSON(w, http.StatusOK, envelope{
			"status": "success",
			"data":   envelope{"user": user},
		})
	}
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "user")

	err := h.service.DeleteUser(r.Context(), id)

	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		writeFail(w, http.StatusNotFound, "User with ID: "+id+" not found")
	case err != nil:
		slog.ErrorContext(r.Context(), "failed to delete user", "error", err)
		writeError(w, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// ---

type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{
		"status":  "fail",
		"message": message,
	})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, envelope{
		"status":  "error",
		"message": err.Error(),
	})
}
