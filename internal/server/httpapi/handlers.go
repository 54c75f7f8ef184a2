package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/workdeck/workdeck/internal/dbx"
	"github.com/workdeck/workdeck/internal/server/auth"
	"github.com/workdeck/workdeck/internal/server/directory"
	"github.com/workdeck/workdeck/internal/server/models"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	User        userResponse `json:"user"`
}

type createUserRequest struct {
	Email    string   `json:"email"`
	Password *string  `json:"password,omitempty"`
	Name     *string  `json:"name,omitempty"`
	Timezone string   `json:"timezone"`
	Groups   []string `json:"groups,omitempty"`
	Notify   bool     `json:"notify"`
}

type updateUserRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Timezone string  `json:"timezone"`
}

type userResponse struct {
	ID          int64     `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Timezone    string    `json:"timezone"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Timezone:    u.Timezone,
		CreatedAt:   u.CreatedAt,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	svc := s.directoryFor(r.Context(), s.db)
	user, err := svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	token, err := auth.GenerateToken(user.ID, []byte(s.cfg.SecretKey), s.cfg.AccessTokenValidity)
	if err != nil {
		s.logger.Error(r.Context(), "token generation failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, User: toUserResponse(user)})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	svc := s.directoryFor(r.Context(), s.db)

	all, err := svc.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]userResponse, 0, len(all))
	for _, u := range all {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	svc := s.directoryFor(r.Context(), s.db)
	user, err := svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	svc := s.directoryFor(r.Context(), s.db)

	user, err := svc.Current()
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// handleCreateUser creates the account, notifies the new user, and
// finalizes creation (auth token issue) inside a single transaction, so a
// failure anywhere leaves no trace in the identity store.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	var created *models.User
	err := dbx.WithTx(r.Context(), s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		svc := s.directoryFor(r.Context(), tx)

		groups, err := s.resolveGroups(ctx, tx, req.Groups)
		if err != nil {
			return err
		}

		created, err = svc.Create(ctx, directory.CreateParams{
			Email:    req.Email,
			Password: req.Password,
			Name:     req.Name,
			Timezone: req.Timezone,
			Groups:   groups,
			Persist:  true,
			Notify:   req.Notify,
		})
		if err != nil {
			return err
		}

		return svc.FinalizeCreation(ctx, created)
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(created))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	var updated *models.User
	err = dbx.WithTx(r.Context(), s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		svc := s.directoryFor(r.Context(), tx)

		user, err := svc.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if err := svc.Update(ctx, user, directory.UpdateParams{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Timezone: req.Timezone,
			Persist:  true,
		}); err != nil {
			return err
		}

		updated = user
		return nil
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// resolveGroups maps group names to seeded group records.
func (s *Server) resolveGroups(ctx context.Context, tx dbx.DBTX, names []string) ([]*models.Group, error) {
	if len(names) == 0 {
		return nil, nil
	}

	repo := s.repos.Groups(tx)
	out := make([]*models.Group, 0, len(names))
	for _, name := range names {
		g, err := repo.GetByName(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
