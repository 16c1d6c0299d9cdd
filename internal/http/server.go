package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classhub/server/internal/auth"
	"classhub/server/internal/config"
	"classhub/server/internal/crypto"
	"classhub/server/internal/jobs"
	"classhub/server/internal/model"
	"classhub/server/internal/payment"
	"classhub/server/internal/repository"
)

type Server struct {
	cfg         config.Config
	store       *repository.Store
	gateway     payment.Gateway
	feeGen      *jobs.FeeGenerator
	reaper      *jobs.Reaper
	feeLease    *jobs.Lease
	reaperLease *jobs.Lease
	adminEmails map[string]bool
}

func NewServer(cfg config.Config, store *repository.Store, gateway payment.Gateway, feeGen *jobs.FeeGenerator, reaper *jobs.Reaper, feeLease, reaperLease *jobs.Lease) *Server {
	admins := make(map[string]bool, len(cfg.AdminEmails))
	for _, email := range cfg.AdminEmails {
		admins[strings.ToLower(email)] = true
	}
	return &Server{
		cfg:         cfg,
		store:       store,
		gateway:     gateway,
		feeGen:      feeGen,
		reaper:      reaper,
		feeLease:    feeLease,
		reaperLease: reaperLease,
		adminEmails: admins,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/auth/register", s.handleRegister)
	r.Post("/api/auth/login", s.handleLogin)
	r.With(s.authMiddleware).Get("/api/auth/me", s.handleGetMe)
	r.With(s.authMiddleware).Post("/api/auth/change-password", s.handleChangePassword)
	r.With(s.authMiddleware, s.requireAdmin).Get("/api/auth/check-admin", s.handleCheckAdmin)

	r.With(s.authMiddleware).Get("/api/events", s.handleListEvents)
	r.With(s.authMiddleware, s.requireAdmin).Post("/api/events", s.handleCreateEvent)
	r.With(s.authMiddleware, s.requireAdmin).Delete("/api/events/{eventId}", s.handleDeleteEvent)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(s.authMiddleware, s.requireAdmin)
		r.Get("/users", s.handleListUsers)
		r.Post("/users/{userId}/verify", s.handleVerifyUser)
		r.Delete("/users/{userId}", s.handleDeleteUser)
		r.Get("/students/{userId}", s.handleGetStudentInfo)
		r.Get("/students/uid/{uid}", s.handleGetStudentByUID)
		r.Get("/teachers", s.handleListTeachers)
		r.Post("/batches", s.handleAdminCreateBatch)
		r.Get("/batches", s.handleAdminListBatches)
		r.Post("/fees/{feeId}/verify", s.handleVerifyOfflinePayment)
	})

	r.Route("/api/batches", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.With(s.requireTeacher).Get("/teaching", s.handleTeacherBatches)
		r.With(s.requireTeacher).Get("/{batchId}/students", s.handleBatchStudents)
		r.With(s.requireTeacher).Get("/{batchId}/eligible-students", s.handleEligibleStudents)
		r.With(s.requireTeacher).Post("/{batchId}/students", s.handleAddStudents)
		r.With(s.requireTeacher).Delete("/{batchId}/students/{studentId}", s.handleRemoveStudent)
		r.With(s.requireTeacher).Post("/{batchId}/rotate-code", s.handleRotateCode)
		r.With(s.requireTeacher).Delete("/{batchId}", s.handleDeleteBatch)

		r.With(s.requireStudent).Get("/joined", s.handleJoinedBatches)
		r.With(s.requireStudent).Get("/open", s.handleOpenBatches)
		r.With(s.requireStudent).Post("/join", s.handleJoinBatch)
		r.With(s.requireStudent).Post("/{batchId}/leave", s.handleLeaveBatch)
		r.With(s.requireStudent).Get("/{batchId}/assignments", s.handleBatchAssignments)
	})

	r.With(s.authMiddleware, s.requireTeacher).Post("/api/assignments", s.handleCreateAssignment)
	r.With(s.authMiddleware, s.requireTeacher).Delete("/api/assignments/{assignmentId}", s.handleDeleteAssignment)
	r.With(s.authMiddleware, s.requireStudent).Get("/api/assignments/today", s.handleTodayAssignments)

	r.With(s.authMiddleware, s.requireStudent).Get("/api/fees", s.handleMyFees)
	r.With(s.authMiddleware, s.requireStudent).Post("/api/fees/{feeId}/order", s.handleCreateFeeOrder)
	r.With(s.authMiddleware, s.requireStudent).Post("/api/fees/{feeId}/pay", s.handlePayFee)

	r.With(s.authMiddleware, s.requireAdmin).Post("/api/jobs/run", s.handleRunJobs)

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func (s *Server) requireStudent(next http.Handler) http.Handler {
	return s.requireRole(next, model.RoleStudent)
}

func (s *Server) requireTeacher(next http.Handler) http.Handler {
	return s.requireRole(next, model.RoleTeacher)
}

func (s *Server) requireRole(next http.Handler, role string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || claims.Role != role {
			writeError(w, http.StatusForbidden, role+"_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || !s.isAdmin(claims.Email) {
			writeError(w, http.StatusForbidden, "admin_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) isAdmin(email string) bool {
	return s.adminEmails[strings.ToLower(email)]
}

// Accounts

type transportRequest struct {
	Enabled     bool   `json:"enabled"`
	PickupPoint string `json:"pickupPoint"`
}

type registerRequest struct {
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Password  string            `json:"password"`
	Role      string            `json:"role"`
	Standard  string            `json:"standard"`
	Transport *transportRequest `json:"transport,omitempty"`
}

type userSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role"`
	Standard   string `json:"standard,omitempty"`
	UID        string `json:"uid"`
	IsVerified bool   `json:"isVerified"`
	CreatedAt  int64  `json:"createdAt,omitempty"`
}

func userToSummary(user model.User) userSummary {
	summary := userSummary{
		ID:         user.ID,
		Name:       user.Name,
		Email:      user.Email,
		Role:       user.Role,
		Standard:   user.Standard,
		UID:        user.UID,
		IsVerified: user.IsVerified,
	}
	if !user.CreatedAt.IsZero() {
		summary.CreatedAt = user.CreatedAt.Unix()
	}
	return summary
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if req.Role != model.RoleStudent && req.Role != model.RoleTeacher {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}
	if req.Role == model.RoleStudent && strings.TrimSpace(req.Standard) == "" {
		writeError(w, http.StatusBadRequest, "standard_required")
		return
	}

	passwordHash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	uid, err := crypto.NewUID(req.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	user := model.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         req.Role,
		Standard:     strings.TrimSpace(req.Standard),
		UID:          uid,
		// Accounts on the admin list skip manual verification.
		IsVerified: s.isAdmin(req.Email),
	}
	if req.Transport != nil {
		user.TransportEnabled = req.Transport.Enabled
		user.PickupPoint = strings.TrimSpace(req.Transport.PickupPoint)
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if repository.IsUniqueViolation(err) {
			writeError(w, http.StatusConflict, "email_in_use")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	status := "pending_verification"
	if user.IsVerified {
		status = "registered"
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": status, "uid": uid})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string      `json:"accessToken"`
	User        userSummary `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if !user.IsVerified {
		writeError(w, http.StatusForbidden, "account_not_verified")
		return
	}

	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		User:        userToSummary(user),
	})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": userToSummary(user)})
}

func (s *Server) handleCheckAdmin(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"isAdmin": true})
}

type changePasswordRequest struct {
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Password == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "user_not_found")
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	passwordHash, err := crypto.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := s.store.UpdatePassword(r.Context(), claims.UserID, passwordHash); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Events

type eventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	ImageURL    string `json:"imageUrl"`
	Public      bool   `json:"public"`
}

type eventResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Public      bool   `json:"public"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, eventResponse{
			ID:          event.ID,
			Title:       event.Title,
			Description: event.Description,
			Date:        event.Date,
			ImageURL:    event.ImageURL,
			Public:      event.Public,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": out})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Description) == "" || strings.TrimSpace(req.Date) == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	event := model.Event{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		ImageURL:    req.ImageURL,
		Public:      req.Public,
	}
	if err := s.store.CreateEvent(r.Context(), event); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": event.ID})
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.store.DeleteEvent(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "event_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Admin

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	counts, err := s.store.CountUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]userSummary, 0, len(users))
	for _, user := range users {
		out = append(out, userToSummary(user))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": out,
		"counts": map[string]int64{
			"total":    counts.Total,
			"teachers": counts.Teachers,
			"students": counts.Students,
			"verified": counts.Verified,
		},
	})
}

func (s *Server) handleVerifyUser(w http.ResponseWriter, r *http.Request) {
	verified, err := s.store.VerifyUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !verified {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.store.DeleteUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type feeResponse struct {
	ID        string  `json:"id"`
	Amount    int64   `json:"amount"`
	Period    string  `json:"period"`
	Paid      bool    `json:"paid"`
	Mode      *string `json:"mode,omitempty"`
	OrderID   *string `json:"orderId,omitempty"`
	PaymentID *string `json:"paymentId,omitempty"`
	PaidAt    *int64  `json:"paidAt,omitempty"`
	CreatedAt int64   `json:"createdAt"`
}

func feeToResponse(entry model.FeeEntry) feeResponse {
	resp := feeResponse{
		ID:        entry.ID,
		Amount:    entry.Amount,
		Period:    entry.Period,
		Paid:      entry.Paid,
		Mode:      entry.Mode,
		OrderID:   entry.OrderID,
		PaymentID: entry.PaymentID,
		CreatedAt: entry.CreatedAt.Unix(),
	}
	if entry.PaidAt != nil {
		paidAt := entry.PaidAt.Unix()
		resp.PaidAt = &paidAt
	}
	return resp
}

func (s *Server) writeStudentInfo(w http.ResponseWriter, r *http.Request, user model.User) {
	fees, err := s.store.ListFeesForStudent(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	feeOut := make([]feeResponse, 0, len(fees))
	for _, fee := range fees {
		feeOut = append(feeOut, feeToResponse(fee))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": userToSummary(user),
		"fees": feeOut,
	})
}

func (s *Server) handleGetStudentInfo(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUserByID(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	s.writeStudentInfo(w, r, user)
}

func (s *Server) handleGetStudentByUID(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if !strings.HasPrefix(uid, "STUD-") {
		uid = "STUD-" + uid
	}
	user, err := s.store.GetStudentByUID(r.Context(), uid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	s.writeStudentInfo(w, r, user)
}

func (s *Server) handleListTeachers(w http.ResponseWriter, r *http.Request) {
	teachers, err := s.store.ListVerifiedTeachers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]userSummary, 0, len(teachers))
	for _, teacher := range teachers {
		out = append(out, userSummary{ID: teacher.ID, Name: teacher.Name, Email: teacher.Email, UID: teacher.UID, Role: model.RoleTeacher, IsVerified: true})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"teachers": out})
}

type createBatchRequest struct {
	Name      string `json:"name"`
	TeacherID string `json:"teacherId"`
	Standard  string `json:"standard"`
}

type batchResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Standard     string `json:"standard"`
	JoiningCode  string `json:"joiningCode,omitempty"`
	TeacherName  string `json:"teacherName,omitempty"`
	StudentCount int    `json:"studentCount"`
}

func batchToResponse(batch model.BatchSummary) batchResponse {
	return batchResponse{
		ID:           batch.ID,
		Name:         batch.Name,
		Standard:     batch.Standard,
		JoiningCode:  batch.JoiningCode,
		TeacherName:  batch.TeacherName,
		StudentCount: batch.StudentCount,
	}
}

func (s *Server) handleAdminCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.TeacherID == "" || strings.TrimSpace(req.Standard) == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	teacher, err := s.store.GetUserByID(r.Context(), req.TeacherID)
	if err != nil || teacher.Role != model.RoleTeacher {
		writeError(w, http.StatusBadRequest, "teacher_not_found")
		return
	}
	taken, err := s.store.TeacherHasBatchNamed(r.Context(), req.TeacherID, req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if taken {
		writeError(w, http.StatusConflict, "batch_name_in_use")
		return
	}

	code, err := crypto.NewJoiningCode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	batch := model.Batch{
		ID:          uuid.NewString(),
		Name:        req.Name,
		TeacherID:   req.TeacherID,
		JoiningCode: code,
		Standard:    strings.TrimSpace(req.Standard),
	}
	if err := s.store.CreateBatch(r.Context(), batch); err != nil {
		if repository.IsUniqueViolation(err) {
			writeError(w, http.StatusConflict, "batch_name_in_use")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": batch.ID, "joiningCode": code})
}

func (s *Server) handleAdminListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.store.ListBatches(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	count, err := s.store.CountBatches(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]batchResponse, 0, len(batches))
	for _, batch := range batches {
		out = append(out, batchToResponse(batch))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"batches": out, "count": count})
}

func (s *Server) handleVerifyOfflinePayment(w http.ResponseWriter, r *http.Request) {
	paid, err := s.store.MarkFeePaidOffline(r.Context(), chi.URLParam(r, "feeId"), time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !paid {
		writeError(w, http.StatusNotFound, "fee_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Teacher batches

// ownedBatch loads the batch and checks the caller teaches it.
func (s *Server) ownedBatch(w http.ResponseWriter, r *http.Request) (model.Batch, bool) {
	claims := claimsFromContext(r.Context())
	batch, err := s.store.GetBatchByID(r.Context(), chi.URLParam(r, "batchId"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "batch_not_found")
		} else {
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return model.Batch{}, false
	}
	if batch.TeacherID != claims.UserID {
		writeError(w, http.StatusForbidden, "not_batch_teacher")
		return model.Batch{}, false
	}
	return batch, true
}

func (s *Server) handleTeacherBatches(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	batches, err := s.store.ListBatchesForTeacher(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]batchResponse, 0, len(batches))
	for _, batch := range batches {
		out = append(out, batchToResponse(batch))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"batches": out})
}

func (s *Server) handleBatchStudents(w http.ResponseWriter, r *http.Request) {
	batch, ok := s.ownedBatch(w, r)
	if !ok {
		return
	}
	students, err := s.store.ListBatchStudents(r.Context(), batch.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]userSummary, 0, len(students))
	for _, student := range students {
		out = append(out, userSummary{ID: student.ID, Name: student.Name, Email: student.Email, Standard: student.Standard, UID: student.UID, Role: model.RoleStudent, IsVerified: true})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"students": out})
}

func (s *Server) handleEligibleStudents(w http.ResponseWriter, r *http.Request) {
	batch, ok := s.ownedBatch(w, r)
	if !ok {
		return
	}
	students, err := s.store.ListEligibleStudents(r.Context(), batch.ID, batch.Standard)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]userSummary, 0, len(students))
	for _, student := range students {
		out = append(out, userSummary{ID: student.ID, Name: student.Name, UID: student.UID, Standard: student.Standard, Role: model.RoleStudent, IsVerified: true})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"students": out})
}

type addStudentsRequest struct {
	StudentIDs []string `json:"studentIds"`
}

func (s *Server) handleAddStudents(w http.ResponseWriter, r *http.Request) {
	batch, ok := s.ownedBatch(w, r)
	if !ok {
		return
	}
	var req addStudentsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if len(req.StudentIDs) == 0 {
		writeError(w, http.StatusBadRequest, "missing_student_ids")
		return
	}

	// Ineligible ids are skipped rather than failing the whole request so a
	// partially stale selection in the admin UI still adds everyone it can.
	added := 0
	for _, studentID := range req.StudentIDs {
		if _, err := uuid.Parse(studentID); err != nil {
			continue
		}
		student, err := s.store.GetUserByID(r.Context(), studentID)
		if err != nil {
			continue
		}
		if student.Role != model.RoleStudent || !student.IsVerified || student.Standard != batch.Standard {
			continue
		}
		inserted, err := s.store.AddBatchStudent(r.Context(), batch.ID, studentID)
		if err != nil {
			log.Printf("add student %s to batch %s: %v", studentID, batch.ID, err)
			continue
		}
		if inserted {
			added++
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

func (s *Server) handleRemoveStudent(w http.ResponseWriter, r *http.Request) {
	batch, ok := s.ownedBatch(w, r)
	if !ok {
		return
	}
	removed, err := s.store.RemoveBatchStudent(r.Context(), batch.ID, chi.URLParam(r, "studentId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "student_not_in_batch")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRotateCode(w http.ResponseWriter, r *http.Request) {
	batch, ok := s.ownedBatch(w, r)
	if !ok {
		return
	}
	code, err := crypto.NewJoiningCode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := s.store.UpdateJoiningCode(r.Context(), batch.ID, code); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"joiningCode": code})
}

func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	batch, ok := s.ownedBatch(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteBatch(r.Context(), batch.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Student batches

func (s *Server) handleJoinedBatches(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	batches, err := s.store.ListBatchesForStudent(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]batchResponse, 0, len(batches))
	for _, batch := range batches {
		out = append(out, batchToResponse(batch))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"batches": out})
}

func (s *Server) handleOpenBatches(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	student, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "user_not_found")
		return
	}
	batches, err := s.store.ListOpenBatches(r.Context(), student.Standard, student.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]batchResponse, 0, len(batches))
	for _, batch := range batches {
		out = append(out, batchToResponse(batch))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"batches": out})
}

type joinBatchRequest struct {
	BatchID     string `json:"batchId"`
	JoiningCode string `json:"joiningCode"`
}

func (s *Server) handleJoinBatch(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req joinBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.BatchID == "" || req.JoiningCode == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	batch, err := s.store.GetBatchByID(r.Context(), req.BatchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "batch_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if batch.JoiningCode != req.JoiningCode {
		writeError(w, http.StatusBadRequest, "invalid_joining_code")
		return
	}

	inserted, err := s.store.AddBatchStudent(r.Context(), batch.ID, claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !inserted {
		writeError(w, http.StatusConflict, "already_member")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLeaveBatch(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	removed, err := s.store.RemoveBatchStudent(r.Context(), chi.URLParam(r, "batchId"), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !removed {
		writeError(w, http.StatusForbidden, "not_batch_member")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Assignments

type createAssignmentRequest struct {
	BatchIDs []string `json:"batchIds"`
	FileURLs []string `json:"fileUrls"`
}

type assignmentResponse struct {
	ID        string   `json:"id"`
	FileURLs  []string `json:"fileUrls"`
	BatchName string   `json:"batchName,omitempty"`
	CreatedAt int64    `json:"createdAt"`
}

func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req createAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if len(req.BatchIDs) == 0 {
		writeError(w, http.StatusBadRequest, "missing_batch_ids")
		return
	}
	if len(req.FileURLs) == 0 {
		writeError(w, http.StatusBadRequest, "missing_file_urls")
		return
	}

	for _, batchID := range req.BatchIDs {
		if _, err := uuid.Parse(batchID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_batch_id")
			return
		}
		batch, err := s.store.GetBatchByID(r.Context(), batchID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeError(w, http.StatusNotFound, "batch_not_found")
				return
			}
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		if batch.TeacherID != claims.UserID {
			writeError(w, http.StatusForbidden, "not_batch_teacher")
			return
		}
	}

	assignment := model.Assignment{
		ID:       uuid.NewString(),
		BatchIDs: req.BatchIDs,
		FileURLs: req.FileURLs,
	}
	if err := s.store.CreateAssignment(r.Context(), assignment); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": assignment.ID})
}

func (s *Server) handleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	assignmentID := chi.URLParam(r, "assignmentId")

	taughtBy, err := s.store.AssignmentTaughtBy(r.Context(), assignmentID, claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !taughtBy {
		writeError(w, http.StatusForbidden, "not_assignment_teacher")
		return
	}
	deleted, err := s.store.DeleteAssignment(r.Context(), assignmentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "assignment_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBatchAssignments(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	batchID := chi.URLParam(r, "batchId")

	member, err := s.store.IsBatchMember(r.Context(), batchID, claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !member {
		writeError(w, http.StatusForbidden, "not_batch_member")
		return
	}
	assignments, err := s.store.ListAssignmentsForBatch(r.Context(), batchID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]assignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		out = append(out, assignmentResponse{ID: assignment.ID, FileURLs: assignment.FileURLs, CreatedAt: assignment.CreatedAt.Unix()})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assignments": out})
}

func (s *Server) handleTodayAssignments(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	assignments, err := s.store.ListAssignmentsForStudentBetween(r.Context(), claims.UserID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]assignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		out = append(out, assignmentResponse{ID: assignment.ID, FileURLs: assignment.FileURLs, BatchName: assignment.BatchName, CreatedAt: assignment.CreatedAt.Unix()})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assignments": out})
}

// Fees

func (s *Server) handleMyFees(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	fees, err := s.store.ListFeesForStudent(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]feeResponse, 0, len(fees))
	for _, fee := range fees {
		out = append(out, feeToResponse(fee))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"fees": out})
}

// ownFee loads the fee entry and checks it belongs to the caller.
func (s *Server) ownFee(w http.ResponseWriter, r *http.Request) (model.FeeEntry, bool) {
	claims := claimsFromContext(r.Context())
	fee, err := s.store.GetFeeByID(r.Context(), chi.URLParam(r, "feeId"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "fee_not_found")
		} else {
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return model.FeeEntry{}, false
	}
	if fee.StudentID != claims.UserID {
		writeError(w, http.StatusForbidden, "not_fee_owner")
		return model.FeeEntry{}, false
	}
	return fee, true
}

func (s *Server) handleCreateFeeOrder(w http.ResponseWriter, r *http.Request) {
	fee, ok := s.ownFee(w, r)
	if !ok {
		return
	}
	if fee.Paid {
		writeError(w, http.StatusConflict, "already_paid")
		return
	}
	if s.gateway == nil {
		writeError(w, http.StatusServiceUnavailable, "payments_unavailable")
		return
	}

	// Provider amounts are in minor units.
	order, err := s.gateway.CreateOrder(r.Context(), fee.Amount*100, "INR", fee.ID)
	if err != nil {
		log.Printf("create order for fee %s: %v", fee.ID, err)
		writeError(w, http.StatusBadGateway, "order_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"order": order})
}

type payFeeRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

func (s *Server) handlePayFee(w http.ResponseWriter, r *http.Request) {
	fee, ok := s.ownFee(w, r)
	if !ok {
		return
	}
	var req payFeeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if !payment.VerifySignature(s.cfg.PaymentKeySecret, req.OrderID, req.PaymentID, req.Signature) {
		writeError(w, http.StatusBadRequest, "invalid_signature")
		return
	}

	paid, err := s.store.MarkFeePaidOnline(r.Context(), fee.ID, req.OrderID, req.PaymentID, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !paid {
		writeError(w, http.StatusNotFound, "fee_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Jobs

// handleRunJobs is the manual trigger for deployments without a resident
// scheduler: it runs both periodic jobs once, inline.
func (s *Server) handleRunJobs(w http.ResponseWriter, r *http.Request) {
	if err := jobs.RunWithLease(r.Context(), "fee generation", s.feeGen, s.feeLease); err != nil {
		writeError(w, http.StatusInternalServerError, "fee_generation_failed")
		return
	}
	if err := jobs.RunWithLease(r.Context(), "reaper", s.reaper, s.reaperLease); err != nil {
		writeError(w, http.StatusInternalServerError, "reaper_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helpers

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
