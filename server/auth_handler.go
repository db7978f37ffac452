package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"DemoCrate/core/auth"
	"DemoCrate/logger"
	"DemoCrate/model"
	"DemoCrate/repository"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"` // 可以是用户名或邮箱
	Password string `json:"password"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	OrgID    int64  `json:"orgId,omitempty"` // 省略时创建个人工作区
	OrgName  string `json:"orgName,omitempty"`
}

// LoginHandler handles staff login requests
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("[Login] 解析请求体失败", logger.ErrorField(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username/Email and password are required", http.StatusBadRequest)
		return
	}

	// 查询员工 - 支持用户名或邮箱登录
	var staff *model.Staff
	var err error
	if strings.Contains(req.Username, "@") {
		staff, err = h.staffRepo.GetStaffByEmail(req.Username)
	} else {
		staff, err = h.staffRepo.GetStaffByUsername(req.Username)
	}

	if err != nil {
		logger.Error("[Login] 查询员工失败", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if staff == nil {
		logger.Warn("[Login] 员工不存在", logger.String("username", req.Username))
		http.Error(w, "Invalid username/email or password", http.StatusUnauthorized)
		return
	}

	// 验证密码
	if !auth.VerifyPassword(req.Password, staff.PasswordHash) {
		logger.Warn("[Login] 密码验证失败", logger.String("username", req.Username))
		http.Error(w, "Invalid username/email or password", http.StatusUnauthorized)
		return
	}

	// 生成JWT token
	token, err := auth.GenerateToken(staff.ID, staff.Username, staff.Role, staff.OrgID)
	if err != nil {
		logger.Error("[Login] 生成Token失败", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	logger.Info("[Login] 登录成功", logger.String("username", staff.Username))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"staff": staff,
	})
}

// RegisterHandler handles staff registration requests
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" || req.Email == "" {
		http.Error(w, "Username, password and email are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	// 没有指定厂牌时创建个人工作区，注册者是自己工作区的owner
	orgID := req.OrgID
	role := model.RoleScout
	if orgID == 0 {
		orgName := req.OrgName
		if orgName == "" {
			orgName = req.Username + "'s workspace"
		}
		org := &model.Organization{
			Name:              orgName,
			PersonalWorkspace: true,
		}
		if err := h.orgRepo.Create(r.Context(), org); err != nil {
			logger.Error("[Register] 创建个人工作区失败", logger.ErrorField(err))
			http.Error(w, "Failed to create workspace", http.StatusInternalServerError)
			return
		}
		orgID = org.ID
		role = model.RoleOwner
	}

	staff := &model.Staff{
		OrgID:        orgID,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Role:         role,
	}

	staffID, err := h.staffRepo.CreateStaff(staff)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateStaff) {
			logger.Warn("[Register] 用户名或邮箱已存在",
				logger.String("username", req.Username),
				logger.String("email", req.Email))
			http.Error(w, "Username or email already exists", http.StatusConflict)
			return
		}
		logger.Error("[Register] 创建员工失败", logger.ErrorField(err))
		http.Error(w, "Failed to create staff account", http.StatusInternalServerError)
		return
	}
	staff.ID = staffID

	token, err := auth.GenerateToken(staffID, staff.Username, staff.Role, staff.OrgID)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"staff": map[string]interface{}{
			"id":       staffID,
			"username": staff.Username,
			"email":    staff.Email,
			"role":     staff.Role,
			"orgId":    staff.OrgID,
		},
	})
}

// AuthMiddleware is a middleware function that checks for a valid JWT token
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ParseToken(parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		// Add staff info to the request context
		ctx := context.WithValue(r.Context(), "staffID", claims.StaffID)
		ctx = context.WithValue(ctx, "username", claims.Username)
		ctx = context.WithValue(ctx, "role", claims.Role)
		ctx = context.WithValue(ctx, "orgID", claims.OrgID)

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}
