package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"DemoCrate/config"
	"DemoCrate/core/board"
	"DemoCrate/core/pipeline"
	"DemoCrate/logger"
	"DemoCrate/repository"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	demoRepo  repository.DemoRepository
	staffRepo repository.StaffRepository
	orgRepo   repository.OrganizationRepository

	machine      *pipeline.Machine
	ledger       *pipeline.Ledger
	orchestrator *pipeline.Orchestrator

	hub *board.Hub
	cfg *config.Config
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	demoRepo repository.DemoRepository,
	staffRepo repository.StaffRepository,
	orgRepo repository.OrganizationRepository,
	machine *pipeline.Machine,
	ledger *pipeline.Ledger,
	orchestrator *pipeline.Orchestrator,
	hub *board.Hub,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		demoRepo:     demoRepo,
		staffRepo:    staffRepo,
		orgRepo:      orgRepo,
		machine:      machine,
		ledger:       ledger,
		orchestrator: orchestrator,
		hub:          hub,
		cfg:          cfg,
	}
}

// writeJSON 输出JSON响应
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

// actorFromRequest 从请求上下文组装引擎 Actor。
// 角色来自JWT，细粒度覆盖每次从数据库取最新值。
func (h *APIHandler) actorFromRequest(r *http.Request) (pipeline.Actor, error) {
	staffID, err := GetStaffIDFromContext(r.Context())
	if err != nil {
		return pipeline.Actor{}, err
	}

	staff, err := h.staffRepo.GetStaffByID(staffID)
	if err != nil {
		return pipeline.Actor{}, err
	}
	if staff == nil {
		return pipeline.Actor{}, fmt.Errorf("staff %d not found", staffID)
	}

	return pipeline.Actor{
		StaffID:   staff.ID,
		Name:      staff.Username,
		Role:      staff.Role,
		Overrides: staff.Overrides,
	}, nil
}

// GetStaffIDFromContext extracts the staff ID from the request context
func GetStaffIDFromContext(ctx context.Context) (int64, error) {
	staffID, ok := ctx.Value("staffID").(int64)
	if !ok {
		return 0, fmt.Errorf("staff ID not found in context")
	}
	return staffID, nil
}

// GetOrgIDFromContext extracts the organization ID from the request context
func GetOrgIDFromContext(ctx context.Context) (int64, error) {
	orgID, ok := ctx.Value("orgID").(int64)
	if !ok {
		return 0, fmt.Errorf("org ID not found in context")
	}
	return orgID, nil
}

// GetUsernameFromContext extracts the username from the request context
func GetUsernameFromContext(ctx context.Context) (string, error) {
	username, ok := ctx.Value("username").(string)
	if !ok {
		return "", fmt.Errorf("username not found in context")
	}
	return username, nil
}
