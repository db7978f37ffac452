package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"DemoCrate/logger"
	"DemoCrate/model"

	"github.com/gorilla/mux"
)

// requireOrgAdmin 校验当前员工是厂牌owner或系统管理员
func (h *APIHandler) requireOrgAdmin(w http.ResponseWriter, r *http.Request) bool {
	role, ok := r.Context().Value("role").(string)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	if role != model.RoleOwner && role != model.RoleSystemAdmin {
		http.Error(w, "Only the label owner can manage staff and settings", http.StatusForbidden)
		return false
	}
	return true
}

// UpdateStaffOverridesRequest 员工权限覆盖请求体
type UpdateStaffOverridesRequest struct {
	Overrides model.PermissionSet `json:"overrides"`
}

// UpdateStaffOverridesHandler 设置员工级权限覆盖（仅owner/sysadmin）
func (h *APIHandler) UpdateStaffOverridesHandler(w http.ResponseWriter, r *http.Request) {
	if !h.requireOrgAdmin(w, r) {
		return
	}
	staff, ok := h.loadOrgStaff(w, r)
	if !ok {
		return
	}

	var req UpdateStaffOverridesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.staffRepo.UpdateOverrides(staff.ID, req.Overrides); err != nil {
		logger.Error("failed to update staff overrides", logger.ErrorField(err), logger.Int64("staff", staff.ID))
		http.Error(w, "Failed to update overrides", http.StatusInternalServerError)
		return
	}
	staff.Overrides = req.Overrides

	logger.Info("staff overrides updated",
		logger.Int64("staff", staff.ID),
		logger.Any("overrides", req.Overrides))

	writeJSON(w, http.StatusOK, staff)
}

// UpdateStaffRoleRequest 员工角色请求体
type UpdateStaffRoleRequest struct {
	Role string `json:"role"`
}

// UpdateStaffRoleHandler 变更员工角色（仅owner/sysadmin）
func (h *APIHandler) UpdateStaffRoleHandler(w http.ResponseWriter, r *http.Request) {
	if !h.requireOrgAdmin(w, r) {
		return
	}
	staff, ok := h.loadOrgStaff(w, r)
	if !ok {
		return
	}

	var req UpdateStaffRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.staffRepo.UpdateRole(staff.ID, req.Role); err != nil {
		http.Error(w, "Failed to update role", http.StatusBadRequest)
		return
	}
	staff.Role = req.Role

	writeJSON(w, http.StatusOK, staff)
}

// OrgSettingsRequest 厂牌设置请求体
type OrgSettingsRequest struct {
	RequireRejectionReason bool `json:"requireRejectionReason"`
}

// GetOrgSettingsHandler 查询厂牌设置
func (h *APIHandler) GetOrgSettingsHandler(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	org, err := h.orgRepo.GetByID(r.Context(), orgID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if org == nil {
		http.Error(w, "Organization not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// UpdateOrgSettingsHandler 修改厂牌设置（仅owner/sysadmin）。
// require_rejection_reason 决定晚期阶段淘汰是否必须留原因。
func (h *APIHandler) UpdateOrgSettingsHandler(w http.ResponseWriter, r *http.Request) {
	if !h.requireOrgAdmin(w, r) {
		return
	}
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req OrgSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.orgRepo.UpdateSettings(r.Context(), orgID, req.RequireRejectionReason); err != nil {
		logger.Error("failed to update org settings", logger.ErrorField(err), logger.Int64("org", orgID))
		http.Error(w, "Failed to update settings", http.StatusInternalServerError)
		return
	}

	org, err := h.orgRepo.GetByID(r.Context(), orgID)
	if err != nil || org == nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// GetTrackByPublicIDHandler 按对外UUID查曲目（分享链接使用）
func (h *APIHandler) GetTrackByPublicIDHandler(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	publicID := mux.Vars(r)["publicId"]
	track, err := h.demoRepo.GetByPublicID(r.Context(), publicID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if track == nil || track.OrgID != orgID {
		http.Error(w, "Track not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// loadOrgStaff 读取路径中的员工并校验同厂牌
func (h *APIHandler) loadOrgStaff(w http.ResponseWriter, r *http.Request) (*model.Staff, bool) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid staff ID", http.StatusBadRequest)
		return nil, false
	}

	staff, err := h.staffRepo.GetStaffByID(id)
	if err != nil {
		logger.Error("failed to load staff", logger.ErrorField(err), logger.Int64("staff", id))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	if staff == nil || staff.OrgID != orgID {
		http.Error(w, "Staff not found", http.StatusNotFound)
		return nil, false
	}
	return staff, true
}
