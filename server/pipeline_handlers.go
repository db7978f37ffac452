package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"DemoCrate/cache"
	"DemoCrate/core/board"
	"DemoCrate/core/pipeline"
	"DemoCrate/logger"
)

// resultStatus 引擎判定结果到HTTP状态码的映射。
// 提交成功200；权限拒绝403；乐观锁冲突409；其余门禁/状态拒绝422。
func resultStatus(res pipeline.Result) int {
	if res.OK {
		return http.StatusOK
	}
	if res.Code == pipeline.CodeForbidden {
		return http.StatusForbidden
	}
	return http.StatusUnprocessableEntity
}

// writeEngineResult 输出引擎判定结果，提交成功时广播看板事件并失效快照
func (h *APIHandler) writeEngineResult(w http.ResponseWriter, r *http.Request, res pipeline.Result, evtType board.EventType, actor pipeline.Actor) {
	if res.OK && res.Track != nil {
		h.invalidateBoard(r.Context(), res.Track.OrgID)
		h.hub.Publish(&board.Event{
			Type:      evtType,
			OrgID:     res.Track.OrgID,
			StaffID:   actor.StaffID,
			StaffName: actor.Name,
			Track:     res.Track,
		})
	}
	writeJSON(w, resultStatus(res), res)
}

// handleEngineError 引擎系统性错误到HTTP的映射
func handleEngineError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, pipeline.ErrTrackNotFound):
		http.Error(w, "Track not found", http.StatusNotFound)
	case errors.Is(err, pipeline.ErrVersionConflict):
		// 并发修改，前端拿最新看板重试
		http.Error(w, "The track was modified by someone else, refresh and retry", http.StatusConflict)
	default:
		logger.Error("pipeline operation failed", logger.String("op", op), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// AdvanceTrackHandler 推进曲目到下一阶段
func (h *APIHandler) AdvanceTrackHandler(w http.ResponseWriter, r *http.Request) {
	track, ok := h.loadOrgTrack(w, r)
	if !ok {
		return
	}
	actor, err := h.actorFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	res, err := h.orchestrator.Advance(r.Context(), actor, track.ID)
	if err != nil {
		handleEngineError(w, err, "advance")
		return
	}
	h.writeEngineResult(w, r, res, board.EvtTrackMoved, actor)
}

// MoveTrackRequest 手工移动请求体
type MoveTrackRequest struct {
	Direction string `json:"direction"` // "left" | "right"
}

// MoveTrackHandler 相邻阶段手工移动
func (h *APIHandler) MoveTrackHandler(w http.ResponseWriter, r *http.Request) {
	track, ok := h.loadOrgTrack(w, r)
	if !ok {
		return
	}
	actor, err := h.actorFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req MoveTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	dir := pipeline.Direction(req.Direction)
	if dir != pipeline.DirectionLeft && dir != pipeline.DirectionRight {
		http.Error(w, "direction must be left or right", http.StatusBadRequest)
		return
	}

	res, err := h.machine.Move(r.Context(), actor, track.ID, dir)
	if err != nil {
		handleEngineError(w, err, "move")
		return
	}
	h.writeEngineResult(w, r, res, board.EvtTrackMoved, actor)
}

// RejectTrackRequest 淘汰请求体
type RejectTrackRequest struct {
	Reason string `json:"reason"`
}

// RejectTrackHandler 淘汰归档曲目
func (h *APIHandler) RejectTrackHandler(w http.ResponseWriter, r *http.Request) {
	track, ok := h.loadOrgTrack(w, r)
	if !ok {
		return
	}
	actor, err := h.actorFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req RejectTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.machine.Reject(r.Context(), actor, track.ID, req.Reason)
	if err != nil {
		handleEngineError(w, err, "reject")
		return
	}
	h.writeEngineResult(w, r, res, board.EvtTrackRejected, actor)
}

// ToggleContractRequest 合同状态请求体
type ToggleContractRequest struct {
	Signed    bool `json:"signed"`
	Confirmed bool `json:"confirmed"`
}

// ToggleContractHandler 勾选/取消合同签署状态
func (h *APIHandler) ToggleContractHandler(w http.ResponseWriter, r *http.Request) {
	track, ok := h.loadOrgTrack(w, r)
	if !ok {
		return
	}
	actor, err := h.actorFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req ToggleContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.machine.ToggleContractSigned(r.Context(), actor, track.ID, req.Signed, req.Confirmed)
	if err != nil {
		handleEngineError(w, err, "toggle-contract")
		return
	}
	h.writeEngineResult(w, r, res, board.EvtContractToggled, actor)
}

// CastVoteRequest 投票请求体
type CastVoteRequest struct {
	Value int `json:"value"` // +1 或 -1
}

// CastVoteHandler 对second-listen阶段的曲目投票
func (h *APIHandler) CastVoteHandler(w http.ResponseWriter, r *http.Request) {
	track, ok := h.loadOrgTrack(w, r)
	if !ok {
		return
	}
	actor, err := h.actorFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.ledger.CastVote(r.Context(), actor, track.ID, req.Value)
	if err != nil {
		handleEngineError(w, err, "vote")
		return
	}
	h.writeEngineResult(w, r, res, board.EvtVoteCast, actor)
}

// ReleaseSetupRequest 发行设置请求体
type ReleaseSetupRequest struct {
	TargetReleaseDate string `json:"targetReleaseDate"` // YYYY-MM-DD
}

// ReleaseSetupHandler 写目标发行日并完成 team-review→contracting 流转。
// 状态机对推进返回 RELEASE_DATE_REQUIRED 后，前端收集日期走这里。
func (h *APIHandler) ReleaseSetupHandler(w http.ResponseWriter, r *http.Request) {
	track, ok := h.loadOrgTrack(w, r)
	if !ok {
		return
	}
	actor, err := h.actorFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req ReleaseSetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	target, err := time.Parse("2006-01-02", req.TargetReleaseDate)
	if err != nil {
		http.Error(w, "targetReleaseDate must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	res, err := h.orchestrator.CompleteReleaseSetup(r.Context(), actor, track.ID, target)
	if err != nil {
		handleEngineError(w, err, "release-setup")
		return
	}
	h.writeEngineResult(w, r, res, board.EvtTrackMoved, actor)
}

// MetricsHandler 看板统计：各阶段在板曲目数、当前在线人数。
// viewMetrics 默认对所有角色关闭，只有带覆盖的员工或sysadmin能看。
func (h *APIHandler) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	actor, err := h.actorFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// 统计不依附于某个阶段，按inbox判定权限
	if !pipeline.CanPerform(actor, pipeline.ActionViewMetrics, pipeline.PhaseInbox) {
		writeJSON(w, http.StatusForbidden, pipeline.Result{
			OK: false, Code: pipeline.CodeForbidden,
			Message: "you are not allowed to view board metrics",
		})
		return
	}

	counts, err := h.demoRepo.CountByPhase(r.Context(), orgID)
	if err != nil {
		logger.Error("failed to count tracks by phase", logger.ErrorField(err), logger.Int64("org", orgID))
		http.Error(w, "Failed to load metrics", http.StatusInternalServerError)
		return
	}

	// 在线人数：连接数来自Hub，活跃心跳数来自Redis
	online, err := cache.NewBoardCache().GetActiveOnlineCount(r.Context(), orgID)
	if err != nil {
		logger.Warn("failed to count online staff", logger.ErrorField(err), logger.Int64("org", orgID))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"phases":    counts,
		"connected": h.hub.GetOrgClientCount(orgID),
		"online":    online,
	})
}
