package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"time"

	"DemoCrate/cache"
	"DemoCrate/core/board"
	"DemoCrate/core/pipeline"
	"DemoCrate/core/utils"
	"DemoCrate/logger"
	"DemoCrate/model"
	"DemoCrate/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const maxDemoUploadSize = 200 << 20 // 200MB

// CreateSubmissionRequest 投稿请求体（外链投稿）
type CreateSubmissionRequest struct {
	ArtistName string `json:"artistName"`
	Title      string `json:"title"`
	Genre      string `json:"genre,omitempty"`
	BPM        int    `json:"bpm,omitempty"`
	AudioLink  string `json:"audioLink,omitempty"`
}

// CreateSubmissionHandler 创建一条inbox投稿
func (h *APIHandler) CreateSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ArtistName == "" || req.Title == "" {
		http.Error(w, "artistName and title are required", http.StatusBadRequest)
		return
	}

	track := &model.DemoTrack{
		PublicID:   uuid.NewString(),
		OrgID:      orgID,
		ArtistName: req.ArtistName,
		Title:      req.Title,
		Genre:      req.Genre,
		BPM:        req.BPM,
		AudioLink:  req.AudioLink,
		Phase:      model.PhaseInbox,
	}
	if err := h.demoRepo.Create(r.Context(), track); err != nil {
		logger.Error("failed to create submission", logger.ErrorField(err))
		http.Error(w, "Failed to create submission", http.StatusInternalServerError)
		return
	}

	h.invalidateBoard(r.Context(), orgID)
	h.hub.Publish(&board.Event{Type: board.EvtTrackCreated, OrgID: orgID, Track: track})

	writeJSON(w, http.StatusCreated, track)
}

// UploadDemoHandler 音频文件投稿：multipart上传到MinIO并创建inbox投稿
func (h *APIHandler) UploadDemoHandler(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxDemoUploadSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "audio file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	artistName := r.FormValue("artistName")
	title := r.FormValue("title")
	if artistName == "" || title == "" {
		http.Error(w, "artistName and title are required", http.StatusBadRequest)
		return
	}
	bpm, _ := strconv.Atoi(r.FormValue("bpm"))

	publicID := uuid.NewString()
	objectKey, err := storage.UploadDemo(r.Context(), publicID, header.Filename, file, header.Size)
	if err != nil {
		logger.Error("failed to upload demo", logger.ErrorField(err))
		http.Error(w, "Failed to store demo audio", http.StatusInternalServerError)
		return
	}

	track := &model.DemoTrack{
		PublicID:   publicID,
		OrgID:      orgID,
		ArtistName: artistName,
		Title:      title,
		Genre:      r.FormValue("genre"),
		BPM:        bpm,
		ObjectKey:  objectKey,
		Phase:      model.PhaseInbox,
	}
	if err := h.demoRepo.Create(r.Context(), track); err != nil {
		_ = storage.RemoveDemo(r.Context(), objectKey)
		logger.Error("failed to create submission", logger.ErrorField(err))
		http.Error(w, "Failed to create submission", http.StatusInternalServerError)
		return
	}

	h.invalidateBoard(r.Context(), orgID)
	h.hub.Publish(&board.Event{Type: board.EvtTrackCreated, OrgID: orgID, Track: track})

	writeJSON(w, http.StatusCreated, track)
}

// GetBoardHandler 列出厂牌看板。优先读Redis快照，未命中回源并回填。
func (h *APIHandler) GetBoardHandler(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	includeArchived := r.URL.Query().Get("includeArchived") == "true"

	// 归档视图不走快照，量小且访问少
	if !includeArchived {
		boardCache := cache.NewBoardCache()
		if tracks, err := boardCache.GetBoard(r.Context(), orgID); err == nil && tracks != nil {
			writeJSON(w, http.StatusOK, tracks)
			return
		}
	}

	tracks, err := h.demoRepo.ListByOrg(r.Context(), orgID, includeArchived)
	if err != nil {
		logger.Error("failed to list board", logger.ErrorField(err), logger.Int64("org", orgID))
		http.Error(w, "Failed to load board", http.StatusInternalServerError)
		return
	}

	if !includeArchived {
		boardCache := cache.NewBoardCache()
		if err := boardCache.SetBoard(r.Context(), orgID, tracks); err != nil {
			logger.Warn("failed to cache board snapshot", logger.ErrorField(err))
		}
	}

	writeJSON(w, http.StatusOK, tracks)
}

// GetTrackHandler 获取单条曲目
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	track, ok := h.loadOrgTrack(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// UpdateTrackRequest 描述性字段编辑请求体。
// 流转字段（phase/archived/...）不在这里，必须走状态机。
type UpdateTrackRequest struct {
	ArtistName *string `json:"artistName,omitempty"`
	Title      *string `json:"title,omitempty"`
	Genre      *string `json:"genre,omitempty"`
	BPM        *int    `json:"bpm,omitempty"`
	Energy     *int    `json:"energy,omitempty"`
	AudioLink  *string `json:"audioLink,omitempty"`
}

// UpdateTrackHandler 编辑描述性字段。energy 受 editEnergy 权限约束。
func (h *APIHandler) UpdateTrackHandler(w http.ResponseWriter, r *http.Request) {
	track, ok := h.loadOrgTrack(w, r)
	if !ok {
		return
	}

	var req UpdateTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	fields := map[string]interface{}{}
	if req.ArtistName != nil {
		fields["artist_name"] = *req.ArtistName
	}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Genre != nil {
		fields["genre"] = *req.Genre
	}
	if req.BPM != nil {
		fields["bpm"] = *req.BPM
	}
	if req.AudioLink != nil {
		fields["audio_link"] = *req.AudioLink
	}
	if req.Energy != nil {
		actor, err := h.actorFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		phase, err := pipeline.ParsePhase(track.Phase)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if !pipeline.CanPerform(actor, pipeline.ActionEditEnergy, phase) {
			writeJSON(w, http.StatusForbidden, pipeline.Result{
				OK: false, Code: pipeline.CodeForbidden,
				Message: "you are not allowed to edit the energy level",
			})
			return
		}
		if *req.Energy < 0 || *req.Energy > 5 {
			http.Error(w, "energy must be between 0 and 5", http.StatusBadRequest)
			return
		}
		fields["energy"] = *req.Energy
	}

	updated, err := h.demoRepo.UpdateDescriptive(r.Context(), track.ID, fields)
	if err != nil {
		logger.Error("failed to update track", logger.ErrorField(err), logger.Int64("track", track.ID))
		http.Error(w, "Failed to update track", http.StatusInternalServerError)
		return
	}

	h.invalidateBoard(r.Context(), track.OrgID)
	h.hub.Publish(&board.Event{Type: board.EvtTrackEdited, OrgID: track.OrgID, Track: updated})

	writeJSON(w, http.StatusOK, updated)
}

// StreamDemoHandler 回放demo音频：从MinIO取对象流式输出
func (h *APIHandler) StreamDemoHandler(w http.ResponseWriter, r *http.Request) {
	track, ok := h.loadOrgTrack(w, r)
	if !ok {
		return
	}
	if track.ObjectKey == "" {
		http.Error(w, "This track has no stored audio", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	object, err := storage.GetDemo(ctx, track.ObjectKey)
	if err != nil {
		http.Error(w, "Audio not found", http.StatusNotFound)
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, object); err != nil {
		logger.Warn("error streaming demo audio", logger.ErrorField(err), logger.Int64("track", track.ID))
	}
}

// PresignDemoHandler 生成限时试听链接（分享给厂牌外的合作者）
func (h *APIHandler) PresignDemoHandler(w http.ResponseWriter, r *http.Request) {
	track, ok := h.loadOrgTrack(w, r)
	if !ok {
		return
	}
	if track.ObjectKey == "" {
		http.Error(w, "This track has no stored audio", http.StatusNotFound)
		return
	}

	link, err := storage.PresignDemoURL(r.Context(), track.ObjectKey, 24*time.Hour)
	if err != nil {
		logger.Error("failed to presign demo URL", logger.ErrorField(err))
		http.Error(w, "Failed to create listen link", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": link})
}

// loadOrgTrack 读取路径中的曲目并校验归属厂牌
func (h *APIHandler) loadOrgTrack(w http.ResponseWriter, r *http.Request) (*model.DemoTrack, bool) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid track ID", http.StatusBadRequest)
		return nil, false
	}

	track, err := h.demoRepo.GetTrack(r.Context(), id)
	if err != nil {
		logger.Error("failed to load track", logger.ErrorField(err), logger.Int64("track", id))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	if track == nil || track.OrgID != orgID {
		http.Error(w, "Track not found", http.StatusNotFound)
		return nil, false
	}
	return track, true
}

// invalidateBoard 任何成功提交的变更后使看板快照失效
func (h *APIHandler) invalidateBoard(ctx context.Context, orgID int64) {
	boardCache := cache.NewBoardCache()
	if err := boardCache.InvalidateBoard(ctx, orgID); err != nil {
		logger.Warn("failed to invalidate board cache", logger.ErrorField(err), logger.Int64("org", orgID))
	}
}

// FetchRemoteDemoHandler 把外链投稿的音频抓取进对象存储，
// 之后回放不再依赖外部链接是否存活。
func (h *APIHandler) FetchRemoteDemoHandler(w http.ResponseWriter, r *http.Request) {
	track, ok := h.loadOrgTrack(w, r)
	if !ok {
		return
	}
	if track.AudioLink == "" {
		http.Error(w, "This track has no external audio link", http.StatusBadRequest)
		return
	}
	if track.ObjectKey != "" {
		writeJSON(w, http.StatusOK, track)
		return
	}

	tmp, err := os.CreateTemp("", "democrate-fetch-*")
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := utils.DownloadFile(r.Context(), track.AudioLink, tmpPath); err != nil {
		logger.Warn("failed to fetch remote demo",
			logger.ErrorField(err),
			logger.Int64("track", track.ID),
			logger.String("link", track.AudioLink))
		http.Error(w, "Failed to fetch the external audio", http.StatusBadGateway)
		return
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	objectKey, err := storage.UploadDemo(r.Context(), track.PublicID, path.Base(track.AudioLink), f, info.Size())
	if err != nil {
		logger.Error("failed to store fetched demo", logger.ErrorField(err), logger.Int64("track", track.ID))
		http.Error(w, "Failed to store demo audio", http.StatusInternalServerError)
		return
	}

	updated, err := h.demoRepo.UpdateDescriptive(r.Context(), track.ID, map[string]interface{}{
		"object_key": objectKey,
	})
	if err != nil {
		_ = storage.RemoveDemo(r.Context(), objectKey)
		http.Error(w, "Failed to update track", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}
