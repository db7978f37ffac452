package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"DemoCrate/core/board"
	"DemoCrate/logger"
	"DemoCrate/model"
	"DemoCrate/repository"
	"DemoCrate/storage"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// 识别为demo音频的扩展名
var audioExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".aiff": true,
	".aif":  true,
	".m4a":  true,
}

// Watcher 投递目录监听：往目录里拖一个音频文件，
// 就会上传到 MinIO 并在 inbox 创建一条投稿。
// 架构：fsnotify 监听 → 等待文件写稳 → MinIO 上传 → 建行 → 看板广播
type Watcher struct {
	dir   string
	orgID int64
	repo  repository.DemoRepository
	hub   *board.Hub

	// 文件写入稳定判定窗口
	settle time.Duration
}

// NewWatcher 创建投递目录监听器
func NewWatcher(dir string, orgID int64, repo repository.DemoRepository, hub *board.Hub) *Watcher {
	return &Watcher{
		dir:    dir,
		orgID:  orgID,
		repo:   repo,
		hub:    hub,
		settle: 2 * time.Second,
	}
}

// Run 启动监听循环，阻塞直到 ctx 取消
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}

	logger.Info("ingest watcher started",
		logger.String("dir", w.dir),
		logger.Int64("org", w.orgID))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !audioExts[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			// 写入可能分多次到达，等文件大小稳定后再消费
			go w.consumeWhenSettled(ctx, event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("ingest watcher error", logger.ErrorField(err))
		}
	}
}

// consumeWhenSettled 等待文件大小在一个窗口内不再变化，然后消费
func (w *Watcher) consumeWhenSettled(ctx context.Context, path string) {
	var lastSize int64 = -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.settle):
		}

		info, err := os.Stat(path)
		if err != nil {
			// 文件在等待期间被移走
			return
		}
		if info.Size() == lastSize {
			break
		}
		lastSize = info.Size()
	}

	if err := w.consume(ctx, path); err != nil {
		logger.Error("failed to ingest demo file",
			logger.ErrorField(err),
			logger.String("file", path))
	}
}

// consume 上传文件并创建inbox投稿，成功后删除源文件
func (w *Watcher) consume(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	publicID := uuid.NewString()
	objectKey, err := storage.UploadDemo(ctx, publicID, filepath.Base(path), f, info.Size())
	if err != nil {
		return err
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	track := &model.DemoTrack{
		PublicID:   publicID,
		OrgID:      w.orgID,
		ArtistName: "Unknown Artist",
		Title:      title,
		ObjectKey:  objectKey,
		Phase:      model.PhaseInbox,
	}
	if err := w.repo.Create(ctx, track); err != nil {
		// 建行失败就把对象清掉，不留孤儿
		_ = storage.RemoveDemo(ctx, objectKey)
		return err
	}

	if w.hub != nil {
		w.hub.Publish(&board.Event{
			Type:  board.EvtTrackCreated,
			OrgID: w.orgID,
			Track: track,
		})
	}

	logger.Info("demo file ingested",
		logger.String("file", path),
		logger.Int64("track", track.ID))

	return os.Remove(path)
}
