package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// demo外链抓取用的HTTP客户端，整体超时兜底，避免挂死在慢源上
var fetchClient = &http.Client{Timeout: 5 * time.Minute}

// DownloadFile 把 url 指向的文件下载到 dest。
// 用于把外链投稿的demo音频抓进自己的对象存储。
func DownloadFile(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("构造下载请求失败: %w", err)
	}

	resp, err := fetchClient.Do(req)
	if err != nil {
		return fmt.Errorf("下载文件失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("下载文件失败，状态码: %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	defer out.Close()

	if _, err = io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("保存文件失败: %w", err)
	}

	return nil
}
