// Package download 定时下载新发行产品表格与公示索引文件。
package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/config"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/logger"
)

// Getter 读取远程文件
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Invalidator 索引文件更新后需要清除的缓存
type Invalidator interface {
	Invalidate()
}

// Downloader 下载任务
type Downloader struct {
	files  config.FilesConfig
	getter Getter
	cache  Invalidator
}

// NewDownloader 创建下载任务，cache 可以为空
func NewDownloader(files config.FilesConfig, getter Getter, cache Invalidator) *Downloader {
	return &Downloader{files: files, getter: getter, cache: cache}
}

// Run 先下载表格再下载公示索引，URL 为空的步骤跳过
func (d *Downloader) Run(ctx context.Context) error {
	if err := d.fetch(ctx, "表格", d.files.WorkbookURL, d.files.WorkbookPath); err != nil {
		return err
	}
	if err := d.fetch(ctx, "公示索引", d.files.FilingIndexURL, d.files.FilingIndexPath); err != nil {
		return err
	}
	if d.files.FilingIndexURL != "" && d.cache != nil {
		d.cache.Invalidate()
	}
	return nil
}

func (d *Downloader) fetch(ctx context.Context, what, url, path string) error {
	if url == "" {
		logger.Log.Infof("未配置%s下载地址，跳过", what)
		return nil
	}
	if path == "" {
		return fmt.Errorf("download %s: target path not configured", url)
	}

	body, err := d.getter.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := writeAtomic(path, body); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	logger.Log.Infof("%s下载完成: %s (%d bytes)", what, path, len(body))
	return nil
}

// writeAtomic 先写临时文件再重命名，读取方不会看到写了一半的文件
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
