package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/iWorld-y/els_batch/app/els_batch/internal/server"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/config"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/download"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/engine"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/filing"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/logger"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/notify"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/prospectus"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/rules"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/storage"
)

// batch 组装好的批处理依赖
type batch struct {
	cfg        *config.Config
	engine     *engine.Engine
	downloader *download.Downloader
	store      *storage.Storage
}

// newBatch 按配置组装依赖，返回的 cleanup 关闭数据库与消息队列连接
func newBatch(confPath string) (*batch, func(), error) {
	cfg, err := config.LoadConfig(confPath)
	if err != nil {
		return nil, nil, fmt.Errorf("无法加载配置文件: %w", err)
	}
	if err := logger.InitLogger(cfg.Log); err != nil {
		return nil, nil, fmt.Errorf("无法初始化日志: %w", err)
	}

	r, err := loadRules(cfg.RulesFile)
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.NewStorage(cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("无法连接数据库: %w", err)
	}
	logger.Log.Infof("已成功连接到数据库 (%s)", cfg.DB.Driver)

	pub, err := notify.NewPublisher(cfg.Kafka)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := pub.Close(); err != nil {
			logger.Log.Errorf("关闭消息队列失败: %v", err)
		}
		if err := store.Close(); err != nil {
			logger.Log.Errorf("关闭数据库失败: %v", err)
		}
	}

	fetcher := prospectus.NewFetcher(cfg.Fetch)
	locator := filing.NewLocator(cfg.Files.FilingIndexPath, cfg.Files.FilingIndexCacheTTL)

	eng, err := engine.NewEngine(cfg, engine.Deps{
		Rules:    r,
		Store:    store,
		Locator:  locator,
		Fetcher:  fetcher,
		Notifier: notify.NewNotifier(pub, cfg.Kafka.Topics),
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return &batch{
		cfg:        cfg,
		engine:     eng,
		downloader: download.NewDownloader(cfg.Files, fetcher, locator),
		store:      store,
	}, cleanup, nil
}

func loadRules(path string) (*rules.Rules, error) {
	if path == "" {
		return rules.Default()
	}
	logger.Log.Infof("使用规则文件: %s", path)
	return rules.Load(path)
}

func (b *batch) parse(ctx context.Context) error {
	if _, err := b.engine.RunWorkbook(ctx); err != nil {
		return err
	}
	total, err := b.store.CountProducts(ctx)
	if err != nil {
		return err
	}
	logger.Log.Infof("数据库中共有 %d 个产品", total)
	return nil
}

// show 按名称输出已提交产品的摘要
func (b *batch) show(ctx context.Context, w io.Writer, name string) error {
	p, err := b.store.FindProduct(ctx, name)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("产品不存在: %s", name)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func (b *batch) jobs() []server.Job {
	return []server.Job{
		{Name: "download", Spec: b.cfg.Schedule.Download, Run: b.downloader.Run},
		{Name: "parse", Spec: b.cfg.Schedule.Parse, Run: b.parse},
	}
}
