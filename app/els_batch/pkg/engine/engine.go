// Package engine 逐行处理新发行产品清单：去重、定位说明书、抽取字段、提交草稿并发出通知。
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/classify"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/config"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/logger"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/model"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/prospectus"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/rules"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/workbook"
)

// Store 引擎依赖的存储操作
type Store interface {
	ProductExists(ctx context.Context, name string) (bool, error)
	FindTicker(ctx context.Context, underlying string) (*model.Ticker, error)
	SaveProduct(ctx context.Context, p *model.ProductDraft) error
}

// FilingLocator 说明书地址查询
type FilingLocator interface {
	Locate(ref model.SessionReference) (string, bool)
}

// Notifier 需要人工介入的事件
type Notifier interface {
	NewTicker(ctx context.Context, msg model.NewTickerMessage)
	CorrectionReport(ctx context.Context, msg model.CorrectionReportMessage)
	NewIssuer(ctx context.Context, msg model.NewIssuerMessage)
}

// Deps 引擎的外部依赖
type Deps struct {
	Rules     *rules.Rules
	Store     Store
	Locator   FilingLocator
	Fetcher   prospectus.DocumentFetcher
	Notifier  Notifier
	Extractor *prospectus.Extractor
	// Sleep 为空时使用可被 ctx 取消的 timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// Engine 核心处理引擎
type Engine struct {
	cfg        *config.Config
	rules      *rules.Rules
	classifier *classify.Classifier
	extractor  *prospectus.Extractor
	fetcher    prospectus.DocumentFetcher
	locator    FilingLocator
	store      Store
	notifier   Notifier
	sleep      func(ctx context.Context, d time.Duration) error
}

// RunStats 一次运行的统计
type RunStats struct {
	Rows      int
	Processed int
	Skipped   int
	Committed int
	Inactive  int
}

// NewEngine 创建引擎实例
func NewEngine(cfg *config.Config, deps Deps) (*Engine, error) {
	switch {
	case deps.Rules == nil:
		return nil, fmt.Errorf("rules not provided")
	case deps.Store == nil:
		return nil, fmt.Errorf("store not provided")
	case deps.Locator == nil:
		return nil, fmt.Errorf("filing locator not provided")
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("fetcher not provided")
	case deps.Notifier == nil:
		return nil, fmt.Errorf("notifier not provided")
	}

	extractor := deps.Extractor
	if extractor == nil {
		extractor = prospectus.NewExtractor(nil)
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return &Engine{
		cfg:        cfg,
		rules:      deps.Rules,
		classifier: classify.New(deps.Rules),
		extractor:  extractor,
		fetcher:    deps.Fetcher,
		locator:    deps.Locator,
		store:      deps.Store,
		notifier:   deps.Notifier,
		sleep:      sleep,
	}, nil
}

// RunWorkbook 读取配置中的表格并处理
func (e *Engine) RunWorkbook(ctx context.Context) (RunStats, error) {
	rows, err := workbook.Read(e.cfg.Files.WorkbookPath)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInputMissing):
			logger.Log.Errorf("表格文件不存在: %v", err)
		case errors.Is(err, model.ErrFormatUnsupported):
			logger.Log.Errorf("不支持的表格格式: %v", err)
		}
		return RunStats{}, err
	}
	return e.Run(ctx, rows)
}

// Run 按表格顺序逐行处理。
// 每处理 Pacing.Every 行暂停 Pacing.Pause；同名产品已存在的行跳过；
// 发行方无法识别或抓取失败（abort 策略）时中止，已提交的行保留。
func (e *Engine) Run(ctx context.Context, rows []model.Row) (RunStats, error) {
	runID := uuid.NewString()
	stats := RunStats{Rows: len(rows)}
	log := logger.Log.WithField("run", runID)
	log.Infof("开始处理表格，共 %d 行", len(rows))

	pauseDue := false
	for _, row := range rows {
		rowLog := log.WithFields(logrus.Fields{"row": row.Index, "product": row.Name})

		exists, err := e.store.ProductExists(ctx, row.Name)
		if err != nil {
			return stats, err
		}
		if exists {
			stats.Skipped++
			rowLog.Debug("产品已存在，跳过")
			continue
		}

		if pauseDue {
			pauseDue = false
			if err := e.sleep(ctx, e.cfg.Pacing.Pause); err != nil {
				return stats, err
			}
		}

		draft, err := e.processRow(ctx, row, rowLog)
		if err != nil {
			rowLog.Errorf("处理失败，中止本次运行: %v", err)
			return stats, fmt.Errorf("row %d (%s): %w", row.Index, row.Name, err)
		}

		stats.Processed++
		stats.Committed++
		if draft.State == model.ProductStateInactive {
			stats.Inactive++
		}
		if e.cfg.Pacing.Every > 0 && stats.Processed%e.cfg.Pacing.Every == 0 {
			pauseDue = true
		}
	}

	log.WithFields(logrus.Fields{
		"rows":      stats.Rows,
		"processed": stats.Processed,
		"skipped":   stats.Skipped,
		"committed": stats.Committed,
		"inactive":  stats.Inactive,
	}).Info("表格处理完成")
	return stats, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
