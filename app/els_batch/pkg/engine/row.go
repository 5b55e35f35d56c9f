package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/config"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/filing"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/model"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/prospectus"
)

const (
	underlyingSeparator = "<br/>"
	rowDateLayout       = "20060102"
)

// unresolved 提交后需要发送的标的缺失通知
type unresolved struct {
	underlying string
}

// processRow 把一行转换为产品草稿并提交
func (e *Engine) processRow(ctx context.Context, row model.Row, log *logrus.Entry) (*model.ProductDraft, error) {
	ref, err := filing.Reference(e.rules.Issuers, row.Name)
	if err != nil {
		e.notifier.NewIssuer(ctx, model.NewIssuerMessage{ProductName: row.Name, Issuer: row.Issuer})
		return nil, err
	}

	draft, err := e.baseDraft(row)
	if err != nil {
		return nil, err
	}

	url, found := e.locator.Locate(ref)

	var doc *prospectus.Document
	if found {
		doc, err = e.fetcher.Fetch(ctx, url)
		if err != nil {
			if !errors.Is(err, model.ErrFetchTimeout) || e.cfg.FetchFailurePolicy != config.PolicyDegrade {
				return nil, err
			}
			log.Warnf("说明书抓取超时，降级为无说明书数据: %v", err)
			doc = nil
		}
		draft.FilingLink = &url
	}

	if doc != nil {
		if prospectus.IsCorrection(doc) {
			title := doc.Title()
			log.WithField("title", title).Warn("说明书为更正申报")
			e.notifier.CorrectionReport(ctx, model.CorrectionReportMessage{
				ProductName: row.Name,
				FilingURL:   url,
				FilingTitle: title,
			})
		}
		e.applyFiling(draft, row, ref.Session, doc, log)
	} else {
		draft.MaturityEvaluationKind = model.MaturityUnknown
		draft.Deactivate()
	}

	log.WithFields(logrus.Fields{
		"knock_in": intField(draft.KnockIn),
		"type":     draft.ProductType,
		"ladder":   strField(draft.PayoffLadder),
		"filing":   found,
	}).Info("解析完成")

	var volatilities []model.VolatilityEntry
	if draft.Volatility != nil {
		volatilities = prospectus.ParseVolatility(*draft.Volatility)
	}
	pending, err := e.linkUnderlyings(ctx, draft, volatilities, doc != nil)
	if err != nil {
		return nil, err
	}

	if err := e.store.SaveProduct(ctx, draft); err != nil {
		return nil, err
	}

	for _, u := range pending {
		log.Warnf("标的 %s 没有对应的代码，需要人工补全", u.underlying)
		e.notifier.NewTicker(ctx, model.NewTickerMessage{
			ProductID:   draft.ID,
			ProductName: draft.Name,
			Underlying:  u.underlying,
		})
	}
	return draft, nil
}

// baseDraft 只依赖表格本身的字段，状态默认为 ACTIVE
func (e *Engine) baseDraft(row model.Row) (*model.ProductDraft, error) {
	draft := &model.ProductDraft{
		Issuer:                 row.Issuer,
		Name:                   row.Name,
		Underlyings:            splitUnderlyings(row.Underlyings),
		MaturityEvaluationKind: model.MaturityUnknown,
		FullTerms:              row.FullTerms,
		PayoffLadder:           e.classifier.PayoffLadder(row.FullTerms),
		ProductType:            e.classifier.ProductType(row.Issuer, row.FullTerms),
		State:                  model.ProductStateActive,
		Link:                   row.Link,
		Remarks:                row.Remarks,
	}

	var err error
	dates := []struct {
		dst   *time.Time
		value string
		field string
	}{
		{&draft.IssuedDate, row.IssuedDate, "issued date"},
		{&draft.MaturityDate, row.MaturityDate, "maturity date"},
		{&draft.SubscriptionStart, row.SubscriptionStart, "subscription start"},
		{&draft.SubscriptionEnd, row.SubscriptionEnd, "subscription end"},
	}
	for _, d := range dates {
		if *d.dst, err = parseRowDate(d.value); err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.field, err)
		}
	}
	if draft.Yield, err = parseNumber(row.Yield); err != nil {
		return nil, fmt.Errorf("parse yield: %w", err)
	}
	if draft.MaximumLossRate, err = parseNumber(row.MaximumLossRate); err != nil {
		return nil, fmt.Errorf("parse maximum loss rate: %w", err)
	}
	return draft, nil
}

// applyFiling 填充说明书中抽取的字段
func (e *Engine) applyFiling(draft *model.ProductDraft, row model.Row, session string, doc *prospectus.Document, log *logrus.Entry) {
	fields := e.extractor.Extract(row.Issuer, session, doc)

	draft.InitialFixingDate = fields.InitialFixingDate
	draft.MaturityEvaluationDate = fields.MaturityEvaluationDate
	draft.MaturityEvaluationKind = fields.MaturityEvaluationKind
	draft.Volatility = fields.Volatility
	draft.KnockIn = e.classifier.KnockIn(row.FullTerms)

	for _, label := range fields.EarlyRedemption {
		r, ok := prospectus.ParseRedemption(label)
		if !ok {
			log.Warnf("无法解析提前赎回日期，已跳过: %q", label)
			continue
		}
		draft.EarlyRedemptionDates = append(draft.EarlyRedemptionDates, r)
	}
}

// linkUnderlyings 为每个标的解析代码。
// 找不到真实代码时关联占位代码并把草稿置为 INACTIVE；波动率只挂在真实代码上。
func (e *Engine) linkUnderlyings(ctx context.Context, draft *model.ProductDraft, vols []model.VolatilityEntry, withVolatility bool) ([]unresolved, error) {
	var pending []unresolved
	volTickers := make(map[string]*model.Ticker)

	for _, u := range draft.Underlyings {
		t, err := e.store.FindTicker(ctx, u)
		if err != nil {
			return nil, err
		}

		if t.IsPlaceholder() {
			draft.Links = append(draft.Links, model.UnderlyingLink{Underlying: u})
			draft.Deactivate()
			pending = append(pending, unresolved{underlying: u})
			continue
		}

		link := model.UnderlyingLink{Underlying: u, Ticker: t}
		if withVolatility {
			for _, v := range vols {
				vt, ok := volTickers[v.Underlying]
				if !ok {
					if vt, err = e.store.FindTicker(ctx, v.Underlying); err != nil {
						return nil, err
					}
					volTickers[v.Underlying] = vt
				}
				if !vt.IsPlaceholder() && vt.Symbol == t.Symbol {
					pct := v.Percent
					link.Volatility = &pct
					break
				}
			}
		}
		draft.Links = append(draft.Links, link)
	}
	return pending, nil
}

func splitUnderlyings(cell string) []string {
	var out []string
	for _, u := range strings.Split(cell, underlyingSeparator) {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func parseRowDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(rowDateLayout, s)
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func intField(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func strField(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
