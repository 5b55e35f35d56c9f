// Package filing 根据发行方与回次在本地公示索引中查找说明书地址。
package filing

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/logger"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/model"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/prospectus"
)

const indexKey = "filing-index"

// Locator 公示索引查询器，索引文件内容按 TTL 缓存
type Locator struct {
	path  string
	cache *cache.Cache
}

// NewLocator 创建查询器
func NewLocator(path string, ttl time.Duration) *Locator {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Locator{
		path:  path,
		cache: cache.New(ttl, 2*ttl),
	}
}

// record 同时兼容 {name,url} 与交易所导出的 {ISU_NM, ISU_DISCLS_URL}
type record struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	IsuNm   string `json:"ISU_NM"`
	IsuLink string `json:"ISU_DISCLS_URL"`
}

// Entries 读取索引，命中缓存时不访问文件
func (l *Locator) Entries() ([]model.FilingIndexEntry, error) {
	if v, ok := l.cache.Get(indexKey); ok {
		return v.([]model.FilingIndexEntry), nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read filing index: %w", err)
	}
	entries, err := ParseIndex(data)
	if err != nil {
		return nil, err
	}

	l.cache.SetDefault(indexKey, entries)
	logger.Log.Infof("公示索引加载完成: %d 条", len(entries))
	return entries, nil
}

// Invalidate 索引文件更新后丢弃缓存
func (l *Locator) Invalidate() {
	l.cache.Delete(indexKey)
}

// Locate 查找说明书地址，回次为空、没有匹配记录或索引不可读时返回 false。
// 索引读取失败只记录日志，该行按没有说明书处理。
func (l *Locator) Locate(ref model.SessionReference) (string, bool) {
	if ref.Session == "" {
		return "", false
	}
	entries, err := l.Entries()
	if err != nil {
		logger.Log.WithField("path", l.path).Errorf("读取公示索引失败: %v", err)
		return "", false
	}
	return Match(entries, ref)
}

// ParseIndex 解析 JSON 数组形式的索引
func ParseIndex(data []byte) ([]model.FilingIndexEntry, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse filing index: %w", err)
	}

	entries := make([]model.FilingIndexEntry, 0, len(records))
	for _, r := range records {
		e := model.FilingIndexEntry{Name: r.Name, URL: r.URL}
		if e.Name == "" {
			e.Name = r.IsuNm
		}
		if e.URL == "" {
			e.URL = r.IsuLink
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Match 第一个同时包含发行方且以整词形式包含回次的记录
func Match(entries []model.FilingIndexEntry, ref model.SessionReference) (string, bool) {
	if ref.Session == "" {
		return "", false
	}
	word := regexp.MustCompile(`\b` + regexp.QuoteMeta(ref.Session) + `\b`)
	for _, e := range entries {
		if strings.Contains(e.Name, ref.Issuer) && word.MatchString(e.Name) {
			return e.URL, true
		}
	}
	return "", false
}

// DeriveIssuer 按发行方表顺序返回产品名中第一个出现的发行方
func DeriveIssuer(issuers []string, name string) (string, error) {
	for _, issuer := range issuers {
		if strings.Contains(name, issuer) {
			return issuer, nil
		}
	}
	return "", fmt.Errorf("%w: %s", model.ErrIssuerUnrecognized, name)
}

// Reference 从产品名解析发行方与回次
func Reference(issuers []string, name string) (model.SessionReference, error) {
	issuer, err := DeriveIssuer(issuers, name)
	if err != nil {
		return model.SessionReference{}, err
	}
	return model.SessionReference{Issuer: issuer, Session: prospectus.ParseSession(name)}, nil
}
