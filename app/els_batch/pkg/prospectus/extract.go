package prospectus

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/logger"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/model"
)

// Fields 从说明书中抽取的某一回次的条款
type Fields struct {
	InitialFixingDate      *time.Time
	MaturityEvaluationDate *time.Time
	MaturityEvaluationKind model.MaturityEvaluationKind
	Volatility             *string
	EarlyRedemption        []string
}

// Extractor 字段抽取器，所有未找到的情况都返回零值而不是错误
type Extractor struct {
	registry *Registry
}

// NewExtractor 创建抽取器，registry 为空时使用内置注册表
func NewExtractor(registry *Registry) *Extractor {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Extractor{registry: registry}
}

// Extract 一次性抽取全部字段，回次索引在文档上只构建一次
func (e *Extractor) Extract(issuer, session string, d *Document) Fields {
	return Fields{
		InitialFixingDate:      e.InitialFixingDate(issuer, session, d),
		MaturityEvaluationDate: e.MaturityEvaluationDate(issuer, session, d),
		MaturityEvaluationKind: e.MaturityEvaluationKind(issuer, session, d),
		Volatility:             e.Volatility(session, d),
		EarlyRedemption:        e.EarlyRedemptionDates(session, d),
	}
}

// InitialFixingDate 最初基准价格评价日
func (e *Extractor) InitialFixingDate(issuer, session string, d *Document) *time.Time {
	block, ok := pick(session, d, e.registry.For(issuer).InitialFixing)
	if !ok || len(block) == 0 {
		return nil
	}
	return parseDatePtr(block[0])
}

// MaturityEvaluationDate 满期评价日，多个日期时取第一个
func (e *Extractor) MaturityEvaluationDate(issuer, session string, d *Document) *time.Time {
	block, ok := pick(session, d, e.registry.For(issuer).Maturity)
	if !ok || len(block) == 0 {
		return nil
	}
	return parseDatePtr(block[0])
}

// MaturityEvaluationKind 满期评价日个数分类
func (e *Extractor) MaturityEvaluationKind(issuer, session string, d *Document) model.MaturityEvaluationKind {
	s := e.registry.For(issuer)
	scan := s.MaturityCount
	if scan == nil {
		scan = s.Maturity
	}
	block, ok := pick(session, d, scan)
	if !ok {
		return model.MaturityUnknown
	}
	return model.KindOfCount(len(block))
}

// Volatility 基础资产价格波动率，格式为 "名称 : 数值% / 名称 : 数值%"
func (e *Extractor) Volatility(session string, d *Document) *string {
	v, ok := pickValue(session, d, scanVolatility(d))
	if !ok || v == "" {
		return nil
	}
	return &v
}

// EarlyRedemptionDates 自动提前偿还评价日，元素格式为 "1차: 2024년 01월 02일"
func (e *Extractor) EarlyRedemptionDates(session string, d *Document) []string {
	v, ok := pickValue(session, d, scanEarlyRedemption(d))
	if !ok {
		return nil
	}
	return v
}

func pick(session string, d *Document, scan BlockScan) ([]string, bool) {
	if scan == nil || session == "" || d == nil {
		return nil, false
	}
	return pickValue(session, d, scan(d))
}

// pickValue 序号不在 [1, len(values)] 范围内时视为没有数据
func pickValue[T any](session string, d *Document, values []T) (T, bool) {
	var zero T
	if session == "" || d == nil {
		return zero, false
	}
	n := d.Locate(session)
	if n < 1 || n > len(values) {
		return zero, false
	}
	return values[n-1], true
}

func parseDatePtr(s string) *time.Time {
	t, err := ParseDate(s)
	if err != nil {
		logger.Log.Warnf("无法解析日期 %q: %v", s, err)
		return nil
	}
	return &t
}

const volatilityRowLabel = "기초자산가격 변동성"

var (
	volatilityHeaders = normalizedSet("항목", "항 목", "항  목", "항    목", "내용", "내 용", "내  용", "내   용", "내      용")
	volatilityPair    = regexp.MustCompile(`-?\s*\[?([\w가-힣&()0-9.,\s]+?)]?\s*:\s*(변동성(?:지수)?\s*)?([\d.]+)%`)
	footnoteMarker    = regexp.MustCompile(`\(\d+\)`)
)

// scanVolatility 每个 "항목/내용" 表格中的波动率行各产生一条
func scanVolatility(d *Document) []string {
	var out []string
	d.dom.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := tableRows(table)
		if len(rows) == 0 || !anyIn(rows[0], volatilityHeaders) {
			return
		}
		for _, row := range rows[1:] {
			if len(row) < 2 || row[0] != volatilityRowLabel {
				continue
			}
			out = append(out, FormatVolatility(row[1]))
		}
	})
	return out
}

// FormatVolatility 把单元格中的 "名称 : 变动性 n%" 重新组装成统一格式
func FormatVolatility(cell string) string {
	var parts []string
	for _, m := range volatilityPair.FindAllStringSubmatch(cell, -1) {
		name := strings.TrimSpace(m[1])
		name = strings.ReplaceAll(name, "보통주", "")
		name = footnoteMarker.ReplaceAllString(name, "")
		name = strings.TrimSpace(name)
		parts = append(parts, name+" : "+strings.TrimSpace(m[3])+"%")
	}
	return strings.Join(parts, " / ")
}

// ParseVolatility 解析 FormatVolatility 的输出
func ParseVolatility(s string) []model.VolatilityEntry {
	var out []model.VolatilityEntry
	for _, part := range strings.Split(s, " / ") {
		name, value, ok := strings.Cut(part, " : ")
		if !ok {
			continue
		}
		if strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
			name = name[1 : len(name)-1]
		}
		pct, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(value), "%"), 64)
		if err != nil {
			continue
		}
		out = append(out, model.VolatilityEntry{Underlying: name, Percent: pct})
	}
	return out
}

const (
	redemptionHeader    = "자동조기상환평가일"
	midFixingLabel      = "중간기준가격 결정일"
	monthlyMidFixing    = "월수익 중간기준가격 결정일"
	monthlyObservations = 6
)

var (
	redemptionOptionalHeaders = normalizedSet("차수", "차 수      ", "차 수", "상환금액", "상환금액(USD)(세전)", "상환금액(세전)")
	midFixingDate             = regexp.MustCompile(`\d+차: \d{4}년 \d{1,2}월 \d{1,2}일`)
	roundPrefix               = regexp.MustCompile(`^\d+차`)
)

// scanEarlyRedemption 优先使用自动提前偿还评价日表格，文档中没有这种表格时退回到中间基准价格决定日
func scanEarlyRedemption(d *Document) [][]string {
	var tables [][][]string
	d.dom.Find("table").Each(func(_ int, table *goquery.Selection) {
		if rows := tableRows(table); len(rows) > 0 {
			tables = append(tables, rows)
		}
	})

	var out [][]string
	for _, rows := range tables {
		if isRedemptionHeader(rows[0]) {
			out = append(out, redemptionRounds(rows[1:]))
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, rows := range tables {
		if dates, ok := midFixingRounds(rows); ok {
			out = append(out, dates)
		}
	}
	return out
}

func isRedemptionHeader(header []string) bool {
	hasKey := false
	for _, h := range header {
		if h == redemptionHeader {
			hasKey = true
			break
		}
	}
	return hasKey && anyIn(header, redemptionOptionalHeaders)
}

func redemptionRounds(rows [][]string) []string {
	out := []string{}
	for _, row := range rows {
		if len(row) < 2 || !isKoreanDate(row[1]) {
			continue
		}
		round := row[0]
		if segs := splitTrimTrailing(round, "-"); len(segs) == 2 {
			round = segs[0] + "차"
		}
		out = append(out, round+": "+row[1])
	}
	return out
}

func midFixingRounds(rows [][]string) ([]string, bool) {
	for _, row := range rows {
		if len(row) != 2 || !strings.Contains(row[0], midFixingLabel) {
			continue
		}
		matches := midFixingDate.FindAllString(row[1], -1)
		if !strings.Contains(row[0], monthlyMidFixing) {
			return matches, true
		}

		dates := []string{}
		turn := 1
		for i, m := range matches {
			if (i+1)%monthlyObservations != 0 {
				continue
			}
			dates = append(dates, roundPrefix.ReplaceAllString(m, strconv.Itoa(turn)+"차"))
			turn++
		}
		return dates, true
	}
	return nil, false
}

// ParseRedemption 把 "1차: 2024년 01월 02일" 解析为提前偿还评价日
func ParseRedemption(label string) (model.EarlyRedemptionDate, bool) {
	round, date, ok := strings.Cut(label, ": ")
	if !ok {
		return model.EarlyRedemptionDate{}, false
	}
	t, err := ParseDate(strings.TrimSpace(date))
	if err != nil {
		return model.EarlyRedemptionDate{}, false
	}
	return model.EarlyRedemptionDate{Round: round, Date: t}, true
}

func isKoreanDate(s string) bool {
	return strings.Contains(s, "년") && strings.Contains(s, "월") && strings.Contains(s, "일")
}

// splitTrimTrailing 按分隔符切分并去掉末尾的空段
func splitTrimTrailing(s, sep string) []string {
	segs := strings.Split(s, sep)
	for len(segs) > 0 && segs[len(segs)-1] == "" {
		segs = segs[:len(segs)-1]
	}
	return segs
}

// tableRows 表格每一行 th/td 的规范化文本
func tableRows(table *goquery.Selection) [][]string {
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		rows = append(rows, cellTexts(tr.Find("th, td")))
	})
	return rows
}

func normalizedSet(values ...string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[Normalize(v)] = true
	}
	return set
}

func anyIn(cells []string, set map[string]bool) bool {
	for _, c := range cells {
		if set[c] {
			return true
		}
	}
	return false
}
