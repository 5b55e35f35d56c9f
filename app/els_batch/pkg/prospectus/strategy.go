package prospectus

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BlockScan 扫描整份文档，按文档顺序返回每个命中块中的日期
type BlockScan func(d *Document) [][]string

// Strategy 某个发行方的字段抽取方式
type Strategy struct {
	InitialFixing BlockScan
	Maturity      BlockScan
	// MaturityCount 为空时与 Maturity 共用同一次扫描
	MaturityCount BlockScan
}

// Registry 发行方到抽取方式的注册表
type Registry struct {
	def        Strategy
	strategies map[string]Strategy
}

// NewRegistry 创建只有默认方式的注册表
func NewRegistry(def Strategy) *Registry {
	return &Registry{def: def, strategies: make(map[string]Strategy)}
}

// DefaultRegistry 内置的发行方注册表
func DefaultRegistry() *Registry {
	r := NewRegistry(Strategy{
		InitialFixing: scanInitialFixingDefault,
		Maturity:      scanMaturityDefault,
	})
	r.Register("삼성증권", Strategy{
		InitialFixing: scanInitialFixingSamsung,
		Maturity:      scanMaturitySamsung,
	})
	r.Register("교보증권", Strategy{
		Maturity: scanMaturityKyobo,
	})
	r.Register("키움증권", Strategy{
		MaturityCount: scanMaturityCountKiwoom,
	})
	return r
}

// Register 注册发行方，未设置的字段沿用默认方式
func (r *Registry) Register(issuer string, s Strategy) {
	if s.InitialFixing == nil {
		s.InitialFixing = r.def.InitialFixing
	}
	if s.Maturity == nil {
		s.Maturity = r.def.Maturity
	}
	r.strategies[issuer] = s
}

// For 返回发行方对应的抽取方式
func (r *Registry) For(issuer string) Strategy {
	if s, ok := r.strategies[issuer]; ok {
		return s
	}
	return r.def
}

const (
	labelInitialFixing        = "최초기준가격평가일"
	labelInitialFixingSamsung = "최초기준가격 결정일 (예정)"
	labelMaturity             = "만기평가일 :"
	labelMaturityRedemption   = "만기상환평가일 :"
	labelMaturitySamsung      = "만기평가일 (예정)"
	labelMaturityKyobo        = "만기평가일"
)

// scanInitialFixingDefault 段落中的第一个日期，其次是含标签表格中每个带日期的单元格。
// 同一表格列出多个回次时，各单元格按顺序对应各回次。
func scanInitialFixingDefault(d *Document) [][]string {
	var blocks [][]string
	d.dom.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := Text(p)
		if !strings.Contains(text, labelInitialFixing) {
			return
		}
		if date := firstDate(text); date != "" {
			blocks = append(blocks, []string{date})
		}
	})
	d.dom.Find("table").Each(func(_ int, table *goquery.Selection) {
		cells := cellTexts(table.Find("td"))
		if !anyContains(cells, labelInitialFixing) {
			return
		}
		for _, c := range cells {
			if date := firstDate(c); date != "" {
				blocks = append(blocks, []string{date})
			}
		}
	})
	return blocks
}

func scanInitialFixingSamsung(d *Document) [][]string {
	return scanTablesFirstDate(d, labelInitialFixingSamsung)
}

// scanTablesFirstDate 对含标签单元格的每个表格，取第一个带日期单元格中的第一个日期
func scanTablesFirstDate(d *Document, label string) [][]string {
	var blocks [][]string
	d.dom.Find("table").Each(func(_ int, table *goquery.Selection) {
		cells := cellTexts(table.Find("td"))
		if !anyContains(cells, label) {
			return
		}
		for _, c := range cells {
			if date := firstDate(c); date != "" {
				blocks = append(blocks, []string{date})
				return
			}
		}
	})
	return blocks
}

// scanMaturityDefault 先扫描带标签的段落（连同紧随其后的表格），再扫描含标签单元格的表格
func scanMaturityDefault(d *Document) [][]string {
	var blocks [][]string
	d.dom.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := Text(p)
		if !strings.Contains(text, labelMaturity) && !strings.Contains(text, labelMaturityRedemption) {
			return
		}
		var block []string
		if date := firstDate(text); date != "" {
			block = append(block, date)
		}
		if next := p.Next(); goquery.NodeName(next) == "table" {
			for _, c := range cellTexts(next.Find("td")) {
				block = append(block, allDates(c)...)
			}
		}
		if len(block) > 0 {
			blocks = append(blocks, block)
		}
	})

	d.dom.Find("table").Each(func(_ int, table *goquery.Selection) {
		cells := cellTexts(table.Find("td"))
		if !anyContains(cells, labelMaturityRedemption) {
			return
		}
		var block []string
		for _, c := range cells {
			if date := firstDate(c); date != "" {
				block = append(block, date)
			}
		}
		if len(block) > 0 {
			blocks = append(blocks, block)
		}
	})
	return blocks
}

// scanMaturitySamsung 标签单元格右侧单元格中的全部日期，没有日期也保留一个空块
func scanMaturitySamsung(d *Document) [][]string {
	var blocks [][]string
	d.dom.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := cellTexts(tr.Find("td"))
		for i, c := range cells {
			if !strings.Contains(c, labelMaturitySamsung) || i+1 >= len(cells) {
				continue
			}
			blocks = append(blocks, allDates(cells[i+1]))
		}
	})
	return blocks
}

// scanMaturityKyobo 含标签的表格中第一个带日期的单元格
func scanMaturityKyobo(d *Document) [][]string {
	var blocks [][]string
	d.dom.Find("table").Each(func(_ int, table *goquery.Selection) {
		cells := cellTexts(table.Find("td"))
		if !anyContains(cells, labelMaturityKyobo) {
			return
		}
		for _, c := range cells {
			if dates := allDates(c); len(dates) > 0 {
				blocks = append(blocks, dates)
				return
			}
		}
	})
	return blocks
}

// scanMaturityCountKiwoom 只看段落本身
func scanMaturityCountKiwoom(d *Document) [][]string {
	var blocks [][]string
	for _, text := range d.Paragraphs() {
		if !strings.Contains(text, labelMaturity) {
			continue
		}
		if dates := allDates(text); len(dates) > 0 {
			blocks = append(blocks, dates)
		}
	}
	return blocks
}

func cellTexts(s *goquery.Selection) []string {
	out := make([]string, 0, s.Length())
	s.Each(func(_ int, c *goquery.Selection) {
		out = append(out, Text(c))
	})
	return out
}

func anyContains(texts []string, sub string) bool {
	for _, t := range texts {
		if strings.Contains(t, sub) {
			return true
		}
	}
	return false
}
