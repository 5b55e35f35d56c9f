// Package classify 对表格中的条款描述做纯文本分类：敲入障碍、收益阶梯、产品类型。
// 所有函数都是纯函数，相同输入总是得到相同输出。
package classify

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/model"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/rules"
)

// Classifier 基于编译后规则的分类器
type Classifier struct {
	rules *rules.Rules
}

// New 创建分类器
func New(r *rules.Rules) *Classifier {
	return &Classifier{rules: r}
}

// KnockIn 解析敲入障碍。
// 返回 nil 表示无障碍（显式 no-KI）或无法判断。
func (c *Classifier) KnockIn(terms string) *int {
	for _, kw := range c.rules.NoKnockInKeywords {
		if strings.Contains(terms, kw) {
			return nil
		}
	}

	for _, re := range c.rules.KnockInPatterns {
		if m := re.FindStringSubmatch(terms); m != nil {
			return atoiPtr(m[1])
		}
	}

	fb := c.rules.KnockInFallback
	if fb.Pattern == nil {
		return nil
	}
	m := fb.Pattern.FindStringSubmatchIndex(terms)
	if m == nil {
		return nil
	}
	for _, g := range fb.Groups {
		if m[2*g] >= 0 {
			return atoiPtr(terms[m[2*g]:m[2*g+1]])
		}
	}
	return nil
}

// PayoffLadder 提取收益阶梯，例如 "90-90-85-85-80-75"
func (c *Classifier) PayoffLadder(terms string) *string {
	l := c.rules.Ladder

	if l.Dash != nil {
		if matched := l.Dash.FindString(terms); matched != "" {
			return c.trimDashLadder(matched)
		}
	}
	if l.Slash != nil {
		if matched := l.Slash.FindString(terms); matched != "" {
			s := strings.ReplaceAll(matched, "/", "-")
			return &s
		}
	}
	if l.Comma != nil {
		if matched := l.Comma.FindString(terms); matched != "" {
			s := strings.ReplaceAll(matched, ",", "-")
			return &s
		}
	}
	return nil
}

func (c *Classifier) trimDashLadder(matched string) *string {
	l := c.rules.Ladder

	if l.LineBreak != "" {
		if i := strings.LastIndex(matched, l.LineBreak); i >= 0 {
			s := matched[i+len(l.LineBreak):]
			return &s
		}
	}
	if i := strings.LastIndex(matched, "/"); i >= 0 {
		s := matched[i+1:]
		return &s
	}
	if containsHangul(matched) {
		if l.BareDash == nil {
			return nil
		}
		if bare := l.BareDash.FindString(matched); bare != "" {
			return &bare
		}
		return nil
	}
	return &matched
}

// ProductType 按发行方选择规则集并判断产品类型
func (c *Classifier) ProductType(issuer, terms string) model.ProductType {
	set := c.rules.TypeRulesFor(issuer)

	if containsAny(terms, set.MonthlyKeywords) {
		return model.ProductTypeMonthlyPayment
	}
	if containsAny(terms, set.LizardKeywords) {
		return model.ProductTypeLizard
	}
	if containsAny(terms, set.EtcKeywords) {
		return model.ProductTypeETC
	}
	for _, kw := range set.StepDownKeywords {
		if containsStandalone(terms, kw) {
			return model.ProductTypeStepDown
		}
	}

	if len(set.PatternExclusionsAll) > 0 && containsAll(terms, set.PatternExclusionsAll) {
		return model.ProductTypeETC
	}
	for _, re := range set.StepDownPatterns {
		if re.MatchString(terms) {
			return model.ProductTypeStepDown
		}
	}
	return model.ProductTypeETC
}

// containsStandalone 关键字出现且前一个字符不是字母
func containsStandalone(s, kw string) bool {
	if kw == "" {
		return false
	}
	from := 0
	for {
		i := strings.Index(s[from:], kw)
		if i < 0 {
			return false
		}
		at := from + i
		if at == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(s[:at])
		if !unicode.IsLetter(prev) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[at:])
		from = at + size
	}
}

func containsAny(s string, kws []string) bool {
	for _, kw := range kws {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func containsAll(s string, kws []string) bool {
	for _, kw := range kws {
		if !strings.Contains(s, kw) {
			return false
		}
	}
	return true
}

func containsHangul(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
