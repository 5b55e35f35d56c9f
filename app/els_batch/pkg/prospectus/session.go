package prospectus

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/logger"
)

// issuerRow 含发行方名称标记的表格行
var issuerRow = cascadia.MustCompile(`tr:has(td:matchesOwn(주식회사|증권|증\s권|주\s식\s회\s사))`)

var (
	lineBreak    = regexp.MustCompile(`(?i)<br\s*/?>`)
	sessionRange = regexp.MustCompile(`\d+-\d+`)
)

// SessionIndex 一份说明书中各回次的位置索引
type SessionIndex struct {
	found      bool
	sessions   []string
	rangeStart int
	hasRange   bool
}

// Sessions 按文档顺序排列的回次号
func (x *SessionIndex) Sessions() []string {
	return x.sessions
}

// Locate 目标回次的序号，从 1 开始；未定位返回 0。
// 只有区间写法（例如 "제29589-29598회"）时按 target-A+1 计算，结果可能越界，由调用方判断。
func (x *SessionIndex) Locate(target string) int {
	if !x.found || target == "" {
		return 0
	}
	if len(x.sessions) > 0 {
		for i, s := range x.sessions {
			if s == target {
				return i + 1
			}
		}
		return 0
	}
	if x.hasRange {
		n, err := strconv.Atoi(target)
		if err != nil {
			return 0
		}
		return n - x.rangeStart + 1
	}
	return 0
}

func buildSessionIndex(dom *goquery.Document) *SessionIndex {
	row := dom.FindMatcher(issuerRow).First()
	if row.Length() == 0 {
		logger.Log.Error("定位回次失败: 找不到包含发行方名称的表格行")
		return &SessionIndex{}
	}

	x := &SessionIndex{found: true}

	inner, err := row.Html()
	if err != nil {
		logger.Log.Errorf("定位回次失败: 读取表格行 HTML 出错: %v", err)
		return &SessionIndex{}
	}
	for _, part := range lineBreak.Split(inner, -1) {
		x.sessions = append(x.sessions, SessionTokens(part)...)
	}

	if len(x.sessions) == 0 {
		if m := sessionRange.FindString(row.Text()); m != "" {
			start, err := strconv.Atoi(strings.SplitN(m, "-", 2)[0])
			if err == nil {
				x.rangeStart = start
				x.hasRange = true
			}
		}
	}
	return x
}

// SessionTokens 提取独立的数字：前后必须是空白、"제"、"회"、"호" 或字符串边界
func SessionTokens(s string) []string {
	var out []string
	for i := 0; i < len(s); {
		if !isDigit(s[i]) {
			i++
			continue
		}
		j := i
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if sessionBoundary(s[:i], true) && sessionBoundary(s[j:], false) {
			out = append(out, s[i:j])
		}
		i = j
	}
	return out
}

// ParseSession 从产品名中取最后一个回次号，没有时返回空串
func ParseSession(name string) string {
	tokens := SessionTokens(name)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}

func sessionBoundary(s string, before bool) bool {
	if s == "" {
		return true
	}
	var r rune
	if before {
		r, _ = utf8.DecodeLastRuneInString(s)
	} else {
		r, _ = utf8.DecodeRuneInString(s)
	}
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r', '제', '회', '호':
		return true
	}
	return false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
