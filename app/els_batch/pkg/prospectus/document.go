// Package prospectus 抓取并解析投资说明书，定位回次并抽取条款字段。
package prospectus

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/logger"
)

// Document 解析后的说明书，每行抓取一次，用完即弃
type Document struct {
	URL string

	dom *goquery.Document

	once     sync.Once
	sessions *SessionIndex

	titleOnce sync.Once
	title     string
}

// NewDocument 从 HTML 内容创建文档
func NewDocument(rawURL string, r io.Reader) (*Document, error) {
	dom, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{URL: rawURL, dom: dom}, nil
}

// Title 说明书标题，首次调用时用 readability 提取，失败时为空串
func (d *Document) Title() string {
	d.titleOnce.Do(func() {
		d.title = readableTitle(d)
	})
	return d.title
}

func readableTitle(d *Document) string {
	u, err := url.Parse(d.URL)
	if err != nil {
		return ""
	}
	page, err := d.dom.Html()
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(page), u)
	if err != nil {
		logger.Log.WithField("url", d.URL).Debugf("提取说明书标题失败: %v", err)
		return ""
	}
	return strings.TrimSpace(article.Title)
}

// Sessions 返回回次索引，首次调用时构建
func (d *Document) Sessions() *SessionIndex {
	d.once.Do(func() {
		d.sessions = buildSessionIndex(d.dom)
	})
	return d.sessions
}

// Locate 返回目标回次在文档中的序号（从 1 开始），找不到为 0
func (d *Document) Locate(session string) int {
	return d.Sessions().Locate(session)
}

// Paragraphs 返回所有 <p> 的规范化文本
func (d *Document) Paragraphs() []string {
	var out []string
	d.dom.Find("p").Each(func(_ int, s *goquery.Selection) {
		out = append(out, Text(s))
	})
	return out
}

// Text 仿照浏览器 innerText 的规范化文本：块级元素与 <br> 视为空白，连续空白折叠为一个空格
func Text(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		writeText(&b, n)
	}
	return Normalize(b.String())
}

// Normalize 折叠连续空白（含不换行空格）并去掉首尾空白
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "body": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true, "figure": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "hr": true, "li": true, "main": true,
	"nav": true, "ol": true, "p": true, "pre": true, "section": true, "table": true,
	"tbody": true, "td": true, "tfoot": true, "th": true, "thead": true, "tr": true,
	"ul": true,
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
	case html.ElementNode, html.DocumentNode:
		if n.Type == html.ElementNode && n.Data == "br" {
			b.WriteByte(' ')
			return
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeText(b, c)
		}
		if block {
			b.WriteByte(' ')
		}
	}
}

// dateToken 说明书中的日期写法，月和日可以不补零
var dateToken = regexp.MustCompile(`\d{4}년 \d{1,2}월 \d{1,2}일`)

// dateLayout 同时接受 "01월" 和 "1월"
const dateLayout = "2006년 1월 2일"

// ParseDate 解析 "2024년 01월 02일" 或 "2024년 1월 2일" 形式的日期
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func firstDate(s string) string {
	return dateToken.FindString(s)
}

func allDates(s string) []string {
	return dateToken.FindAllString(s, -1)
}
