// Package rules 加载批处理使用的固定查找表（发行方、障碍关键字、正则优先级列表），
// 启动时编译一次，之后只读。
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// File rules.yaml 的结构
type File struct {
	Issuers           []string         `yaml:"issuers"`
	NoKnockInKeywords []string         `yaml:"no_knock_in_keywords"`
	KnockInPatterns   []string         `yaml:"knock_in_patterns"`
	KnockInFallback   FallbackFile     `yaml:"knock_in_fallback"`
	PayoffLadder      LadderFile       `yaml:"payoff_ladder"`
	ProductTypes      ProductTypesFile `yaml:"product_types"`
}

// FallbackFile 复合兜底正则
type FallbackFile struct {
	Pattern string `yaml:"pattern"`
	Groups  []int  `yaml:"groups"`
}

// LadderFile 收益阶梯正则
type LadderFile struct {
	Dash      string `yaml:"dash"`
	Slash     string `yaml:"slash"`
	Comma     string `yaml:"comma"`
	BareDash  string `yaml:"bare_dash"`
	LineBreak string `yaml:"line_break"`
}

// ProductTypesFile 产品类型规则集
type ProductTypesFile struct {
	Default TypeRuleFile            `yaml:"default"`
	Issuers map[string]TypeRuleFile `yaml:"issuers"`
}

// TypeRuleFile 单个规则集
type TypeRuleFile struct {
	MonthlyKeywords      []string `yaml:"monthly_keywords"`
	LizardKeywords       []string `yaml:"lizard_keywords"`
	EtcKeywords          []string `yaml:"etc_keywords"`
	StepDownKeywords     []string `yaml:"step_down_keywords"`
	StepDownPatterns     []string `yaml:"step_down_patterns"`
	PatternExclusionsAll []string `yaml:"pattern_exclusions_all"`
}

// Rules 编译后的只读规则
type Rules struct {
	Issuers           []string
	NoKnockInKeywords []string
	KnockInPatterns   []*regexp.Regexp
	KnockInFallback   Fallback
	Ladder            Ladder
	DefaultType       TypeRuleSet
	IssuerTypes       map[string]TypeRuleSet
}

// Fallback 复合兜底正则及其候选分组
type Fallback struct {
	Pattern *regexp.Regexp
	Groups  []int
}

// Ladder 收益阶梯正则
type Ladder struct {
	Dash      *regexp.Regexp
	Slash     *regexp.Regexp
	Comma     *regexp.Regexp
	BareDash  *regexp.Regexp
	LineBreak string
}

// TypeRuleSet 编译后的产品类型规则集
type TypeRuleSet struct {
	MonthlyKeywords      []string
	LizardKeywords       []string
	EtcKeywords          []string
	StepDownKeywords     []string
	StepDownPatterns     []*regexp.Regexp
	PatternExclusionsAll []string
}

// Default 返回内置规则
func Default() (*Rules, error) {
	return Parse(defaultRules)
}

// Load 从文件加载规则，path 为空时使用内置规则
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data)
}

// Parse 解析并编译规则
func Parse(data []byte) (*Rules, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return f.Compile()
}

// Compile 编译所有正则
func (f *File) Compile() (*Rules, error) {
	if len(f.Issuers) == 0 {
		return nil, fmt.Errorf("rules: issuer table is empty")
	}

	r := &Rules{
		Issuers:           append([]string(nil), f.Issuers...),
		NoKnockInKeywords: append([]string(nil), f.NoKnockInKeywords...),
		IssuerTypes:       make(map[string]TypeRuleSet, len(f.ProductTypes.Issuers)),
	}

	var err error
	if r.KnockInPatterns, err = compileAll(f.KnockInPatterns); err != nil {
		return nil, err
	}

	if f.KnockInFallback.Pattern != "" {
		if r.KnockInFallback.Pattern, err = regexp.Compile(f.KnockInFallback.Pattern); err != nil {
			return nil, fmt.Errorf("compile knock-in fallback: %w", err)
		}
		for _, g := range f.KnockInFallback.Groups {
			if g < 1 || g > r.KnockInFallback.Pattern.NumSubexp() {
				return nil, fmt.Errorf("knock-in fallback group %d out of range", g)
			}
		}
		r.KnockInFallback.Groups = append([]int(nil), f.KnockInFallback.Groups...)
	}

	ladder := []struct {
		src string
		dst **regexp.Regexp
	}{
		{f.PayoffLadder.Dash, &r.Ladder.Dash},
		{f.PayoffLadder.Slash, &r.Ladder.Slash},
		{f.PayoffLadder.Comma, &r.Ladder.Comma},
		{f.PayoffLadder.BareDash, &r.Ladder.BareDash},
	}
	for _, l := range ladder {
		if l.src == "" {
			continue
		}
		if *l.dst, err = regexp.Compile(l.src); err != nil {
			return nil, fmt.Errorf("compile ladder pattern %q: %w", l.src, err)
		}
	}
	r.Ladder.LineBreak = f.PayoffLadder.LineBreak

	if r.DefaultType, err = f.ProductTypes.Default.compile(); err != nil {
		return nil, err
	}
	for issuer, set := range f.ProductTypes.Issuers {
		compiled, err := set.compile()
		if err != nil {
			return nil, fmt.Errorf("issuer %s: %w", issuer, err)
		}
		r.IssuerTypes[issuer] = compiled
	}

	return r, nil
}

func (t TypeRuleFile) compile() (TypeRuleSet, error) {
	patterns, err := compileAll(t.StepDownPatterns)
	if err != nil {
		return TypeRuleSet{}, err
	}
	return TypeRuleSet{
		MonthlyKeywords:      t.MonthlyKeywords,
		LizardKeywords:       t.LizardKeywords,
		EtcKeywords:          t.EtcKeywords,
		StepDownKeywords:     t.StepDownKeywords,
		StepDownPatterns:     patterns,
		PatternExclusionsAll: t.PatternExclusionsAll,
	}, nil
}

// TypeRulesFor 按发行方显示名选择规则集，未注册时返回默认规则集
func (r *Rules) TypeRulesFor(issuer string) TypeRuleSet {
	if set, ok := r.IssuerTypes[issuer]; ok {
		return set
	}
	return r.DefaultType
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
