package model

import (
	"errors"
	"time"
)

// 批处理错误分类
var (
	ErrInputMissing       = errors.New("input workbook missing")
	ErrFormatUnsupported  = errors.New("unsupported workbook format")
	ErrFetchTimeout       = errors.New("filing fetch timed out")
	ErrIssuerUnrecognized = errors.New("issuer not recognized")
)

// PlaceholderTicker 未知标的的占位代码，等待人工补全
const PlaceholderTicker = "NEED_TO_CHECK"

// ProductType 产品类型
type ProductType string

const (
	ProductTypeStepDown       ProductType = "STEP_DOWN"
	ProductTypeMonthlyPayment ProductType = "MONTHLY_PAYMENT"
	ProductTypeLizard         ProductType = "LIZARD"
	ProductTypeETC            ProductType = "ETC"
)

// ProductState 产品生命周期状态
type ProductState string

const (
	ProductStateActive   ProductState = "ACTIVE"
	ProductStateInactive ProductState = "INACTIVE"
)

// MaturityEvaluationKind 满期评价日数量分类
type MaturityEvaluationKind string

const (
	MaturitySingle   MaturityEvaluationKind = "SINGLE"
	MaturityMultiple MaturityEvaluationKind = "MULTIPLE"
	MaturityUnknown  MaturityEvaluationKind = "UNKNOWN"
)

// KindOfCount 按日期个数分类
func KindOfCount(n int) MaturityEvaluationKind {
	switch {
	case n > 1:
		return MaturityMultiple
	case n == 1:
		return MaturitySingle
	default:
		return MaturityUnknown
	}
}

// Row 表格中的一行原始数据
type Row struct {
	Index             int
	Issuer            string
	CreditRating      string
	Name              string
	Underlyings       string // 多个标的以 <br/> 连接
	IssuedDate        string // yyyyMMdd
	MaturityDate      string // yyyyMMdd
	Yield             string
	MaximumLossRate   string
	SubscriptionStart string
	SubscriptionEnd   string
	FullTerms         string
	Link              string
	Remarks           string
}

// SessionReference 从产品名解析出的发行方与回次
type SessionReference struct {
	Issuer  string
	Session string
}

// FilingIndexEntry 本地公示索引中的一条记录
type FilingIndexEntry struct {
	Name string
	URL  string
}

// Ticker 标的代码记录
type Ticker struct {
	ID         int64
	Symbol     string
	Underlying string
}

// IsPlaceholder 是否为占位代码
func (t *Ticker) IsPlaceholder() bool {
	return t == nil || t.Symbol == PlaceholderTicker
}

// VolatilityEntry 说明书中某个标的的历史波动率
type VolatilityEntry struct {
	Underlying string
	Percent    float64
}

// EarlyRedemptionDate 自动提前偿还评价日
type EarlyRedemptionDate struct {
	Round string // 例如 "1차"
	Date  time.Time
}

// UnderlyingLink 产品与标的代码之间的关联
type UnderlyingLink struct {
	Underlying string
	Ticker     *Ticker
	Volatility *float64
}

// ProductDraft 每行生成一次、提交前只允许改变状态的产品草稿
type ProductDraft struct {
	ID                     int64
	Issuer                 string
	Name                   string
	Underlyings            []string
	IssuedDate             time.Time
	MaturityDate           time.Time
	MaturityEvaluationDate *time.Time
	MaturityEvaluationKind MaturityEvaluationKind
	InitialFixingDate      *time.Time
	Yield                  float64
	MaximumLossRate        float64
	SubscriptionStart      time.Time
	SubscriptionEnd        time.Time
	FullTerms              string
	PayoffLadder           *string
	KnockIn                *int
	ProductType            ProductType
	State                  ProductState
	FilingLink             *string
	Link                   string
	Remarks                string
	Volatility             *string
	EarlyRedemptionDates   []EarlyRedemptionDate
	Links                  []UnderlyingLink
}

// Deactivate 将草稿标记为 INACTIVE，只能单向变更
func (p *ProductDraft) Deactivate() {
	p.State = ProductStateInactive
}
