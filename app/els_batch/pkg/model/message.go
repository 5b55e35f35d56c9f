package model

// NewTickerMessage 标的代码缺失通知
type NewTickerMessage struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	Underlying  string `json:"underlying"`
}

// CorrectionReportMessage 说明书订正公告通知
type CorrectionReportMessage struct {
	ProductName string `json:"productName"`
	FilingURL   string `json:"filingUrl"`
	FilingTitle string `json:"filingTitle,omitempty"`
}

// NewIssuerMessage 无法识别的发行方通知
type NewIssuerMessage struct {
	ProductName string `json:"productName"`
	Issuer      string `json:"issuer"`
}
