package domain

// Subscription 表示某个发件地址的订阅/营销邮件汇总。
//
// 按发件地址粒度分组，不跨同域地址合并。Summary 由外部摘要
// 协作方异步填充，对本服务不透明，缺失不视为错误。
type Subscription struct {
	SenderAddress   string `json:"senderAddress"` // 规范化（小写）后的发件地址
	DisplayName     string `json:"displayName"`
	MessageCount    int    `json:"messageCount"`
	UnsubscribeURL  string `json:"unsubscribeUrl,omitempty"`
	HasHeaderOptOut bool   `json:"hasHeaderOptOut"` // List-Unsubscribe 头是否出现过
	Summary         string `json:"summary,omitempty"`
}
