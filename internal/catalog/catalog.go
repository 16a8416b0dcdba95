// Package catalog holds the population feature schema used to validate and
// describe segmentation rules.
package catalog

import "strings"

// Feature types.
const (
	TypeNumeric     = "numeric"
	TypeCategorical = "categorical"
	TypeBoolean     = "boolean"
	TypeList        = "list"
)

// Feature describes one population field: how it is named, typed, which
// operators apply to it, and natural-language phrasings that refer to it.
type Feature struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Type        string   `json:"type"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
	Operators   []string `json:"valid_operators"`
	EnumValues  []string `json:"enum_values,omitempty"`
	Min         float64  `json:"min,omitempty"`
	Max         float64  `json:"max,omitempty"`
	Bounded     bool     `json:"-"`
}

// SupportsOperator reports whether op is valid for this feature. "=" and
// "==" are interchangeable.
func (f Feature) SupportsOperator(op string) bool {
	if op == "=" {
		op = "=="
	}
	for _, valid := range f.Operators {
		if valid == op {
			return true
		}
	}
	return false
}

var numericOps = []string{">", ">=", "<", "<=", "==", "between"}
var enumOps = []string{"==", "in"}

func numeric(name, display, category, desc string, max float64, examples ...string) Feature {
	return Feature{
		Name: name, DisplayName: display, Type: TypeNumeric, Category: category,
		Description: desc, Examples: examples, Operators: numericOps,
		Min: 0, Max: max, Bounded: true,
	}
}

func categorical(name, display, category, desc string, values []string, examples ...string) Feature {
	return Feature{
		Name: name, DisplayName: display, Type: TypeCategorical, Category: category,
		Description: desc, Examples: examples, Operators: enumOps, EnumValues: values,
	}
}

// Categories in presentation order.
var Categories = []string{
	"人口属性",
	"会员等级",
	"消费力指标",
	"品牌忠诚度",
	"品类兴趣",
	"品牌活跃度",
	"会员权益使用",
	"数字行为",
	"营销响应",
	"生命周期",
	"风控与排除",
	"营销疲劳度",
}

var features = []Feature{
	categorical("gender", "性别", "人口属性", "客户性别",
		[]string{"M", "F"}, "女性客户", "男性用户", "性别为女"),
	categorical("age_group", "年龄段", "人口属性", "客户年龄段",
		[]string{"25-34", "35-44", "45-54", "55+"}, "25-34岁客户", "35-44岁的用户", "年龄在45-54岁"),
	numeric("age", "年龄", "人口属性", "客户年龄", 120, "年龄在25到44岁之间", "30岁以上"),
	categorical("city_tier", "城市等级", "人口属性", "客户所在城市等级",
		[]string{"T1", "T2", "T3"}, "一线城市客户", "新一线城市", "二线城市用户"),
	categorical("occupation", "职业", "人口属性", "客户职业类型",
		[]string{"企业高管", "企业家", "专业人士", "自由职业", "继承人/家族企业"},
		"企业高管", "企业家客户", "专业人士"),

	categorical("tier", "会员等级", "会员等级", "客户会员等级",
		[]string{"VVIP", "VIP", "Member"}, "VVIP客户", "VIP会员", "普通会员"),
	numeric("score", "客户潜力分", "会员等级", "综合消费力与活跃度的客户潜力评分（0-100）",
		100, "潜力分85以上", "高潜力客户"),

	numeric("r12m_spending", "近12个月消费额", "消费力指标", "客户近12个月累计消费金额（人民币）",
		10000000, "消费额大于10万", "年度消费超过50万", "近一年消费10-30万"),
	numeric("avg_order_value", "平均客单价", "消费力指标", "客户平均每笔订单金额（人民币）",
		1000000, "客单价大于5万", "平均单笔消费超过2万"),
	numeric("purchase_frequency", "年购买频次", "消费力指标", "客户近12个月购买次数",
		100, "购买频次大于10次", "年度购买超过5次"),
	numeric("last_purchase_days", "距上次购买天数", "消费力指标", "距离最近一次购买的天数",
		3650, "最近30天内购买过", "距上次购买不超过7天"),
	{
		Name: "has_overseas_purchase", DisplayName: "有海外消费记录", Type: TypeBoolean,
		Category: "消费力指标", Description: "最近3个月是否有海外消费记录",
		Examples:  []string{"有海外消费记录", "最近在国外购买过", "海外购物用户"},
		Operators: []string{"=="},
	},
	numeric("overseas_spending_12m", "近12个月海外消费额", "消费力指标", "客户近12个月海外消费金额（人民币）",
		10000000, "海外消费超过10万", "国外购买金额大于50万"),

	numeric("brand_loyalty_score", "品牌忠诚度分数", "品牌忠诚度", "客户品牌忠诚度评分（0-100分）",
		100, "忠诚度大于80分", "品牌忠诚度高", "忠诚度评分超过90"),
	categorical("style_preference", "款式偏好", "品牌忠诚度", "客户喜欢的款式风格",
		[]string{"经典", "时尚", "前卫", "度假休闲", "商务正式"},
		"经典款式爱好者", "时尚风格客户", "偏好前卫设计"),

	numeric("category_browsing.手袋", "手袋浏览次数", "品类兴趣", "客户浏览手袋品类的次数（近30天）",
		1000, "浏览手袋超过10次", "手袋品类浏览大于5次"),
	numeric("category_browsing.高级珠宝", "珠宝浏览次数", "品类兴趣", "客户浏览高级珠宝品类的次数（近30天）",
		1000, "浏览珠宝超过5次", "珠宝品类感兴趣"),
	{
		Name: "cart_items_pending", DisplayName: "加购未支付商品", Type: TypeList,
		Category: "品类兴趣", Description: "客户加入购物车但未支付的商品品类",
		Examples:  []string{"加购了手袋未下单", "购物车有商品待支付", "加购未购买"},
		Operators: []string{"contains", "not_empty", "empty"},
	},

	numeric("store_visits_90d", "近90天门店到访次数", "品牌活跃度", "客户近90天到访线下门店的次数",
		100, "门店到访超过3次", "近3个月到店5次以上"),
	numeric("online_active_days_30d", "近30天线上活跃天数", "品牌活跃度", "客户近30天线上活跃的天数",
		30, "线上活跃超过15天", "近1个月活跃天数大于20"),
	numeric("email_open_rate", "邮件打开率", "品牌活跃度", "客户邮件打开率（0-1）",
		1, "邮件打开率大于50%", "打开率超过0.7"),
	numeric("email_click_rate", "邮件点击率", "品牌活跃度", "客户邮件点击率（0-1）",
		1, "邮件点击率大于30%", "点击率超过0.5"),
	numeric("event_participation", "活动参与次数", "品牌活跃度", "客户参与品牌活动的次数",
		100, "参与活动超过3次", "活动参与次数大于5"),

	numeric("vip_lounge_visits", "VIP休息室使用次数", "会员权益使用", "客户使用VIP休息室的次数（近12个月）",
		100, "使用过VIP休息室", "休息室使用超过5次"),
	numeric("personal_shopper_usage", "私人顾问服务使用次数", "会员权益使用", "客户使用私人顾问服务的次数（近12个月）",
		100, "使用过私人顾问", "私人顾问服务超过3次"),

	numeric("app_daily_active", "APP日活天数", "数字行为", "客户APP日活天数（近30天）",
		30, "APP活跃超过15天", "近1个月APP使用超过20天"),
	numeric("wechat_interaction", "微信互动次数", "数字行为", "客户微信互动次数（近30天）",
		1000, "微信互动超过20次", "微信互动频繁"),
	numeric("live_stream_participation", "直播参与次数", "数字行为", "客户参与直播的次数（近90天）",
		100, "参与过直播", "直播参与超过3次"),

	numeric("last_email_click_days", "距上次邮件点击天数", "营销响应", "距离最近一次邮件点击的天数",
		3650, "最近7天内点击过邮件", "距上次邮件点击不超过30天"),
	numeric("referral_count", "推荐好友数量", "营销响应", "客户推荐好友的数量",
		100, "推荐过好友", "推荐数量大于2"),
	numeric("social_engagement", "社交媒体互动次数", "营销响应", "客户社交媒体互动次数",
		1000, "社交媒体互动超过20次", "社交活跃度高"),

	numeric("member_since_days", "会员天数", "生命周期", "客户成为会员的天数",
		10000, "会员超过1年", "新会员（少于6个月）", "老客户（超过3年）"),
	numeric("first_purchase_days", "距首次购买天数", "生命周期", "距离首次购买的天数",
		10000, "首购超过1年", "新客户（首购少于3个月）"),

	{
		Name: "complaints_open", DisplayName: "未结案投诉数", Type: TypeNumeric,
		Category: "风控与排除", Description: "客户未结案的投诉数量",
		Examples:  []string{"无投诉", "有未解决投诉", "排除有投诉的用户"},
		Operators: []string{">", ">=", "<", "<=", "=="},
		Min:       0, Max: 100, Bounded: true,
	},
	numeric("return_rate", "退货率", "风控与排除", "客户退货率（0-1）",
		1, "退货率低于10%", "退货率小于0.15", "排除高退货率用户"),

	numeric("last_campaign_days", "距上次营销触达天数", "营销疲劳度", "距离最近一次营销触达的天数",
		3650, "最近7天未触达", "距上次营销超过14天"),
	numeric("campaign_exposure_30d", "近30天营销触达次数", "营销疲劳度", "客户近30天被营销触达的次数",
		100, "营销触达少于5次", "排除高频触达用户"),
}

var byName = func() map[string]Feature {
	m := make(map[string]Feature, len(features))
	for _, f := range features {
		m[f.Name] = f
	}
	return m
}()

// All returns every feature in catalog order.
func All() []Feature {
	out := make([]Feature, len(features))
	copy(out, features)
	return out
}

// ByName looks a feature up by field name.
func ByName(name string) (Feature, bool) {
	f, ok := byName[name]
	return f, ok
}

// ByCategory returns the features of one category in catalog order.
func ByCategory(category string) []Feature {
	var out []Feature
	for _, f := range features {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out
}

// Search returns features whose display name, description or examples
// contain any of the keywords. Used to ground free-text concepts in the
// schema.
func Search(keywords ...string) []Feature {
	var out []Feature
	for _, f := range features {
		text := strings.ToLower(f.DisplayName + " " + f.Description + " " + strings.Join(f.Examples, " "))
		for _, kw := range keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(text, strings.ToLower(kw)) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}
