package population

import "github.com/corrift/segmentd/internal/rules"

// mockRecords is the development snapshot: 15 customers across the three
// membership tiers, each with a reason text used for ranking explanations.
var mockRecords = []Record{
	{
		ID: "1", Name: "王女士", Tier: "VVIP", Score: 98,
		RecentStore: "上海恒隆广场店", LastVisit: "3天前",
		Reason: "上月到访上海恒隆店3次 + 点击新品邮件",
		Features: map[string]rules.Value{
			"gender": rules.String("F"), "age": rules.Number(38), "age_group": rules.String("35-44"),
			"city_tier": rules.String("T1"), "r12m_spending": rules.Number(680000),
			"brand_loyalty_score": rules.Number(95), "store_visits_90d": rules.Number(6),
			"email_open_rate": rules.Number(0.82), "purchase_frequency": rules.Number(14),
			"last_purchase_days": rules.Number(12), "has_overseas_purchase": rules.Bool(true),
		},
	},
	{
		ID: "2", Name: "陈小姐", Tier: "VIP", Score: 95,
		RecentStore: "北京SKP", LastVisit: "1周前",
		Reason: "过去90天购买过2件配饰 + 浏览手袋页面超过10次",
		Features: map[string]rules.Value{
			"gender": rules.String("F"), "age": rules.Number(29), "age_group": rules.String("25-34"),
			"city_tier": rules.String("T1"), "r12m_spending": rules.Number(210000),
			"brand_loyalty_score": rules.Number(88), "category_browsing.手袋": rules.Number(12),
			"email_open_rate": rules.Number(0.64), "purchase_frequency": rules.Number(8),
			"last_purchase_days": rules.Number(25),
		},
	},
	{
		ID: "3", Name: "李先生", Tier: "VVIP", Score: 92,
		RecentStore: "成都IFS", LastVisit: "2周前",
		Reason: "年度消费总额 Top 5% + 情人节礼品搜索记录",
		Features: map[string]rules.Value{
			"gender": rules.String("M"), "age": rules.Number(45), "age_group": rules.String("45-54"),
			"city_tier": rules.String("T2"), "r12m_spending": rules.Number(520000),
			"brand_loyalty_score": rules.Number(90), "occupation": rules.String("企业高管"),
			"purchase_frequency": rules.Number(11), "last_purchase_days": rules.Number(34),
		},
	},
	{
		ID: "4", Name: "张女士", Tier: "Member", Score: 88,
		RecentStore: "深圳湾万象城", LastVisit: "5天前",
		Reason: "近期升级为金卡会员 + 收藏了春季新款",
		Features: map[string]rules.Value{
			"gender": rules.String("F"), "age": rules.Number(31), "age_group": rules.String("25-34"),
			"city_tier": rules.String("T1"), "r12m_spending": rules.Number(46000),
			"brand_loyalty_score": rules.Number(72), "member_since_days": rules.Number(160),
			"email_open_rate": rules.Number(0.55),
		},
	},
	{
		ID: "5", Name: "刘小姐", Tier: "VIP", Score: 85,
		RecentStore: "杭州大厦", LastVisit: "1个月前",
		Reason: "高频浏览度假系列 + 曾购买过同品牌小皮具",
		Features: map[string]rules.Value{
			"gender": rules.String("F"), "age": rules.Number(27), "age_group": rules.String("25-34"),
			"city_tier": rules.String("T2"), "r12m_spending": rules.Number(130000),
			"style_preference": rules.String("度假休闲"), "purchase_frequency": rules.Number(5),
			"last_purchase_days": rules.Number(48),
		},
	},
	{
		ID: "6", Name: "赵先生", Tier: "VVIP", Score: 93,
		RecentStore: "北京商务会所", LastVisit: "4天前",
		Reason: "春节期间购买礼品套装 + 经常参加VIP活动",
		Features: map[string]rules.Value{
			"gender": rules.String("M"), "age": rules.Number(52), "age_group": rules.String("45-54"),
			"city_tier": rules.String("T1"), "r12m_spending": rules.Number(590000),
			"event_participation": rules.Number(7), "vip_lounge_visits": rules.Number(9),
			"occupation": rules.String("企业家"), "purchase_frequency": rules.Number(12),
		},
	},
	{
		ID: "7", Name: "苏女士", Tier: "VIP", Score: 89,
		RecentStore: "南京德基广场", LastVisit: "6天前",
		Reason: "近期加购购物袋且多次浏览春季新品",
		Features: map[string]rules.Value{
			"gender": rules.String("F"), "age": rules.Number(33), "age_group": rules.String("25-34"),
			"city_tier": rules.String("T2"), "r12m_spending": rules.Number(175000),
			"cart_items_pending": rules.Strings("手袋"), "category_browsing.手袋": rules.Number(7),
			"last_purchase_days": rules.Number(40),
		},
	},
	{
		ID: "8", Name: "郭小姐", Tier: "Member", Score: 82,
		RecentStore: "成都SKP", LastVisit: "1周前",
		Reason: "浏览皮具类目超过8次 + 关注春季上新",
		Features: map[string]rules.Value{
			"gender": rules.String("F"), "age": rules.Number(24), "age_group": rules.String("25-34"),
			"city_tier": rules.String("T2"), "r12m_spending": rules.Number(28000),
			"category_browsing.手袋": rules.Number(8), "member_since_days": rules.Number(290),
		},
	},
	{
		ID: "9", Name: "吴先生", Tier: "VVIP", Score: 96,
		RecentStore: "上海静安嘉里中心", LastVisit: "2天前",
		Reason: "年度消费额Top 2% + 频繁参加线下品鉴会",
		Features: map[string]rules.Value{
			"gender": rules.String("M"), "age": rules.Number(48), "age_group": rules.String("45-54"),
			"city_tier": rules.String("T1"), "r12m_spending": rules.Number(820000),
			"event_participation": rules.Number(10), "brand_loyalty_score": rules.Number(97),
			"has_overseas_purchase": rules.Bool(true), "occupation": rules.String("企业家"),
		},
	},
	{
		ID: "10", Name: "周女士", Tier: "VIP", Score: 91,
		RecentStore: "深圳书城", LastVisit: "3周前",
		Reason: "点击营销邮件达10次 + 浏览手袋页面记录",
		Features: map[string]rules.Value{
			"gender": rules.String("F"), "age": rules.Number(36), "age_group": rules.String("35-44"),
			"city_tier": rules.String("T1"), "r12m_spending": rules.Number(155000),
			"email_click_rate": rules.Number(0.48), "email_open_rate": rules.Number(0.71),
			"category_browsing.手袋": rules.Number(5), "last_email_click_days": rules.Number(4),
		},
	},
	{
		ID: "11", Name: "许小姐", Tier: "Member", Score: 87,
		RecentStore: "杭州大楼", LastVisit: "10天前",
		Reason: "去年新增会员 + 已购买过1件配饰",
		Features: map[string]rules.Value{
			"gender": rules.String("F"), "age": rules.Number(26), "age_group": rules.String("25-34"),
			"city_tier": rules.String("T2"), "r12m_spending": rules.Number(35000),
			"member_since_days": rules.Number(370), "purchase_frequency": rules.Number(1),
		},
	},
	{
		ID: "12", Name: "何先生", Tier: "VVIP", Score: 94,
		RecentStore: "重庆IFS", LastVisit: "5天前",
		Reason: "月均消费额Top 10% + 关注所有新品发布",
		Features: map[string]rules.Value{
			"gender": rules.String("M"), "age": rules.Number(41), "age_group": rules.String("35-44"),
			"city_tier": rules.String("T2"), "r12m_spending": rules.Number(460000),
			"brand_loyalty_score": rules.Number(92), "app_daily_active": rules.Number(22),
			"occupation": rules.String("专业人士"),
		},
	},
	{
		ID: "13", Name: "范女士", Tier: "VIP", Score: 84,
		RecentStore: "北京燕莎购物中心", LastVisit: "2周前",
		Reason: "浏览春季新品页面达5次 + 加购历史记录",
		Features: map[string]rules.Value{
			"gender": rules.String("F"), "age": rules.Number(39), "age_group": rules.String("35-44"),
			"city_tier": rules.String("T1"), "r12m_spending": rules.Number(98000),
			"cart_items_pending": rules.Strings("丝巾"), "last_purchase_days": rules.Number(75),
		},
	},
	{
		ID: "14", Name: "丁小姐", Tier: "Member", Score: 80,
		RecentStore: "广州太古汇", LastVisit: "15天前",
		Reason: "新注册会员 + 有浏览手袋商品的行为",
		Features: map[string]rules.Value{
			"gender": rules.String("F"), "age": rules.Number(23), "age_group": rules.String("25-34"),
			"city_tier": rules.String("T1"), "r12m_spending": rules.Number(9000),
			"member_since_days": rules.Number(45), "category_browsing.手袋": rules.Number(3),
		},
	},
	{
		ID: "15", Name: "曹先生", Tier: "VIP", Score: 90,
		RecentStore: "南京德基", LastVisit: "1周前",
		Reason: "过去半年购买3件及以上 + 参加品牌活动2次",
		Features: map[string]rules.Value{
			"gender": rules.String("M"), "age": rules.Number(34), "age_group": rules.String("25-34"),
			"city_tier": rules.String("T2"), "r12m_spending": rules.Number(240000),
			"purchase_frequency": rules.Number(6), "event_participation": rules.Number(2),
			"last_purchase_days": rules.Number(20),
		},
	},
}
