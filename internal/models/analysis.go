package models

import "time"

// Role 是幻灯片在叙事结构中承担的语义角色。
type Role string

const (
	RoleProblem    Role = "problem"
	RoleSolution   Role = "solution"
	RoleTraction   Role = "traction"
	RoleMarket     Role = "market"
	RoleTeam       Role = "team"
	RoleFinancials Role = "financials"
	RoleAsk        Role = "ask"
	RoleUnknown    Role = "unknown"
)

// SlideRole 是角色分类器对单张幻灯片的输出。
type SlideRole struct {
	Role       Role     `json:"role" bson:"role"`
	Confidence float64  `json:"confidence" bson:"confidence"`
	Keywords   []string `json:"keywords" bson:"keywords"` // 命中的关键字与正则匹配片段，已去重
}

// DeckStructure 是整个 deck 的角色分布汇总。
type DeckStructure struct {
	RoleCounts      map[Role]int     `json:"role_counts" bson:"role_counts"`
	RolePercentages map[Role]float64 `json:"role_percentages" bson:"role_percentages"`
	MissingSections []Role           `json:"missing_sections" bson:"missing_sections"`
	DeckType        string           `json:"deck_type" bson:"deck_type"`
	TotalSlides     int              `json:"total_slides" bson:"total_slides"`
}

// KPIName 是可被提取的量化指标家族。
type KPIName string

const (
	KPIRevenue    KPIName = "revenue"
	KPICustomers  KPIName = "customers"
	KPIGrowthRate KPIName = "growth_rate"
	KPIMarketSize KPIName = "market_size"
	KPIFunding    KPIName = "funding"
	KPITeamSize   KPIName = "team_size"
)

// KPI 是从幻灯片文本中提取到的一个数值声明。
// Value 保留捕获到的原始数字字符串，不做单位归一化，下游自行解析。
type KPI struct {
	Name       KPIName `json:"name" bson:"name"`
	Value      string  `json:"value" bson:"value"`
	Unit       string  `json:"unit" bson:"unit"`
	Confidence float64 `json:"confidence" bson:"confidence"`
	SourceText string  `json:"source_text" bson:"source_text"` // 命中的原文片段，用于溯源
}

// AggregatedKPI 是某个指标家族在整个 deck 范围内的最优候选。
type AggregatedKPI struct {
	Value        string  `json:"value" bson:"value"`
	Unit         string  `json:"unit" bson:"unit"`
	Confidence   float64 `json:"confidence" bson:"confidence"`
	SourceText   string  `json:"source_text" bson:"source_text"`
	TotalMatches int     `json:"total_matches" bson:"total_matches"`
}

// StructureAnalysis 是结构分析的持久化文档，按 deck_id 全量重算覆盖。
type StructureAnalysis struct {
	DeckID        string               `json:"deck_id" bson:"deck_id"`
	SlideRoles    map[string]SlideRole `json:"slide_roles" bson:"slide_roles"` // slide_id -> 角色
	DeckStructure DeckStructure        `json:"deck_structure" bson:"deck_structure"`
	AnalyzedAt    time.Time            `json:"analyzed_at" bson:"analyzed_at"`
}

// KPIAnalysis 是 KPI 提取的持久化文档，与 StructureAnalysis 并列。
type KPIAnalysis struct {
	DeckID         string                    `json:"deck_id" bson:"deck_id"`
	SlideKPIs      map[string][]KPI          `json:"slide_kpis" bson:"slide_kpis"` // slide_id -> 候选列表
	AggregatedKPIs map[KPIName]AggregatedKPI `json:"aggregated_kpis" bson:"aggregated_kpis"`
	AnalyzedAt     time.Time                 `json:"analyzed_at" bson:"analyzed_at"`
}
