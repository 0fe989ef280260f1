package services

// TeamNameResolver 球队名称规范化。
// 外部来源的名称在任何相等比较之前都必须先经过规范化。
type TeamNameResolver struct {
	scrapeMapping map[string]string
	apiMapping    map[string]string
}

// NewTeamNameResolver 创建名称规范化器
func NewTeamNameResolver(scrapeMapping, apiMapping map[string]string) *TeamNameResolver {
	return &TeamNameResolver{
		scrapeMapping: scrapeMapping,
		apiMapping:    apiMapping,
	}
}

// CleanScrapedName 规范化抓取源的球队名
func (r *TeamNameResolver) CleanScrapedName(raw string) string {
	if canonical, ok := r.scrapeMapping[raw]; ok {
		return canonical
	}
	return raw
}

// CleanAPIName 规范化 API 来源的球队名
func (r *TeamNameResolver) CleanAPIName(raw string) string {
	if canonical, ok := r.apiMapping[raw]; ok {
		return canonical
	}
	return raw
}
