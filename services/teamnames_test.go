package services

import "testing"

func TestTeamNameResolver(t *testing.T) {
	resolver := NewTeamNameResolver(
		map[string]string{"eng Arsenal": "Arsenal"},
		map[string]string{"Arsenal FC": "Arsenal"},
	)

	if name := resolver.CleanScrapedName("eng Arsenal"); name != "Arsenal" {
		t.Errorf("Expected 'Arsenal', got '%s'", name)
	}
	if name := resolver.CleanAPIName("Arsenal FC"); name != "Arsenal" {
		t.Errorf("Expected 'Arsenal', got '%s'", name)
	}

	// 未知名称原样返回
	if name := resolver.CleanAPIName("Galatasaray"); name != "Galatasaray" {
		t.Errorf("Expected passthrough, got '%s'", name)
	}
}
