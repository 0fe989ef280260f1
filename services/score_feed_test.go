package services

import (
	"testing"

	"github.com/streadway/amqp"
)

type recordingSink struct {
	facts []MatchFact
}

func (s *recordingSink) ApplyFacts(facts []MatchFact) error {
	s.facts = append(s.facts, facts...)
	return nil
}

func TestScoreFeedNormalizesTeamNames(t *testing.T) {
	sink := &recordingSink{}
	names := NewTeamNameResolver(map[string]string{"Liverpool FC": "Liverpool"}, nil)
	feed := NewScoreFeed("", "", names, sink)

	body := `{"team1": "Liverpool FC", "team2": "Lille", "match_time": "2025-01-21T21:00:00Z", "score_team1": 2, "score_team2": 1}`
	feed.handleMessage(amqp.Delivery{Body: []byte(body)})

	if len(sink.facts) != 1 {
		t.Fatalf("Expected 1 fact, got %d", len(sink.facts))
	}
	fact := sink.facts[0]
	if fact.Team1 != "Liverpool" {
		t.Errorf("Expected normalized team1 'Liverpool', got '%s'", fact.Team1)
	}
	if fact.Team2 != "Lille" {
		t.Errorf("Expected team2 'Lille', got '%s'", fact.Team2)
	}
	if fact.ScoreTeam1 == nil || *fact.ScoreTeam1 != 2 {
		t.Error("Expected score_team1 2 to be carried through")
	}
}

func TestScoreFeedDropsMalformedMessages(t *testing.T) {
	sink := &recordingSink{}
	feed := NewScoreFeed("", "", NewTeamNameResolver(nil, nil), sink)

	feed.handleMessage(amqp.Delivery{Body: []byte(`not json`)})
	feed.handleMessage(amqp.Delivery{Body: []byte(`{"team1": "", "team2": "Lille", "match_time": "2025-01-21T21:00:00Z"}`)})
	feed.handleMessage(amqp.Delivery{Body: []byte(`{"team1": "A", "team2": "B", "match_time": "21/01/2025"}`)})

	if len(sink.facts) != 0 {
		t.Errorf("Expected malformed messages to be dropped, got %d facts", len(sink.facts))
	}
}
