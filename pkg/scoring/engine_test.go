package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_DefaultRules(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name     string
		facts    LeadFacts
		expected int
	}{
		{
			name:     "Cold lead with nothing",
			facts:    LeadFacts{Stage: "novo", Temperature: "frio", Product: "indefinido"},
			expected: 0,
		},
		{
			name:     "Warm referred lead",
			facts:    LeadFacts{Stage: "novo", Temperature: "morno", Source: "indicacao", Email: "a@b.com"},
			expected: 45,
		},
		{
			name: "Clamped at 100",
			facts: LeadFacts{
				Stage: "negociacao", Temperature: "quente", Source: "indicacao", Product: "otb",
				Email: "a@b.com", Profession: "dentista", HasClinic: true,
			},
			expected: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.Score(nil, LeadEnv(tt.facts)))
		})
	}
}

func TestScore_CustomRulesSkipBroken(t *testing.T) {
	e := NewEngine()
	rules := []Rule{
		{Name: "dor", Condition: `LOWER(mainPain) == "tempo"`, Points: 40},
		{Name: "quebrada", Condition: `unknownField > 1`, Points: 50},
		{Name: "negativa", Condition: `temperature == "frio"`, Points: -60},
	}

	assert.Equal(t, 40, e.Score(rules, LeadEnv(LeadFacts{MainPain: "Tempo", Temperature: "morno"})))
	assert.Equal(t, 0, e.Score(rules, LeadEnv(LeadFacts{MainPain: "Tempo", Temperature: "frio"})))
}

func TestValidate(t *testing.T) {
	e := NewEngine()
	assert.NoError(t, e.Validate(DefaultRules))
	assert.Error(t, e.Validate([]Rule{{Name: "vazia"}}))
	assert.Error(t, e.Validate([]Rule{{Name: "sintaxe", Condition: `stage ==`}}))
	assert.Error(t, e.Validate([]Rule{{Name: "não booleana", Condition: `stage`}}))
}
