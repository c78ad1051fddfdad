package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/aicanvas/internal/page"
)

func TestJSON_IsCanonicalDocument(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal(JSON(), &doc))

	assert.Equal(t, ID, doc["$id"])
	assert.Equal(t, "https://json-schema.org/draft/2020-12/schema", doc["$schema"])
	assert.Equal(t, false, doc["additionalProperties"])
}

func TestJSON_TypeEnumMatchesPageTypes(t *testing.T) {
	var doc struct {
		Defs struct {
			Component struct {
				Properties struct {
					Type struct {
						Enum []page.Type `json:"enum"`
					} `json:"type"`
				} `json:"properties"`
			} `json:"Component"`
		} `json:"$defs"`
	}
	require.NoError(t, json.Unmarshal(JSON(), &doc))

	assert.Equal(t, page.Types(), doc.Defs.Component.Properties.Type.Enum)
}

func TestRequirements(t *testing.T) {
	reqs := Requirements()
	require.Len(t, reqs, len(page.Types()))

	tests := []struct {
		typ        page.Type
		keys       []string
		configKeys []string
		forbidden  []string
	}{
		{page.TypeVegaLite, []string{"spec"}, nil, nil},
		{page.TypeMap, nil, nil, []string{"spec"}},
		{page.TypeList, nil, nil, []string{"spec"}},
		{page.TypeForm, []string{"config"}, []string{"columns"}, []string{"spec"}},
		{page.TypeTable, []string{"config"}, []string{"columns"}, []string{"spec"}},
		{page.TypeMarkdown, []string{"config"}, []string{"md"}, []string{"spec"}},
		{page.TypeMermaid, []string{"config"}, []string{"mermaid"}, []string{"spec"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			r, ok := RequirementFor(tt.typ)
			require.True(t, ok)
			assert.ElementsMatch(t, tt.keys, r.Keys)
			assert.ElementsMatch(t, tt.configKeys, r.ConfigKeys)
			assert.ElementsMatch(t, tt.forbidden, r.Forbidden)
		})
	}
}

func TestRequirementFor_Unknown(t *testing.T) {
	_, ok := RequirementFor("pie")
	assert.False(t, ok)
}
