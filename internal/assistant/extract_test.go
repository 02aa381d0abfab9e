package assistant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "bare object", input: `{"a":1}`, expected: `{"a":1}`},
		{name: "prose around", input: "Voici l'analyse:\n{\"type_client\":\"VENDEUR\"}\nMerci!", expected: `{"type_client":"VENDEUR"}`},
		{name: "code fence", input: "```json\n{\"a\":{\"b\":[1,2]}}\n```", expected: `{"a":{"b":[1,2]}}`},
		{name: "malformed first fragment", input: `note {oops} puis {"ok":true} et {"second":1}`, expected: `{"ok":true}`},
		{name: "braces in strings", input: `{"texte":"un } piège"}`, expected: `{"texte":"un } piège"}`},
		{name: "no object", input: "aucune donnée", wantErr: true},
		{name: "unterminated", input: `{"a":1`, wantErr: true},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(testingT *testing.T) {
			object, err := ExtractJSONObject(testCase.input)
			if testCase.wantErr {
				require.Error(testingT, err)
				return
			}
			require.NoError(testingT, err)
			require.JSONEq(testingT, testCase.expected, string(object))
		})
	}
}
