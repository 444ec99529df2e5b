package htmlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestNodeText(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(
		"<div>\n\t <p>Mixer   <b>X</b> \n</p></div>",
	))
	require.NoError(t, err)

	require.Equal(t, "Mixer X", NodeText(doc))
	require.Equal(t, "", NodeText(nil))
}

func TestCleanText(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{in: "  plain  ", expected: "plain"},
		{in: "a\n\n\tb", expected: "a b"},
		{in: "bell\x07", expected: "bell"},
		{in: "", expected: ""},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, CleanText(test.in))
	}
}
