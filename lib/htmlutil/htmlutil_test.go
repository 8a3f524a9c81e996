package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div>
		<li id="club" data-club-id=" D-42 ">
			Floor   <b>Speakers</b>&#8203;
		</li>
	</div>`))
	require.NoError(t, err)

	sel := doc.Find("#club")
	require.Equal(t, "Floor Speakers", CleanText(sel))
	require.Equal(t, "D-42", Attr(sel, "data-club-id"))
	require.Equal(t, "", CleanText(doc.Find("#missing")))
}
