package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omg/internal/model"
)

const sampleXML = `<observations>
<operation type="identity" priority="high">
<canonical-key>identity.name</canonical-key>
<description>user's given name</description>
<content>The user is named Ada.</content>
<moc-hints>identity</moc-hints>
</operation>
<now-update>Working on the omg core spec.</now-update>
</observations>`

func TestParse_HappyPath(t *testing.T) {
	result := Parse(sampleXML)
	require.Len(t, result.Upserts, 1)
	op := result.Upserts[0]
	assert.Equal(t, "identity.name", op.CanonicalKey)
	assert.Equal(t, model.TypeIdentity, op.Type)
	assert.Equal(t, model.PriorityHigh, op.Priority)
	assert.Equal(t, "The user is named Ada.", op.Body)
	assert.Equal(t, []string{"identity"}, result.MocUpdates)
	require.NotNil(t, result.NowUpdate)
	assert.Equal(t, "Working on the omg core spec.", *result.NowUpdate)
	assert.Equal(t, 0, result.DroppedCount)
}

func TestParse_FencedXMLTolerated(t *testing.T) {
	fenced := "Here is my output:\n```xml\n" + sampleXML + "\n```"
	result := Parse(fenced)
	require.Len(t, result.Upserts, 1)
}

func TestParse_ZeroOperations(t *testing.T) {
	result := Parse(`<observations></observations>`)
	assert.Empty(t, result.Upserts)
	assert.Equal(t, 0, result.DroppedCount)
}

func TestParse_DropsMissingCanonicalKey(t *testing.T) {
	raw := `<observations><operation type="fact" priority="low"><description>x</description></operation></observations>`
	result := Parse(raw)
	assert.Empty(t, result.Upserts)
	assert.Equal(t, 1, result.DroppedCount)
}

func TestParse_DropsUnknownType(t *testing.T) {
	raw := `<observations><operation type="bogus" priority="low"><canonical-key>a.b</canonical-key><description>x</description></operation></observations>`
	result := Parse(raw)
	assert.Empty(t, result.Upserts)
	assert.Equal(t, 1, result.DroppedCount)
}

func TestParse_DropsEmptyDescription(t *testing.T) {
	raw := `<observations><operation type="fact" priority="low"><canonical-key>a.b</canonical-key><description></description></operation></observations>`
	result := Parse(raw)
	assert.Empty(t, result.Upserts)
	assert.Equal(t, 1, result.DroppedCount)
}

func TestParse_DefaultsUnknownPriorityToMedium(t *testing.T) {
	raw := `<observations><operation type="fact" priority="urgent"><canonical-key>a.b</canonical-key><description>x</description></operation></observations>`
	result := Parse(raw)
	require.Len(t, result.Upserts, 1)
	assert.Equal(t, model.PriorityMedium, result.Upserts[0].Priority)
}

func TestParse_MalformedInputReturnsEmpty(t *testing.T) {
	result := Parse("not xml at all, just prose")
	assert.Empty(t, result.Upserts)
	assert.Nil(t, result.NowUpdate)
}
