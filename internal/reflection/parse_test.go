package reflection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReflectionXML = `<reflection>
<reflection-nodes>
<reflection-node>
<canonical-key>projects.omg-overview</canonical-key>
<description>compressed summary of early omg project discussion</description>
<content>User explored several project ideas before settling on omg.</content>
<moc-hints>projects</moc-hints>
</reflection-node>
</reflection-nodes>
<archive-nodes>
<id>omg/fact/early-idea-1</id>
<id>omg/fact/early-idea-2</id>
</archive-nodes>
<moc-updates>
<domain>projects</domain>
</moc-updates>
<node-updates>
<node-update>
<id>omg/project/omg</id>
<description>primary personal knowledge graph project, now well established</description>
</node-update>
</node-updates>
</reflection>`

func TestParse_HappyPath(t *testing.T) {
	r := Parse(sampleReflectionXML)
	require.Len(t, r.ReflectionNodes, 1)
	assert.Equal(t, "projects.omg-overview", r.ReflectionNodes[0].CanonicalKey)
	assert.ElementsMatch(t, []string{"omg/fact/early-idea-1", "omg/fact/early-idea-2"}, r.ArchiveNodes)
	assert.Equal(t, []string{"projects"}, r.MocUpdates)
	require.Len(t, r.NodeUpdates, 1)
	assert.Equal(t, "omg/project/omg", r.NodeUpdates[0].ID)
}

func TestParse_FencedXMLTolerated(t *testing.T) {
	fenced := "```xml\n" + sampleReflectionXML + "\n```"
	r := Parse(fenced)
	assert.Len(t, r.ReflectionNodes, 1)
}

func TestParse_MissingRootReturnsEmpty(t *testing.T) {
	r := Parse("no xml here at all")
	assert.Empty(t, r.ReflectionNodes)
	assert.Empty(t, r.ArchiveNodes)
}

func TestParse_DropsReflectionNodeMissingCanonicalKey(t *testing.T) {
	raw := `<reflection><reflection-nodes><reflection-node><description>x</description></reflection-node></reflection-nodes></reflection>`
	r := Parse(raw)
	assert.Empty(t, r.ReflectionNodes)
}

func TestParse_DropsNodeUpdateMissingID(t *testing.T) {
	raw := `<reflection><node-updates><node-update><description>x</description></node-update></node-updates></reflection>`
	r := Parse(raw)
	assert.Empty(t, r.NodeUpdates)
}
