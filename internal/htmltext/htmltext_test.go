package htmltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resumeHTML = `<h1>Ada Lovelace</h1><p>Engineer at <strong>Analytical</strong></p>` +
	`<ul><li>Go</li><li>Rust</li></ul><script>alert(1)</script>`

func TestToText(t *testing.T) {
	got, err := ToText(resumeHTML)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace\n\nEngineer at Analytical\n\n- Go\n- Rust", got)
}

func TestToMarkdown(t *testing.T) {
	got, err := ToMarkdown(resumeHTML)
	require.NoError(t, err)
	assert.Equal(t, "# Ada Lovelace\n\nEngineer at **Analytical**\n\n- Go\n- Rust", got)

	link, err := ToMarkdown(`<p>See <a href="https://example.com">portfolio</a></p>`)
	require.NoError(t, err)
	assert.Equal(t, "See [portfolio](https://example.com)", link)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"script removed", `<p>Hi<script>alert(1)</script></p>`, `<p>Hi</p>`},
		{"handler removed", `<p onclick="steal()">Hi</p>`, `<p>Hi</p>`},
		{"formatting kept", `<h2>Skills</h2><ul><li><em>Go</em></li></ul>`, `<h2>Skills</h2><ul><li><em>Go</em></li></ul>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}
