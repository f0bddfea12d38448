package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

func extract(t *testing.T, url, body string) *domain.Extraction {
	t.Helper()
	result, err := New().Extract(context.Background(), &domain.FetchedPage{
		URL:         url,
		ContentType: "text/markdown; charset=utf-8",
		Body:        []byte(body),
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{"text/markdown", "text/x-markdown"}, New().SupportedMIMETypes())
}

func TestExtract_TitleFromHeading(t *testing.T) {
	result := extract(t, "https://docs.example.com/guide/install.md", "Intro line\n\n# Installing ##\n\nRun it.")

	assert.Equal(t, "Installing", result.Title)
}

func TestExtract_TitleFromURL(t *testing.T) {
	result := extract(t, "https://docs.example.com/guide/getting-started.md", "## Only a subheading\n\ntext")

	assert.Equal(t, "getting started", result.Title)
}

func TestExtract_StripsSyntax(t *testing.T) {
	body := "# Pipelines\n\n" +
		"Use **fp16** and *xformers* with `enable_model_cpu_offload`.\n\n" +
		"> Note: this is a quote\n\n" +
		"- first\n" +
		"- second\n\n" +
		"---\n\n" +
		"![diagram](img/arch.png)\n" +
		"See the [quick tour](/docs/quicktour) first.\n"

	result := extract(t, "https://docs.example.com/pipelines.md", body)

	assert.Equal(t, "Pipelines\n\n"+
		"Use fp16 and xformers with enable_model_cpu_offload.\n\n"+
		"Note: this is a quote\n\n"+
		"first\n"+
		"second\n\n"+
		"See the quick tour first.", result.Text)
}

func TestExtract_KeepsCodeContent(t *testing.T) {
	body := "Install:\n\n```bash\npip install diffusers\n```\n"

	result := extract(t, "https://docs.example.com/install.md", body)

	assert.Equal(t, "Install:\n\npip install diffusers", result.Text)
	assert.NotContains(t, result.Text, "```")
}

func TestExtract_Links(t *testing.T) {
	body := "Read [the guide](/docs/guide \"Guide\") and <https://docs.example.com/api>.\n\n" +
		"[ref]: https://docs.example.com/ref\n"

	result := extract(t, "https://docs.example.com/index.md", body)

	assert.Equal(t, []string{
		"/docs/guide",
		"https://docs.example.com/api",
		"https://docs.example.com/ref",
	}, result.Links)
	assert.NotContains(t, result.Text, "https://docs.example.com/ref")
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name string
		page *domain.FetchedPage
	}{
		{"nil page", nil},
		{"empty body", &domain.FetchedPage{URL: "u", ContentType: "text/markdown", Body: []byte("  \n")}},
		{"binary body", &domain.FetchedPage{URL: "u", ContentType: "text/markdown", Body: []byte{'a', 0, 'b'}}},
		{"invalid utf8", &domain.FetchedPage{URL: "u", ContentType: "text/markdown", Body: []byte{0xff, 0xfe}}},
		{"wrong type", &domain.FetchedPage{URL: "u", ContentType: "text/html", Body: []byte("# x")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Extract(context.Background(), tt.page)
			assert.ErrorIs(t, err, domain.ErrExtraction)
		})
	}
}
