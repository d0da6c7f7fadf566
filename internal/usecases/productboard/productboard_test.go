package productboard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/registry"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/testutil"
)

func newCatalogue(t *testing.T) (*Catalogue, *testutil.MockAPI) {
	t.Helper()
	api := &testutil.MockAPI{}
	t.Cleanup(func() { api.AssertExpectations(t) })
	return New(api, logging.NewNop()), api
}

func toolByName(t *testing.T, c *Catalogue, name string) domain.Tool {
	t.Helper()
	for _, tool := range c.Tools() {
		if tool.Name() == name {
			return tool
		}
	}
	t.Fatalf("tool %s not in catalogue", name)
	return nil
}

func TestToolsCatalogue(t *testing.T) {
	c, _ := newCatalogue(t)

	names := make([]string, 0)
	for _, tool := range c.Tools() {
		names = append(names, tool.Name())
		require.NotNil(t, tool.Permissions(), tool.Name())
		assert.NotEmpty(t, tool.Description(), tool.Name())
	}
	assert.Equal(t, []string{
		ToolFeatureList, ToolFeatureGet, ToolFeatureCreate, ToolFeatureUpdate, ToolFeatureDelete,
		ToolProductList, ToolNoteList, ToolNoteCreate, ToolObjectiveList,
	}, names)

	tests := []struct {
		tool  string
		level domain.AccessLevel
		perm  string
	}{
		{ToolFeatureList, domain.AccessRead, PermFeaturesRead},
		{ToolFeatureCreate, domain.AccessWrite, PermFeaturesWrite},
		{ToolFeatureDelete, domain.AccessDelete, PermFeaturesDelete},
		{ToolNoteCreate, domain.AccessWrite, PermNotesWrite},
		{ToolObjectiveList, domain.AccessRead, PermObjectivesRead},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			perms := toolByName(t, c, tt.tool).Permissions()
			assert.Equal(t, tt.level, perms.MinimumAccessLevel)
			assert.Equal(t, []string{tt.perm}, perms.RequiredPermissions)
		})
	}
}

func TestToolSchemas(t *testing.T) {
	c, _ := newCatalogue(t)

	list := toolByName(t, c, ToolFeatureList).Parameters()
	assert.Empty(t, list.ValidateParams(map[string]any{"limit": float64(10), "status": "planned"}))
	assert.NotEmpty(t, list.ValidateParams(map[string]any{"limit": float64(0)}))
	assert.NotEmpty(t, list.ValidateParams(map[string]any{"status": "someday"}))
	assert.NotEmpty(t, list.ValidateParams(map[string]any{"colour": "red"}))

	create := toolByName(t, c, ToolNoteCreate).Parameters()
	violations := create.ValidateParams(map[string]any{"title": "Slow export"})
	require.Len(t, violations, 1)
	assert.Equal(t, "params.content: is required", violations[0].String())
}

func TestListFeatures(t *testing.T) {
	c, api := newCatalogue(t)
	want := map[string]any{"data": []any{map[string]any{"id": "f1"}}}
	api.On("Get", mock.Anything, "/features", map[string]string{
		"pageLimit":   "5",
		"status.name": "planned",
		"parent.id":   "",
	}).Return(want, nil).Once()

	out, err := toolByName(t, c, ToolFeatureList).Execute(context.Background(), map[string]any{
		"limit":  float64(5),
		"status": "planned",
	})
	require.NoError(t, err)
	assert.Equal(t, want, out)
}

func TestListPathsUseDefaultPaging(t *testing.T) {
	c, api := newCatalogue(t)
	api.On("Get", mock.Anything, "/products", map[string]string{"pageLimit": "25"}).Return(map[string]any{"data": []any{}}, nil).Once()
	api.On("Get", mock.Anything, "/objectives", map[string]string{"pageLimit": "25", "pageOffset": "50"}).Return(map[string]any{"data": []any{}}, nil).Once()

	_, err := toolByName(t, c, ToolProductList).Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	_, err = toolByName(t, c, ToolObjectiveList).Execute(context.Background(), map[string]any{"offset": float64(50)})
	require.NoError(t, err)
}

func TestGetFeatureEscapesID(t *testing.T) {
	c, api := newCatalogue(t)
	api.On("Get", mock.Anything, "/features/a%2Fb", map[string]string(nil)).Return(map[string]any{"data": map[string]any{"id": "a/b"}}, nil).Once()

	_, err := toolByName(t, c, ToolFeatureGet).Execute(context.Background(), map[string]any{"id": "a/b"})
	require.NoError(t, err)
}

func TestCreateFeature(t *testing.T) {
	c, api := newCatalogue(t)
	api.On("Post", mock.Anything, "/features", map[string]any{
		"data": map[string]any{
			"name":   "Dark mode",
			"type":   "feature",
			"status": map[string]any{"name": "new"},
			"parent": map[string]any{"product": map[string]any{"id": "p1"}},
		},
	}).Return(map[string]any{"data": map[string]any{"id": "f2"}}, nil).Once()

	out, err := toolByName(t, c, ToolFeatureCreate).Execute(context.Background(), map[string]any{
		"name":       "Dark mode",
		"status":     "new",
		"product_id": "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"data": map[string]any{"id": "f2"}}, out)
}

func TestUpdateFeature(t *testing.T) {
	c, api := newCatalogue(t)
	api.On("Patch", mock.Anything, "/features/f1", map[string]any{
		"data": map[string]any{"status": map[string]any{"name": "released"}},
	}).Return(map[string]any{"data": map[string]any{"id": "f1"}}, nil).Once()

	tool := toolByName(t, c, ToolFeatureUpdate)
	_, err := tool.Execute(context.Background(), map[string]any{"id": "f1", "status": "released"})
	require.NoError(t, err)

	_, err = tool.Execute(context.Background(), map[string]any{"id": "f1"})
	assert.EqualError(t, err, "nothing to update: set name, description or status")
}

func TestDeleteFeature(t *testing.T) {
	c, api := newCatalogue(t)
	api.On("Delete", mock.Anything, "/features/f1", nil).Return(nil, nil).Once()
	api.On("Delete", mock.Anything, "/features/f2", nil).Return(nil, errors.New("upstream returned 404: not found")).Once()

	tool := toolByName(t, c, ToolFeatureDelete)
	out, err := tool.Execute(context.Background(), map[string]any{"id": "f1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "f1", "deleted": true}, out)

	_, err = tool.Execute(context.Background(), map[string]any{"id": "f2"})
	assert.EqualError(t, err, "upstream returned 404: not found")
}

func TestNotes(t *testing.T) {
	c, api := newCatalogue(t)
	api.On("Get", mock.Anything, "/notes", map[string]string{"pageLimit": "25", "term": "export"}).Return(map[string]any{"data": []any{}}, nil).Once()
	api.On("Post", mock.Anything, "/notes", map[string]any{
		"title":          "Slow export",
		"content":        "CSV export takes minutes",
		"customer_email": "ana@example.com",
		"tags":           []any{"performance"},
	}).Return(map[string]any{"data": map[string]any{"id": "n1"}}, nil).Once()

	_, err := toolByName(t, c, ToolNoteList).Execute(context.Background(), map[string]any{"term": "export"})
	require.NoError(t, err)

	_, err = toolByName(t, c, ToolNoteCreate).Execute(context.Background(), map[string]any{
		"title":          "Slow export",
		"content":        "CSV export takes minutes",
		"customer_email": "ana@example.com",
		"tags":           []any{"performance"},
	})
	require.NoError(t, err)
}

func TestRegister(t *testing.T) {
	c, _ := newCatalogue(t)
	logger := logging.NewNop()
	tools := registry.NewInMemoryToolRepository(logger)
	resources := registry.NewInMemoryResourceRepository(logger)
	prompts := registry.NewInMemoryPromptRepository(logger)

	c.Register(tools, resources, prompts)

	assert.Equal(t, 9, tools.Size())
	assert.Equal(t, 2, resources.Size())
	assert.True(t, prompts.Has(PromptFeatureSummary))
	_, ok := resources.GetByURI(URIToolDocs)
	assert.True(t, ok)
}

func TestToolDocsResource(t *testing.T) {
	c, _ := newCatalogue(t)
	tools := registry.NewInMemoryToolRepository(logging.NewNop())
	for _, tool := range c.Tools() {
		tools.Register(tool)
	}

	docs := c.Resources(tools)[0]
	content := domain.ReadResource(context.Background(), docs)

	assert.Equal(t, URIToolDocs, content.URI)
	assert.Equal(t, "text/markdown", content.MIMEType)
	assert.False(t, content.IsError)
	assert.Contains(t, content.Text, "## pb_feature_get")
	assert.Contains(t, content.Text, "- `id` (string, required): Feature ID")
	assert.Contains(t, content.Text, "Access level: delete; permissions: features:delete")
	assert.Contains(t, content.Text, "- `tags` (array of string): Tags to attach")
}

func TestWorkspaceFeaturesResource(t *testing.T) {
	c, api := newCatalogue(t)
	api.On("Get", mock.Anything, "/features", map[string]string{"pageLimit": "100"}).
		Return(map[string]any{"data": []any{}}, nil).Once()
	api.On("Get", mock.Anything, "/features", map[string]string{"pageLimit": "100"}).
		Return(nil, errors.New("upstream returned 503: unavailable")).Once()

	features := c.Resources(nil)[1]

	ok := domain.ReadResource(context.Background(), features)
	assert.False(t, ok.IsError)
	assert.JSONEq(t, `{"data":[]}`, ok.Text)

	failed := domain.ReadResource(context.Background(), features)
	assert.True(t, failed.IsError)
	assert.JSONEq(t, `{"error":"list features: upstream returned 503: unavailable"}`, failed.Text)
}

func TestFeatureSummaryPrompt(t *testing.T) {
	c, api := newCatalogue(t)
	api.On("Get", mock.Anything, "/features/f1", map[string]string(nil)).
		Return(map[string]any{"data": map[string]any{"id": "f1", "name": "Dark mode"}}, nil).Twice()

	prompt := c.Prompts()[0]
	assert.Equal(t, []string{"feature_id"}, domain.MissingPromptArguments(prompt, nil))

	messages, err := prompt.Execute(context.Background(), map[string]any{"feature_id": "f1", "audience": "executives"})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].Role)
	assert.Contains(t, messages[0].Content.Text, "for executives.")
	assert.Contains(t, messages[0].Content.Text, `"name": "Dark mode"`)

	messages, err = prompt.Execute(context.Background(), map[string]any{"feature_id": "f1"})
	require.NoError(t, err)
	assert.Contains(t, messages[0].Content.Text, "for the product team.")
}
