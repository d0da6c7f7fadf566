package productboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/schema"
)

// Resource URIs
const (
	URIToolDocs          = "productboard://docs/tools"
	URIWorkspaceFeatures = "productboard://workspace/features"
)

// Resources returns the catalogue resources. The tool reference is rendered
// from tools on every read, so it tracks later registrations.
func (c *Catalogue) Resources(tools domain.ToolRepository) []domain.Resource {
	return []domain.Resource{
		&toolDocs{tools: tools},
		&workspaceFeatures{catalogue: c},
	}
}

type toolDocs struct {
	tools domain.ToolRepository
}

func (r *toolDocs) Name() string     { return "tool-reference" }
func (r *toolDocs) URI() string      { return URIToolDocs }
func (r *toolDocs) MIMEType() string { return "text/markdown" }
func (r *toolDocs) Description() string {
	return "Reference of every registered tool with its parameters and required permissions"
}

func (r *toolDocs) Retrieve(context.Context) (*domain.ResourceContents, error) {
	var b strings.Builder
	b.WriteString("# Productboard tools\n")
	for _, t := range r.tools.List() {
		writeToolDoc(&b, t)
	}
	return &domain.ResourceContents{Text: b.String()}, nil
}

func writeToolDoc(b *strings.Builder, t domain.Tool) {
	fmt.Fprintf(b, "\n## %s\n\n", t.Name())
	if t.Description() != "" {
		fmt.Fprintf(b, "%s\n\n", t.Description())
	}

	params := t.Parameters()
	if params == nil || len(params.Properties) == 0 {
		b.WriteString("No parameters.\n")
	} else {
		required := map[string]bool{}
		for _, name := range params.Required {
			required[name] = true
		}
		names := make([]string, 0, len(params.Properties))
		for name := range params.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		b.WriteString("Parameters:\n\n")
		for _, name := range names {
			fmt.Fprintf(b, "- `%s` (%s", name, kindOf(params.Properties[name]))
			if required[name] {
				b.WriteString(", required")
			}
			b.WriteString(")")
			if desc := params.Properties[name].Description; desc != "" {
				fmt.Fprintf(b, ": %s", desc)
			}
			b.WriteString("\n")
		}
	}

	if perms := t.Permissions(); perms != nil {
		fmt.Fprintf(b, "\nAccess level: %s", perms.MinimumAccessLevel)
		if len(perms.RequiredPermissions) > 0 {
			fmt.Fprintf(b, "; permissions: %s", strings.Join(perms.RequiredPermissions, ", "))
		}
		b.WriteString("\n")
	}
}

func kindOf(s *schema.Schema) string {
	if len(s.Enum) > 0 {
		values := make([]string, len(s.Enum))
		for i, v := range s.Enum {
			values[i] = fmt.Sprint(v)
		}
		return "one of " + strings.Join(values, " | ")
	}
	if s.Kind == schema.KindArray && s.Items != nil {
		return "array of " + string(s.Items.Kind)
	}
	return string(s.Kind)
}

type workspaceFeatures struct {
	catalogue *Catalogue
}

func (r *workspaceFeatures) Name() string        { return "workspace-features" }
func (r *workspaceFeatures) URI() string         { return URIWorkspaceFeatures }
func (r *workspaceFeatures) MIMEType() string    { return "application/json" }
func (r *workspaceFeatures) Description() string { return "Live list of features in the workspace" }

func (r *workspaceFeatures) Retrieve(ctx context.Context) (*domain.ResourceContents, error) {
	out, err := r.catalogue.api.Get(ctx, "/features", map[string]string{"pageLimit": "100"})
	if err != nil {
		return nil, errors.Wrap(err, "list features")
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode features")
	}
	return &domain.ResourceContents{Text: string(data)}, nil
}
