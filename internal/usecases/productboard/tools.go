// Package productboard defines the Productboard tools, resources and prompts
// served by the server. Every tool forwards to the upstream REST API.
package productboard

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/schema"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/upstream"
)

// Permission names required by the catalogue tools.
const (
	PermFeaturesRead   = "features:read"
	PermFeaturesWrite  = "features:write"
	PermFeaturesDelete = "features:delete"
	PermProductsRead   = "products:read"
	PermNotesRead      = "notes:read"
	PermNotesWrite     = "notes:write"
	PermObjectivesRead = "objectives:read"
)

// Tool names
const (
	ToolFeatureList   = "pb_feature_list"
	ToolFeatureGet    = "pb_feature_get"
	ToolFeatureCreate = "pb_feature_create"
	ToolFeatureUpdate = "pb_feature_update"
	ToolFeatureDelete = "pb_feature_delete"
	ToolProductList   = "pb_product_list"
	ToolNoteList      = "pb_note_list"
	ToolNoteCreate    = "pb_note_create"
	ToolObjectiveList = "pb_objective_list"
)

// DefaultPageLimit is sent when a list call does not ask for a page size.
const DefaultPageLimit = 25

var featureStatuses = []string{"new", "in progress", "planned", "released", "archived"}

// Catalogue builds the Productboard entities over an upstream API.
type Catalogue struct {
	api    upstream.API
	logger *logging.Logger
}

// New creates a Catalogue.
func New(api upstream.API, logger *logging.Logger) *Catalogue {
	return &Catalogue{
		api:    api,
		logger: logging.OrDefault(logger).Named("productboard"),
	}
}

// Register adds every tool, resource and prompt to the repositories.
func (c *Catalogue) Register(tools domain.ToolRepository, resources domain.ResourceRepository, prompts domain.PromptRepository) {
	for _, t := range c.Tools() {
		tools.Register(t)
	}
	for _, r := range c.Resources(tools) {
		resources.Register(r)
	}
	for _, p := range c.Prompts() {
		prompts.Register(p)
	}
	c.logger.Info("catalogue registered", logging.Fields{
		"tools":     tools.Size(),
		"resources": resources.Size(),
		"prompts":   prompts.Size(),
	})
}

func pagination() map[string]*schema.Schema {
	return map[string]*schema.Schema{
		"limit":  schema.Integer("Maximum number of items to return").WithRange(1, 100),
		"offset": schema.Integer("Number of items to skip").WithRange(0, 1e6),
	}
}

func withProps(base map[string]*schema.Schema, extra map[string]*schema.Schema) map[string]*schema.Schema {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

// Tools returns the catalogue tools in registration order.
func (c *Catalogue) Tools() []domain.Tool {
	id := func(what string) *schema.Schema {
		return schema.String(what+" ID").WithLength(1, 128)
	}

	return []domain.Tool{
		domain.NewTool(ToolFeatureList, c.listFeatures,
			domain.WithDescription("List features in the workspace, optionally filtered by status or parent"),
			domain.WithParameters(schema.Object(withProps(pagination(), map[string]*schema.Schema{
				"status":    schema.Enum("Feature status name", featureStatuses...),
				"parent_id": id("Parent product or component"),
			}))),
			domain.WithPermissions(domain.AccessRead, PermFeaturesRead),
		),
		domain.NewTool(ToolFeatureGet, c.getFeature,
			domain.WithDescription("Get a single feature by ID"),
			domain.WithParameters(schema.Object(map[string]*schema.Schema{
				"id": id("Feature"),
			}, "id")),
			domain.WithPermissions(domain.AccessRead, PermFeaturesRead),
		),
		domain.NewTool(ToolFeatureCreate, c.createFeature,
			domain.WithDescription("Create a feature"),
			domain.WithParameters(schema.Object(map[string]*schema.Schema{
				"name":        schema.String("Feature name").WithLength(1, 255),
				"description": schema.String("Feature description, HTML allowed"),
				"status":      schema.Enum("Feature status name", featureStatuses...),
				"product_id":  id("Parent product"),
			}, "name")),
			domain.WithPermissions(domain.AccessWrite, PermFeaturesWrite),
		),
		domain.NewTool(ToolFeatureUpdate, c.updateFeature,
			domain.WithDescription("Update the name, description or status of a feature"),
			domain.WithParameters(schema.Object(map[string]*schema.Schema{
				"id":          id("Feature"),
				"name":        schema.String("Feature name").WithLength(1, 255),
				"description": schema.String("Feature description, HTML allowed"),
				"status":      schema.Enum("Feature status name", featureStatuses...),
			}, "id")),
			domain.WithPermissions(domain.AccessWrite, PermFeaturesWrite),
		),
		domain.NewTool(ToolFeatureDelete, c.deleteFeature,
			domain.WithDescription("Delete a feature"),
			domain.WithParameters(schema.Object(map[string]*schema.Schema{
				"id": id("Feature"),
			}, "id")),
			domain.WithPermissions(domain.AccessDelete, PermFeaturesDelete),
		),
		domain.NewTool(ToolProductList, c.listPath("/products"),
			domain.WithDescription("List products"),
			domain.WithParameters(schema.Object(pagination())),
			domain.WithPermissions(domain.AccessRead, PermProductsRead),
		),
		domain.NewTool(ToolNoteList, c.listNotes,
			domain.WithDescription("List customer feedback notes, optionally matching a search term"),
			domain.WithParameters(schema.Object(withProps(pagination(), map[string]*schema.Schema{
				"term": schema.String("Full text search term").WithLength(1, 255),
			}))),
			domain.WithPermissions(domain.AccessRead, PermNotesRead),
		),
		domain.NewTool(ToolNoteCreate, c.createNote,
			domain.WithDescription("Create a customer feedback note"),
			domain.WithParameters(schema.Object(map[string]*schema.Schema{
				"title":          schema.String("Note title").WithLength(1, 255),
				"content":        schema.String("Note body").WithLength(1, -1),
				"customer_email": schema.String("Email of the customer the note came from").WithFormat("email"),
				"tags":           schema.Array("Tags to attach", schema.String("Tag")),
			}, "title", "content")),
			domain.WithPermissions(domain.AccessWrite, PermNotesWrite),
		),
		domain.NewTool(ToolObjectiveList, c.listPath("/objectives"),
			domain.WithDescription("List objectives"),
			domain.WithParameters(schema.Object(pagination())),
			domain.WithPermissions(domain.AccessRead, PermObjectivesRead),
		),
	}
}

func (c *Catalogue) listFeatures(ctx context.Context, params map[string]any) (any, error) {
	query := pageQuery(params)
	query["status.name"] = stringParam(params, "status")
	query["parent.id"] = stringParam(params, "parent_id")
	return c.api.Get(ctx, "/features", query)
}

func (c *Catalogue) getFeature(ctx context.Context, params map[string]any) (any, error) {
	id, err := requiredString(params, "id")
	if err != nil {
		return nil, err
	}
	return c.api.Get(ctx, featurePath(id), nil)
}

func (c *Catalogue) createFeature(ctx context.Context, params map[string]any) (any, error) {
	name, err := requiredString(params, "name")
	if err != nil {
		return nil, err
	}

	data := map[string]any{"name": name, "type": "feature"}
	if v := stringParam(params, "description"); v != "" {
		data["description"] = v
	}
	if v := stringParam(params, "status"); v != "" {
		data["status"] = map[string]any{"name": v}
	}
	if v := stringParam(params, "product_id"); v != "" {
		data["parent"] = map[string]any{"product": map[string]any{"id": v}}
	}
	return c.api.Post(ctx, "/features", map[string]any{"data": data})
}

func (c *Catalogue) updateFeature(ctx context.Context, params map[string]any) (any, error) {
	id, err := requiredString(params, "id")
	if err != nil {
		return nil, err
	}

	data := map[string]any{}
	if v := stringParam(params, "name"); v != "" {
		data["name"] = v
	}
	if v := stringParam(params, "description"); v != "" {
		data["description"] = v
	}
	if v := stringParam(params, "status"); v != "" {
		data["status"] = map[string]any{"name": v}
	}
	if len(data) == 0 {
		return nil, errors.New("nothing to update: set name, description or status")
	}
	return c.api.Patch(ctx, featurePath(id), map[string]any{"data": data})
}

func (c *Catalogue) deleteFeature(ctx context.Context, params map[string]any) (any, error) {
	id, err := requiredString(params, "id")
	if err != nil {
		return nil, err
	}
	if _, err := c.api.Delete(ctx, featurePath(id), nil); err != nil {
		return nil, err
	}
	return map[string]any{"id": id, "deleted": true}, nil
}

func (c *Catalogue) listNotes(ctx context.Context, params map[string]any) (any, error) {
	query := pageQuery(params)
	query["term"] = stringParam(params, "term")
	return c.api.Get(ctx, "/notes", query)
}

func (c *Catalogue) createNote(ctx context.Context, params map[string]any) (any, error) {
	title, err := requiredString(params, "title")
	if err != nil {
		return nil, err
	}
	content, err := requiredString(params, "content")
	if err != nil {
		return nil, err
	}

	body := map[string]any{"title": title, "content": content}
	if v := stringParam(params, "customer_email"); v != "" {
		body["customer_email"] = v
	}
	if tags, ok := params["tags"].([]any); ok && len(tags) > 0 {
		body["tags"] = tags
	}
	return c.api.Post(ctx, "/notes", body)
}

func (c *Catalogue) listPath(path string) domain.ToolHandlerFunc {
	return func(ctx context.Context, params map[string]any) (any, error) {
		return c.api.Get(ctx, path, pageQuery(params))
	}
}

func featurePath(id string) string {
	return "/features/" + url.PathEscape(id)
}

func pageQuery(params map[string]any) map[string]string {
	limit, ok := intParam(params, "limit")
	if !ok {
		limit = DefaultPageLimit
	}
	query := map[string]string{"pageLimit": strconv.Itoa(limit)}
	if offset, ok := intParam(params, "offset"); ok && offset > 0 {
		query["pageOffset"] = strconv.Itoa(offset)
	}
	return query
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

func requiredString(params map[string]any, key string) (string, error) {
	s := stringParam(params, key)
	if s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

func intParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}
