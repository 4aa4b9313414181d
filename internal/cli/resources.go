package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/learnwithjiji/jiji/internal/storage"
)

// NewResourcesCmd creates the 'resources' command group for catalog upkeep.
func NewResourcesCmd(opts *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resources",
		Aliases: []string{"res"},
		Short:   "Manage the learning resource catalog",
	}

	cmd.AddCommand(newResourcesAddCmd(opts))
	cmd.AddCommand(newResourcesListCmd(opts))
	cmd.AddCommand(newResourcesImportCmd(opts))
	cmd.AddCommand(newResourcesToggleCmd(opts, "activate", true))
	cmd.AddCommand(newResourcesToggleCmd(opts, "deactivate", false))

	return cmd
}

func newResourcesAddCmd(opts *GlobalOptions) *cobra.Command {
	var r storage.Resource
	var resourceType string
	var inactive bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a resource to the catalog",
		Example: `  jiji resources add --title "Recursion Basics" --type video \
    --url https://example.com/recursion --tags recursion,algorithms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r.Type = storage.ResourceType(resourceType)
			r.IsActive = !inactive
			return withCatalog(cmd, opts, func(ctx context.Context, store storage.Storage) error {
				created, err := addResource(ctx, store, r)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Added %q (%s)\n", created.Title, created.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&r.Title, "title", "", "Title (required)")
	cmd.Flags().StringVar(&resourceType, "type", "", "Type: article, video, link, course, documentation, tutorial (required)")
	cmd.Flags().StringVar(&r.URL, "url", "", "URL (required)")
	cmd.Flags().StringVar(&r.Description, "description", "", "Description")
	cmd.Flags().StringSliceVar(&r.Tags, "tags", nil, "Comma-separated tags")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Add the resource without activating it")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func newResourcesListCmd(opts *GlobalOptions) *cobra.Command {
	var all bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List catalog resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, opts, func(ctx context.Context, store storage.Storage) error {
				resources, err := store.ListResources(ctx, all)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOutput {
					return writeJSON(out, resources)
				}
				if len(resources) == 0 {
					fmt.Fprintln(out, "No resources in the catalog.")
					fmt.Fprintln(out, "Run 'jiji resources add' or 'jiji resources import <file>'.")
					return nil
				}

				fmt.Fprintf(out, "Resources (%d):\n\n", len(resources))
				for _, r := range resources {
					status := "active"
					if !r.IsActive {
						status = "inactive"
					}
					fmt.Fprintf(out, "  %s\n", r.Title)
					fmt.Fprintf(out, "    ID:     %s\n", r.ID)
					fmt.Fprintf(out, "    Type:   %s (%s)\n", r.Type, status)
					fmt.Fprintf(out, "    URL:    %s\n", r.URL)
					if len(r.Tags) > 0 {
						fmt.Fprintf(out, "    Tags:   %s\n", strings.Join(r.Tags, ", "))
					}
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include inactive resources")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

func newResourcesImportCmd(opts *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import resources from a JSON or YAML file",
		Long: `Import resources from a JSON (.json) or YAML (.yaml, .yml) file.

The file holds either a list of resources or an object with a
"resources" list. Entries are active unless is_active is false.`,
		Example: `  jiji resources import catalog.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := readResourceFile(args[0])
			if err != nil {
				return err
			}
			return withCatalog(cmd, opts, func(ctx context.Context, store storage.Storage) error {
				added := 0
				for i, e := range entries {
					if _, err := addResource(ctx, store, e.resource()); err != nil {
						return fmt.Errorf("entry %d (%q): %w", i+1, e.Title, err)
					}
					added++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d resources\n", added)
				return nil
			})
		},
	}

	return cmd
}

func newResourcesToggleCmd(opts *GlobalOptions, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, opts, func(ctx context.Context, store storage.Storage) error {
				err := store.SetResourceActive(ctx, args[0], active)
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("resource %q not found", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Resource %s %sd\n", args[0], use)
				return nil
			})
		},
	}
}

// withCatalog opens the configured store for fn. Unlike serve, catalog
// commands fail when the store is unavailable.
func withCatalog(cmd *cobra.Command, opts *GlobalOptions, fn func(context.Context, storage.Storage) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	store := newStore(cfg, nil)
	defer store.Close()

	if err := store.Init(cmd.Context()); err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	return fn(cmd.Context(), store)
}

func addResource(ctx context.Context, store storage.CatalogStore, r storage.Resource) (*storage.Resource, error) {
	if !r.Type.Valid() {
		return nil, fmt.Errorf("unknown resource type %q", r.Type)
	}
	return store.AddResource(ctx, r)
}

// resourceEntry is one resource of an import file. IsActive is a pointer so
// an omitted flag defaults to active.
type resourceEntry struct {
	Title       string   `json:"title" yaml:"title"`
	Type        string   `json:"type" yaml:"type"`
	URL         string   `json:"url" yaml:"url"`
	Description string   `json:"description" yaml:"description"`
	Tags        []string `json:"tags" yaml:"tags"`
	IsActive    *bool    `json:"is_active" yaml:"is_active"`
}

func (e resourceEntry) resource() storage.Resource {
	active := true
	if e.IsActive != nil {
		active = *e.IsActive
	}
	return storage.Resource{
		Title:       e.Title,
		Type:        storage.ResourceType(e.Type),
		URL:         e.URL,
		Description: e.Description,
		Tags:        e.Tags,
		IsActive:    active,
	}
}

type resourceFile struct {
	Resources []resourceEntry `json:"resources" yaml:"resources"`
}

// readResourceFile decodes an import file by its extension.
func readResourceFile(path string) ([]resourceEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var unmarshal func([]byte, interface{}) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		unmarshal = json.Unmarshal
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	default:
		return nil, fmt.Errorf("unsupported file type %q: use .json, .yaml or .yml", filepath.Ext(path))
	}

	var list []resourceEntry
	if err := unmarshal(data, &list); err == nil {
		return list, nil
	}

	var file resourceFile
	if err := unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return file.Resources, nil
}
