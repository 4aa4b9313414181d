package storage

import "time"

// QueryRecord is a persisted learning query.
type QueryRecord struct {
	// ID is assigned by the store on creation.
	ID string `json:"id"`

	// Text is the sanitized query text.
	Text string `json:"query_text"`

	// UserID is the verified identity of the asker, or empty when anonymous.
	UserID string `json:"user_id,omitempty"`

	// CreatedAt is assigned by the store on creation.
	CreatedAt time.Time `json:"created_at"`
}

// ResourceType is the category of a learning resource.
type ResourceType string

// Known resource types. Other values read from the store are passed through.
const (
	ResourceArticle       ResourceType = "article"
	ResourceVideo         ResourceType = "video"
	ResourceLink          ResourceType = "link"
	ResourceCourse        ResourceType = "course"
	ResourceDocumentation ResourceType = "documentation"
	ResourceTutorial      ResourceType = "tutorial"
)

// ResourceTypes lists the known resource types.
var ResourceTypes = []ResourceType{
	ResourceArticle,
	ResourceVideo,
	ResourceLink,
	ResourceCourse,
	ResourceDocumentation,
	ResourceTutorial,
}

// Valid reports whether t is one of the known resource types.
func (t ResourceType) Valid() bool {
	for _, known := range ResourceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Resource is a catalog entry.
type Resource struct {
	ID          string       `json:"id" yaml:"id"`
	Title       string       `json:"title" yaml:"title"`
	Type        ResourceType `json:"type" yaml:"type"`
	URL         string       `json:"url" yaml:"url"`
	Description string       `json:"description,omitempty" yaml:"description"`
	Tags        []string     `json:"tags" yaml:"tags"`
	IsActive    bool         `json:"is_active" yaml:"is_active"`
	CreatedAt   time.Time    `json:"created_at" yaml:"-"`
}
