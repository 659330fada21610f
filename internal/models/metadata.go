package models

// ResourceMetadata carries descriptive data registered for a resource.
// Only one of Title and Mimetype is set per registration.
type ResourceMetadata struct {
	URI      string `json:"uri"`
	Title    string `json:"title,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
}
