package simpleblog

import "errors"

// Config names the external resources a Blog works against. The values are
// opaque to the core; backends decide what an endpoint or bucket means.
type Config struct {
	Endpoint     string
	ProjectID    string
	DatabaseID   string
	CollectionID string
	BucketID     string
}

// Validate validates the resource identifiers
func (c Config) Validate() error {
	if c.DatabaseID == "" {
		return errors.New("database id is required")
	}
	if c.CollectionID == "" {
		return errors.New("collection id is required")
	}
	if c.BucketID == "" {
		return errors.New("bucket id is required")
	}
	return nil
}
