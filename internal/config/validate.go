package config

import "fmt"

// Validate checks that the loaded configuration is usable.
// Returns an error describing the first validation failure, or nil if valid.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Apify.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks the database section.
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case "postgres":
		if c.URL == "" {
			return fmt.Errorf("database: url is required for the postgres driver (set DATABASE_URL)")
		}
	case "sqlite", "":
		if c.Path == "" {
			return fmt.Errorf("database: path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("database: unknown driver %q", c.Driver)
	}
	return nil
}

// Validate checks the apify section. The token itself is optional here:
// per-user credentials can supply it at job time.
func (c *ApifyConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("apify: base_url is required")
	}
	if c.CommentsActor == "" {
		return fmt.Errorf("apify: comments_actor is required")
	}
	if c.ProfilesActor == "" {
		return fmt.Errorf("apify: profiles_actor is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("apify: poll_interval must be positive")
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("apify: run_timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("apify: max_retries must not be negative")
	}
	return nil
}

// Validate checks the storage section. An empty endpoint disables the run
// archive, so the remaining fields are only required once one is set.
func (c *StorageConfig) Validate() error {
	if c.Endpoint == "" {
		return nil
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return fmt.Errorf("storage: access_key and secret_key are required (set STORAGE_ACCESS_KEY / STORAGE_SECRET_KEY)")
	}
	if c.Bucket == "" {
		return fmt.Errorf("storage: bucket is required")
	}
	return nil
}
