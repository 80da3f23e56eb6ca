package supabase

import (
	"github.com/supabase-community/supabase-go"

	"animatevdo-backend/internal/config"
)

// Client holds the platform-level Supabase client shared by the realtime
// publisher. Database access goes through DatabaseClient instead; the
// platform client only covers what a direct Postgres connection cannot.
type Client struct {
	Supabase *supabase.Client
}

func NewClient(cfg *config.Config) (*Client, error) {
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, nil)
	if err != nil {
		return nil, err
	}

	return &Client{Supabase: client}, nil
}
