package geocode

import "log"

// client is the shared BAN client, wired once in Init. Tests point it at an
// httptest server instead.
var client *Client

func Init(configPath string) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Fatal("Failed to load geocode config: ", err)
	}
	client = NewClient(cfg)
	log.Printf("[Geocode] client ready, ban=%s threshold=%.2f", cfg.BANBaseURL, cfg.ScoreThreshold)
}
