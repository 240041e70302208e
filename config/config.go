package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Apify     ApifyConfig
	Postgres  PostgresConfig
	S3        S3Config
	Scheduler SchedulerConfig
	Server    ServerConfig
	Browser   BrowserConfig
	ProxyURL  string
	DBPath    string
	LogLevel  string
	Regions   map[string]*RegionConfig
}

type ApifyConfig struct {
	APIKey   string
	ActorID  string
	MaxItems int
}

type PostgresConfig struct {
	URL string
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PublicURL string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ServerConfig struct {
	Port int
}

type BrowserConfig struct {
	Enabled  bool
	Headless bool
}

type RegionConfig struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	StartURLs []string `yaml:"start_urls"`
	Cities    []string `yaml:"cities"`
	MaxItems  int      `yaml:"max_items"`
}

// DefaultRegionID is the region scraped when nothing else is asked for.
const DefaultRegionID = "windsor-essex"

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Apify: ApifyConfig{
			APIKey:   getEnv("APIFY_API_KEY", os.Getenv("VITE_APIFY_API_KEY")),
			ActorID:  getEnv("APIFY_ACTOR_ID", "apify~realtor-ca-scraper"),
			MaxItems: getEnvInt("APIFY_MAX_ITEMS", 500),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		S3: S3Config{
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			PublicURL: os.Getenv("S3_PUBLIC_URL"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
			// Six-hourly unless SCRAPE_INTERVAL or a cron expression says
			// otherwise. SCRAPE_INTERVAL=0 disables the schedule.
			Interval: 6 * time.Hour,
		},
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8080),
		},
		Browser: BrowserConfig{
			Enabled:  getEnv("BROWSER_FALLBACK", "true") == "true",
			Headless: getEnv("HEADLESS", "true") == "true",
		},
		ProxyURL: os.Getenv("PROXY_URL"),
		DBPath:   getEnv("DB_PATH", "listings.db"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Regions:  map[string]*RegionConfig{DefaultRegionID: defaultRegion()},
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadRegionConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Region returns a configured region by id, nil when unknown.
func (c *Config) Region(id string) *RegionConfig {
	if id == "" {
		id = DefaultRegionID
	}
	return c.Regions[id]
}

// defaultRegion is the built-in Windsor-Essex definition. A YAML file with
// the same id under config/regions/ replaces it wholesale.
func defaultRegion() *RegionConfig {
	return &RegionConfig{
		ID:   DefaultRegionID,
		Name: "Windsor-Essex",
		StartURLs: []string{
			"https://www.realtor.ca/on/windsor/real-estate",
			"https://www.realtor.ca/on/tecumseh/real-estate",
			"https://www.realtor.ca/on/lasalle/real-estate",
			"https://www.realtor.ca/on/amherstburg/real-estate",
			"https://www.realtor.ca/on/lakeshore/real-estate",
			"https://www.realtor.ca/on/kingsville/real-estate",
			"https://www.realtor.ca/on/leamington/real-estate",
			"https://www.realtor.ca/on/essex/real-estate",
			"https://www.realtor.ca/on/belle-river/real-estate",
		},
		Cities: []string{
			"windsor", "tecumseh", "lasalle", "amherstburg", "lakeshore",
			"kingsville", "leamington", "essex", "belle river", "harrow",
			"maidstone", "mcgregor", "cottam", "stoney point", "staples",
		},
		MaxItems: 500,
	}
}

func (c *Config) loadRegionConfigs() error {
	configDir := "config/regions"
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var region RegionConfig
		if err := yaml.Unmarshal(data, &region); err != nil {
			return err
		}
		if region.ID == "" {
			continue
		}
		if region.MaxItems == 0 {
			region.MaxItems = c.Apify.MaxItems
		}

		c.Regions[region.ID] = &region
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
