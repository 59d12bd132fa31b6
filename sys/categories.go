package sys

import (
	_ "embed"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/leeineian/soundtrack/ost"
)

//go:embed categories.yaml
var defaultBotConfig []byte

// BotConfig is the YAML side of the configuration: the category set and the
// tunables of the list UI, player and warmup daemon.
type BotConfig struct {
	Categories []CategoryConfig `yaml:"categories" validate:"required,min=1,dive"`
	List       ListConfig       `yaml:"list"`
	Playback   PlaybackConfig   `yaml:"playback"`
	Warmup     WarmupConfig     `yaml:"warmup"`
}

type CategoryConfig struct {
	Letter      string `yaml:"letter" validate:"required,len=1"`
	Name        string `yaml:"name" validate:"required"`
	Emoji       string `yaml:"emoji" validate:"required"`
	Description string `yaml:"description"`
}

type ListConfig struct {
	PageSize      int           `yaml:"page_size" default:"10" validate:"gte=1,lte=25"`
	Timeout       time.Duration `yaml:"timeout" default:"60s"`
	HomeEmoji     string        `yaml:"home_emoji" default:"🔷"`
	NextEmoji     string        `yaml:"next_emoji" default:"▶️"`
	PreviousEmoji string        `yaml:"previous_emoji" default:"◀️"`
}

type PlaybackConfig struct {
	DefaultVolume int           `yaml:"default_volume" default:"50" validate:"gte=0,lte=1000"`
	PollInterval  time.Duration `yaml:"poll_interval" default:"500ms"`
}

type WarmupConfig struct {
	Workers       int     `yaml:"workers" default:"4" validate:"gte=1"`
	RatePerSecond float64 `yaml:"rate_per_second" default:"2" validate:"gt=0"`
	Burst         int     `yaml:"burst" default:"4" validate:"gte=1"`
}

// LoadBotConfig reads the YAML file at path, or the built-in defaults when
// path is empty.
func LoadBotConfig(path string) (*BotConfig, error) {
	data := defaultBotConfig
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}
	return ParseBotConfig(data)
}

func ParseBotConfig(data []byte) (*BotConfig, error) {
	var cfg BotConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return &cfg, nil
}

// CategorySet builds the validated catalog categories.
func (c *BotConfig) CategorySet() (*ost.Categories, error) {
	cs := make([]ost.Category, 0, len(c.Categories))
	for _, cc := range c.Categories {
		cs = append(cs, ost.Category{
			Letter:      cc.Letter,
			Name:        cc.Name,
			Emoji:       cc.Emoji,
			Description: cc.Description,
		})
	}
	return ost.NewCategories(cs...)
}
