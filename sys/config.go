package sys

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
)

// --- Phase 1: Configuration & Environment ---

type Config struct {
	Token        string
	GuildID      string
	DatabasePath string
	OwnerIDs     []snowflake.ID
	Prefix       string
	Silent       bool
	LogFile      string

	SpotifyClientID     string
	SpotifyClientSecret string
	YoutubeProxy        string
}

const DefaultPrefix = "$$"

// LoadConfig reads .env and the environment. A non-empty token argument
// (the --token flag) wins over DISCORD_TOKEN; it may name a file holding the
// token on its first line.
func LoadConfig(token string) (*Config, error) {
	_ = godotenv.Load()

	if token == "" {
		token = os.Getenv("DISCORD_TOKEN")
	}
	token, err := ReadToken(token)
	if err != nil {
		return nil, err
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		folder := "."
		if info, err := os.Stat("data"); err == nil && info.IsDir() {
			folder = "./data"
		}
		dbPath = filepath.Join(folder, "soundtrack.db")
	}

	prefix := os.Getenv("COMMAND_PREFIX")
	if prefix == "" {
		prefix = DefaultPrefix
	}

	silent, _ := strconv.ParseBool(os.Getenv("SILENT"))

	owners, err := ParseOwnerIDs(os.Getenv("OWNER_IDS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Token:               token,
		GuildID:             strings.TrimSpace(os.Getenv("GUILD_ID")),
		DatabasePath:        dbPath,
		OwnerIDs:            owners,
		Prefix:              prefix,
		Silent:              silent,
		LogFile:             os.Getenv("LOG_FILE"),
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		YoutubeProxy:        os.Getenv("YOUTUBE_PROXY"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New(MsgConfigMissingToken)
	}
	if c.GuildID != "" && (len(c.GuildID) < 17 || len(c.GuildID) > 20) {
		return errors.New("invalid GUILD_ID: must be a valid Snowflake")
	}
	if strings.TrimSpace(c.Prefix) == "" {
		return errors.New("command prefix must not be blank")
	}
	return nil
}

// ReadToken returns value unchanged unless it looks like a token file: a
// path ending in .txt or naming an existing file. Then the first line of
// that file is the token.
func ReadToken(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}

	isFile := strings.HasSuffix(strings.ToLower(value), ".txt")
	if !isFile {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			isFile = true
		}
	}
	if !isFile {
		return value, nil
	}

	f, err := os.Open(value)
	if err != nil {
		return "", errors.Wrap(err, "open token file")
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", errors.Wrap(err, "read token file")
		}
		return "", errors.Newf("token file %s is empty", value)
	}
	return strings.TrimSpace(sc.Text()), nil
}

// ParseOwnerIDs parses a comma separated list of user ids.
func ParseOwnerIDs(raw string) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := snowflake.Parse(part)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid OWNER_IDS entry %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
